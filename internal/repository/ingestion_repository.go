package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/openbi/dataforge/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

type ingestionRepository struct {
	db DBTX
}

// NewIngestionRepository wires the ingestion ledger backed by pgx.
func NewIngestionRepository(db DBTX) IngestionRepository {
	return &ingestionRepository{db: db}
}

func (r *ingestionRepository) WithTx(tx pgx.Tx) IngestionRepository {
	return &ingestionRepository{db: tx}
}

const ingestionColumns = `id, user_id, model_id, file_name, file_path, file_size, status,
	records_count, records_success, records_failed, error_log, correlation_id, created_at, completed_at`

func (r *ingestionRepository) Create(ctx context.Context, record domain.IngestionRecord) (domain.IngestionRecord, error) {
	row := r.db.QueryRow(
		ctx,
		`INSERT INTO ingestions (id, user_id, model_id, file_name, file_path, file_size, status, correlation_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING `+ingestionColumns,
		record.ID,
		record.UserID,
		record.ModelID,
		record.FileName,
		record.FilePath,
		record.FileSize,
		string(record.Status),
		record.CorrelationID,
	)

	created, err := scanIngestion(row)
	if err != nil {
		return domain.IngestionRecord{}, fmt.Errorf("failed to insert ingestion record: %w", err)
	}
	return created, nil
}

func (r *ingestionRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.IngestionRecord, error) {
	row := r.db.QueryRow(
		ctx,
		`SELECT `+ingestionColumns+` FROM ingestions WHERE id = $1`,
		id,
	)

	record, err := scanIngestion(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.IngestionRecord{}, domain.ErrIngestionNotFound
		}
		return domain.IngestionRecord{}, fmt.Errorf("failed to get ingestion record: %w", err)
	}
	return record, nil
}

func (r *ingestionRepository) Update(ctx context.Context, record domain.IngestionRecord) (domain.IngestionRecord, error) {
	var completedAt pgtype.Timestamptz
	if record.CompletedAt != nil {
		completedAt = pgtype.Timestamptz{Time: *record.CompletedAt, Valid: true}
	}

	row := r.db.QueryRow(
		ctx,
		`UPDATE ingestions
		 SET status = $2, records_count = $3, records_success = $4, records_failed = $5,
		     error_log = $6, completed_at = $7
		 WHERE id = $1
		 RETURNING `+ingestionColumns,
		record.ID,
		string(record.Status),
		record.TotalRows,
		record.SucceededRows,
		record.FailedRows,
		pgtype.Text{String: record.ErrorDetail, Valid: record.ErrorDetail != ""},
		completedAt,
	)

	updated, err := scanIngestion(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.IngestionRecord{}, domain.ErrIngestionNotFound
		}
		return domain.IngestionRecord{}, fmt.Errorf("failed to update ingestion record: %w", err)
	}
	return updated, nil
}

func (r *ingestionRepository) List(ctx context.Context, userID *uuid.UUID, modelID *uuid.UUID, limit int) ([]domain.IngestionRecord, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := r.db.Query(
		ctx,
		`SELECT `+ingestionColumns+`
		 FROM ingestions
		 WHERE ($1::uuid IS NULL OR user_id = $1)
		   AND ($2::uuid IS NULL OR model_id = $2)
		 ORDER BY created_at DESC
		 LIMIT $3`,
		userID,
		modelID,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list ingestion records: %w", err)
	}
	defer rows.Close()

	records := []domain.IngestionRecord{}
	for rows.Next() {
		record, scanErr := scanIngestion(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan ingestion record: %w", scanErr)
		}
		records = append(records, record)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("failed to iterate ingestion records: %w", rowsErr)
	}
	return records, nil
}

func scanIngestion(row pgx.Row) (domain.IngestionRecord, error) {
	var (
		record      domain.IngestionRecord
		status      string
		errorLog    pgtype.Text
		completedAt pgtype.Timestamptz
	)
	if err := row.Scan(
		&record.ID,
		&record.UserID,
		&record.ModelID,
		&record.FileName,
		&record.FilePath,
		&record.FileSize,
		&status,
		&record.TotalRows,
		&record.SucceededRows,
		&record.FailedRows,
		&errorLog,
		&record.CorrelationID,
		&record.CreatedAt,
		&completedAt,
	); err != nil {
		return domain.IngestionRecord{}, err
	}

	record.Status = domain.IngestionStatus(status)
	record.ErrorDetail = errorLog.String
	if completedAt.Valid {
		record.CompletedAt = &completedAt.Time
	}
	return record, nil
}
