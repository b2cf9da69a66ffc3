package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/openbi/dataforge/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
)

const uniqueViolationCode = "23505"

type dataModelRepository struct {
	db DBTX
}

// NewDataModelRepository wires a repository backed by pgx.
func NewDataModelRepository(db DBTX) DataModelRepository {
	return &dataModelRepository{db: db}
}

const dataModelColumns = `id, name, display_name, description, fields, version, is_active, table_name, created_by, created_at, updated_at`

func (r *dataModelRepository) Create(ctx context.Context, model domain.DataModel) (domain.DataModel, error) {
	fieldsJSON, err := model.GetFieldsAsJSONB()
	if err != nil {
		return domain.DataModel{}, fmt.Errorf("failed to marshal fields: %w", err)
	}

	row := r.db.QueryRow(
		ctx,
		`INSERT INTO data_models (id, name, display_name, description, fields, version, is_active, table_name, created_by)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING `+dataModelColumns,
		model.ID,
		model.Name,
		model.DisplayName,
		pgtype.Text{String: model.Description, Valid: model.Description != ""},
		fieldsJSON,
		model.Version,
		model.Active,
		model.TableName,
		model.CreatedBy,
	)

	created, err := scanDataModel(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			// The name column carries a unique constraint, which closes the
			// check-then-create race left open by the existence query.
			return domain.DataModel{}, domain.ErrDuplicateName
		}
		return domain.DataModel{}, fmt.Errorf("failed to insert data model: %w", err)
	}
	return created, nil
}

func (r *dataModelRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.DataModel, error) {
	row := r.db.QueryRow(
		ctx,
		`SELECT `+dataModelColumns+` FROM data_models WHERE id = $1`,
		id,
	)

	model, err := scanDataModel(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.DataModel{}, domain.ErrModelNotFound
		}
		return domain.DataModel{}, fmt.Errorf("failed to get data model: %w", err)
	}
	return model, nil
}

func (r *dataModelRepository) List(ctx context.Context, includeInactive bool) ([]domain.DataModel, error) {
	query := `SELECT ` + dataModelColumns + ` FROM data_models`
	if !includeInactive {
		query += ` WHERE is_active`
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list data models: %w", err)
	}
	defer rows.Close()

	models := []domain.DataModel{}
	for rows.Next() {
		model, scanErr := scanDataModel(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan data model: %w", scanErr)
		}
		models = append(models, model)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("failed to iterate data models: %w", rowsErr)
	}
	return models, nil
}

func (r *dataModelRepository) Update(ctx context.Context, model domain.DataModel) (domain.DataModel, error) {
	fieldsJSON, err := model.GetFieldsAsJSONB()
	if err != nil {
		return domain.DataModel{}, fmt.Errorf("failed to marshal fields: %w", err)
	}

	row := r.db.QueryRow(
		ctx,
		`UPDATE data_models
		 SET display_name = $2, description = $3, fields = $4, version = $5, is_active = $6, updated_at = now()
		 WHERE id = $1
		 RETURNING `+dataModelColumns,
		model.ID,
		model.DisplayName,
		pgtype.Text{String: model.Description, Valid: model.Description != ""},
		fieldsJSON,
		model.Version,
		model.Active,
	)

	updated, err := scanDataModel(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.DataModel{}, domain.ErrModelNotFound
		}
		return domain.DataModel{}, fmt.Errorf("failed to update data model: %w", err)
	}
	return updated, nil
}

func (r *dataModelRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM data_models WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete data model: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrModelNotFound
	}
	return nil
}

func (r *dataModelRepository) Exists(ctx context.Context, name, tableName string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(
		ctx,
		`SELECT EXISTS (SELECT 1 FROM data_models WHERE name = $1 OR table_name = $2)`,
		name,
		tableName,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check data model existence: %w", err)
	}
	return exists, nil
}

func scanDataModel(row pgx.Row) (domain.DataModel, error) {
	var (
		model       domain.DataModel
		description pgtype.Text
		fieldsJSON  []byte
	)
	if err := row.Scan(
		&model.ID,
		&model.Name,
		&model.DisplayName,
		&description,
		&fieldsJSON,
		&model.Version,
		&model.Active,
		&model.TableName,
		&model.CreatedBy,
		&model.CreatedAt,
		&model.UpdatedAt,
	); err != nil {
		return domain.DataModel{}, err
	}

	fields, err := domain.FromJSONBFields(fieldsJSON)
	if err != nil {
		return domain.DataModel{}, fmt.Errorf("failed to unmarshal fields for model %s: %w", model.Name, err)
	}

	model.Description = description.String
	model.Fields = fields
	return model, nil
}
