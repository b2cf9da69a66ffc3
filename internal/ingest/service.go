package ingest

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/openbi/dataforge/internal/audit"
	"github.com/openbi/dataforge/internal/config"
	"github.com/openbi/dataforge/internal/domain"
	"github.com/openbi/dataforge/internal/repository"
	"github.com/openbi/dataforge/internal/storage"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// TxRunner executes a function inside one database transaction. Implemented
// by db.Connection.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(pgx.Tx) error) error
}

// Service orchestrates ingestion and rollback: upload policy, file storage,
// ledger bookkeeping, transformation, batch loading, and correlation-id based
// reversal.
type Service struct {
	models     repository.DataModelRepository
	ingestions repository.IngestionRepository
	tables     repository.DynamicTableRepository
	loader     *Loader
	tx         TxRunner
	files      *storage.Store
	policy     config.UploadConfig
	audit      audit.Sink
	logger     *zap.Logger
}

// NewService creates an ingestion service.
func NewService(
	models repository.DataModelRepository,
	ingestions repository.IngestionRepository,
	tables repository.DynamicTableRepository,
	tx TxRunner,
	files *storage.Store,
	policy config.UploadConfig,
	sink audit.Sink,
	logger *zap.Logger,
) *Service {
	return &Service{
		models:     models,
		ingestions: ingestions,
		tables:     tables,
		loader:     NewLoader(tables),
		tx:         tx,
		files:      files,
		policy:     policy,
		audit:      sink,
		logger:     logger,
	}
}

// Request describes one ingestion attempt.
type Request struct {
	ModelID       uuid.UUID
	ActorID       uuid.UUID
	FileName      string
	DeclaredSize  int64
	Data          []byte
	ColumnMapping map[string]string
}

// Ingest runs one upload end to end. The ledger record is created in
// processing state before transformation begins; any later failure marks it
// failed and keeps the stored file on disk. Rows that fail required-field
// validation are still loaded; validity affects the reported counters only.
func (s *Service) Ingest(ctx context.Context, req Request) (domain.IngestionRecord, error) {
	if err := s.validateUpload(req.FileName, req.DeclaredSize); err != nil {
		return domain.IngestionRecord{}, err
	}

	model, err := s.models.GetByID(ctx, req.ModelID)
	if err != nil {
		return domain.IngestionRecord{}, err
	}

	path, err := s.files.Save(req.FileName, req.Data)
	if err != nil {
		return domain.IngestionRecord{}, fmt.Errorf("%w: %v", domain.ErrIngestFailed, err)
	}

	record, err := s.ingestions.Create(ctx, domain.NewIngestionRecord(
		req.ActorID, model.ID, req.FileName, path, req.DeclaredSize,
	))
	if err != nil {
		return domain.IngestionRecord{}, err
	}

	dataset, summary, err := Transform(req.FileName, req.Data, model.Fields, req.ColumnMapping)
	if err != nil {
		return s.markFailed(ctx, record, req, err)
	}

	if _, err := s.loader.Load(ctx, model.TableName, dataset, record.CorrelationID); err != nil {
		// Earlier batches stay committed under the correlation id; the failed
		// status is the operator's signal to clean up by correlation id.
		return s.markFailed(ctx, record, req, err)
	}

	completed, err := record.Transition(domain.IngestionCompleted)
	if err != nil {
		return domain.IngestionRecord{}, err
	}
	completed.TotalRows = summary.TotalRows
	completed.SucceededRows = summary.ValidRows
	completed.FailedRows = summary.InvalidRows
	completed.ErrorDetail = encodeFieldErrors(summary.Errors)

	updated, err := s.ingestions.Update(ctx, completed)
	if err != nil {
		return domain.IngestionRecord{}, err
	}

	s.logger.Info("ingestion completed",
		zap.String("model", model.Name),
		zap.String("file", req.FileName),
		zap.Int("total_rows", summary.TotalRows),
		zap.Int("invalid_rows", summary.InvalidRows))
	s.audit.Record(ctx, audit.Entry{
		ActorID:    req.ActorID,
		Action:     "upload",
		Resource:   "data",
		ResourceID: updated.ID,
		Details: map[string]any{
			"file_name":  req.FileName,
			"model_name": model.Name,
			"records":    summary.TotalRows,
		},
	})

	return updated, nil
}

// Rollback deletes every row the ingestion tagged and marks it reverted. The
// delete and the status flip share one transaction: if the delete fails, the
// record stays completed and ErrRollbackFailed surfaces.
func (s *Service) Rollback(ctx context.Context, ingestionID, actorID uuid.UUID) (domain.IngestionRecord, error) {
	record, err := s.ingestions.GetByID(ctx, ingestionID)
	if err != nil {
		return domain.IngestionRecord{}, err
	}

	if record.Status != domain.IngestionCompleted {
		return domain.IngestionRecord{}, fmt.Errorf("%w: can only rollback completed ingestions, status is %s",
			domain.ErrInvalidState, record.Status)
	}

	model, err := s.models.GetByID(ctx, record.ModelID)
	if err != nil {
		return domain.IngestionRecord{}, err
	}

	reverted, err := record.Transition(domain.IngestionReverted)
	if err != nil {
		return domain.IngestionRecord{}, err
	}

	var deleted int64
	var updated domain.IngestionRecord
	txErr := s.tx.WithTx(ctx, func(tx pgx.Tx) error {
		var delErr error
		deleted, delErr = s.tables.WithTx(tx).DeleteByCorrelation(ctx, model.TableName, record.CorrelationID)
		if delErr != nil {
			return delErr
		}
		updated, delErr = s.ingestions.WithTx(tx).Update(ctx, reverted)
		return delErr
	})
	if txErr != nil {
		return domain.IngestionRecord{}, fmt.Errorf("%w: %v", domain.ErrRollbackFailed, txErr)
	}

	s.logger.Info("ingestion rolled back",
		zap.String("model", model.Name),
		zap.String("correlation_id", record.CorrelationID),
		zap.Int64("records_deleted", deleted))
	s.audit.Record(ctx, audit.Entry{
		ActorID:    actorID,
		Action:     "rollback",
		Resource:   "upload",
		ResourceID: record.ID,
		Details: map[string]any{
			"file_name":       record.FileName,
			"records_deleted": deleted,
		},
	})

	return updated, nil
}

// List returns ingestion records newest-first, optionally filtered by actor
// and/or model.
func (s *Service) List(ctx context.Context, actorID *uuid.UUID, modelID *uuid.UUID, limit int) ([]domain.IngestionRecord, error) {
	return s.ingestions.List(ctx, actorID, modelID, limit)
}

func (s *Service) validateUpload(fileName string, size int64) error {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(fileName), "."))
	if !s.policy.Allows(ext) {
		return fmt.Errorf("%w: invalid file type %q, allowed types: %s",
			domain.ErrValidation, ext, strings.Join(s.policy.AllowedExtensions, ", "))
	}
	if size > s.policy.MaxSize {
		return fmt.Errorf("%w: file size exceeds maximum of %d bytes", domain.ErrValidation, s.policy.MaxSize)
	}
	return nil
}

// markFailed transitions the record to failed, stores the error, and wraps it
// as ErrIngestFailed. The stored file is retained for inspection.
func (s *Service) markFailed(ctx context.Context, record domain.IngestionRecord, req Request, cause error) (domain.IngestionRecord, error) {
	failed, transErr := record.Transition(domain.IngestionFailed)
	if transErr != nil {
		return domain.IngestionRecord{}, transErr
	}
	failed.ErrorDetail = cause.Error()

	updated, updErr := s.ingestions.Update(ctx, failed)
	if updErr != nil {
		s.logger.Error("failed to mark ingestion failed",
			zap.String("ingestion_id", record.ID.String()),
			zap.Error(updErr))
		updated = failed
	}

	s.audit.Record(ctx, audit.Entry{
		ActorID:    req.ActorID,
		Action:     "upload",
		Resource:   "data",
		ResourceID: record.ID,
		Details: map[string]any{
			"file_name": req.FileName,
			"error":     cause.Error(),
		},
		Status: "failed",
	})

	return updated, fmt.Errorf("%w: %v", domain.ErrIngestFailed, cause)
}

func encodeFieldErrors(fieldErrors []FieldError) string {
	if len(fieldErrors) == 0 {
		return ""
	}
	parts := make([]string, len(fieldErrors))
	for i, fe := range fieldErrors {
		parts[i] = fmt.Sprintf("%s: %s", fe.Field, fe.Message)
	}
	return strings.Join(parts, "; ")
}

// IsNotFound reports whether err is any of the not-found sentinels.
func IsNotFound(err error) bool {
	return errors.Is(err, domain.ErrModelNotFound) ||
		errors.Is(err, domain.ErrIngestionNotFound) ||
		errors.Is(err, domain.ErrRelationshipTargetNotFound)
}
