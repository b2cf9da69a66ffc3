package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/openbi/dataforge/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Entry is one audit trail event.
type Entry struct {
	ActorID    uuid.UUID      `json:"user_id"`
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	ResourceID uuid.UUID      `json:"resource_id"`
	Details    map[string]any `json:"details,omitempty"`
	Status     string         `json:"status"`
}

// Sink accepts audit entries. Recording is best effort: a sink failure must
// never fail the business operation that produced the entry.
type Sink interface {
	Record(ctx context.Context, entry Entry)
}

type pgSink struct {
	db     repository.DBTX
	logger *zap.Logger
}

// NewPGSink wires an audit sink that persists entries to the audit_logs table.
func NewPGSink(db repository.DBTX, logger *zap.Logger) Sink {
	return &pgSink{db: db, logger: logger}
}

func (s *pgSink) Record(ctx context.Context, entry Entry) {
	if entry.Status == "" {
		entry.Status = "success"
	}

	var details []byte
	if entry.Details != nil {
		encoded, err := json.Marshal(entry.Details)
		if err != nil {
			s.logger.Warn("failed to encode audit details", zap.Error(err))
		} else {
			details = encoded
		}
	}

	_, err := s.db.Exec(
		ctx,
		`INSERT INTO audit_logs (user_id, action, resource, resource_id, details, status)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		entry.ActorID,
		entry.Action,
		entry.Resource,
		entry.ResourceID,
		details,
		entry.Status,
	)
	if err != nil {
		s.logger.Warn("failed to record audit entry",
			zap.String("action", entry.Action),
			zap.String("resource", entry.Resource),
			zap.Error(err))
		return
	}

	s.logger.Debug("audit entry recorded",
		zap.String("action", entry.Action),
		zap.String("resource", fmt.Sprintf("%s/%s", entry.Resource, entry.ResourceID)))
}
