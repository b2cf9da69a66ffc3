package domain

import (
	"time"

	"github.com/google/uuid"
)

// IngestionStatus is the lifecycle state of one upload attempt.
type IngestionStatus string

const (
	IngestionPending    IngestionStatus = "pending"
	IngestionProcessing IngestionStatus = "processing"
	IngestionCompleted  IngestionStatus = "completed"
	IngestionFailed     IngestionStatus = "failed"
	IngestionReverted   IngestionStatus = "reverted"
)

// legalTransitions encodes the ledger state machine:
// pending -> processing -> {completed, failed}, completed -> reverted.
var legalTransitions = map[IngestionStatus][]IngestionStatus{
	IngestionPending:    {IngestionProcessing},
	IngestionProcessing: {IngestionCompleted, IngestionFailed},
	IngestionCompleted:  {IngestionReverted},
}

// CanTransition reports whether moving from one status to another is legal.
func CanTransition(from, to IngestionStatus) bool {
	for _, next := range legalTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IngestionRecord tracks one file-upload-to-table-load attempt. CorrelationID
// tags every row the attempt inserted, which is what makes rollback a filtered
// delete instead of a transaction-log replay.
type IngestionRecord struct {
	ID            uuid.UUID       `json:"id"`
	UserID        uuid.UUID       `json:"user_id"`
	ModelID       uuid.UUID       `json:"model_id"`
	FileName      string          `json:"file_name"`
	FilePath      string          `json:"file_path"`
	FileSize      int64           `json:"file_size"`
	Status        IngestionStatus `json:"status"`
	TotalRows     int             `json:"records_count"`
	SucceededRows int             `json:"records_success"`
	FailedRows    int             `json:"records_failed"`
	ErrorDetail   string          `json:"error_log,omitempty"`
	CorrelationID string          `json:"correlation_id"`
	CreatedAt     time.Time       `json:"created_at"`
	CompletedAt   *time.Time      `json:"completed_at,omitempty"`
}

// NewIngestionRecord creates a record in processing state with a fresh
// correlation id. The record exists before transformation begins so a crash
// mid-ingestion still leaves an auditable ledger entry.
func NewIngestionRecord(userID, modelID uuid.UUID, fileName, filePath string, fileSize int64) IngestionRecord {
	return IngestionRecord{
		ID:            uuid.New(),
		UserID:        userID,
		ModelID:       modelID,
		FileName:      fileName,
		FilePath:      filePath,
		FileSize:      fileSize,
		Status:        IngestionProcessing,
		CorrelationID: uuid.NewString(),
		CreatedAt:     time.Now(),
	}
}

// Transition returns a copy in the requested status, or ErrInvalidState when
// the move is not legal. Terminal statuses stamp CompletedAt.
func (r IngestionRecord) Transition(to IngestionStatus) (IngestionRecord, error) {
	if !CanTransition(r.Status, to) {
		return IngestionRecord{}, ErrInvalidState
	}
	out := r
	out.Status = to
	if to == IngestionCompleted || to == IngestionFailed {
		now := time.Now()
		out.CompletedAt = &now
	}
	return out, nil
}
