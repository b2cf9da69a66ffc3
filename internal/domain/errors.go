package domain

import "errors"

// Sentinel errors shared across services and repositories. Callers match them
// with errors.Is; repositories wrap them with additional context.
var (
	// ErrDuplicateName is returned when a data model name is already taken.
	ErrDuplicateName = errors.New("data model with this name already exists")

	// ErrModelNotFound is returned when a data model lookup misses.
	ErrModelNotFound = errors.New("data model not found")

	// ErrIngestionNotFound is returned when an ingestion record lookup misses.
	ErrIngestionNotFound = errors.New("ingestion not found")

	// ErrRelationshipTargetNotFound is returned when a relationship endpoint
	// references a missing model.
	ErrRelationshipTargetNotFound = errors.New("relationship model not found")

	// ErrPhysicalCreateFailed is returned when the physical table DDL fails.
	// The logical model row is removed before this error surfaces.
	ErrPhysicalCreateFailed = errors.New("failed to create physical table")

	// ErrValidation is returned for bad input shape, such as a rejected file
	// extension or an oversized upload.
	ErrValidation = errors.New("validation failed")

	// ErrIngestFailed is returned when reading, transforming, or loading an
	// upload fails. The ingestion record is marked failed first.
	ErrIngestFailed = errors.New("ingestion failed")

	// ErrInvalidState is returned when a lifecycle transition is not legal,
	// such as rolling back a non-completed ingestion.
	ErrInvalidState = errors.New("invalid ingestion state")

	// ErrRollbackFailed is returned when the correlation delete fails. The
	// ingestion record keeps its completed status.
	ErrRollbackFailed = errors.New("rollback failed")
)
