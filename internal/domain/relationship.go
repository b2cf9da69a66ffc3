package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// RelationshipKind classifies a directed link between two data models.
type RelationshipKind string

const (
	RelationshipOneToOne   RelationshipKind = "one_to_one"
	RelationshipOneToMany  RelationshipKind = "one_to_many"
	RelationshipManyToMany RelationshipKind = "many_to_many"
)

// Relationship is metadata only. It is never enforced as a physical foreign
// key and has no effect on ingestion or rollback.
type Relationship struct {
	ID            uuid.UUID        `json:"id"`
	Name          string           `json:"name"`
	SourceModelID uuid.UUID        `json:"source_model_id"`
	TargetModelID uuid.UUID        `json:"target_model_id"`
	Kind          RelationshipKind `json:"type"`
	FieldMapping  json.RawMessage  `json:"config"`
	CreatedAt     time.Time        `json:"created_at"`
}

// NewRelationship creates a relationship between two models.
func NewRelationship(name string, sourceID, targetID uuid.UUID, kind RelationshipKind, fieldMapping json.RawMessage) Relationship {
	return Relationship{
		ID:            uuid.New(),
		Name:          name,
		SourceModelID: sourceID,
		TargetModelID: targetID,
		Kind:          kind,
		FieldMapping:  fieldMapping,
		CreatedAt:     time.Now(),
	}
}
