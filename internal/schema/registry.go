package schema

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/openbi/dataforge/internal/audit"
	"github.com/openbi/dataforge/internal/domain"
	"github.com/openbi/dataforge/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Registry owns the logical-to-physical mapping for data models: it persists
// the logical record and materializes the backing table.
type Registry struct {
	models        repository.DataModelRepository
	relationships repository.RelationshipRepository
	tables        repository.DynamicTableRepository
	audit         audit.Sink
	logger        *zap.Logger
}

// NewRegistry creates a schema registry.
func NewRegistry(
	models repository.DataModelRepository,
	relationships repository.RelationshipRepository,
	tables repository.DynamicTableRepository,
	sink audit.Sink,
	logger *zap.Logger,
) *Registry {
	return &Registry{
		models:        models,
		relationships: relationships,
		tables:        tables,
		audit:         sink,
		logger:        logger,
	}
}

// CreateModelInput describes a new data model.
type CreateModelInput struct {
	Name        string
	DisplayName string
	Description string
	Fields      []domain.FieldDefinition
}

// UpdateModelInput patches mutable model attributes. A non-nil Fields slice
// replaces the schema and bumps the version; the other attributes never do.
type UpdateModelInput struct {
	DisplayName *string
	Description *string
	Active      *bool
	Fields      []domain.FieldDefinition
}

// RowPage is one page of raw rows from a physical table.
type RowPage struct {
	Rows   []map[string]any `json:"data"`
	Total  int64            `json:"total"`
	Limit  int              `json:"limit"`
	Offset int              `json:"offset"`
}

// CreateModel persists the logical model, then issues DDL for the physical
// table. The two stores are not covered by one transaction, so a DDL failure
// removes the logical row before the error surfaces: no model without a
// backing table.
func (r *Registry) CreateModel(ctx context.Context, actorID uuid.UUID, input CreateModelInput) (domain.DataModel, error) {
	if err := validateFields(input.Fields); err != nil {
		return domain.DataModel{}, err
	}
	if strings.TrimSpace(input.Name) == "" {
		return domain.DataModel{}, fmt.Errorf("%w: model name is required", domain.ErrValidation)
	}

	tableName := domain.TableNameFor(input.Name)
	if tableName == "dm_" {
		return domain.DataModel{}, fmt.Errorf("%w: model name must contain letters or digits", domain.ErrValidation)
	}

	// Distinct names can derive the same table name ("Sales" and "sales"), so
	// the check covers both; a collision is a duplicate, not a DDL failure.
	exists, err := r.models.Exists(ctx, input.Name, tableName)
	if err != nil {
		return domain.DataModel{}, fmt.Errorf("failed to check model existence: %w", err)
	}
	if exists {
		return domain.DataModel{}, domain.ErrDuplicateName
	}

	model := domain.NewDataModel(input.Name, input.DisplayName, input.Description, input.Fields, actorID)

	created, err := r.models.Create(ctx, model)
	if err != nil {
		return domain.DataModel{}, err
	}

	if ddlErr := r.tables.CreateTable(ctx, BuildCreateTable(created.TableName, created.Fields)); ddlErr != nil {
		if delErr := r.models.Delete(ctx, created.ID); delErr != nil {
			r.logger.Error("failed to remove model after ddl failure",
				zap.String("model", created.Name),
				zap.Error(delErr))
		}
		return domain.DataModel{}, fmt.Errorf("%w: %v", domain.ErrPhysicalCreateFailed, ddlErr)
	}

	r.logger.Info("data model created",
		zap.String("model", created.Name),
		zap.String("table", created.TableName))
	r.audit.Record(ctx, audit.Entry{
		ActorID:    actorID,
		Action:     "create",
		Resource:   "data_model",
		ResourceID: created.ID,
		Details:    map[string]any{"name": created.Name},
	})

	return created, nil
}

// GetModel returns a model by id.
func (r *Registry) GetModel(ctx context.Context, id uuid.UUID) (domain.DataModel, error) {
	return r.models.GetByID(ctx, id)
}

// ListModels returns all models, hiding retired ones unless asked.
func (r *Registry) ListModels(ctx context.Context, includeInactive bool) ([]domain.DataModel, error) {
	return r.models.List(ctx, includeInactive)
}

// UpdateModel applies a patch. Only a field-list replacement increments the
// version counter; the physical table is never altered.
func (r *Registry) UpdateModel(ctx context.Context, actorID, id uuid.UUID, patch UpdateModelInput) (domain.DataModel, error) {
	model, err := r.models.GetByID(ctx, id)
	if err != nil {
		return domain.DataModel{}, err
	}

	if patch.DisplayName != nil {
		model.DisplayName = *patch.DisplayName
	}
	if patch.Description != nil {
		model.Description = *patch.Description
	}
	if patch.Active != nil {
		model.Active = *patch.Active
	}
	if patch.Fields != nil {
		if err := validateFields(patch.Fields); err != nil {
			return domain.DataModel{}, err
		}
		model = model.WithFields(patch.Fields)
	}

	updated, err := r.models.Update(ctx, model)
	if err != nil {
		return domain.DataModel{}, err
	}

	r.audit.Record(ctx, audit.Entry{
		ActorID:    actorID,
		Action:     "update",
		Resource:   "data_model",
		ResourceID: updated.ID,
		Details:    map[string]any{"name": updated.Name, "version": updated.Version},
	})

	return updated, nil
}

// RetireModel soft-deletes a model. The physical table and its rows survive.
func (r *Registry) RetireModel(ctx context.Context, actorID, id uuid.UUID) error {
	model, err := r.models.GetByID(ctx, id)
	if err != nil {
		return err
	}

	model.Active = false
	if _, err := r.models.Update(ctx, model); err != nil {
		return err
	}

	r.audit.Record(ctx, audit.Entry{
		ActorID:    actorID,
		Action:     "delete",
		Resource:   "data_model",
		ResourceID: model.ID,
		Details:    map[string]any{"name": model.Name},
	})
	return nil
}

// QueryModelRows reads raw rows from the model's physical table.
func (r *Registry) QueryModelRows(ctx context.Context, id uuid.UUID, limit, offset int) (RowPage, error) {
	model, err := r.models.GetByID(ctx, id)
	if err != nil {
		return RowPage{}, err
	}

	rows, total, err := r.tables.QueryRows(ctx, model.TableName, limit, offset)
	if err != nil {
		return RowPage{}, err
	}
	if limit <= 0 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return RowPage{Rows: rows, Total: total, Limit: limit, Offset: offset}, nil
}

// CreateRelationship links two models. The link is metadata only and is never
// enforced as a physical foreign key.
func (r *Registry) CreateRelationship(ctx context.Context, actorID uuid.UUID, name string, sourceID, targetID uuid.UUID, kind domain.RelationshipKind, fieldMapping json.RawMessage) (domain.Relationship, error) {
	source, err := r.models.GetByID(ctx, sourceID)
	if err != nil {
		if errors.Is(err, domain.ErrModelNotFound) {
			return domain.Relationship{}, fmt.Errorf("%w: source %s", domain.ErrRelationshipTargetNotFound, sourceID)
		}
		return domain.Relationship{}, err
	}
	target, err := r.models.GetByID(ctx, targetID)
	if err != nil {
		if errors.Is(err, domain.ErrModelNotFound) {
			return domain.Relationship{}, fmt.Errorf("%w: target %s", domain.ErrRelationshipTargetNotFound, targetID)
		}
		return domain.Relationship{}, err
	}

	created, err := r.relationships.Create(ctx, domain.NewRelationship(name, sourceID, targetID, kind, fieldMapping))
	if err != nil {
		return domain.Relationship{}, err
	}

	r.audit.Record(ctx, audit.Entry{
		ActorID:    actorID,
		Action:     "create",
		Resource:   "data_relationship",
		ResourceID: created.ID,
		Details:    map[string]any{"name": created.Name, "source": source.Name, "target": target.Name},
	})

	return created, nil
}

// ListRelationships returns every relationship touching the model, as source
// or target.
func (r *Registry) ListRelationships(ctx context.Context, modelID uuid.UUID) ([]domain.Relationship, error) {
	if _, err := r.models.GetByID(ctx, modelID); err != nil {
		return nil, err
	}
	return r.relationships.ListByModel(ctx, modelID)
}

func validateFields(fields []domain.FieldDefinition) error {
	if len(fields) == 0 {
		return fmt.Errorf("%w: at least one field is required", domain.ErrValidation)
	}
	seen := make(map[string]struct{}, len(fields))
	for _, field := range fields {
		if !ValidIdentifier(field.Name) {
			return fmt.Errorf("%w: invalid field name %q", domain.ErrValidation, field.Name)
		}
		if _, dup := seen[field.Name]; dup {
			return fmt.Errorf("%w: duplicate field name %q", domain.ErrValidation, field.Name)
		}
		seen[field.Name] = struct{}{}
	}
	return nil
}
