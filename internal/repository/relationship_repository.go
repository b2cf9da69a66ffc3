package repository

import (
	"context"
	"fmt"

	"github.com/openbi/dataforge/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type relationshipRepository struct {
	db DBTX
}

// NewRelationshipRepository wires a repository backed by pgx.
func NewRelationshipRepository(db DBTX) RelationshipRepository {
	return &relationshipRepository{db: db}
}

func (r *relationshipRepository) Create(ctx context.Context, rel domain.Relationship) (domain.Relationship, error) {
	row := r.db.QueryRow(
		ctx,
		`INSERT INTO data_relationships (id, name, source_model_id, target_model_id, type, config)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, name, source_model_id, target_model_id, type, config, created_at`,
		rel.ID,
		rel.Name,
		rel.SourceModelID,
		rel.TargetModelID,
		string(rel.Kind),
		rel.FieldMapping,
	)

	created, err := scanRelationship(row)
	if err != nil {
		return domain.Relationship{}, fmt.Errorf("failed to insert relationship: %w", err)
	}
	return created, nil
}

func (r *relationshipRepository) ListByModel(ctx context.Context, modelID uuid.UUID) ([]domain.Relationship, error) {
	rows, err := r.db.Query(
		ctx,
		`SELECT id, name, source_model_id, target_model_id, type, config, created_at
		 FROM data_relationships
		 WHERE source_model_id = $1 OR target_model_id = $1
		 ORDER BY created_at DESC`,
		modelID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list relationships: %w", err)
	}
	defer rows.Close()

	rels := []domain.Relationship{}
	for rows.Next() {
		rel, scanErr := scanRelationship(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan relationship: %w", scanErr)
		}
		rels = append(rels, rel)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("failed to iterate relationships: %w", rowsErr)
	}
	return rels, nil
}

func scanRelationship(row pgx.Row) (domain.Relationship, error) {
	var (
		rel  domain.Relationship
		kind string
	)
	if err := row.Scan(
		&rel.ID,
		&rel.Name,
		&rel.SourceModelID,
		&rel.TargetModelID,
		&kind,
		&rel.FieldMapping,
		&rel.CreatedAt,
	); err != nil {
		return domain.Relationship{}, err
	}
	rel.Kind = domain.RelationshipKind(kind)
	return rel, nil
}
