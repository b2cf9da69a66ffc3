package repository

import (
	"context"

	"github.com/openbi/dataforge/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is the subset of pgxpool.Pool and pgx.Tx the repositories need. It lets
// the same repository run against the pool or inside a transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// DataModelRepository defines persistence for logical data models.
type DataModelRepository interface {
	Create(ctx context.Context, model domain.DataModel) (domain.DataModel, error)
	GetByID(ctx context.Context, id uuid.UUID) (domain.DataModel, error)
	List(ctx context.Context, includeInactive bool) ([]domain.DataModel, error)
	Update(ctx context.Context, model domain.DataModel) (domain.DataModel, error)
	Delete(ctx context.Context, id uuid.UUID) error
	// Exists reports whether the name or the derived table name is taken.
	// Distinct names can collide on the same physical table (case and
	// punctuation are stripped by the derivation), so both are reserved.
	Exists(ctx context.Context, name, tableName string) (bool, error)
}

// RelationshipRepository defines persistence for model relationships.
type RelationshipRepository interface {
	Create(ctx context.Context, rel domain.Relationship) (domain.Relationship, error)
	ListByModel(ctx context.Context, modelID uuid.UUID) ([]domain.Relationship, error)
}

// IngestionRepository is the ingestion ledger.
type IngestionRepository interface {
	Create(ctx context.Context, record domain.IngestionRecord) (domain.IngestionRecord, error)
	GetByID(ctx context.Context, id uuid.UUID) (domain.IngestionRecord, error)
	Update(ctx context.Context, record domain.IngestionRecord) (domain.IngestionRecord, error)
	List(ctx context.Context, userID *uuid.UUID, modelID *uuid.UUID, limit int) ([]domain.IngestionRecord, error)
	// WithTx returns a ledger bound to the given transaction.
	WithTx(tx pgx.Tx) IngestionRepository
}

// DynamicTableRepository executes DDL and DML against the physical tables that
// back data models. Table and column names must already be sanitized; they are
// interpolated as quoted identifiers, values always travel as parameters.
type DynamicTableRepository interface {
	CreateTable(ctx context.Context, statements []string) error
	InsertRows(ctx context.Context, table string, columns []string, rows [][]any) error
	DeleteByCorrelation(ctx context.Context, table string, correlationID string) (int64, error)
	QueryRows(ctx context.Context, table string, limit, offset int) ([]map[string]any, int64, error)
	// WithTx returns a repository bound to the given transaction.
	WithTx(tx pgx.Tx) DynamicTableRepository
}
