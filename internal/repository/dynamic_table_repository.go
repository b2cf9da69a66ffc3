package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
)

type dynamicTableRepository struct {
	db DBTX
}

// NewDynamicTableRepository wires a repository for physical data model tables.
func NewDynamicTableRepository(db DBTX) DynamicTableRepository {
	return &dynamicTableRepository{db: db}
}

func (r *dynamicTableRepository) WithTx(tx pgx.Tx) DynamicTableRepository {
	return &dynamicTableRepository{db: tx}
}

func (r *dynamicTableRepository) CreateTable(ctx context.Context, statements []string) error {
	for _, stmt := range statements {
		if _, err := r.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to execute ddl: %w", err)
		}
	}
	return nil
}

func (r *dynamicTableRepository) InsertRows(ctx context.Context, table string, columns []string, rows [][]any) error {
	if len(rows) == 0 {
		return nil
	}

	query := buildMultiRowInsert(table, columns, len(rows))
	args := make([]any, 0, len(rows)*len(columns))
	for _, row := range rows {
		if len(row) != len(columns) {
			return fmt.Errorf("row has %d values, expected %d", len(row), len(columns))
		}
		args = append(args, row...)
	}

	if _, err := r.db.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to insert rows into %s: %w", table, err)
	}
	return nil
}

func (r *dynamicTableRepository) DeleteByCorrelation(ctx context.Context, table string, correlationID string) (int64, error) {
	tag, err := r.db.Exec(
		ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE %s = $1`, quoteIdent(table), quoteIdent(CorrelationColumn)),
		correlationID,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete rows from %s: %w", table, err)
	}
	return tag.RowsAffected(), nil
}

func (r *dynamicTableRepository) QueryRows(ctx context.Context, table string, limit, offset int) ([]map[string]any, int64, error) {
	if limit <= 0 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := r.db.Query(
		ctx,
		fmt.Sprintf(`SELECT * FROM %s ORDER BY id LIMIT $1 OFFSET $2`, quoteIdent(table)),
		limit,
		offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query %s: %w", table, err)
	}
	defer rows.Close()

	descriptions := rows.FieldDescriptions()
	result := []map[string]any{}
	for rows.Next() {
		values, valuesErr := rows.Values()
		if valuesErr != nil {
			return nil, 0, fmt.Errorf("failed to read row from %s: %w", table, valuesErr)
		}
		record := make(map[string]any, len(descriptions))
		for i, desc := range descriptions {
			record[desc.Name] = values[i]
		}
		result = append(result, record)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, 0, fmt.Errorf("failed to iterate %s: %w", table, rowsErr)
	}

	var total int64
	if err := r.db.QueryRow(
		ctx,
		fmt.Sprintf(`SELECT COUNT(*) FROM %s`, quoteIdent(table)),
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count %s: %w", table, err)
	}

	return result, total, nil
}

// CorrelationColumn is the implicit column that tags every ingested row with
// its ingestion's correlation id. It is not part of any declared schema.
const CorrelationColumn = "_ingest_id"

// buildMultiRowInsert renders a parameterized INSERT covering rowCount rows.
func buildMultiRowInsert(table string, columns []string, rowCount int) string {
	quoted := make([]string, len(columns))
	for i, col := range columns {
		quoted[i] = quoteIdent(col)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s (%s) VALUES ", quoteIdent(table), strings.Join(quoted, ", "))

	arg := 1
	for row := 0; row < rowCount; row++ {
		if row > 0 {
			b.WriteString(", ")
		}
		b.WriteString("(")
		for col := range columns {
			if col > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "$%d", arg)
			arg++
		}
		b.WriteString(")")
	}
	return b.String()
}

// quoteIdent quotes an identifier for Postgres.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
