package schema

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/openbi/dataforge/internal/domain"
	"github.com/openbi/dataforge/internal/repository"
)

// columnTypes is the sole source of truth for mapping semantic field types to
// Postgres column types. Unknown types fall back to bounded text.
var columnTypes = map[domain.FieldType]string{
	domain.FieldTypeString:   "VARCHAR(255)",
	domain.FieldTypeText:     "TEXT",
	domain.FieldTypeNumber:   "DOUBLE PRECISION",
	domain.FieldTypeInteger:  "BIGINT",
	domain.FieldTypeDate:     "TIMESTAMPTZ",
	domain.FieldTypeDatetime: "TIMESTAMPTZ",
	domain.FieldTypeBoolean:  "BOOLEAN",
}

const defaultColumnType = "VARCHAR(255)"

// ColumnType returns the Postgres type backing a semantic field type.
func ColumnType(fieldType domain.FieldType) string {
	if t, ok := columnTypes[fieldType]; ok {
		return t
	}
	return defaultColumnType
}

var identPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// ValidIdentifier reports whether a field name can be used as a column name.
func ValidIdentifier(name string) bool {
	return identPattern.MatchString(name) && len(name) <= 63
}

// BuildCreateTable renders the DDL that materializes a data model. Every table
// gets a synthetic identity column, one column per declared field, the
// correlation column used by ingestion rollback (with its index, since
// rollback is a filtered delete on it), and audit timestamps.
func BuildCreateTable(tableName string, fields []domain.FieldDefinition) []string {
	var cols []string
	cols = append(cols, `    "id" BIGSERIAL PRIMARY KEY`)

	// Required fields stay nullable on purpose: rows that fail validation are
	// still loaded with NULL in the offending column, and requiredness is
	// reported through the ingestion counters instead of rejected inserts.
	for _, field := range fields {
		col := fmt.Sprintf(`    %s %s`, quoteIdent(field.Name), ColumnType(field.Type))
		if field.Unique {
			col += " UNIQUE"
		}
		cols = append(cols, col)
	}

	cols = append(cols,
		fmt.Sprintf(`    %s VARCHAR(100)`, quoteIdent(repository.CorrelationColumn)),
		`    "created_at" TIMESTAMPTZ NOT NULL DEFAULT now()`,
		`    "updated_at" TIMESTAMPTZ NOT NULL DEFAULT now()`,
	)

	createTable := fmt.Sprintf("CREATE TABLE %s (\n%s\n)", quoteIdent(tableName), strings.Join(cols, ",\n"))
	createIndex := fmt.Sprintf(`CREATE INDEX %s ON %s (%s)`,
		quoteIdent("idx_"+tableName+"_ingest"),
		quoteIdent(tableName),
		quoteIdent(repository.CorrelationColumn),
	)

	return []string{createTable, createIndex}
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
