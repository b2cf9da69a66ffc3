package ingest

import (
	"context"

	"github.com/openbi/dataforge/internal/domain"

	"github.com/google/uuid"
)

// defaultPreviewRows bounds a preview sample when the caller does not ask for
// a specific size.
const defaultPreviewRows = 10

// PreviewRequest describes a dry-run inspection of an upload. Nothing is
// stored and no ledger record is created.
type PreviewRequest struct {
	ModelID       uuid.UUID
	FileName      string
	Data          []byte
	ColumnMapping map[string]string
	Limit         int
}

// PreviewColumn pairs a file column with its inferred type and, when the
// column matches a declared field, the declared type.
type PreviewColumn struct {
	Name         string           `json:"name"`
	DetectedType domain.FieldType `json:"detected_type"`
	DeclaredType domain.FieldType `json:"declared_type,omitempty"`
	Required     bool             `json:"required,omitempty"`
	Declared     bool             `json:"declared"`
}

// PreviewResult carries sample rows and the validation feedback ingestion
// would produce for them.
type PreviewResult struct {
	Columns    []PreviewColumn  `json:"columns"`
	SampleRows []map[string]any `json:"sample_data"`
	Validation Summary          `json:"validation"`
	TotalRows  int              `json:"total_rows"`
}

// Preview parses the upload, coerces the first Limit rows against the model's
// schema, and reports per-column type detection alongside the same validation
// counters a real ingestion would produce for the sample.
func (s *Service) Preview(ctx context.Context, req PreviewRequest) (PreviewResult, error) {
	if err := s.validateUpload(req.FileName, int64(len(req.Data))); err != nil {
		return PreviewResult{}, err
	}

	model, err := s.models.GetByID(ctx, req.ModelID)
	if err != nil {
		return PreviewResult{}, err
	}

	table, err := parseTable(req.FileName, req.Data)
	if err != nil {
		return PreviewResult{}, err
	}

	limit := req.Limit
	if limit <= 0 {
		limit = defaultPreviewRows
	}

	totalRows := len(table.rows)
	if len(table.rows) > limit {
		table.rows = table.rows[:limit]
	}

	dataset, summary, err := transformTable(table, model.Fields, req.ColumnMapping)
	if err != nil {
		return PreviewResult{}, err
	}

	declared := make(map[string]domain.FieldDefinition, len(model.Fields))
	for _, field := range model.Fields {
		declared[field.Name] = field
	}

	columns := make([]PreviewColumn, 0, len(table.headers))
	for i, header := range table.headers {
		sample := make([]string, 0, len(table.rows))
		for _, row := range table.rows {
			if i < len(row) {
				sample = append(sample, row[i])
			}
		}

		column := PreviewColumn{Name: header, DetectedType: detectFieldType(sample)}
		if field, ok := declared[header]; ok {
			column.DeclaredType = field.Type
			column.Required = field.Required
			column.Declared = true
		}
		columns = append(columns, column)
	}

	sampleRows := make([]map[string]any, 0, len(dataset.Rows))
	for _, row := range dataset.Rows {
		record := make(map[string]any, len(dataset.Columns))
		for i, name := range dataset.Columns {
			record[name] = row[i]
		}
		sampleRows = append(sampleRows, record)
	}

	return PreviewResult{
		Columns:    columns,
		SampleRows: sampleRows,
		Validation: summary,
		TotalRows:  totalRows,
	}, nil
}

// Get returns one ledger record by id.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (domain.IngestionRecord, error) {
	return s.ingestions.GetByID(ctx, id)
}
