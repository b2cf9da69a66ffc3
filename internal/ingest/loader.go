package ingest

import (
	"context"
	"fmt"

	"github.com/openbi/dataforge/internal/repository"
)

// defaultBatchSize bounds one multi-row INSERT. Batches are a throughput
// optimization only: a failure partway through leaves earlier batches
// committed under the correlation id.
const defaultBatchSize = 1000

// Loader writes transformed rows into a physical table in bounded batches,
// tagging every row with the ingestion's correlation id.
type Loader struct {
	tables    repository.DynamicTableRepository
	batchSize int
}

// NewLoader creates a loader with the default batch size.
func NewLoader(tables repository.DynamicTableRepository) *Loader {
	return &Loader{tables: tables, batchSize: defaultBatchSize}
}

// Load inserts the dataset into table. It returns the number of rows inserted,
// which on error reflects the batches already committed.
func (l *Loader) Load(ctx context.Context, table string, dataset Dataset, correlationID string) (int, error) {
	if len(dataset.Rows) == 0 {
		return 0, nil
	}

	columns := append(append([]string{}, dataset.Columns...), repository.CorrelationColumn)

	inserted := 0
	for start := 0; start < len(dataset.Rows); start += l.batchSize {
		end := start + l.batchSize
		if end > len(dataset.Rows) {
			end = len(dataset.Rows)
		}

		batch := make([][]any, 0, end-start)
		for _, row := range dataset.Rows[start:end] {
			tagged := append(append(make([]any, 0, len(row)+1), row...), correlationID)
			batch = append(batch, tagged)
		}

		if err := l.tables.InsertRows(ctx, table, columns, batch); err != nil {
			return inserted, fmt.Errorf("failed to load batch starting at row %d: %w", start+1, err)
		}
		inserted += len(batch)
	}

	return inserted, nil
}
