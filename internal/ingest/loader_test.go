package ingest

import (
	"context"
	"errors"
	"testing"

	"github.com/openbi/dataforge/internal/repository"

	"github.com/jackc/pgx/v5"
)

type recordingTableRepo struct {
	batches   [][]int // row counts per InsertRows call
	rows      [][]any
	columns   []string
	failAfter int // fail the nth call (1-based); 0 means never
	calls     int
	deleted   map[string]int64
	deleteErr error
}

func (r *recordingTableRepo) CreateTable(ctx context.Context, statements []string) error {
	return nil
}

func (r *recordingTableRepo) InsertRows(ctx context.Context, table string, columns []string, rows [][]any) error {
	r.calls++
	if r.failAfter > 0 && r.calls >= r.failAfter {
		return errors.New("deadlock detected")
	}
	r.columns = columns
	r.batches = append(r.batches, []int{len(rows)})
	r.rows = append(r.rows, rows...)
	return nil
}

func (r *recordingTableRepo) DeleteByCorrelation(ctx context.Context, table, correlationID string) (int64, error) {
	if r.deleteErr != nil {
		return 0, r.deleteErr
	}
	kept := r.rows[:0]
	var deleted int64
	for _, row := range r.rows {
		if len(row) > 0 && row[len(row)-1] == correlationID {
			deleted++
			continue
		}
		kept = append(kept, row)
	}
	r.rows = kept
	if r.deleted == nil {
		r.deleted = map[string]int64{}
	}
	r.deleted[correlationID] = deleted
	return deleted, nil
}

func (r *recordingTableRepo) QueryRows(ctx context.Context, table string, limit, offset int) ([]map[string]any, int64, error) {
	return nil, int64(len(r.rows)), nil
}

func (r *recordingTableRepo) WithTx(tx pgx.Tx) repository.DynamicTableRepository {
	return r
}

func makeDataset(n int) Dataset {
	dataset := Dataset{Columns: []string{"amount"}}
	for i := 0; i < n; i++ {
		dataset.Rows = append(dataset.Rows, []any{float64(i)})
	}
	return dataset
}

func TestLoadTagsEveryRowWithCorrelationID(t *testing.T) {
	repo := &recordingTableRepo{}
	loader := &Loader{tables: repo, batchSize: 10}

	inserted, err := loader.Load(context.Background(), "dm_sales", makeDataset(3), "corr-1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if inserted != 3 {
		t.Fatalf("expected 3 rows inserted, got %d", inserted)
	}

	if repo.columns[len(repo.columns)-1] != repository.CorrelationColumn {
		t.Fatalf("correlation column must be last, got %v", repo.columns)
	}
	for i, row := range repo.rows {
		if row[len(row)-1] != "corr-1" {
			t.Fatalf("row %d missing correlation tag: %v", i, row)
		}
	}
}

func TestLoadBatches(t *testing.T) {
	cases := []struct {
		rows    int
		batches []int
	}{
		{0, nil},
		{1, []int{1}},
		{5, []int{5}},
		{6, []int{5, 1}},
		{10, []int{5, 5}},
		{11, []int{5, 5, 1}},
	}

	for _, tc := range cases {
		repo := &recordingTableRepo{}
		loader := &Loader{tables: repo, batchSize: 5}

		inserted, err := loader.Load(context.Background(), "dm_sales", makeDataset(tc.rows), "corr")
		if err != nil {
			t.Fatalf("load %d rows: %v", tc.rows, err)
		}
		if inserted != tc.rows {
			t.Errorf("load %d rows: inserted = %d", tc.rows, inserted)
		}
		if len(repo.batches) != len(tc.batches) {
			t.Errorf("load %d rows: %d batches, want %d", tc.rows, len(repo.batches), len(tc.batches))
			continue
		}
		for i, want := range tc.batches {
			if repo.batches[i][0] != want {
				t.Errorf("load %d rows: batch %d has %d rows, want %d", tc.rows, i, repo.batches[i][0], want)
			}
		}
	}
}

func TestLoadReportsCommittedRowsOnFailure(t *testing.T) {
	repo := &recordingTableRepo{failAfter: 3}
	loader := &Loader{tables: repo, batchSize: 5}

	inserted, err := loader.Load(context.Background(), "dm_sales", makeDataset(12), "corr")
	if err == nil {
		t.Fatalf("expected batch failure")
	}
	// Two batches of five committed before the third failed.
	if inserted != 10 {
		t.Fatalf("expected 10 committed rows, got %d", inserted)
	}
}
