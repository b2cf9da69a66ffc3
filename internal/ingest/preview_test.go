package ingest

import (
	"context"
	"errors"
	"testing"

	"github.com/openbi/dataforge/internal/domain"

	"github.com/google/uuid"
)

func TestPreviewReturnsSampleAndValidation(t *testing.T) {
	f := newServiceFixture(t)

	result, err := f.service.Preview(context.Background(), PreviewRequest{
		ModelID:  f.model.ID,
		FileName: "sales.csv",
		Data:     []byte(salesCSV),
		Limit:    2,
	})
	if err != nil {
		t.Fatalf("preview: %v", err)
	}

	if result.TotalRows != 3 {
		t.Fatalf("expected total of 3 rows, got %d", result.TotalRows)
	}
	if len(result.SampleRows) != 2 {
		t.Fatalf("expected 2 sample rows, got %d", len(result.SampleRows))
	}
	// Row 2 of the sample has an unparseable amount.
	if result.Validation.TotalRows != 2 || result.Validation.ValidRows != 1 || result.Validation.InvalidRows != 1 {
		t.Fatalf("unexpected validation counters: %+v", result.Validation)
	}
	if result.SampleRows[0]["amount"] != 100.0 {
		t.Fatalf("expected coerced amount 100, got %v", result.SampleRows[0]["amount"])
	}
	if result.SampleRows[1]["amount"] != nil {
		t.Fatalf("expected nil for unparseable amount, got %v", result.SampleRows[1]["amount"])
	}

	byName := map[string]PreviewColumn{}
	for _, col := range result.Columns {
		byName[col.Name] = col
	}
	region, ok := byName["region"]
	if !ok || !region.Declared || region.DeclaredType != domain.FieldTypeString || !region.Required {
		t.Fatalf("unexpected region column: %+v", region)
	}
	if region.DetectedType != domain.FieldTypeString {
		t.Fatalf("expected string detection for region, got %s", region.DetectedType)
	}
}

func TestPreviewHasNoSideEffects(t *testing.T) {
	f := newServiceFixture(t)

	if _, err := f.service.Preview(context.Background(), PreviewRequest{
		ModelID:  f.model.ID,
		FileName: "sales.csv",
		Data:     []byte(salesCSV),
	}); err != nil {
		t.Fatalf("preview: %v", err)
	}

	if len(f.ingestions.byID) != 0 {
		t.Fatalf("preview must not create ledger records, got %d", len(f.ingestions.byID))
	}
	if len(f.tables.rows) != 0 {
		t.Fatalf("preview must not load rows, got %d", len(f.tables.rows))
	}
}

func TestPreviewEnforcesUploadPolicy(t *testing.T) {
	f := newServiceFixture(t)

	_, err := f.service.Preview(context.Background(), PreviewRequest{
		ModelID:  f.model.ID,
		FileName: "sales.exe",
		Data:     []byte("x"),
	})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestPreviewUnknownModel(t *testing.T) {
	f := newServiceFixture(t)

	_, err := f.service.Preview(context.Background(), PreviewRequest{
		ModelID:  uuid.New(),
		FileName: "sales.csv",
		Data:     []byte(salesCSV),
	})
	if !errors.Is(err, domain.ErrModelNotFound) {
		t.Fatalf("expected ErrModelNotFound, got %v", err)
	}
}

func TestGetIngestion(t *testing.T) {
	f := newServiceFixture(t)

	record := f.ingestSales(t)

	fetched, err := f.service.Get(context.Background(), record.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if fetched.ID != record.ID || fetched.Status != domain.IngestionCompleted {
		t.Fatalf("unexpected record: %+v", fetched)
	}

	if _, err := f.service.Get(context.Background(), uuid.New()); !errors.Is(err, domain.ErrIngestionNotFound) {
		t.Fatalf("expected ErrIngestionNotFound, got %v", err)
	}
}
