package ingest

import (
	"errors"
	"testing"
	"time"

	"github.com/openbi/dataforge/internal/domain"
)

var salesFields = []domain.FieldDefinition{
	{Name: "region", Type: domain.FieldTypeString, Required: true},
	{Name: "amount", Type: domain.FieldTypeNumber, Required: true},
	{Name: "units", Type: domain.FieldTypeInteger},
	{Name: "recurring", Type: domain.FieldTypeBoolean},
	{Name: "sold_at", Type: domain.FieldTypeDate},
}

func TestTransformCoercesByType(t *testing.T) {
	csv := "region,amount,units,recurring,sold_at\n" +
		"north,120.50,3,yes,2024-03-01\n"

	dataset, summary, err := Transform("sales.csv", []byte(csv), salesFields, nil)
	if err != nil {
		t.Fatalf("transform: %v", err)
	}

	if summary.TotalRows != 1 || summary.ValidRows != 1 || summary.InvalidRows != 0 {
		t.Fatalf("unexpected summary: %+v", summary)
	}

	row := dataset.Rows[0]
	if row[0] != "north" {
		t.Errorf("region = %v, want north", row[0])
	}
	if row[1] != 120.50 {
		t.Errorf("amount = %v, want 120.50", row[1])
	}
	if row[2] != int64(3) {
		t.Errorf("units = %v (%T), want int64(3)", row[2], row[2])
	}
	if row[3] != true {
		t.Errorf("recurring = %v, want true", row[3])
	}
	ts, ok := row[4].(time.Time)
	if !ok || ts.Year() != 2024 || ts.Month() != time.March {
		t.Errorf("sold_at = %v, want march 2024 timestamp", row[4])
	}
}

func TestTransformKeepsInvalidRows(t *testing.T) {
	// Row 2 has an unparseable amount: it still loads, but counts as invalid
	// because amount is required.
	csv := "region,amount\n" +
		"north,100\n" +
		"south,not-a-number\n" +
		"east,250.75\n"

	fields := []domain.FieldDefinition{
		{Name: "region", Type: domain.FieldTypeString, Required: true},
		{Name: "amount", Type: domain.FieldTypeNumber, Required: true},
	}

	dataset, summary, err := Transform("sales.csv", []byte(csv), fields, nil)
	if err != nil {
		t.Fatalf("transform: %v", err)
	}

	if summary.TotalRows != 3 || summary.ValidRows != 2 || summary.InvalidRows != 1 {
		t.Fatalf("expected 3 total / 2 valid / 1 invalid, got %+v", summary)
	}
	if len(dataset.Rows) != 3 {
		t.Fatalf("invalid rows must still be loaded, got %d rows", len(dataset.Rows))
	}
	if dataset.Rows[1][1] != nil {
		t.Fatalf("uncoercible amount must become nil, got %v", dataset.Rows[1][1])
	}
}

func TestTransformUnparseableBooleanBecomesMissing(t *testing.T) {
	csv := "flag\nmaybe\n"
	fields := []domain.FieldDefinition{{Name: "flag", Type: domain.FieldTypeBoolean}}

	dataset, summary, err := Transform("flags.csv", []byte(csv), fields, nil)
	if err != nil {
		t.Fatalf("transform: %v", err)
	}
	if dataset.Rows[0][0] != nil {
		t.Fatalf("expected nil for unparseable boolean, got %v", dataset.Rows[0][0])
	}
	// flag is optional, so the missing value does not invalidate the row.
	if summary.ValidRows != 1 {
		t.Fatalf("expected row to stay valid, got %+v", summary)
	}
}

func TestTransformMissingRequiredColumn(t *testing.T) {
	csv := "region\nnorth\nsouth\n"
	fields := []domain.FieldDefinition{
		{Name: "region", Type: domain.FieldTypeString},
		{Name: "amount", Type: domain.FieldTypeNumber, Required: true},
	}

	dataset, summary, err := Transform("sales.csv", []byte(csv), fields, nil)
	if err != nil {
		t.Fatalf("transform: %v", err)
	}

	if len(summary.Errors) != 1 || summary.Errors[0].Field != "amount" {
		t.Fatalf("expected schema error on amount, got %+v", summary.Errors)
	}
	if summary.InvalidRows != 2 || summary.ValidRows != 0 {
		t.Fatalf("all rows invalid when a required column is absent, got %+v", summary)
	}
	if len(dataset.Rows) != 2 {
		t.Fatalf("rows are still loaded, got %d", len(dataset.Rows))
	}
	if len(dataset.Columns) != 1 || dataset.Columns[0] != "region" {
		t.Fatalf("only present columns survive, got %v", dataset.Columns)
	}
}

func TestTransformAppliesColumnMapping(t *testing.T) {
	csv := "Region Name,Total\nnorth,100\n"
	fields := []domain.FieldDefinition{
		{Name: "region", Type: domain.FieldTypeString},
		{Name: "amount", Type: domain.FieldTypeNumber},
	}
	mapping := map[string]string{"Region Name": "region", "Total": "amount"}

	dataset, summary, err := Transform("sales.csv", []byte(csv), fields, mapping)
	if err != nil {
		t.Fatalf("transform: %v", err)
	}
	if summary.ValidRows != 1 {
		t.Fatalf("expected mapped columns to validate, got %+v", summary)
	}
	if len(dataset.Columns) != 2 {
		t.Fatalf("expected both mapped columns, got %v", dataset.Columns)
	}
}

func TestTransformDropsUndeclaredColumns(t *testing.T) {
	csv := "region,scratch_notes\nnorth,ignore me\n"
	fields := []domain.FieldDefinition{{Name: "region", Type: domain.FieldTypeString}}

	dataset, _, err := Transform("sales.csv", []byte(csv), fields, nil)
	if err != nil {
		t.Fatalf("transform: %v", err)
	}
	if len(dataset.Columns) != 1 || dataset.Columns[0] != "region" {
		t.Fatalf("undeclared columns must be dropped, got %v", dataset.Columns)
	}
}

func TestTransformStripsByteOrderMark(t *testing.T) {
	payload := append([]byte{0xEF, 0xBB, 0xBF}, []byte("region\nnorth\n")...)
	fields := []domain.FieldDefinition{{Name: "region", Type: domain.FieldTypeString}}

	dataset, _, err := Transform("sales.csv", payload, fields, nil)
	if err != nil {
		t.Fatalf("transform: %v", err)
	}
	if len(dataset.Columns) != 1 {
		t.Fatalf("BOM must not mangle the first header, got %v", dataset.Columns)
	}
}

func TestTransformRejectsUnsupportedFormat(t *testing.T) {
	_, _, err := Transform("sales.parquet", []byte("x"), salesFields, nil)
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestDetectFieldType(t *testing.T) {
	cases := []struct {
		name   string
		values []string
		want   domain.FieldType
	}{
		{"integers", []string{"1", "42", "-7"}, domain.FieldTypeInteger},
		{"floats", []string{"1.5", "2"}, domain.FieldTypeNumber},
		{"booleans", []string{"yes", "no", "true"}, domain.FieldTypeBoolean},
		{"dates", []string{"2024-03-01", "2024-04-15"}, domain.FieldTypeDate},
		{"mixed", []string{"1", "hello"}, domain.FieldTypeString},
		{"empty cells skipped", []string{"", "3", ""}, domain.FieldTypeInteger},
		{"all empty", []string{"", ""}, domain.FieldTypeString},
	}

	for _, tc := range cases {
		if got := detectFieldType(tc.values); got != tc.want {
			t.Errorf("%s: detectFieldType = %s, want %s", tc.name, got, tc.want)
		}
	}
}

func TestTransformIntegerAcceptsLosslessFloat(t *testing.T) {
	csv := "units\n3.0\n3.5\n"
	fields := []domain.FieldDefinition{{Name: "units", Type: domain.FieldTypeInteger}}

	dataset, _, err := Transform("units.csv", []byte(csv), fields, nil)
	if err != nil {
		t.Fatalf("transform: %v", err)
	}
	if dataset.Rows[0][0] != int64(3) {
		t.Errorf("3.0 should coerce to int64(3), got %v", dataset.Rows[0][0])
	}
	if dataset.Rows[1][0] != nil {
		t.Errorf("3.5 loses precision and must become nil, got %v", dataset.Rows[1][0])
	}
}
