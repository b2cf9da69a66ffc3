package domain

import (
	"testing"

	"github.com/google/uuid"
)

func TestTableNameFor(t *testing.T) {
	cases := []struct {
		name string
		want string
	}{
		{"sales", "dm_sales"},
		{"Sales Report", "dm_sales_report"},
		{"  Quarterly  Revenue ", "dm_quarterly_revenue"},
		{"orders-2024!", "dm_orders2024"},
	}

	for _, tc := range cases {
		if got := TableNameFor(tc.name); got != tc.want {
			t.Errorf("TableNameFor(%q) = %q, want %q", tc.name, got, tc.want)
		}
	}
}

func TestTableNameIsDeterministic(t *testing.T) {
	if TableNameFor("My Model") != TableNameFor("My Model") {
		t.Fatalf("table name derivation must be deterministic")
	}
}

func TestWithFieldsBumpsVersion(t *testing.T) {
	model := NewDataModel("sales", "Sales", "", []FieldDefinition{
		{Name: "amount", Type: FieldTypeNumber, Required: true},
	}, uuid.New())

	if model.Version != 1 {
		t.Fatalf("expected version 1, got %d", model.Version)
	}

	revised := model.WithFields([]FieldDefinition{
		{Name: "amount", Type: FieldTypeNumber, Required: true},
		{Name: "region", Type: FieldTypeString},
	})

	if revised.Version != 2 {
		t.Fatalf("expected version 2 after revision, got %d", revised.Version)
	}
	if revised.TableName != model.TableName {
		t.Fatalf("table name must not change on revision")
	}
	if len(model.Fields) != 1 {
		t.Fatalf("original model fields must be untouched")
	}
}
