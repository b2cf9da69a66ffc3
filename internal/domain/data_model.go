package domain

import (
	"encoding/json"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// FieldType represents the semantic type of a field in a data model schema.
type FieldType string

const (
	FieldTypeString   FieldType = "string"
	FieldTypeText     FieldType = "text"
	FieldTypeNumber   FieldType = "number"
	FieldTypeInteger  FieldType = "integer"
	FieldTypeDate     FieldType = "date"
	FieldTypeDatetime FieldType = "datetime"
	FieldTypeBoolean  FieldType = "boolean"
)

// FieldDefinition describes one column of a data model schema.
type FieldDefinition struct {
	Name        string          `json:"name"`
	Type        FieldType       `json:"type"`
	Required    bool            `json:"required"`
	Unique      bool            `json:"unique,omitempty"`
	Default     string          `json:"default,omitempty"`
	Constraints json.RawMessage `json:"constraints,omitempty"`
}

// DataModel is a user-defined record schema materialized into a physical table.
// TableName is derived once at creation and never changes afterwards.
type DataModel struct {
	ID          uuid.UUID         `json:"id"`
	Name        string            `json:"name"`
	DisplayName string            `json:"display_name"`
	Description string            `json:"description"`
	Fields      []FieldDefinition `json:"fields"`
	Version     int               `json:"version"`
	Active      bool              `json:"is_active"`
	TableName   string            `json:"table_name"`
	CreatedBy   uuid.UUID         `json:"created_by"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// NewDataModel creates a data model at version 1 with a derived table name.
func NewDataModel(name, displayName, description string, fields []FieldDefinition, createdBy uuid.UUID) DataModel {
	now := time.Now()
	return DataModel{
		ID:          uuid.New(),
		Name:        name,
		DisplayName: displayName,
		Description: description,
		Fields:      copyFields(fields),
		Version:     1,
		Active:      true,
		TableName:   TableNameFor(name),
		CreatedBy:   createdBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// WithFields returns a copy with a replaced field list and a bumped version.
// The physical table is never altered by a schema revision.
func (m DataModel) WithFields(fields []FieldDefinition) DataModel {
	out := m
	out.Fields = copyFields(fields)
	out.Version = m.Version + 1
	out.UpdatedAt = time.Now()
	return out
}

// GetFieldsAsJSONB returns the fields as JSONB for database storage.
func (m DataModel) GetFieldsAsJSONB() (json.RawMessage, error) {
	return json.Marshal(m.Fields)
}

// FromJSONBFields decodes a stored field list.
func FromJSONBFields(fieldsJSON json.RawMessage) ([]FieldDefinition, error) {
	var fields []FieldDefinition
	err := json.Unmarshal(fieldsJSON, &fields)
	return fields, err
}

var tableNamePattern = regexp.MustCompile(`[^a-z0-9_]+`)

// TableNameFor derives the physical table name for a model name. The mapping
// is deterministic: lowercase, whitespace to underscores, anything outside
// [a-z0-9_] stripped, prefixed with the dm_ namespace tag so dynamic tables
// never collide with system tables.
func TableNameFor(name string) string {
	table := strings.ToLower(strings.TrimSpace(name))
	table = strings.Join(strings.Fields(table), "_")
	table = tableNamePattern.ReplaceAllString(table, "")
	table = strings.Trim(table, "_")
	return "dm_" + table
}

// copyFields creates a deep copy of the fields slice to keep models immutable.
func copyFields(fields []FieldDefinition) []FieldDefinition {
	if fields == nil {
		return nil
	}
	out := make([]FieldDefinition, len(fields))
	copy(out, fields)
	return out
}
