package ingest

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/openbi/dataforge/internal/domain"

	"github.com/xuri/excelize/v2"
)

var (
	// ErrUnsupportedFormat is returned when an uploaded file is not supported.
	ErrUnsupportedFormat = errors.New("unsupported file format")

	byteOrderMark = []byte{0xEF, 0xBB, 0xBF}

	timeLayouts = []string{
		time.RFC3339,
		time.RFC3339Nano,
		"2006-01-02",
		"2006-01-02 15:04:05",
		"2006-01-02 15:04:05.000",
		"2006-01-02 15:04:05.000000",
		"2006/01/02",
		"01/02/2006",
		"02/01/2006",
	}
)

// Dataset is a transformed tabular payload ready for loading. Columns holds
// the declared field names present in the file, in schema order; every row is
// aligned to Columns with nil marking a missing or uncoercible value.
type Dataset struct {
	Columns []string
	Rows    [][]any
}

// FieldError reports a schema-level validation problem.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"error"`
}

// Summary reports validation counters for one ingestion. Invalid rows are
// counted but still loaded; validity affects the counters only.
type Summary struct {
	TotalRows   int          `json:"total_rows"`
	ValidRows   int          `json:"valid_rows"`
	InvalidRows int          `json:"invalid_rows"`
	Errors      []FieldError `json:"errors,omitempty"`
}

type tableData struct {
	headers []string
	rows    [][]string
}

// Transform parses the payload, applies the optional column rename mapping,
// coerces values against the declared fields, and reports validity counters.
// Coercion failures become missing values, never row rejections.
func Transform(fileName string, payload []byte, fields []domain.FieldDefinition, columnMapping map[string]string) (Dataset, Summary, error) {
	table, err := parseTable(fileName, payload)
	if err != nil {
		return Dataset{}, Summary{Errors: []FieldError{}}, err
	}
	return transformTable(table, fields, columnMapping)
}

// transformTable runs the mapping and coercion pipeline over an already parsed
// table. Preview truncates the table first and shares everything else.
func transformTable(table tableData, fields []domain.FieldDefinition, columnMapping map[string]string) (Dataset, Summary, error) {
	summary := Summary{Errors: []FieldError{}}

	if len(table.headers) == 0 {
		return Dataset{}, summary, errors.New("no header row detected")
	}

	if len(columnMapping) > 0 {
		for i, header := range table.headers {
			if mapped, ok := columnMapping[header]; ok && mapped != "" {
				table.headers[i] = mapped
			}
		}
	}

	columnIndex := make(map[string]int, len(table.headers))
	for i, header := range table.headers {
		columnIndex[header] = i
	}

	// Declared fields present in the file, in schema order. Undeclared file
	// columns are dropped rather than failing the insert later.
	var present []domain.FieldDefinition
	requiredMissing := false
	for _, field := range fields {
		if _, ok := columnIndex[field.Name]; ok {
			present = append(present, field)
			continue
		}
		if field.Required {
			requiredMissing = true
			summary.Errors = append(summary.Errors, FieldError{
				Field:   field.Name,
				Message: "required field missing",
			})
		}
	}

	columns := make([]string, len(present))
	for i, field := range present {
		columns[i] = field.Name
	}

	dataset := Dataset{Columns: columns, Rows: make([][]any, 0, len(table.rows))}
	summary.TotalRows = len(table.rows)

	for _, raw := range table.rows {
		row := make([]any, len(present))
		valid := !requiredMissing

		for i, field := range present {
			idx := columnIndex[field.Name]
			var cell string
			if idx < len(raw) {
				cell = strings.TrimSpace(raw[idx])
			}

			value := coerceValue(field.Type, cell)
			row[i] = value
			if value == nil && field.Required {
				valid = false
			}
		}

		dataset.Rows = append(dataset.Rows, row)
		if valid {
			summary.ValidRows++
		} else {
			summary.InvalidRows++
		}
	}

	return dataset, summary, nil
}

// coerceValue converts a raw cell according to the semantic type. Empty cells
// and unparseable values become nil, the missing-value marker. Booleans follow
// the same missing-on-failure policy as numbers and dates.
func coerceValue(fieldType domain.FieldType, raw string) any {
	if raw == "" {
		return nil
	}

	switch fieldType {
	case domain.FieldTypeString, domain.FieldTypeText:
		return raw
	case domain.FieldTypeInteger:
		if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
			return i
		}
		// Allow float representations that convert losslessly.
		if f, err := strconv.ParseFloat(raw, 64); err == nil && f == float64(int64(f)) {
			return int64(f)
		}
		return nil
	case domain.FieldTypeNumber:
		if f, err := strconv.ParseFloat(raw, 64); err == nil {
			return f
		}
		return nil
	case domain.FieldTypeBoolean:
		switch strings.ToLower(raw) {
		case "1", "yes", "y":
			return true
		case "0", "no", "n":
			return false
		}
		if b, err := strconv.ParseBool(strings.ToLower(raw)); err == nil {
			return b
		}
		return nil
	case domain.FieldTypeDate, domain.FieldTypeDatetime:
		if ts, err := parseTimestamp(raw); err == nil {
			return ts
		}
		return nil
	default:
		return raw
	}
}

// detectFieldType infers a semantic type from sampled raw cells. Empty cells
// are skipped; a column with no usable cells defaults to string.
func detectFieldType(values []string) domain.FieldType {
	sampled := 0
	isInteger, isNumber, isBoolean, isDate := true, true, true, true

	for _, raw := range values {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		sampled++

		if _, err := strconv.ParseInt(raw, 10, 64); err != nil {
			isInteger = false
		}
		if _, err := strconv.ParseFloat(raw, 64); err != nil {
			isNumber = false
		}
		if coerceValue(domain.FieldTypeBoolean, raw) == nil {
			isBoolean = false
		}
		if _, err := parseTimestamp(raw); err != nil {
			isDate = false
		}
	}

	switch {
	case sampled == 0:
		return domain.FieldTypeString
	case isBoolean:
		return domain.FieldTypeBoolean
	case isInteger:
		return domain.FieldTypeInteger
	case isNumber:
		return domain.FieldTypeNumber
	case isDate:
		return domain.FieldTypeDate
	default:
		return domain.FieldTypeString
	}
}

func parseTimestamp(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range timeLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, errors.New("unrecognized timestamp format")
}

func parseTable(fileName string, payload []byte) (tableData, error) {
	ext := strings.ToLower(filepath.Ext(fileName))
	switch ext {
	case ".csv":
		return parseCSV(payload)
	case ".xlsx", ".xls":
		return parseExcel(payload)
	default:
		return tableData{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}
}

func parseCSV(payload []byte) (tableData, error) {
	reader := bufio.NewReader(bytes.NewReader(payload))
	if prefix, err := reader.Peek(len(byteOrderMark)); err == nil && bytes.Equal(prefix, byteOrderMark) {
		_, _ = reader.Discard(len(byteOrderMark))
	}

	csvReader := csv.NewReader(reader)
	csvReader.TrimLeadingSpace = true
	csvReader.FieldsPerRecord = -1

	records, err := csvReader.ReadAll()
	if err != nil {
		return tableData{}, fmt.Errorf("failed to read csv: %w", err)
	}

	return normalizeTable(records)
}

func parseExcel(payload []byte) (tableData, error) {
	f, err := excelize.OpenReader(bytes.NewReader(payload))
	if err != nil {
		return tableData{}, fmt.Errorf("failed to open xlsx: %w", err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return tableData{}, errors.New("excel file has no sheets")
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return tableData{}, fmt.Errorf("failed to read rows from xlsx: %w", err)
	}

	return normalizeTable(rows)
}

func normalizeTable(records [][]string) (tableData, error) {
	if len(records) == 0 {
		return tableData{}, errors.New("no rows found in file")
	}

	var headerRow []string
	var dataRows [][]string
	for _, row := range records {
		if emptyRow(row) {
			continue
		}
		if headerRow == nil {
			headerRow = row
			continue
		}
		dataRows = append(dataRows, row)
	}

	if headerRow == nil {
		return tableData{}, errors.New("header row could not be detected")
	}

	headers := make([]string, len(headerRow))
	for i, value := range headerRow {
		headers[i] = strings.TrimSpace(value)
	}

	return tableData{headers: headers, rows: dataRows}, nil
}

func emptyRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
