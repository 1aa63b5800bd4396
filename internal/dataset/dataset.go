// Package dataset implements the in-memory tabular dataset that the rest of
// the pipeline reads from: typed named columns, a derived profile used to
// ground prompts, CSV ingestion through DuckDB, and the cleaning pass applied
// once at upload.
package dataset

import (
	"fmt"
	"time"
)

// Type is the inferred scalar type of a column.
type Type string

const (
	TypeNumeric  Type = "number"
	TypeText     Type = "text"
	TypeTemporal Type = "date"
)

// Column is a single named column. Values holds nil, float64, string or
// time.Time depending on Type; nil marks a missing value.
type Column struct {
	Name   string
	Type   Type
	Values []any
}

// Dataset is an ordered sequence of named typed columns with a uniform row
// count. It is created once at ingestion and passed by pointer; downstream
// components treat it as read-mostly.
type Dataset struct {
	columns []Column
	index   map[string]int
}

// New builds a Dataset from columns, validating that names are unique and
// every column has the same number of rows.
func New(columns []Column) (*Dataset, error) {
	if len(columns) == 0 {
		return nil, fmt.Errorf("dataset requires at least one column")
	}
	index := make(map[string]int, len(columns))
	rows := len(columns[0].Values)
	for i, col := range columns {
		if col.Name == "" {
			return nil, fmt.Errorf("column %d has an empty name", i)
		}
		if _, dup := index[col.Name]; dup {
			return nil, fmt.Errorf("duplicate column name %q", col.Name)
		}
		if len(col.Values) != rows {
			return nil, fmt.Errorf("column %q has %d rows, expected %d", col.Name, len(col.Values), rows)
		}
		index[col.Name] = i
	}
	return &Dataset{columns: columns, index: index}, nil
}

// RowCount returns the number of rows.
func (d *Dataset) RowCount() int {
	if len(d.columns) == 0 {
		return 0
	}
	return len(d.columns[0].Values)
}

// ColumnNames returns column names in order.
func (d *Dataset) ColumnNames() []string {
	names := make([]string, len(d.columns))
	for i, col := range d.columns {
		names[i] = col.Name
	}
	return names
}

// Columns returns the columns in order.
func (d *Dataset) Columns() []Column {
	return d.columns
}

// Column looks up a column by name.
func (d *Dataset) Column(name string) (Column, bool) {
	i, ok := d.index[name]
	if !ok {
		return Column{}, false
	}
	return d.columns[i], true
}

// Row returns row i as a name-keyed map.
func (d *Dataset) Row(i int) map[string]any {
	row := make(map[string]any, len(d.columns))
	for _, col := range d.columns {
		row[col.Name] = col.Values[i]
	}
	return row
}

// FormatValue renders a cell value for display to the LLM or the user.
// Floats are rounded to two decimals so long mantissas do not leak into
// prompts, temporals use a date-only form when they carry no clock time.
func FormatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case float64:
		if val == float64(int64(val)) {
			return fmt.Sprintf("%.0f", val)
		}
		return fmt.Sprintf("%.2f", val)
	case time.Time:
		if val.Hour() == 0 && val.Minute() == 0 && val.Second() == 0 {
			return val.Format("2006-01-02")
		}
		return val.Format(time.RFC3339)
	default:
		s := fmt.Sprintf("%v", v)
		if len(s) > 100 {
			s = s[:97] + "..."
		}
		return s
	}
}
