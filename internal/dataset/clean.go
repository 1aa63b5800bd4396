package dataset

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Report summarizes what the cleaning pass changed.
type Report struct {
	RowsBefore        int            `json:"rowsBefore"`
	RowsAfter         int            `json:"rowsAfter"`
	DuplicatesRemoved int            `json:"duplicatesRemoved"`
	Imputed           map[string]int `json:"imputed,omitempty"`
	DateColumns       []string       `json:"dateColumns,omitempty"`
}

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006/01/02",
	"01/02/2006",
	time.RFC3339,
}

// Clean applies the ingestion-time cleaning pass: drop duplicate rows,
// coerce date-looking text columns to temporal, fill missing numeric values
// with the column mean and missing text values with the column mode.
// The input dataset is not modified.
func Clean(d *Dataset) (*Dataset, Report, error) {
	report := Report{RowsBefore: d.RowCount(), Imputed: map[string]int{}}

	columns := dropDuplicateRows(d.Columns())
	report.DuplicatesRemoved = d.RowCount() - len(columns[0].Values)

	for i, col := range columns {
		switch col.Type {
		case TypeText:
			if coerced, ok := coerceDates(col); ok {
				columns[i] = coerced
				report.DateColumns = append(report.DateColumns, col.Name)
				continue
			}
			if n := imputeMode(&columns[i]); n > 0 {
				report.Imputed[col.Name] = n
			}
		case TypeNumeric:
			if n := imputeMean(&columns[i]); n > 0 {
				report.Imputed[col.Name] = n
			}
		}
	}

	cleaned, err := New(columns)
	if err != nil {
		return nil, Report{}, err
	}
	report.RowsAfter = cleaned.RowCount()
	return cleaned, report, nil
}

func dropDuplicateRows(columns []Column) []Column {
	rows := len(columns[0].Values)
	seen := make(map[string]bool, rows)
	keep := make([]int, 0, rows)
	for i := 0; i < rows; i++ {
		var key strings.Builder
		for _, col := range columns {
			key.WriteString(exactKey(col.Values[i]))
			key.WriteByte('\x1f')
		}
		k := key.String()
		if seen[k] {
			continue
		}
		seen[k] = true
		keep = append(keep, i)
	}

	out := make([]Column, len(columns))
	for j, col := range columns {
		values := make([]any, len(keep))
		for i, idx := range keep {
			values[i] = col.Values[idx]
		}
		out[j] = Column{Name: col.Name, Type: col.Type, Values: values}
	}
	return out
}

// exactKey renders a cell value losslessly for duplicate detection.
// FormatValue is unsuitable here: it rounds floats and truncates long
// strings for display, which would collapse distinct rows.
func exactKey(v any) string {
	switch val := v.(type) {
	case nil:
		return "\x00"
	case float64:
		return strconv.FormatFloat(val, 'g', -1, 64)
	case string:
		return val
	case time.Time:
		return val.Format(time.RFC3339Nano)
	default:
		return fmt.Sprintf("%v", val)
	}
}

// coerceDates converts a text column to temporal when every non-missing
// value parses as a date. A single unparseable value leaves the column as
// text, matching the all-or-nothing coercion at ingestion.
func coerceDates(col Column) (Column, bool) {
	parsed := make([]any, len(col.Values))
	sawValue := false
	for i, v := range col.Values {
		s, ok := v.(string)
		if !ok || strings.TrimSpace(s) == "" {
			parsed[i] = nil
			continue
		}
		t, ok := parseDate(strings.TrimSpace(s))
		if !ok {
			return Column{}, false
		}
		parsed[i] = t
		sawValue = true
	}
	if !sawValue {
		return Column{}, false
	}
	return Column{Name: col.Name, Type: TypeTemporal, Values: parsed}, true
}

func parseDate(s string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func imputeMean(col *Column) int {
	var sum float64
	var count int
	for _, v := range col.Values {
		if f, ok := v.(float64); ok {
			sum += f
			count++
		}
	}
	if count == 0 {
		return 0
	}
	mean := sum / float64(count)

	filled := 0
	for i, v := range col.Values {
		if v == nil {
			col.Values[i] = mean
			filled++
		}
	}
	return filled
}

func imputeMode(col *Column) int {
	counts := map[string]int{}
	for _, v := range col.Values {
		if s, ok := v.(string); ok && s != "" {
			counts[s]++
		}
	}
	if len(counts) == 0 {
		return 0
	}

	// Deterministic mode: highest count, ties broken lexically.
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	mode := keys[0]
	for _, k := range keys {
		if counts[k] > counts[mode] {
			mode = k
		}
	}

	filled := 0
	for i, v := range col.Values {
		if v == nil || v == "" {
			col.Values[i] = mode
			filled++
		}
	}
	return filled
}
