package dataset

import (
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
)

// ColumnInfo describes one column in a profile.
type ColumnInfo struct {
	Name string `json:"name"`
	Type Type   `json:"type"`
}

// Profile is a lightweight derived summary of a dataset used to ground
// prompts: column names, per-column type tags and a small rendered sample.
// It is always computed fresh, never cached across a dataset replacement.
type Profile struct {
	Columns  []ColumnInfo `json:"columns"`
	RowCount int          `json:"rowCount"`
	Sample   string       `json:"sample"`
}

// Profile derives a profile with the first sampleRows rows rendered as a
// text table.
func (d *Dataset) Profile(sampleRows int) Profile {
	p := Profile{RowCount: d.RowCount()}
	for _, col := range d.columns {
		p.Columns = append(p.Columns, ColumnInfo{Name: col.Name, Type: col.Type})
	}
	p.Sample = d.renderSample(sampleRows)
	return p
}

// ColumnTypes returns a "name: type" line per column, the form the prompts
// embed under "Data Types".
func (p Profile) ColumnTypes() string {
	lines := make([]string, len(p.Columns))
	for i, col := range p.Columns {
		lines[i] = col.Name + ": " + string(col.Type)
	}
	return strings.Join(lines, "\n")
}

func (d *Dataset) renderSample(n int) string {
	if n > d.RowCount() {
		n = d.RowCount()
	}
	w := table.NewWriter()
	w.SetStyle(table.StyleLight)

	header := make(table.Row, len(d.columns))
	for i, col := range d.columns {
		header[i] = col.Name
	}
	w.AppendHeader(header)

	for i := 0; i < n; i++ {
		row := make(table.Row, len(d.columns))
		for j, col := range d.columns {
			row[j] = FormatValue(col.Values[i])
		}
		w.AppendRow(row)
	}
	return w.Render()
}
