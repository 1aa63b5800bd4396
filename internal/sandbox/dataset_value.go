package sandbox

import (
	"fmt"

	"go.starlark.net/starlark"

	"github.com/rabbitlabs/rabbit/internal/dataset"
)

// DatasetValue exposes the dataset handle to generated code as `df`. It is
// read-only from the Starlark side: every accessor returns fresh values, so
// nothing a code unit does can corrupt the session's dataset.
type DatasetValue struct {
	ds *dataset.Dataset
}

// NewDatasetValue wraps a dataset for use inside the sandbox namespace.
func NewDatasetValue(ds *dataset.Dataset) *DatasetValue {
	return &DatasetValue{ds: ds}
}

// DatasetFrom extracts the dataset from a namespace value, if it is one.
// Generated code can bind a filtered dataset directly to a contract
// variable, and callers need the handle back to render it.
func DatasetFrom(v starlark.Value) (*dataset.Dataset, bool) {
	dv, ok := v.(*DatasetValue)
	if !ok {
		return nil, false
	}
	return dv.ds, true
}

func (d *DatasetValue) String() string {
	return fmt.Sprintf("<dataset %d columns x %d rows>", len(d.ds.Columns()), d.ds.RowCount())
}

func (d *DatasetValue) Type() string          { return "dataset" }
func (d *DatasetValue) Freeze()               {}
func (d *DatasetValue) Truth() starlark.Bool  { return starlark.Bool(d.ds.RowCount() > 0) }
func (d *DatasetValue) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable type: dataset") }

func (d *DatasetValue) AttrNames() []string {
	return []string{"column", "columns", "filter", "group_mean", "group_sum", "row_count", "rows"}
}

func (d *DatasetValue) Attr(name string) (starlark.Value, error) {
	switch name {
	case "columns":
		names := d.ds.ColumnNames()
		items := make([]starlark.Value, len(names))
		for i, n := range names {
			items[i] = starlark.String(n)
		}
		return starlark.NewList(items), nil

	case "row_count":
		return starlark.MakeInt(d.ds.RowCount()), nil

	case "column":
		return starlark.NewBuiltin("column", d.columnMethod), nil
	case "rows":
		return starlark.NewBuiltin("rows", d.rowsMethod), nil
	case "filter":
		return starlark.NewBuiltin("filter", d.filterMethod), nil
	case "group_sum":
		return starlark.NewBuiltin("group_sum", d.groupSumMethod), nil
	case "group_mean":
		return starlark.NewBuiltin("group_mean", d.groupMeanMethod), nil
	}
	return nil, nil
}

// columnMethod returns one column's values as a list.
func (d *DatasetValue) columnMethod(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var name string
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "name", &name); err != nil {
		return nil, err
	}
	col, ok := d.ds.Column(name)
	if !ok {
		return nil, fmt.Errorf("column: unknown column %q", name)
	}
	items := make([]starlark.Value, len(col.Values))
	for i, v := range col.Values {
		items[i] = toStarlark(v)
	}
	return starlark.NewList(items), nil
}

// rowsMethod returns all rows as a list of dicts.
func (d *DatasetValue) rowsMethod(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if err := starlark.UnpackArgs(b.Name(), args, kwargs); err != nil {
		return nil, err
	}
	items := make([]starlark.Value, d.ds.RowCount())
	for i := 0; i < d.ds.RowCount(); i++ {
		row := starlark.NewDict(len(d.ds.Columns()))
		for _, col := range d.ds.Columns() {
			if err := row.SetKey(starlark.String(col.Name), toStarlark(col.Values[i])); err != nil {
				return nil, err
			}
		}
		items[i] = row
	}
	return starlark.NewList(items), nil
}

// filterMethod returns a new dataset keeping rows whose column equals value.
func (d *DatasetValue) filterMethod(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var name string
	var value starlark.Value
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "column", &name, "value", &value); err != nil {
		return nil, err
	}
	col, ok := d.ds.Column(name)
	if !ok {
		return nil, fmt.Errorf("filter: unknown column %q", name)
	}

	want, err := ToGo(value)
	if err != nil {
		return nil, fmt.Errorf("filter: %w", err)
	}

	keep := make([]int, 0, len(col.Values))
	for i, v := range col.Values {
		if cellEquals(v, want) {
			keep = append(keep, i)
		}
	}

	columns := make([]dataset.Column, len(d.ds.Columns()))
	for j, src := range d.ds.Columns() {
		values := make([]any, len(keep))
		for i, idx := range keep {
			values[i] = src.Values[idx]
		}
		columns[j] = dataset.Column{Name: src.Name, Type: src.Type, Values: values}
	}
	filtered, err := dataset.New(columns)
	if err != nil {
		return nil, fmt.Errorf("filter: %w", err)
	}
	return NewDatasetValue(filtered), nil
}

// groupSumMethod sums a numeric column per group key.
func (d *DatasetValue) groupSumMethod(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	return d.grouped(b, args, kwargs, false)
}

// groupMeanMethod averages a numeric column per group key.
func (d *DatasetValue) groupMeanMethod(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	return d.grouped(b, args, kwargs, true)
}

func (d *DatasetValue) grouped(b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple, mean bool) (starlark.Value, error) {
	var by, value string
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "by", &by, "value", &value); err != nil {
		return nil, err
	}
	byCol, ok := d.ds.Column(by)
	if !ok {
		return nil, fmt.Errorf("%s: unknown column %q", b.Name(), by)
	}
	valCol, ok := d.ds.Column(value)
	if !ok {
		return nil, fmt.Errorf("%s: unknown column %q", b.Name(), value)
	}
	if valCol.Type != dataset.TypeNumeric {
		return nil, fmt.Errorf("%s: column %q is not numeric", b.Name(), value)
	}

	sums := map[string]float64{}
	counts := map[string]int{}
	var order []string
	for i, v := range byCol.Values {
		key := dataset.FormatValue(v)
		f, ok := valCol.Values[i].(float64)
		if !ok {
			continue
		}
		if _, seen := sums[key]; !seen {
			order = append(order, key)
		}
		sums[key] += f
		counts[key]++
	}

	out := starlark.NewDict(len(order))
	for _, key := range order {
		v := sums[key]
		if mean && counts[key] > 0 {
			v /= float64(counts[key])
		}
		if err := out.SetKey(starlark.String(key), starlark.Float(v)); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func cellEquals(cell, want any) bool {
	if f, ok := cell.(float64); ok {
		switch w := want.(type) {
		case float64:
			return f == w
		case int64:
			return f == float64(w)
		}
	}
	return dataset.FormatValue(cell) == fmt.Sprintf("%v", want)
}
