package sandbox

import (
	"fmt"
	"time"

	"go.starlark.net/starlark"
)

// toStarlark converts a dataset cell value to a Starlark value.
func toStarlark(v any) starlark.Value {
	switch val := v.(type) {
	case nil:
		return starlark.None
	case float64:
		return starlark.Float(val)
	case string:
		return starlark.String(val)
	case time.Time:
		if val.Hour() == 0 && val.Minute() == 0 && val.Second() == 0 {
			return starlark.String(val.Format("2006-01-02"))
		}
		return starlark.String(val.Format(time.RFC3339))
	default:
		return starlark.String(fmt.Sprintf("%v", val))
	}
}

// ToGo converts a Starlark value back to a plain Go value: string, int64,
// float64, bool, []any, map[string]any or nil.
func ToGo(v starlark.Value) (any, error) {
	switch val := v.(type) {
	case starlark.NoneType:
		return nil, nil

	case starlark.String:
		return string(val), nil

	case starlark.Int:
		i64, ok := val.Int64()
		if !ok {
			return val.String(), nil
		}
		return i64, nil

	case starlark.Float:
		return float64(val), nil

	case starlark.Bool:
		return bool(val), nil

	case *starlark.List:
		result := make([]any, val.Len())
		for i := 0; i < val.Len(); i++ {
			gv, err := ToGo(val.Index(i))
			if err != nil {
				return nil, fmt.Errorf("list index %d: %w", i, err)
			}
			result[i] = gv
		}
		return result, nil

	case starlark.Tuple:
		result := make([]any, val.Len())
		for i := 0; i < val.Len(); i++ {
			gv, err := ToGo(val.Index(i))
			if err != nil {
				return nil, fmt.Errorf("tuple index %d: %w", i, err)
			}
			result[i] = gv
		}
		return result, nil

	case *starlark.Dict:
		result := make(map[string]any, val.Len())
		for _, item := range val.Items() {
			key, ok := item[0].(starlark.String)
			if !ok {
				return nil, fmt.Errorf("dict key must be string, got %s", item[0].Type())
			}
			gv, err := ToGo(item[1])
			if err != nil {
				return nil, fmt.Errorf("dict key %q: %w", key, err)
			}
			result[string(key)] = gv
		}
		return result, nil

	default:
		return val.String(), nil
	}
}

// asFloat coerces a Starlark number to float64.
func asFloat(v starlark.Value) (float64, bool) {
	switch val := v.(type) {
	case starlark.Float:
		return float64(val), true
	case starlark.Int:
		f, _ := starlark.AsFloat(val)
		return f, true
	default:
		return 0, false
	}
}

// floats collects an iterable of numbers into a float64 slice.
func floats(v starlark.Iterable, argName string) ([]float64, error) {
	var out []float64
	iter := v.Iterate()
	defer iter.Done()
	var item starlark.Value
	for iter.Next(&item) {
		f, ok := asFloat(item)
		if !ok {
			return nil, fmt.Errorf("%s: expected number, got %s", argName, item.Type())
		}
		out = append(out, f)
	}
	return out, nil
}

// anys collects an iterable into plain Go values.
func anys(v starlark.Iterable) ([]any, error) {
	var out []any
	iter := v.Iterate()
	defer iter.Done()
	var item starlark.Value
	for iter.Next(&item) {
		gv, err := ToGo(item)
		if err != nil {
			return nil, err
		}
		out = append(out, gv)
	}
	return out, nil
}

// strs collects an iterable into strings, stringifying non-string items.
func strs(v starlark.Iterable) []string {
	var out []string
	iter := v.Iterate()
	defer iter.Done()
	var item starlark.Value
	for iter.Next(&item) {
		s, ok := starlark.AsString(item)
		if !ok {
			s = item.String()
		}
		out = append(out, s)
	}
	return out
}
