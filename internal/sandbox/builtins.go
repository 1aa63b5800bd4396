package sandbox

import (
	"fmt"

	"go.starlark.net/starlark"

	"github.com/rabbitlabs/rabbit/internal/chart"
)

// FigureValue wraps a chart figure so generated code can bind it to a
// contract variable (`fig`, `fig1`..`fig4`).
type FigureValue struct {
	fig *chart.Figure
}

func (f *FigureValue) String() string        { return fmt.Sprintf("<figure %s>", f.fig.Kind) }
func (f *FigureValue) Type() string          { return "figure" }
func (f *FigureValue) Freeze()               {}
func (f *FigureValue) Truth() starlark.Bool  { return starlark.True }
func (f *FigureValue) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable type: figure") }

// FigureFrom extracts the chart figure from a namespace value, if it is one.
func FigureFrom(v starlark.Value) (*chart.Figure, bool) {
	fv, ok := v.(*FigureValue)
	if !ok {
		return nil, false
	}
	return fv.fig, true
}

// Builtins returns the chart constructors advertised to generated code:
// bar, line, scatter, pie and histogram.
func Builtins() starlark.StringDict {
	return starlark.StringDict{
		"bar":       starlark.NewBuiltin("bar", makeXY(chart.KindBar)),
		"line":      starlark.NewBuiltin("line", makeXY(chart.KindLine)),
		"scatter":   starlark.NewBuiltin("scatter", makeXY(chart.KindScatter)),
		"pie":       starlark.NewBuiltin("pie", makePie),
		"histogram": starlark.NewBuiltin("histogram", makeHistogram),
	}
}

// makeXY builds the constructor for the x/y chart kinds.
func makeXY(kind chart.Kind) func(*starlark.Thread, *starlark.Builtin, starlark.Tuple, []starlark.Tuple) (starlark.Value, error) {
	return func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var x, y starlark.Iterable
		var title, xlabel, ylabel, name string
		if err := starlark.UnpackArgs(b.Name(), args, kwargs,
			"x", &x, "y", &y, "title?", &title, "xlabel?", &xlabel, "ylabel?", &ylabel, "name?", &name); err != nil {
			return nil, err
		}

		xs, err := anys(x)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", b.Name(), err)
		}
		ys, err := floats(y, "y")
		if err != nil {
			return nil, fmt.Errorf("%s: %w", b.Name(), err)
		}
		if len(xs) != len(ys) {
			return nil, fmt.Errorf("%s: x has %d items, y has %d", b.Name(), len(xs), len(ys))
		}

		return &FigureValue{fig: &chart.Figure{
			Kind:   kind,
			Title:  title,
			XLabel: xlabel,
			YLabel: ylabel,
			Series: []chart.Series{{Name: name, X: xs, Y: ys}},
		}}, nil
	}
}

func makePie(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var labels, values starlark.Iterable
	var title string
	if err := starlark.UnpackArgs(b.Name(), args, kwargs,
		"labels", &labels, "values", &values, "title?", &title); err != nil {
		return nil, err
	}

	ls := strs(labels)
	vs, err := floats(values, "values")
	if err != nil {
		return nil, fmt.Errorf("pie: %w", err)
	}
	if len(ls) != len(vs) {
		return nil, fmt.Errorf("pie: labels has %d items, values has %d", len(ls), len(vs))
	}

	return &FigureValue{fig: &chart.Figure{
		Kind:       chart.KindPie,
		Title:      title,
		ShowLegend: true,
		Series:     []chart.Series{{Labels: ls, Values: vs}},
	}}, nil
}

func makeHistogram(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var values starlark.Iterable
	var bins int
	var title, xlabel string
	if err := starlark.UnpackArgs(b.Name(), args, kwargs,
		"values", &values, "bins?", &bins, "title?", &title, "xlabel?", &xlabel); err != nil {
		return nil, err
	}

	vs, err := floats(values, "values")
	if err != nil {
		return nil, fmt.Errorf("histogram: %w", err)
	}
	if bins <= 0 {
		bins = 10
	}

	return &FigureValue{fig: &chart.Figure{
		Kind:   chart.KindHistogram,
		Title:  title,
		XLabel: xlabel,
		Series: []chart.Series{{Values: vs, Bins: bins}},
	}}, nil
}
