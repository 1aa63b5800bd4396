// Package chart defines the renderable figure artifact produced by the
// visualization pipeline, its JSON interchange encoding, and the recovery
// chain applied when a generated figure fails the serializability check.
package chart

import (
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// Kind identifies the chart family.
type Kind string

const (
	KindBar         Kind = "bar"
	KindLine        Kind = "line"
	KindScatter     Kind = "scatter"
	KindPie         Kind = "pie"
	KindHistogram   Kind = "histogram"
	KindPlaceholder Kind = "placeholder"
)

// DefaultTemplate is the known-good presentation template forced onto
// figures during recovery.
const DefaultTemplate = "rabbit-dark"

// Series holds one plotted series. X carries categories, numbers or
// timestamps; Y the measure. Pie charts use Labels/Values instead, and
// histograms use Values with an optional bin count.
type Series struct {
	Name   string    `json:"name,omitempty"`
	X      []any     `json:"x,omitempty"`
	Y      []float64 `json:"y,omitempty"`
	Labels []string  `json:"labels,omitempty"`
	Values []float64 `json:"values,omitempty"`
	Bins   int       `json:"bins,omitempty"`
}

// Annotation is free-standing text placed in paper coordinates.
type Annotation struct {
	Text string  `json:"text"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
}

// Figure is the chart artifact handed back to the caller. Its interchange
// representation is JSON; a figure that cannot be encoded is not renderable.
type Figure struct {
	Kind        Kind         `json:"kind"`
	Title       string       `json:"title,omitempty"`
	XLabel      string       `json:"xlabel,omitempty"`
	YLabel      string       `json:"ylabel,omitempty"`
	Template    string       `json:"template,omitempty"`
	Height      int          `json:"height,omitempty"`
	ShowLegend  bool         `json:"showLegend,omitempty"`
	Series      []Series     `json:"series,omitempty"`
	Annotations []Annotation `json:"annotations,omitempty"`
}

// Encode converts the figure to its interchange representation. Non-finite
// values produced by generated aggregations (NaN, Inf) make this fail, which
// is exactly what the validator relies on.
func (f *Figure) Encode() ([]byte, error) {
	return json.Marshal(f)
}

// Validate is the serializability check: an encoding attempt, nothing more.
func Validate(f *Figure) error {
	if f == nil {
		return fmt.Errorf("no figure")
	}
	if _, err := f.Encode(); err != nil {
		return fmt.Errorf("figure not serializable: %w", err)
	}
	return nil
}

// Decompose flattens the figure into a plain structural form. Non-finite
// numbers are dropped point-wise so the reconstructed figure is encodable.
func (f *Figure) Decompose() map[string]any {
	m := map[string]any{
		"kind":       string(f.Kind),
		"title":      f.Title,
		"xlabel":     f.XLabel,
		"ylabel":     f.YLabel,
		"template":   f.Template,
		"height":     f.Height,
		"showLegend": f.ShowLegend,
	}

	series := make([]map[string]any, 0, len(f.Series))
	for _, s := range f.Series {
		sm := map[string]any{"name": s.Name, "bins": s.Bins}

		if len(s.Y) > 0 {
			var xs []any
			var ys []float64
			for i, y := range s.Y {
				if !isFinite(y) {
					continue
				}
				ys = append(ys, y)
				if i < len(s.X) {
					xs = append(xs, sanitizeX(s.X[i]))
				}
			}
			sm["x"], sm["y"] = xs, ys
		} else if len(s.X) > 0 {
			xs := make([]any, len(s.X))
			for i, x := range s.X {
				xs[i] = sanitizeX(x)
			}
			sm["x"] = xs
		}

		if len(s.Values) > 0 {
			var labels []string
			var values []float64
			for i, v := range s.Values {
				if !isFinite(v) {
					continue
				}
				values = append(values, v)
				if i < len(s.Labels) {
					labels = append(labels, s.Labels[i])
				}
			}
			sm["labels"], sm["values"] = labels, values
		}

		series = append(series, sm)
	}
	m["series"] = series

	anns := make([]map[string]any, 0, len(f.Annotations))
	for _, a := range f.Annotations {
		anns = append(anns, map[string]any{"text": a.Text, "x": a.X, "y": a.Y})
	}
	m["annotations"] = anns

	return m
}

// FromMap reconstructs a fresh figure from a plain structural form produced
// by Decompose.
func FromMap(m map[string]any) *Figure {
	f := &Figure{
		Kind:       Kind(asString(m["kind"])),
		Title:      asString(m["title"]),
		XLabel:     asString(m["xlabel"]),
		YLabel:     asString(m["ylabel"]),
		Template:   asString(m["template"]),
		ShowLegend: m["showLegend"] == true,
	}
	if h, ok := m["height"].(int); ok {
		f.Height = h
	}

	if series, ok := m["series"].([]map[string]any); ok {
		for _, sm := range series {
			s := Series{Name: asString(sm["name"])}
			if b, ok := sm["bins"].(int); ok {
				s.Bins = b
			}
			if xs, ok := sm["x"].([]any); ok {
				s.X = xs
			}
			if ys, ok := sm["y"].([]float64); ok {
				s.Y = ys
			}
			if labels, ok := sm["labels"].([]string); ok {
				s.Labels = labels
			}
			if values, ok := sm["values"].([]float64); ok {
				s.Values = values
			}
			f.Series = append(f.Series, s)
		}
	}

	if anns, ok := m["annotations"].([]map[string]any); ok {
		for _, am := range anns {
			a := Annotation{Text: asString(am["text"])}
			if x, ok := am["x"].(float64); ok {
				a.X = x
			}
			if y, ok := am["y"].(float64); ok {
				a.Y = y
			}
			f.Annotations = append(f.Annotations, a)
		}
	}

	return f
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func sanitizeX(x any) any {
	switch v := x.(type) {
	case float64:
		if !isFinite(v) {
			return nil
		}
		return v
	case time.Time:
		return v.Format(time.RFC3339)
	default:
		return x
	}
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}
