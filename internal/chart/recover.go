package chart

import (
	"fmt"
	"log/slog"

	"github.com/rabbitlabs/rabbit/internal/metrics"
)

// Strategy is one ordered repair attempt. Apply returns a figure that has
// already passed the serializability check, or an error to move on to the
// next strategy.
type Strategy struct {
	Name  string
	Apply func() (*Figure, error)
}

// Recover runs the repair chain for a figure that failed the
// serializability check. Strategies run in order and the first success
// wins:
//
//  1. normalize: decompose to a plain structural form and rebuild;
//  2. reexecute: run the same code unit in a fresh namespace and force the
//     known-good presentation template (skipped when reexecute is nil);
//  3. fallback: a placeholder figure carrying the intended headline.
//
// The fallback cannot fail, so Recover always returns a renderable figure.
func Recover(log *slog.Logger, fig *Figure, headline string, reexecute func() (*Figure, error)) *Figure {
	strategies := []Strategy{
		{
			Name: "normalize",
			Apply: func() (*Figure, error) {
				if fig == nil {
					return nil, fmt.Errorf("no figure to normalize")
				}
				fresh := FromMap(fig.Decompose())
				return fresh, Validate(fresh)
			},
		},
		{
			Name: "reexecute",
			Apply: func() (*Figure, error) {
				if reexecute == nil {
					return nil, fmt.Errorf("no re-execution available")
				}
				fresh, err := reexecute()
				if err != nil {
					return nil, err
				}
				Harden(fresh)
				return fresh, Validate(fresh)
			},
		},
		{
			Name: "fallback",
			Apply: func() (*Figure, error) {
				return Placeholder(headline), nil
			},
		},
	}

	for _, s := range strategies {
		repaired, err := s.Apply()
		if err != nil {
			if log != nil {
				log.Info("chart: recovery strategy failed", "strategy", s.Name, "error", err)
			}
			continue
		}
		metrics.RecoveriesTotal.WithLabelValues(s.Name).Inc()
		if log != nil {
			log.Info("chart: figure recovered", "strategy", s.Name)
		}
		return repaired
	}

	// Unreachable: the fallback strategy never errors.
	return Placeholder(headline)
}

// Harden forces the known-good presentation template onto a figure.
func Harden(f *Figure) {
	if f == nil {
		return
	}
	f.Template = DefaultTemplate
	if f.Height == 0 {
		f.Height = 360
	}
}

// Placeholder builds the guaranteed-renderable fallback artifact: an
// annotated blank chart stating that rendering failed, carrying the chart's
// intended headline.
func Placeholder(headline string) *Figure {
	text := "Chart rendering failed"
	if headline != "" {
		text += "\n" + headline
	}
	return &Figure{
		Kind:     KindPlaceholder,
		Template: DefaultTemplate,
		Height:   300,
		Annotations: []Annotation{
			{Text: text, X: 0.5, Y: 0.5},
		},
	}
}
