// Package pipeline orchestrates a chat turn and dashboard synthesis over an
// attached dataset: classify the question, ask the oracle for a code unit,
// execute it in the sandbox, validate or recover the artifact, and synthesize
// the user-facing answer.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/rabbitlabs/rabbit/internal/chart"
	"github.com/rabbitlabs/rabbit/internal/dataset"
	"github.com/rabbitlabs/rabbit/internal/metrics"
	"github.com/rabbitlabs/rabbit/internal/oracle"
	"github.com/rabbitlabs/rabbit/internal/sandbox"
	"github.com/rabbitlabs/rabbit/internal/synth"
)

// resultVar is the contract variable the text path expects generated code to
// bind.
const resultVar = "result"

// defaultSampleRows bounds the sample projected into prompts.
const defaultSampleRows = 5

// Config is the pipeline configuration.
type Config struct {
	Logger     *slog.Logger
	Oracle     *oracle.Oracle
	Prompts    *synth.Prompts
	SampleRows int
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.Oracle == nil {
		return errors.New("oracle is required")
	}
	if c.Prompts == nil {
		return errors.New("prompts are required")
	}
	return nil
}

// Pipeline runs dashboard synthesis and chat turns. It is stateless across
// calls; conversation state lives in a Session.
type Pipeline struct {
	log        *slog.Logger
	oracle     *oracle.Oracle
	prompts    *synth.Prompts
	sampleRows int
}

// New creates a pipeline from the given configuration.
func New(cfg Config) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	sampleRows := cfg.SampleRows
	if sampleRows <= 0 {
		sampleRows = defaultSampleRows
	}
	return &Pipeline{
		log:        cfg.Logger,
		oracle:     cfg.Oracle,
		prompts:    cfg.Prompts,
		sampleRows: sampleRows,
	}, nil
}

// ChartCandidate is one dashboard slot that produced a renderable figure.
type ChartCandidate struct {
	Story       string        `json:"story"`
	Description string        `json:"description"`
	Code        string        `json:"code"`
	Figure      *chart.Figure `json:"figure"`
}

// Dashboard synthesizes up to four chart candidates for the dataset in a
// single oracle call. Slots whose code never binds a figure are dropped;
// slots whose figure fails the serializability check go through the recovery
// chain, so every returned candidate is renderable. A malformed response
// yields an empty list.
func (p *Pipeline) Dashboard(ctx context.Context, ds *dataset.Dataset) []ChartCandidate {
	profile := ds.Profile(p.sampleRows)
	response := p.oracle.Complete(ctx, p.prompts.Dashboard, synth.BuildDashboardPrompt(profile))

	specs := synth.ParseDashboardResponse(response)
	if len(specs) == 0 {
		if p.log != nil {
			p.log.Warn("pipeline: dashboard synthesis returned no usable charts")
		}
		return nil
	}
	if len(specs) > synth.DashboardSize {
		specs = specs[:synth.DashboardSize]
	}

	candidates := make([]ChartCandidate, 0, len(specs))
	for _, spec := range specs {
		code := synth.StripFences(spec.Code)
		// The contract variable follows the spec's response position, not
		// its position among the surviving specs.
		vars := []string{synth.FigureVar(spec.Index), synth.FigureFallbackVar}

		fig, err := p.executeFigure(ds, code, vars)
		if err != nil {
			if p.log != nil {
				p.log.Info("pipeline: dashboard slot skipped", "slot", spec.Index, "error", err)
			}
			continue
		}

		chart.Harden(fig)
		if chart.Validate(fig) != nil {
			fig = chart.Recover(p.log, fig, spec.Story, func() (*chart.Figure, error) {
				return p.executeFigure(ds, code, vars)
			})
		}

		candidates = append(candidates, ChartCandidate{
			Story:       spec.Story,
			Description: candidateDescription(spec.Description, fig),
			Code:        code,
			Figure:      fig,
		})
	}
	return candidates
}

// candidateDescription marks candidates whose figure degraded to the
// placeholder, so the caller can tell a fallback from a real chart.
func candidateDescription(description string, fig *chart.Figure) string {
	if fig != nil && fig.Kind == chart.KindPlaceholder {
		return "Visualization could not be rendered. " + description
	}
	return description
}

// Result is the outcome of one chat turn. A turn that asked for a chart but
// could not produce one degrades to a text result with a nil figure.
type Result struct {
	Type   synth.Intent  `json:"type"`
	Answer string        `json:"answer"`
	Code   string        `json:"code,omitempty"`
	Figure *chart.Figure `json:"figure,omitempty"`
}

// Ask runs one chat turn against the dataset: route the question, generate
// and execute a code unit, and synthesize the answer. It never returns an
// error; every failure mode degrades to a text result explaining what
// happened.
func (p *Pipeline) Ask(ctx context.Context, ds *dataset.Dataset, question string, history []synth.Turn) Result {
	intentResponse := p.oracle.Complete(ctx, p.prompts.Intent, synth.BuildIntentPrompt(question))
	intent := synth.ParseIntent(intentResponse)

	profile := ds.Profile(p.sampleRows)

	var res Result
	if intent == synth.IntentVisualization {
		res = p.askVisualization(ctx, ds, profile, question, history)
	} else {
		res = p.askText(ctx, ds, profile, question, history)
	}

	metrics.ChatTurnsTotal.WithLabelValues(string(res.Type)).Inc()
	return res
}

func (p *Pipeline) askText(ctx context.Context, ds *dataset.Dataset, profile dataset.Profile, question string, history []synth.Turn) Result {
	response := p.oracle.Complete(ctx, p.prompts.Analyze, synth.BuildAnalyzePrompt(profile, question, history))
	if oracle.Failed(response) {
		return Result{
			Type:   synth.IntentText,
			Answer: "I ran into a problem analyzing that question. " + response,
		}
	}

	code := synth.StripFences(response)
	globals, err := sandbox.Execute(code, sandbox.Namespace(ds))
	if err != nil {
		if p.log != nil {
			p.log.Info("pipeline: analysis code failed", "error", err)
		}
		return Result{
			Type:   synth.IntentText,
			Code:   code,
			Answer: fmt.Sprintf("I hit an error while running the analysis: %v", err),
		}
	}

	val, ok := globals[resultVar]
	if !ok {
		return Result{
			Type:   synth.IntentText,
			Code:   code,
			Answer: "The analysis ran but did not produce a result. Try rephrasing the question.",
		}
	}

	var resultText string
	if resultDS, ok := sandbox.DatasetFrom(val); ok {
		resultText = describeDataset(resultDS, p.sampleRows)
	} else {
		goVal, convErr := sandbox.ToGo(val)
		if convErr != nil {
			return Result{
				Type:   synth.IntentText,
				Code:   code,
				Answer: fmt.Sprintf("The analysis produced a value I could not read: %v", convErr),
			}
		}
		resultText = formatResult(goVal)
	}

	answer := p.oracle.Complete(ctx, p.prompts.Narrate, synth.BuildNarratePrompt(question, resultText, history))
	if oracle.Failed(answer) {
		// The raw value is still a usable answer.
		answer = resultText
	}

	return Result{Type: synth.IntentText, Answer: answer, Code: code}
}

func (p *Pipeline) askVisualization(ctx context.Context, ds *dataset.Dataset, profile dataset.Profile, question string, history []synth.Turn) Result {
	response := p.oracle.Complete(ctx, p.prompts.Visualize, synth.BuildVisualizePrompt(profile, question, history))
	if oracle.Failed(response) {
		return Result{
			Type:   synth.IntentText,
			Answer: "I ran into a problem generating that chart. " + response,
		}
	}

	code := synth.StripFences(response)
	vars := []string{synth.FigureFallbackVar}

	fig, err := p.executeFigure(ds, code, vars)
	if err != nil {
		if p.log != nil {
			p.log.Info("pipeline: chart code failed", "error", err)
		}
		var fault *sandbox.Fault
		if errors.As(err, &fault) {
			return Result{
				Type:   synth.IntentText,
				Code:   code,
				Answer: fmt.Sprintf("I hit an error while building that chart: %s", fault.Detail),
			}
		}
		return Result{
			Type:   synth.IntentText,
			Code:   code,
			Answer: "I could not generate a chart for that question. Try rephrasing it.",
		}
	}

	chart.Harden(fig)
	if chart.Validate(fig) != nil {
		headline := fig.Title
		if headline == "" {
			headline = question
		}
		fig = chart.Recover(p.log, fig, headline, func() (*chart.Figure, error) {
			return p.executeFigure(ds, code, vars)
		})
	}

	answer := p.oracle.Complete(ctx, p.prompts.Describe, synth.BuildDescribePrompt(question, fig.Title))
	if oracle.Failed(answer) {
		answer = "Here is the chart for your question."
	}

	return Result{Type: synth.IntentVisualization, Answer: answer, Code: code, Figure: fig}
}

// executeFigure runs a code unit in a fresh namespace and returns the first
// figure bound under one of the given variable names.
func (p *Pipeline) executeFigure(ds *dataset.Dataset, code string, vars []string) (*chart.Figure, error) {
	globals, err := sandbox.Execute(code, sandbox.Namespace(ds))
	if err != nil {
		return nil, err
	}
	for _, name := range vars {
		v, ok := globals[name]
		if !ok {
			continue
		}
		if fig, ok := sandbox.FigureFrom(v); ok {
			return fig, nil
		}
	}
	return nil, fmt.Errorf("code bound no figure under %s", strings.Join(vars, " or "))
}

// describeDataset renders a dataset result as a sample table with the row
// count, so the narration sees the data and not an opaque handle.
func describeDataset(ds *dataset.Dataset, sampleRows int) string {
	profile := ds.Profile(sampleRows)
	return fmt.Sprintf("%s\n(%d rows total)", profile.Sample, profile.RowCount)
}

// formatResult renders an executed value for narration and for the raw-value
// fallback answer.
func formatResult(v any) string {
	switch val := v.(type) {
	case nil:
		return "no result"
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprintf("%v", val)
		}
		return string(b)
	}
}
