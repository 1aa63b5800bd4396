package synth

import (
	"fmt"
	"strings"

	"github.com/rabbitlabs/rabbit/internal/dataset"
)

// Intent is the routed shape of a chat turn.
type Intent string

const (
	IntentText          Intent = "text"
	IntentVisualization Intent = "visualization"
)

// BuildIntentPrompt renders the intent-classification user prompt.
func BuildIntentPrompt(question string) string {
	return fmt.Sprintf("User question: %q", question)
}

// ParseIntent resolves a classifier response to an intent. Matching is
// substring-based and case-insensitive; anything that does not positively
// indicate a visualization resolves to the safer text default, so
// classification can never block the pipeline.
func ParseIntent(response string) Intent {
	upper := strings.ToUpper(response)
	if strings.Contains(upper, "VISUALIZATION") || strings.Contains(upper, "VIZ") {
		return IntentVisualization
	}
	return IntentText
}

// BuildAnalyzePrompt renders the text-path code-generation prompt: dataset
// profile, bounded history and the question, under the `result` contract.
func BuildAnalyzePrompt(profile dataset.Profile, question string, history []Turn) string {
	return buildCodePrompt(profile, question, history)
}

// BuildVisualizePrompt renders the visualization-path code-generation
// prompt under the `fig` contract.
func BuildVisualizePrompt(profile dataset.Profile, question string, history []Turn) string {
	return buildCodePrompt(profile, question, history)
}

func buildCodePrompt(profile dataset.Profile, question string, history []Turn) string {
	var sb strings.Builder
	if h := FormatHistory(history); h != "" {
		sb.WriteString(h)
		sb.WriteString("\n")
	}
	sb.WriteString(fmt.Sprintf("Current user question: %q\n\n", question))
	sb.WriteString("Dataset metadata:\n\nColumns and types:\n")
	sb.WriteString(profile.ColumnTypes())
	sb.WriteString(fmt.Sprintf("\n\nRows: %d\n\nSample data:\n%s\n", profile.RowCount, profile.Sample))
	return sb.String()
}

// BuildNarratePrompt renders the answer-synthesis prompt that turns the raw
// executed value into a user-facing sentence.
func BuildNarratePrompt(question, resultText string, history []Turn) string {
	var sb strings.Builder
	if h := FormatHistory(history); h != "" {
		sb.WriteString(h)
		sb.WriteString("\n")
	}
	sb.WriteString(fmt.Sprintf("User question: %q\n\nData analysis result:\n%s\n", question, resultText))
	return sb.String()
}

// BuildDescribePrompt renders the one-sentence chart description prompt.
func BuildDescribePrompt(question, chartTitle string) string {
	if chartTitle != "" {
		return fmt.Sprintf("User asked: %q\nA chart titled %q was created.", question, chartTitle)
	}
	return fmt.Sprintf("User asked: %q\nA chart was created.", question)
}
