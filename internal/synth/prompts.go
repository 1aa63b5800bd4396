// Package synth implements the code synthesis protocol: it builds the
// structured prompts that describe dataset shape and task, cleans and parses
// the oracle's responses, and pins down the contract generated code must
// satisfy (bound variable names, output format).
package synth

import (
	"fmt"
	"strings"

	"github.com/rabbitlabs/rabbit/internal/synth/prompts"
)

// Prompts contains the synthesis prompts loaded from embedded files.
type Prompts struct {
	Dashboard string // 4-chart dashboard synthesis (system prompt)
	Intent    string // visualization-vs-text classification
	Analyze   string // text-path code generation (binds `result`)
	Visualize string // visualization-path code generation (binds `fig`)
	Narrate   string // raw value -> natural-language answer
	Describe  string // one-sentence chart description
}

// LoadPrompts loads all prompts from the embedded filesystem.
func LoadPrompts() (*Prompts, error) {
	p := &Prompts{}

	var err error
	if p.Dashboard, err = loadPrompt("DASHBOARD.md"); err != nil {
		return nil, fmt.Errorf("failed to load DASHBOARD: %w", err)
	}
	if p.Intent, err = loadPrompt("INTENT.md"); err != nil {
		return nil, fmt.Errorf("failed to load INTENT: %w", err)
	}
	if p.Analyze, err = loadPrompt("ANALYZE.md"); err != nil {
		return nil, fmt.Errorf("failed to load ANALYZE: %w", err)
	}
	if p.Visualize, err = loadPrompt("VISUALIZE.md"); err != nil {
		return nil, fmt.Errorf("failed to load VISUALIZE: %w", err)
	}
	if p.Narrate, err = loadPrompt("NARRATE.md"); err != nil {
		return nil, fmt.Errorf("failed to load NARRATE: %w", err)
	}
	if p.Describe, err = loadPrompt("DESCRIBE.md"); err != nil {
		return nil, fmt.Errorf("failed to load DESCRIBE: %w", err)
	}

	return p, nil
}

func loadPrompt(path string) (string, error) {
	data, err := prompts.FS.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	return strings.TrimSpace(string(data)), nil
}
