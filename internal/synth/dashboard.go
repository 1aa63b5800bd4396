package synth

import (
	"encoding/json"
	"fmt"

	"github.com/rabbitlabs/rabbit/internal/dataset"
)

// DashboardSize is the number of charts one dashboard synthesis requests.
const DashboardSize = 4

// ChartSpec is one chart candidate from dashboard synthesis: a headline, a
// short description and the code unit that builds the figure. Index is the
// spec's position in the response, which fixes the contract variable the
// code binds (fig1..fig4) even when earlier entries were unusable.
type ChartSpec struct {
	Story       string `json:"story"`
	Description string `json:"description"`
	Code        string `json:"code"`
	Index       int    `json:"-"`
}

// FigureVar is the contract variable name for dashboard slot i (fig1..fig4).
func FigureVar(i int) string {
	return fmt.Sprintf("fig%d", i+1)
}

// FigureFallbackVar is checked when generated code violates the per-slot
// naming contract and binds the generic name instead.
const FigureFallbackVar = "fig"

// BuildDashboardPrompt renders the dashboard-synthesis user prompt from a
// freshly derived dataset profile.
func BuildDashboardPrompt(profile dataset.Profile) string {
	return fmt.Sprintf(`Analyze the following dataset metadata:

Columns and types:
%s

Rows: %d

Sample data:
%s

Design the 4-chart dashboard now.`, profile.ColumnTypes(), profile.RowCount, profile.Sample)
}

type dashboardResponse struct {
	Charts []ChartSpec `json:"charts"`
}

// ParseDashboardResponse parses the oracle's dashboard response. The
// contract is a single JSON object with a `charts` array; a fenced response
// is unwrapped first. Malformed JSON or a missing charts key yields an
// empty list; there is no partial recovery at the JSON level, only at the
// per-chart execution level.
func ParseDashboardResponse(response string) []ChartSpec {
	jsonStr := extractJSON(response)
	if jsonStr == "" {
		return nil
	}

	var parsed dashboardResponse
	if err := json.Unmarshal([]byte(jsonStr), &parsed); err != nil {
		return nil
	}

	specs := make([]ChartSpec, 0, len(parsed.Charts))
	for i, spec := range parsed.Charts {
		if spec.Code == "" {
			continue
		}
		spec.Index = i
		specs = append(specs, spec)
	}
	return specs
}
