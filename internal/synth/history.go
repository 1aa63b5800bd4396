package synth

import (
	"fmt"
	"strings"

	"github.com/rabbitlabs/rabbit/internal/chart"
)

// HistoryWindow is the number of most-recent turns projected into prompt
// context. Older turns are truncated, not summarized.
const HistoryWindow = 5

// Turn is one conversation turn. History is append-only within a session;
// only a bounded suffix ever reaches a prompt.
type Turn struct {
	Role    string        `json:"role"` // "user" or "assistant"
	Content string        `json:"content"`
	Code    string        `json:"code,omitempty"`
	Figure  *chart.Figure `json:"figure,omitempty"`
}

// FormatHistory renders the most recent HistoryWindow turns for prompt
// context. Long assistant responses are truncated to keep prompts small.
func FormatHistory(history []Turn) string {
	if len(history) > HistoryWindow {
		history = history[len(history)-HistoryWindow:]
	}
	if len(history) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("Previous conversation:\n")
	for _, turn := range history {
		if turn.Role == "user" {
			sb.WriteString(fmt.Sprintf("User: %s\n", turn.Content))
		} else {
			content := turn.Content
			if len(content) > 500 {
				content = content[:500] + "..."
			}
			sb.WriteString(fmt.Sprintf("Assistant: %s\n", content))
		}
	}
	return sb.String()
}
