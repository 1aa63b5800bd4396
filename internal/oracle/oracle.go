// Package oracle adapts a text-completion service for the synthesis
// pipeline. The Oracle wrapper never lets a transport error escape: failures
// come back as an inline error-marker string so downstream parsing degrades
// instead of crashing the turn.
package oracle

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/rabbitlabs/rabbit/internal/metrics"
)

// errorMarker prefixes the text returned when the underlying client fails.
const errorMarker = "Error:"

// Client is the interface for interacting with an LLM.
type Client interface {
	// Complete sends a prompt and returns the response text.
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Oracle wraps a Client with the pipeline's failure contract: one attempt
// per call, no backoff, and transport faults converted to marker text.
type Oracle struct {
	client Client
	log    *slog.Logger
}

// New creates an Oracle around client. Logger may be nil.
func New(client Client, log *slog.Logger) *Oracle {
	return &Oracle{client: client, log: log}
}

// Complete runs one completion. On transport failure the returned string
// carries the error marker instead of the completion; it never returns an
// error value.
func (o *Oracle) Complete(ctx context.Context, systemPrompt, userPrompt string) string {
	start := time.Now()
	text, err := o.client.Complete(ctx, systemPrompt, userPrompt)
	metrics.OracleCallDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.OracleCallsTotal.WithLabelValues("error").Inc()
		if o.log != nil {
			o.log.Info("oracle: completion failed", "error", err)
		}
		return fmt.Sprintf("%s %v", errorMarker, err)
	}
	metrics.OracleCallsTotal.WithLabelValues("ok").Inc()
	return text
}

// Failed reports whether a completion result is the inline failure marker.
func Failed(response string) bool {
	return strings.HasPrefix(strings.TrimSpace(response), errorMarker)
}
