package chart

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func brokenFigure() *Figure {
	return &Figure{
		Kind:   KindBar,
		Title:  "Broken",
		Series: []Series{{X: []any{"a"}, Y: []float64{math.NaN()}}},
	}
}

func TestRecoverNormalizesFirst(t *testing.T) {
	got := Recover(nil, brokenFigure(), "Broken", nil)
	require.NoError(t, Validate(got))
	// Normalization keeps the original kind; the fallback would not.
	assert.Equal(t, KindBar, got.Kind)
	assert.Equal(t, "Broken", got.Title)
}

func TestRecoverFallsBackToReexecution(t *testing.T) {
	// A nil figure cannot be normalized, so the chain moves to re-execution.
	reexec := func() (*Figure, error) {
		return &Figure{Kind: KindLine, Series: []Series{{X: []any{1.0}, Y: []float64{2}}}}, nil
	}
	got := Recover(nil, nil, "Trend", reexec)
	require.NoError(t, Validate(got))
	assert.Equal(t, KindLine, got.Kind)
	// Re-executed figures get the known-good template forced on.
	assert.Equal(t, DefaultTemplate, got.Template)
	assert.NotZero(t, got.Height)
}

func TestRecoverTerminalFallback(t *testing.T) {
	reexec := func() (*Figure, error) { return nil, fmt.Errorf("still broken") }
	got := Recover(nil, nil, "Quarterly Sales", reexec)
	require.NoError(t, Validate(got))
	assert.Equal(t, KindPlaceholder, got.Kind)
	require.Len(t, got.Annotations, 1)
	assert.Contains(t, got.Annotations[0].Text, "Quarterly Sales")
	assert.Contains(t, got.Annotations[0].Text, "rendering failed")
}

func TestPlaceholderAlwaysSerializable(t *testing.T) {
	require.NoError(t, Validate(Placeholder("")))
	require.NoError(t, Validate(Placeholder("headline")))
}
