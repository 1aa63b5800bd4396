package pipeline

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rabbitlabs/rabbit/internal/chart"
	"github.com/rabbitlabs/rabbit/internal/dataset"
	"github.com/rabbitlabs/rabbit/internal/oracle"
	"github.com/rabbitlabs/rabbit/internal/synth"
)

// scriptedClient returns canned responses in order and records the prompts
// it was asked.
type scriptedClient struct {
	mu        sync.Mutex
	responses []string
	prompts   []string
	err       error
}

func (c *scriptedClient) Complete(_ context.Context, _, userPrompt string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prompts = append(c.prompts, userPrompt)
	if c.err != nil {
		return "", c.err
	}
	if len(c.responses) == 0 {
		return "", fmt.Errorf("script exhausted")
	}
	response := c.responses[0]
	c.responses = c.responses[1:]
	return response, nil
}

func (c *scriptedClient) recorded() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.prompts...)
}

func testPipeline(t *testing.T, client *scriptedClient) *Pipeline {
	t.Helper()
	prompts, err := synth.LoadPrompts()
	require.NoError(t, err)
	p, err := New(Config{
		Oracle:  oracle.New(client, nil),
		Prompts: prompts,
	})
	require.NoError(t, err)
	return p
}

func testDataset(t *testing.T) *dataset.Dataset {
	t.Helper()
	ds, err := dataset.New([]dataset.Column{
		{Name: "Category", Type: dataset.TypeText, Values: []any{"Books", "Games", "Books"}},
		{Name: "Sales", Type: dataset.TypeNumeric, Values: []any{100.0, 250.0, 50.0}},
		{Name: "Date", Type: dataset.TypeTemporal, Values: []any{
			time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
			time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC),
		}},
	})
	require.NoError(t, err)
	return ds
}

func TestNewRequiresOracle(t *testing.T) {
	prompts, err := synth.LoadPrompts()
	require.NoError(t, err)

	_, err = New(Config{Prompts: prompts})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "oracle")

	_, err = New(Config{Oracle: oracle.New(&scriptedClient{}, nil)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "prompts")
}

func dashboardResponse(codes [4]string) string {
	charts := ""
	for i, code := range codes {
		if i > 0 {
			charts += ","
		}
		charts += fmt.Sprintf(`{"story": "Story %d", "description": "Desc %d", "code": %q}`, i+1, i+1, code)
	}
	return `{"charts": [` + charts + `]}`
}

func TestDashboardProducesFourCharts(t *testing.T) {
	client := &scriptedClient{responses: []string{dashboardResponse([4]string{
		`fig1 = bar(x=df.column("Category"), y=df.column("Sales"), title="Sales by Category")`,
		`fig2 = line(x=df.column("Date"), y=df.column("Sales"), title="Sales over Time")`,
		`fig3 = pie(labels=["Books", "Games"], values=[150, 250], title="Share")`,
		`fig4 = histogram(values=df.column("Sales"), title="Distribution")`,
	})}}

	candidates := testPipeline(t, client).Dashboard(context.Background(), testDataset(t))
	require.Len(t, candidates, 4)

	for _, c := range candidates {
		require.NotNil(t, c.Figure)
		assert.NoError(t, chart.Validate(c.Figure))
		assert.Equal(t, chart.DefaultTemplate, c.Figure.Template)
		assert.NotEmpty(t, c.Story)
		assert.NotEmpty(t, c.Code)
	}
	assert.Equal(t, chart.KindBar, candidates[0].Figure.Kind)
	assert.Equal(t, chart.KindLine, candidates[1].Figure.Kind)
	assert.Equal(t, "Sales by Category", candidates[0].Figure.Title)
}

func TestDashboardMalformedResponse(t *testing.T) {
	client := &scriptedClient{responses: []string{"I cannot produce a dashboard for this."}}
	candidates := testPipeline(t, client).Dashboard(context.Background(), testDataset(t))
	assert.Empty(t, candidates)
}

func TestDashboardSkipsBrokenSlots(t *testing.T) {
	client := &scriptedClient{responses: []string{dashboardResponse([4]string{
		`fig1 = bar(x=["a"], y=[1])`,
		`fig2 = px.bar(df, x="Category")`,
		`result = 42`,
		`fig4 = pie(labels=["a"], values=[1])`,
	})}}

	candidates := testPipeline(t, client).Dashboard(context.Background(), testDataset(t))
	require.Len(t, candidates, 2)
	assert.Equal(t, "Story 1", candidates[0].Story)
	assert.Equal(t, "Story 4", candidates[1].Story)
}

func TestDashboardAcceptsFallbackVariable(t *testing.T) {
	client := &scriptedClient{responses: []string{dashboardResponse([4]string{
		`fig = bar(x=["a"], y=[1], title="Named fig")`,
		`fig2 = bar(x=["b"], y=[2])`,
		`fig3 = bar(x=["c"], y=[3])`,
		`fig4 = bar(x=["d"], y=[4])`,
	})}}

	candidates := testPipeline(t, client).Dashboard(context.Background(), testDataset(t))
	require.Len(t, candidates, 4)
	assert.Equal(t, "Named fig", candidates[0].Figure.Title)
}

func TestDashboardKeepsSlotAlignmentAfterEmptyCode(t *testing.T) {
	// The first slot is unusable; the surviving slots still bind fig2..fig4
	// and must be looked up under those names, not re-numbered from fig1.
	client := &scriptedClient{responses: []string{dashboardResponse([4]string{
		``,
		`fig2 = bar(x=["a"], y=[1], title="Second")`,
		`fig3 = line(x=[1, 2], y=[3, 4], title="Third")`,
		`fig4 = pie(labels=["x"], values=[1], title="Fourth")`,
	})}}

	candidates := testPipeline(t, client).Dashboard(context.Background(), testDataset(t))
	require.Len(t, candidates, 3)
	assert.Equal(t, "Second", candidates[0].Figure.Title)
	assert.Equal(t, "Third", candidates[1].Figure.Title)
	assert.Equal(t, "Fourth", candidates[2].Figure.Title)
}

func TestCandidateDescriptionMarksPlaceholder(t *testing.T) {
	fallback := chart.Placeholder("Quarterly Sales")
	got := candidateDescription("Totals per quarter.", fallback)
	assert.Equal(t, "Visualization could not be rendered. Totals per quarter.", got)

	real := &chart.Figure{Kind: chart.KindBar}
	assert.Equal(t, "Totals per quarter.", candidateDescription("Totals per quarter.", real))
}

func TestDashboardRecoversNonSerializableFigure(t *testing.T) {
	// 1e308 * 10 overflows to +Inf, which breaks JSON encoding.
	client := &scriptedClient{responses: []string{dashboardResponse([4]string{
		`fig1 = bar(x=["a", "b"], y=[1e308 * 10, 2], title="Overflow")`,
		`fig2 = bar(x=["b"], y=[2])`,
		`fig3 = bar(x=["c"], y=[3])`,
		`fig4 = bar(x=["d"], y=[4])`,
	})}}

	candidates := testPipeline(t, client).Dashboard(context.Background(), testDataset(t))
	require.Len(t, candidates, 4)

	recovered := candidates[0].Figure
	require.NotNil(t, recovered)
	assert.NoError(t, chart.Validate(recovered))
	require.Len(t, recovered.Series, 1)
	assert.Equal(t, []float64{2}, recovered.Series[0].Y)
}

func TestAskTextPath(t *testing.T) {
	client := &scriptedClient{responses: []string{
		"TEXT",
		"```python\nresult = df.group_sum(by=\"Category\", value=\"Sales\")\n```",
		"Books sold 150 and Games sold 250 in total.",
	}}

	res := testPipeline(t, client).Ask(context.Background(), testDataset(t), "total sales by category", nil)

	assert.Equal(t, synth.IntentText, res.Type)
	assert.Equal(t, "Books sold 150 and Games sold 250 in total.", res.Answer)
	assert.Equal(t, `result = df.group_sum(by="Category", value="Sales")`, res.Code)
	assert.Nil(t, res.Figure)

	// The narration prompt carries the executed value.
	prompts := client.recorded()
	require.Len(t, prompts, 3)
	assert.Contains(t, prompts[2], "Books")
	assert.Contains(t, prompts[2], "250")
}

func TestAskTextDatasetResult(t *testing.T) {
	client := &scriptedClient{responses: []string{
		"TEXT",
		`result = df.filter(column="Category", value="Books")`,
		"There are two Books rows, selling 100 and 50.",
	}}

	res := testPipeline(t, client).Ask(context.Background(), testDataset(t), "show the Books rows", nil)

	assert.Equal(t, synth.IntentText, res.Type)
	assert.Equal(t, "There are two Books rows, selling 100 and 50.", res.Answer)

	// The narration prompt sees the filtered rows, not an opaque handle.
	prompts := client.recorded()
	require.Len(t, prompts, 3)
	assert.Contains(t, prompts[2], "Books")
	assert.Contains(t, prompts[2], "100")
	assert.Contains(t, prompts[2], "(2 rows total)")
	assert.NotContains(t, prompts[2], "<dataset")
}

func TestAskTextExecutionFault(t *testing.T) {
	client := &scriptedClient{responses: []string{
		"TEXT",
		`result = open("/etc/passwd")`,
	}}

	res := testPipeline(t, client).Ask(context.Background(), testDataset(t), "read a file", nil)

	assert.Equal(t, synth.IntentText, res.Type)
	assert.Nil(t, res.Figure)
	assert.Contains(t, res.Answer, "error")
	assert.Contains(t, res.Answer, "open")
}

func TestAskTextNoResultBound(t *testing.T) {
	client := &scriptedClient{responses: []string{
		"TEXT",
		`answer = 42`,
	}}

	res := testPipeline(t, client).Ask(context.Background(), testDataset(t), "what is the answer", nil)

	assert.Equal(t, synth.IntentText, res.Type)
	assert.Contains(t, res.Answer, "did not produce a result")
}

func TestAskTextNarrationFailureFallsBackToRawValue(t *testing.T) {
	client := &scriptedClient{responses: []string{
		"TEXT",
		`result = 350`,
		"Error: rate limited",
	}}

	res := testPipeline(t, client).Ask(context.Background(), testDataset(t), "total sales", nil)

	assert.Equal(t, synth.IntentText, res.Type)
	assert.Equal(t, "350", res.Answer)
}

func TestAskVisualizationPath(t *testing.T) {
	client := &scriptedClient{responses: []string{
		"VISUALIZATION",
		"```\nfig = line(x=df.column(\"Date\"), y=df.column(\"Sales\"), title=\"Sales over Time\")\n```",
		"A line chart of sales across the three recorded days.",
	}}

	res := testPipeline(t, client).Ask(context.Background(), testDataset(t), "chart of sales over time", nil)

	assert.Equal(t, synth.IntentVisualization, res.Type)
	require.NotNil(t, res.Figure)
	assert.Equal(t, chart.KindLine, res.Figure.Kind)
	assert.Equal(t, chart.DefaultTemplate, res.Figure.Template)
	assert.NoError(t, chart.Validate(res.Figure))
	assert.Equal(t, "A line chart of sales across the three recorded days.", res.Answer)
}

func TestAskVisualizationNoFigureBound(t *testing.T) {
	client := &scriptedClient{responses: []string{
		"VISUALIZATION",
		`result = 42`,
	}}

	res := testPipeline(t, client).Ask(context.Background(), testDataset(t), "chart the sales", nil)

	assert.Equal(t, synth.IntentText, res.Type)
	assert.Nil(t, res.Figure)
	assert.Contains(t, res.Answer, "could not generate a chart")
}

func TestAskVisualizationExecutionFault(t *testing.T) {
	client := &scriptedClient{responses: []string{
		"VISUALIZATION",
		`fig = px.line(df, x="Date", y="Sales")`,
	}}

	res := testPipeline(t, client).Ask(context.Background(), testDataset(t), "chart the sales", nil)

	assert.Equal(t, synth.IntentText, res.Type)
	assert.Nil(t, res.Figure)
	assert.Contains(t, res.Answer, "px")
}

func TestAskOracleTransportFailure(t *testing.T) {
	client := &scriptedClient{err: fmt.Errorf("connection refused")}

	res := testPipeline(t, client).Ask(context.Background(), testDataset(t), "total sales", nil)

	// Intent classification degrades to text, then code generation fails.
	assert.Equal(t, synth.IntentText, res.Type)
	assert.Nil(t, res.Figure)
	assert.Contains(t, res.Answer, "connection refused")
}

func TestChatRecordsHistory(t *testing.T) {
	client := &scriptedClient{responses: []string{
		"TEXT", `result = 350`, "Total sales are 350.",
		"TEXT", `result = 3`, "There are 3 rows.",
	}}
	p := testPipeline(t, client)
	session := NewSession()
	session.SetDataset(testDataset(t))

	first, err := p.Chat(context.Background(), session, "total sales?")
	require.NoError(t, err)
	assert.Equal(t, "Total sales are 350.", first.Answer)

	second, err := p.Chat(context.Background(), session, "how many rows?")
	require.NoError(t, err)
	assert.Equal(t, "There are 3 rows.", second.Answer)

	history := session.History()
	require.Len(t, history, 4)
	assert.Equal(t, "user", history[0].Role)
	assert.Equal(t, "total sales?", history[0].Content)
	assert.Equal(t, "assistant", history[1].Role)
	assert.Equal(t, `result = 350`, history[1].Code)

	// The second turn's code prompt carries the first exchange.
	prompts := client.recorded()
	require.Len(t, prompts, 6)
	assert.Contains(t, prompts[4], "User: total sales?")
	assert.Contains(t, prompts[4], "Assistant: Total sales are 350.")
}

func TestChatWithoutDataset(t *testing.T) {
	client := &scriptedClient{}
	p := testPipeline(t, client)

	_, err := p.Chat(context.Background(), NewSession(), "hello")
	assert.ErrorIs(t, err, ErrNoDataset)
}
