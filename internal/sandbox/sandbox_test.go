package sandbox

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rabbitlabs/rabbit/internal/chart"
	"github.com/rabbitlabs/rabbit/internal/dataset"
)

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

func TestExecuteBindsResult(t *testing.T) {
	globals, err := Execute("result = 2 + 3", Namespace(testDataset(t)))
	require.NoError(t, err)

	v, ok := globals["result"]
	require.True(t, ok)
	got, err := ToGo(v)
	require.NoError(t, err)
	assert.Equal(t, int64(5), got)
}

func TestExecuteSyntaxErrorIsFault(t *testing.T) {
	_, err := Execute("result = = 1", Namespace(testDataset(t)))
	require.Error(t, err)
	var fault *Fault
	require.ErrorAs(t, err, &fault)
}

func TestExecuteUndefinedNameIsFault(t *testing.T) {
	// The namespace pre-seeds only df and the chart constructors; anything
	// else the generated code references by name is an error.
	_, err := Execute("fig = px.bar(df)", Namespace(testDataset(t)))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "px")

	_, err = Execute(`f = open("/etc/passwd")`, Namespace(testDataset(t)))
	require.Error(t, err)
}

func TestExecuteRuntimeFaultIsFault(t *testing.T) {
	_, err := Execute(`result = df.column("Missing")`, Namespace(testDataset(t)))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Missing")
}

func TestDatasetGroupSum(t *testing.T) {
	globals, err := Execute(`result = df.group_sum(by="Category", value="Sales")`, Namespace(testDataset(t)))
	require.NoError(t, err)

	got, err := ToGo(globals["result"])
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"Books": 150.0, "Games": 250.0}, got)
}

func TestDatasetGroupMean(t *testing.T) {
	globals, err := Execute(`result = df.group_mean(by="Category", value="Sales")["Books"]`, Namespace(testDataset(t)))
	require.NoError(t, err)

	got, err := ToGo(globals["result"])
	require.NoError(t, err)
	assert.Equal(t, 75.0, got)
}

func TestDatasetFilterAndColumns(t *testing.T) {
	code := `
books = df.filter(column="Category", value="Books")
result = {"rows": books.row_count, "columns": df.columns}
`
	globals, err := Execute(code, Namespace(testDataset(t)))
	require.NoError(t, err)

	got, err := ToGo(globals["result"])
	require.NoError(t, err)
	m := got.(map[string]any)
	assert.Equal(t, int64(2), m["rows"])
	assert.Equal(t, []any{"Category", "Sales", "Date"}, m["columns"])
}

func TestDatasetRows(t *testing.T) {
	globals, err := Execute(`result = df.rows()[0]["Category"]`, Namespace(testDataset(t)))
	require.NoError(t, err)

	got, err := ToGo(globals["result"])
	require.NoError(t, err)
	assert.Equal(t, "Books", got)
}

func TestChartBuiltinBindsFigure(t *testing.T) {
	code := `
sums = df.group_sum(by="Category", value="Sales")
fig = bar(x=sums.keys(), y=sums.values(), title="Sales by Category", xlabel="Category", ylabel="Sales")
`
	globals, err := Execute(code, Namespace(testDataset(t)))
	require.NoError(t, err)

	fig, ok := FigureFrom(globals["fig"])
	require.True(t, ok)
	assert.Equal(t, chart.KindBar, fig.Kind)
	assert.Equal(t, "Sales by Category", fig.Title)
	require.Len(t, fig.Series, 1)
	assert.Equal(t, []float64{150, 250}, fig.Series[0].Y)
	require.NoError(t, chart.Validate(fig))
}

func TestPieAndHistogramBuiltins(t *testing.T) {
	code := `
p = pie(labels=["a", "b"], values=[1, 3], title="Share")
h = histogram(values=df.column("Sales"), bins=5, title="Distribution")
`
	globals, err := Execute(code, Namespace(testDataset(t)))
	require.NoError(t, err)

	p, ok := FigureFrom(globals["p"])
	require.True(t, ok)
	assert.Equal(t, chart.KindPie, p.Kind)
	assert.Equal(t, []string{"a", "b"}, p.Series[0].Labels)

	h, ok := FigureFrom(globals["h"])
	require.True(t, ok)
	assert.Equal(t, chart.KindHistogram, h.Kind)
	assert.Equal(t, 5, h.Series[0].Bins)
}

func TestChartBuiltinLengthMismatch(t *testing.T) {
	_, err := Execute(`fig = line(x=[1, 2, 3], y=[1])`, Namespace(testDataset(t)))
	require.Error(t, err)
}

func TestNamespaceIsIsolatedBetweenRuns(t *testing.T) {
	ns := Namespace(testDataset(t))
	_, err := Execute("leak = 1", ns)
	require.NoError(t, err)

	// A second run against the same predeclared namespace does not see the
	// first run's globals.
	_, err = Execute("result = leak + 1", ns)
	require.Error(t, err)
}
