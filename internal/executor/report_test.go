package executor

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vk/stepgrid/internal/graph"
	"github.com/vk/stepgrid/internal/plan"
)

func formatterGraph(t *testing.T) *graph.Store {
	t.Helper()
	p := &plan.Plan{
		Query: "compare two products",
		Steps: []plan.Step{
			{ID: "T004", Agent: "FormatterAgent", Writes: []string{"final_report"}},
		},
		Edges: []plan.Edge{{Source: plan.RootID, Target: "T004"}},
	}
	g, err := graph.New(context.Background(), p, graph.Options{SessionID: "sess-report", Query: p.Query})
	require.NoError(t, err)
	return g
}

func TestReportWriter_SavesDeclaredWriteWithSidecar(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	dir := t.TempDir()
	w := &ReportWriter{Dir: dir}
	g := formatterGraph(t)
	output := map[string]any{"final_report": "<html>report body</html>"}

	// --- Act ---
	saved, err := w.Write(context.Background(), g, "T004", output)

	// --- Assert ---
	require.NoError(t, err)
	require.Equal(t, []string{"report_T004.html", "report_summary_T004.json"}, saved)

	body, err := os.ReadFile(filepath.Join(dir, "sess-report", "report_T004.html"))
	require.NoError(t, err)
	require.Equal(t, "<html>report body</html>", string(body))

	raw, err := os.ReadFile(filepath.Join(dir, "sess-report", "report_summary_T004.json"))
	require.NoError(t, err)
	var meta map[string]any
	require.NoError(t, json.Unmarshal(raw, &meta))
	require.Equal(t, "sess-report", meta["session_id"])
	require.Equal(t, "compare two products", meta["original_query"])
}

func TestReportWriter_FallsBackToConventionalKeys(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	w := &ReportWriter{Dir: dir}
	g := formatterGraph(t)
	output := map[string]any{
		"final_format":          "markdown",
		"formatted_report_T004": "# Report\n",
	}

	saved, err := w.Write(context.Background(), g, "T004", output)

	require.NoError(t, err)
	require.Contains(t, saved, "report_T004.md")
}

func TestReportWriter_NothingToSave(t *testing.T) {
	t.Parallel()

	w := &ReportWriter{Dir: t.TempDir()}
	g := formatterGraph(t)

	saved, err := w.Write(context.Background(), g, "T004", map[string]any{"reasoning": 42.0})

	require.NoError(t, err)
	require.Empty(t, saved)
}
