package app

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vk/stepgrid/internal/agent"
	"github.com/vk/stepgrid/internal/graph"
)

// echoWorker completes every step by producing a value for each declared
// write.
type echoWorker struct{}

func (w *echoWorker) Invoke(ctx context.Context, inv agent.Invocation) (agent.Output, error) {
	out := agent.Output{}
	for _, key := range inv.Writes {
		out[key] = "value for " + key
	}
	return out, nil
}

// failingWorker fails every step.
type failingWorker struct{}

func (w *failingWorker) Invoke(ctx context.Context, inv agent.Invocation) (agent.Output, error) {
	return nil, errors.New("simulated worker outage")
}

const testPlan = `{
	"originalQuery": "summarize the meeting notes",
	"nodes": [
		{"id": "T001", "agentType": "RetrieverAgent", "description": "fetch notes", "reads": [], "writes": ["notes"]},
		{"id": "T002", "agentType": "FormatterAgent", "description": "summarize", "reads": ["notes"], "writes": ["summary"]}
	],
	"edges": [
		{"source": "ROOT", "target": "T001"},
		{"source": "T001", "target": "T002"}
	]
}`

func writeTestPlan(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "plan.json")
	require.NoError(t, os.WriteFile(path, []byte(testPlan), 0o600))
	return path
}

func TestApp_RunsPlanEndToEnd(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	sessionDir := t.TempDir()
	config, err := NewConfig(Config{
		PlanPath:   writeTestPlan(t),
		SessionDir: sessionDir,
	})
	require.NoError(t, err)
	testApp, logBuffer := SetupAppTest(t, config, WithFallbackWorker(&echoWorker{}))

	// --- Act ---
	runErr := testApp.Run(context.Background())

	// --- Assert ---
	require.NoError(t, runErr)
	require.Contains(t, logBuffer.String(), "finished: done")

	// A snapshot landed in the session dir and records the finished run.
	matches, err := filepath.Glob(filepath.Join(sessionDir, "session_*.json"))
	require.NoError(t, err)
	require.Len(t, matches, 1)

	raw, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	var snap graph.Snapshot
	require.NoError(t, json.Unmarshal(raw, &snap))
	require.Equal(t, "done", snap.Status)
	require.Equal(t, "value for summary", snap.Globals["summary"])
}

func TestApp_RunSurfacesStepFailures(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	config, err := NewConfig(Config{
		PlanPath:   writeTestPlan(t),
		SessionDir: t.TempDir(),
	})
	require.NoError(t, err)
	testApp, _ := SetupAppTest(t, config, WithFallbackWorker(&failingWorker{}))

	// --- Act ---
	runErr := testApp.Run(context.Background())

	// --- Assert ---
	require.Error(t, runErr)
	require.Contains(t, runErr.Error(), "1 failed")
	require.Contains(t, runErr.Error(), "1 never ran")
}

func TestApp_ResumesStoredSession(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	// First run completes and persists a snapshot; a resume of the same
	// session must rebuild the graph and finish cleanly with nothing left
	// to do.
	sessionDir := t.TempDir()
	config, err := NewConfig(Config{
		PlanPath:   writeTestPlan(t),
		SessionDir: sessionDir,
	})
	require.NoError(t, err)
	firstApp, _ := SetupAppTest(t, config, WithFallbackWorker(&echoWorker{}))
	require.NoError(t, firstApp.Run(context.Background()))

	matches, err := filepath.Glob(filepath.Join(sessionDir, "session_*.json"))
	require.NoError(t, err)
	require.Len(t, matches, 1)
	sessionID := filepath.Base(matches[0])
	sessionID = sessionID[len("session_") : len(sessionID)-len(".json")]

	resumeConfig, err := NewConfig(Config{
		ResumeSession: sessionID,
		SessionDir:    sessionDir,
	})
	require.NoError(t, err)
	resumeApp, logBuffer := SetupAppTest(t, resumeConfig, WithFallbackWorker(&echoWorker{}))

	// --- Act ---
	runErr := resumeApp.Run(context.Background())

	// --- Assert ---
	require.NoError(t, runErr)
	require.Contains(t, logBuffer.String(), "Session restored.")
}

func TestApp_ListsStoredSessions(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	sessionDir := t.TempDir()
	for _, id := range []string{"sess-alpha", "sess-beta"} {
		path := filepath.Join(sessionDir, "session_"+id+".json")
		require.NoError(t, os.WriteFile(path, []byte("{}"), 0o600))
	}
	config, err := NewConfig(Config{ListSessions: true, SessionDir: sessionDir})
	require.NoError(t, err)
	testApp, logBuffer := SetupAppTest(t, config)

	// --- Act ---
	runErr := testApp.Run(context.Background())

	// --- Assert ---
	require.NoError(t, runErr)
	require.Contains(t, logBuffer.String(), "sess-alpha")
	require.Contains(t, logBuffer.String(), "sess-beta")
}

func TestApp_RejectsAmbiguousPlanDirectory(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	dir := t.TempDir()
	for _, name := range []string{"one.json", "two.json"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(testPlan), 0o600))
	}
	config, err := NewConfig(Config{PlanPath: dir, SessionDir: t.TempDir()})
	require.NoError(t, err)
	testApp, _ := SetupAppTest(t, config, WithFallbackWorker(&echoWorker{}))

	// --- Act ---
	runErr := testApp.Run(context.Background())

	// --- Assert ---
	require.Error(t, runErr)
	require.Contains(t, runErr.Error(), "expected one")
}
