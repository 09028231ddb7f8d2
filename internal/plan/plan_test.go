package plan

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func diamond() *Plan {
	return &Plan{
		Query: "compare two products",
		Steps: []Step{
			{ID: "T001", Agent: "PlannerAgent", Writes: []string{"plan_doc"}},
			{ID: "T002", Agent: "RetrieverAgent", Reads: []string{"plan_doc"}, Writes: []string{"docs_a"}},
			{ID: "T003", Agent: "RetrieverAgent", Reads: []string{"plan_doc"}, Writes: []string{"docs_b"}},
			{ID: "T004", Agent: "FormatterAgent", Reads: []string{"docs_a", "docs_b"}, Writes: []string{"final_report"}},
		},
		Edges: []Edge{
			{Source: RootID, Target: "T001"},
			{Source: "T001", Target: "T002"},
			{Source: "T001", Target: "T003"},
			{Source: "T002", Target: "T004"},
			{Source: "T003", Target: "T004"},
		},
	}
}

func TestValidate_AcceptsDiamond(t *testing.T) {
	t.Parallel()

	require.NoError(t, diamond().Validate())
}

func TestValidate_RejectsCycle(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	p := diamond()
	p.Edges = append(p.Edges, Edge{Source: "T004", Target: "T002"})

	// --- Act / Assert ---
	require.ErrorIs(t, p.Validate(), ErrCycleDetected)
}

func TestValidate_RejectsSelfLoop(t *testing.T) {
	t.Parallel()

	p := diamond()
	p.Edges = append(p.Edges, Edge{Source: "T002", Target: "T002"})

	require.ErrorIs(t, p.Validate(), ErrSelfLoop)
}

func TestValidate_RejectsUnknownEdgeEndpoint(t *testing.T) {
	t.Parallel()

	p := diamond()
	p.Edges = append(p.Edges, Edge{Source: "T001", Target: "T999"})

	require.ErrorIs(t, p.Validate(), ErrUnknownNode)
}

func TestValidate_RejectsDuplicateStepID(t *testing.T) {
	t.Parallel()

	p := diamond()
	p.Steps = append(p.Steps, Step{ID: "T001", Agent: "PlannerAgent"})

	require.ErrorIs(t, p.Validate(), ErrDuplicateStep)
}

func TestValidate_RejectsEmptyStepID(t *testing.T) {
	t.Parallel()

	p := diamond()
	p.Steps = append(p.Steps, Step{Agent: "PlannerAgent"})

	require.ErrorIs(t, p.Validate(), ErrEmptyStepID)
}

func TestParse_DecodesWireFormat(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	raw := []byte(`{
		"originalQuery": "summarize the quarterly numbers",
		"nodes": [
			{"id": "T001", "agentType": "RetrieverAgent", "description": "fetch numbers", "reads": [], "writes": ["numbers"]},
			{"id": "T002", "agentType": "FormatterAgent", "agentPrompt": "render a table", "reads": ["numbers"], "writes": ["report"]}
		],
		"edges": [
			{"source": "ROOT", "target": "T001"},
			{"source": "T001", "target": "T002"}
		],
		"seed": {"quarter": "Q3"}
	}`)

	// --- Act ---
	p, err := Parse(context.Background(), raw)

	// --- Assert ---
	require.NoError(t, err)
	require.Equal(t, "summarize the quarterly numbers", p.Query)
	require.Len(t, p.Steps, 2)
	require.Equal(t, map[string]any{"quarter": "Q3"}, p.Seed)

	step, ok := p.Step("T002")
	require.True(t, ok)
	require.Equal(t, "FormatterAgent", step.Agent)
	require.Equal(t, "render a table", step.AgentPrompt)
}

func TestParse_RejectsMalformedJSON(t *testing.T) {
	t.Parallel()

	_, err := Parse(context.Background(), []byte(`{"nodes": [`))
	require.Error(t, err)
}
