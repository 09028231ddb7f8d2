package graph

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vk/stepgrid/internal/plan"
)

func diamondPlan() *plan.Plan {
	return &plan.Plan{
		Query: "compare two products",
		Steps: []plan.Step{
			{ID: "T001", Agent: "PlannerAgent", Writes: []string{"plan_doc"}},
			{ID: "T002", Agent: "RetrieverAgent", Reads: []string{"plan_doc"}, Writes: []string{"docs_a"}},
			{ID: "T003", Agent: "RetrieverAgent", Reads: []string{"plan_doc"}, Writes: []string{"docs_b"}},
			{ID: "T004", Agent: "FormatterAgent", Reads: []string{"docs_a", "docs_b"}, Writes: []string{"final_report"}},
		},
		Edges: []plan.Edge{
			{Source: plan.RootID, Target: "T001"},
			{Source: "T001", Target: "T002"},
			{Source: "T001", Target: "T003"},
			{Source: "T002", Target: "T004"},
			{Source: "T003", Target: "T004"},
		},
		Seed: map[string]any{"budget": 100.0},
	}
}

// fakeSaver records every snapshot it receives.
type fakeSaver struct {
	mu    sync.Mutex
	saves []*Snapshot
}

func (f *fakeSaver) SaveSnapshot(ctx context.Context, snap *Snapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saves = append(f.saves, snap)
	return nil
}

func (f *fakeSaver) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.saves)
}

func TestNew_RootIsCompletedAndSeedIsBound(t *testing.T) {
	t.Parallel()

	// --- Arrange / Act ---
	g, err := New(context.Background(), diamondPlan(), Options{})

	// --- Assert ---
	require.NoError(t, err)
	require.NotEmpty(t, g.SessionID())

	root, ok := g.Node(RootID)
	require.True(t, ok)
	require.Equal(t, StatusCompleted, root.Status)

	v, ok := g.Vars().Get("budget")
	require.True(t, ok)
	require.Equal(t, 100.0, v)
}

func TestNew_RejectsCyclicPlan(t *testing.T) {
	t.Parallel()

	p := diamondPlan()
	p.Edges = append(p.Edges, plan.Edge{Source: "T004", Target: "T001"})

	_, err := New(context.Background(), p, Options{})
	require.ErrorIs(t, err, plan.ErrCycleDetected)
}

func TestReadyNodes_FollowsDependencyFrontier(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	g, err := New(ctx, diamondPlan(), Options{})
	require.NoError(t, err)

	// Only the root's dependent is ready at first.
	require.Equal(t, []string{"T001"}, g.ReadyNodes())

	g.MarkRunning(ctx, "T001")
	require.Empty(t, g.ReadyNodes())

	g.MarkCompleted(ctx, "T001", map[string]any{}, Costs{})
	require.Equal(t, []string{"T002", "T003"}, g.ReadyNodes())

	g.MarkRunning(ctx, "T002")
	g.MarkCompleted(ctx, "T002", map[string]any{}, Costs{})

	// T004 still waits for T003.
	require.Equal(t, []string{"T003"}, g.ReadyNodes())

	g.MarkRunning(ctx, "T003")
	g.MarkCompleted(ctx, "T003", map[string]any{}, Costs{})
	require.Equal(t, []string{"T004"}, g.ReadyNodes())
}

func TestReadyNodes_RandomDagsAndCompletionOrders(t *testing.T) {
	t.Parallel()

	for seed := int64(0); seed < 25; seed++ {
		rng := rand.New(rand.NewSource(seed))

		// --- Arrange ---
		// Edges only point from lower to higher index, so every generated
		// graph is acyclic by construction.
		n := 2 + rng.Intn(12)
		p := &plan.Plan{}
		preds := make(map[string][]string)
		for i := 0; i < n; i++ {
			id := fmt.Sprintf("T%03d", i+1)
			p.Steps = append(p.Steps, plan.Step{ID: id, Agent: "A"})
			for j := 0; j < i; j++ {
				if rng.Intn(3) == 0 {
					dep := fmt.Sprintf("T%03d", j+1)
					p.Edges = append(p.Edges, plan.Edge{Source: dep, Target: id})
					preds[id] = append(preds[id], dep)
				}
			}
			if len(preds[id]) == 0 {
				p.Edges = append(p.Edges, plan.Edge{Source: plan.RootID, Target: id})
			}
		}

		ctx := context.Background()
		g, err := New(ctx, p, Options{})
		require.NoError(t, err)

		// --- Act / Assert ---
		// Complete nodes one at a time in random eligible order. At every
		// state the frontier must hold exactly the pending nodes whose
		// predecessors are all completed.
		completed := make(map[string]bool)
		for len(completed) < n {
			want := []string{}
			for _, s := range p.Steps {
				if completed[s.ID] {
					continue
				}
				eligible := true
				for _, dep := range preds[s.ID] {
					if !completed[dep] {
						eligible = false
						break
					}
				}
				if eligible {
					want = append(want, s.ID)
				}
			}
			sort.Strings(want)

			ready := g.ReadyNodes()
			require.Equal(t, want, ready, "seed %d after %d completions", seed, len(completed))

			pick := ready[rng.Intn(len(ready))]
			g.MarkRunning(ctx, pick)
			g.MarkCompleted(ctx, pick, map[string]any{}, Costs{})
			completed[pick] = true
		}
		require.True(t, g.IsDone(), "seed %d", seed)
	}
}

func TestTransitions_AreForwardOnly(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	g, err := New(ctx, diamondPlan(), Options{})
	require.NoError(t, err)

	// Completing a pending node is a no-op.
	g.MarkCompleted(ctx, "T001", map[string]any{}, Costs{})
	n, _ := g.Node("T001")
	require.Equal(t, StatusPending, n.Status)

	g.MarkRunning(ctx, "T001")
	g.MarkFailed(ctx, "T001", "worker exploded")

	// A terminal node never re-enters running.
	g.MarkRunning(ctx, "T001")
	n, _ = g.Node("T001")
	require.Equal(t, StatusFailed, n.Status)
	require.Equal(t, "worker exploded", n.Error)
}

func TestFailure_BlocksDependentsForever(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	g, err := New(ctx, diamondPlan(), Options{})
	require.NoError(t, err)

	g.MarkRunning(ctx, "T001")
	g.MarkFailed(ctx, "T001", "boom")

	require.Empty(t, g.ReadyNodes())
	require.False(t, g.IsDone())
	require.True(t, g.HasFailed())
}

func TestIsDone_WhenEveryStepIsTerminal(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	g, err := New(ctx, diamondPlan(), Options{})
	require.NoError(t, err)

	for len(g.ReadyNodes()) > 0 {
		for _, id := range g.ReadyNodes() {
			g.MarkRunning(ctx, id)
			g.MarkCompleted(ctx, id, map[string]any{}, Costs{})
		}
	}

	require.True(t, g.IsDone())
	require.False(t, g.HasFailed())
}

func TestSnapshot_RoundTripsThroughRestore(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	ctx := context.Background()
	g, err := New(ctx, diamondPlan(), Options{SessionID: "sess-1", Query: "compare two products"})
	require.NoError(t, err)

	g.MarkRunning(ctx, "T001")
	g.MarkCompleted(ctx, "T001", map[string]any{"plan_doc": "outline"}, Costs{Cost: 0.002, InputTokens: 10, OutputTokens: 20})
	g.Vars().Set("plan_doc", "outline")
	g.MarkRunning(ctx, "T002")

	// --- Act ---
	restored, err := FromSnapshot(ctx, g.Snapshot(), nil)

	// --- Assert ---
	require.NoError(t, err)
	require.Equal(t, "sess-1", restored.SessionID())
	require.Equal(t, "compare two products", restored.Query())

	done, _ := restored.Node("T001")
	require.Equal(t, StatusCompleted, done.Status)
	require.Equal(t, 0.002, done.Cost)
	require.Equal(t, 30, done.TotalTokens)

	// A node persisted mid-flight restarts from pending.
	inflight, _ := restored.Node("T002")
	require.Equal(t, StatusPending, inflight.Status)
	require.True(t, inflight.StartTime.IsZero())

	v, ok := restored.Vars().Get("plan_doc")
	require.True(t, ok)
	require.Equal(t, "outline", v)

	// The restored frontier matches the original one.
	require.Equal(t, g.ReadyNodes(), restored.ReadyNodes())
}

func TestFromSnapshot_RequiresRootNode(t *testing.T) {
	t.Parallel()

	g, err := New(context.Background(), diamondPlan(), Options{})
	require.NoError(t, err)
	snap := g.Snapshot()
	snap.Nodes = snap.Nodes[1:]

	_, err = FromSnapshot(context.Background(), snap, nil)
	require.ErrorContains(t, err, "no root node")
}

func TestSaver_ReceivesSnapshotsOnMutation(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	ctx := context.Background()
	saver := &fakeSaver{}
	g, err := New(ctx, diamondPlan(), Options{Saver: saver})
	require.NoError(t, err)

	// --- Act ---
	g.MarkRunning(ctx, "T001")
	g.MarkCompleted(ctx, "T001", map[string]any{}, Costs{})

	// --- Assert ---
	require.Equal(t, 2, saver.count())

	saver.mu.Lock()
	last := saver.saves[len(saver.saves)-1]
	saver.mu.Unlock()
	require.Equal(t, "completed", last.Nodes[1].Status)
}
