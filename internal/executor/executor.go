package executor

import (
	"context"
	"sync"
	"time"

	"github.com/vk/stepgrid/internal/agent"
	"github.com/vk/stepgrid/internal/ctxlog"
	"github.com/vk/stepgrid/internal/extract"
	"github.com/vk/stepgrid/internal/graph"
)

// RunStatus is the terminal state of one driver run.
type RunStatus string

const (
	// RunDone means every node reached a terminal state.
	RunDone RunStatus = "done"
	// RunStalled means pending nodes remain that can never become ready,
	// or a safety bound tripped.
	RunStalled RunStatus = "stalled"
)

// Options tunes the driver. Zero values select the defaults.
type Options struct {
	// MaxRounds caps dispatch rounds as a runaway guard. A healthy run
	// needs at most one round per node.
	MaxRounds int
	// MaxIdleRounds caps consecutive polls that find no ready node before
	// the run is declared stalled.
	MaxIdleRounds int
	// IdleDelay is the pause between idle polls.
	IdleDelay time.Duration
	// MaxIterations caps a single step's self-call loop, unless the agent
	// profile overrides it.
	MaxIterations int
	// ReportDir, when set, receives rendered formatter reports per session.
	ReportDir string
}

const (
	defaultMaxRounds     = 100
	defaultMaxIdleRounds = 3
	defaultIdleDelay     = 300 * time.Millisecond
	defaultMaxIterations = 20
)

func (o *Options) applyDefaults() {
	if o.MaxRounds <= 0 {
		o.MaxRounds = defaultMaxRounds
	}
	if o.MaxIdleRounds <= 0 {
		o.MaxIdleRounds = defaultMaxIdleRounds
	}
	if o.IdleDelay <= 0 {
		o.IdleDelay = defaultIdleDelay
	}
	if o.MaxIterations <= 0 {
		o.MaxIterations = defaultMaxIterations
	}
}

// Result summarizes one driver run.
type Result struct {
	Status  RunStatus
	Rounds  int
	Summary graph.Summary
}

// Executor owns the round loop for one session graph.
type Executor struct {
	graph    *graph.Store
	workers  *agent.Registry
	profiles *agent.Profiles
	patterns *extract.PatternRegistry
	interact Interactor
	reports  *ReportWriter
	opts     Options
}

// New wires an executor over a graph and a worker registry. Agent profiles
// carrying output patterns seed the name-pattern extraction registry here.
func New(g *graph.Store, workers *agent.Registry, profiles *agent.Profiles, interact Interactor, opts Options) *Executor {
	opts.applyDefaults()
	if profiles == nil {
		profiles = agent.DefaultProfiles()
	}

	patterns := extract.NewPatternRegistry()
	for kind, prof := range profiles.Agents {
		if len(prof.OutputPatterns) == 0 && len(prof.OutputKeyHints) == 0 {
			continue
		}
		patterns.Register(kind, extract.PatternSet{
			Templates: prof.OutputPatterns,
			KeyHints:  prof.OutputKeyHints,
		})
	}

	e := &Executor{
		graph:    g,
		workers:  workers,
		profiles: profiles,
		patterns: patterns,
		interact: interact,
		opts:     opts,
	}
	if opts.ReportDir != "" {
		e.reports = &ReportWriter{Dir: opts.ReportDir}
	}
	return e
}

// Run drives the graph until every node is terminal or no progress is
// possible. It returns the terminal status plus the run summary; the only
// error it surfaces is context cancellation.
func (e *Executor) Run(ctx context.Context) (*Result, error) {
	logger := ctxlog.FromContext(ctx).With("session_id", e.graph.SessionID())
	logger.Info("🚀 Session run starting.", "nodes", len(e.graph.NodeIDs()))

	rounds := 0
	idle := 0
	for !e.graph.IsDone() && rounds < e.opts.MaxRounds {
		if err := ctx.Err(); err != nil {
			e.graph.SetRunStatus(ctx, string(RunStalled))
			return nil, err
		}

		ready := e.graph.ReadyNodes()
		if len(ready) == 0 {
			if e.graph.HasFailed() {
				logger.Warn("Remaining nodes are blocked behind a failed dependency.")
				break
			}
			idle++
			if idle > e.opts.MaxIdleRounds {
				logger.Warn("No ready nodes after repeated polls, stopping.", "idle_rounds", idle-1)
				break
			}
			select {
			case <-time.After(e.opts.IdleDelay):
			case <-ctx.Done():
				e.graph.SetRunStatus(ctx, string(RunStalled))
				return nil, ctx.Err()
			}
			continue
		}
		idle = 0
		rounds++
		logger.Info("▶️ Dispatching round.", "round", rounds, "ready", ready)

		for _, id := range ready {
			e.graph.MarkRunning(ctx, id)
		}

		results := make([]stepResult, len(ready))
		var wg sync.WaitGroup
		for i, id := range ready {
			wg.Add(1)
			go func(i int, id string) {
				defer wg.Done()
				results[i] = e.runStep(ctx, id)
			}(i, id)
		}
		wg.Wait()

		// Apply in ready-set order: concurrent steps writing the same
		// variable resolve deterministically.
		for i, id := range ready {
			res := results[i]
			if res.err != nil {
				e.graph.MarkFailed(ctx, id, res.err.Error())
				continue
			}
			e.complete(ctx, id, res)
		}
	}

	status := RunStalled
	if e.graph.IsDone() {
		status = RunDone
	}
	e.graph.SetRunStatus(ctx, string(status))
	logger.Info("Session run finished.", "status", string(status), "rounds", rounds)
	return &Result{Status: status, Rounds: rounds, Summary: e.graph.Summary()}, nil
}
