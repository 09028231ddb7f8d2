package app

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/tmc/langchaingo/llms/openai"

	"github.com/vk/stepgrid/internal/agent"
	"github.com/vk/stepgrid/internal/ctxlog"
	"github.com/vk/stepgrid/internal/executor"
	"github.com/vk/stepgrid/internal/graph"
	"github.com/vk/stepgrid/internal/persist"
	"github.com/vk/stepgrid/internal/server"
)

// Run executes the main application logic: build or restore the session
// graph, wire workers and the inspection server, then drive the run.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.")

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	if a.config.ListSessions {
		return a.listSessions(ctx, store)
	}

	g, err := a.buildGraph(ctx, store)
	if err != nil {
		return err
	}

	if !a.hasWorker {
		model, err := openai.New()
		if err != nil {
			return fmt.Errorf("failed to initialize default LLM worker: %w", err)
		}
		a.workers.RegisterFallback(agent.NewLLMWorker(model, a.profiles, a.config.PromptDir))
		a.logger.Debug("Default LLM worker registered as fallback.")
	}

	if a.config.HTTPPort > 0 {
		srv := server.New(g)
		addr := fmt.Sprintf(":%d", a.config.HTTPPort)
		go func() {
			a.logger.Info("🩺 Inspection server starting", "address", fmt.Sprintf("http://localhost%s/session", addr))
			if err := srv.Listen(addr); err != nil {
				a.logger.Error("Inspection server failed", "error", err)
			}
		}()
		defer func() {
			if err := srv.Shutdown(context.WithoutCancel(ctx)); err != nil {
				a.logger.Error("Inspection server shutdown failed", "error", err)
			}
		}()
	}

	var interact executor.Interactor
	if a.config.NonInteractive {
		interact = &executor.StaticInteractor{}
	} else {
		interact = executor.NewTerminalInteractor(os.Stdin, a.outW)
	}

	a.logger.Info("🚀 Starting session run...", "session_id", g.SessionID())
	exec := executor.New(g, a.workers, a.profiles, interact, executor.Options{
		MaxRounds:     a.config.MaxRounds,
		MaxIterations: a.config.MaxIterations,
		ReportDir:     a.config.ReportDir,
	})
	result, err := exec.Run(ctx)
	if err != nil {
		return fmt.Errorf("execution failed: %w", err)
	}
	a.logger.Info("🏁 Session run finished.", "status", string(result.Status), "rounds", result.Rounds)

	a.printSummary(result)

	if result.Status != executor.RunDone || result.Summary.FailedSteps > 0 {
		return fmt.Errorf("session %s finished %s: %d completed, %d failed, %d never ran",
			g.SessionID(), result.Status,
			result.Summary.CompletedSteps, result.Summary.FailedSteps, result.Summary.NeverRanSteps)
	}
	return nil
}

// listSessions prints every stored session id on the app's output writer.
func (a *App) listSessions(ctx context.Context, store persist.Store) error {
	ids, err := store.ListSessions(ctx)
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}
	if len(ids) == 0 {
		fmt.Fprintln(a.outW, "No stored sessions.")
		return nil
	}
	for _, id := range ids {
		fmt.Fprintln(a.outW, id)
	}
	return nil
}

// openStore selects the snapshot backend from configuration.
func (a *App) openStore(ctx context.Context) (persist.Store, func(), error) {
	if a.config.PostgresURL != "" {
		pg, err := persist.NewPGStore(ctx, a.config.PostgresURL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open postgres session store: %w", err)
		}
		a.logger.Debug("Postgres session store ready.")
		return pg, pg.Close, nil
	}
	a.logger.Debug("File session store ready.", "dir", a.config.SessionDir)
	return persist.NewFileStore(a.config.SessionDir), func() {}, nil
}

// buildGraph restores a stored session or constructs a fresh graph from the
// configured plan.
func (a *App) buildGraph(ctx context.Context, store persist.Store) (*graph.Store, error) {
	if a.config.ResumeSession != "" {
		snap, err := store.LoadSnapshot(ctx, a.config.ResumeSession)
		if err != nil {
			return nil, fmt.Errorf("failed to restore session: %w", err)
		}
		g, err := graph.FromSnapshot(ctx, snap, store)
		if err != nil {
			return nil, fmt.Errorf("failed to rebuild session graph: %w", err)
		}
		a.logger.Info("♻️ Session restored.", "session_id", g.SessionID(), "nodes", len(g.NodeIDs()))
		return g, nil
	}

	p, err := a.loadPlan(ctx)
	if err != nil {
		return nil, err
	}
	g, err := graph.New(ctx, p, graph.Options{Query: a.config.Query, Saver: store})
	if err != nil {
		return nil, fmt.Errorf("failed to build session graph: %w", err)
	}
	a.logger.Debug("Session graph built.", "session_id", g.SessionID(), "nodes", len(g.NodeIDs()))
	return g, nil
}

// printSummary renders the run summary for the user on the app's output
// writer.
func (a *App) printSummary(result *executor.Result) {
	s := result.Summary
	fmt.Fprintf(a.outW, "\nSession %s finished: %s\n", s.SessionID, result.Status)
	fmt.Fprintf(a.outW, "  steps: %d completed, %d failed, %d never ran (of %d)\n",
		s.CompletedSteps, s.FailedSteps, s.NeverRanSteps, s.TotalSteps)
	fmt.Fprintf(a.outW, "  cost:  $%.6f (%d in / %d out tokens)\n",
		s.TotalCost, s.TotalInputTokens, s.TotalOutputTokens)
	for id, msg := range s.FailedNodes {
		fmt.Fprintf(a.outW, "  failed: %s: %s\n", id, msg)
	}
	if len(s.FinalOutputs) > 0 {
		raw, err := json.MarshalIndent(s.FinalOutputs, "  ", "  ")
		if err == nil {
			fmt.Fprintf(a.outW, "  final outputs:\n  %s\n", raw)
		}
	}
}
