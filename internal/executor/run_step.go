package executor

import (
	"context"
	"fmt"

	"github.com/vk/stepgrid/internal/agent"
	"github.com/vk/stepgrid/internal/ctxlog"
	"github.com/vk/stepgrid/internal/extract"
	"github.com/vk/stepgrid/internal/graph"
)

// stepResult is what one dispatch goroutine hands back to the apply phase.
// Variable writes happen in the apply phase, never in the goroutine, so the
// store only ever grows in ready-set order.
type stepResult struct {
	output     agent.Output
	iterations []map[string]any

	// interactionKey/interactionValue carry a captured user response to
	// bind alongside the declared writes.
	interactionKey   string
	interactionValue any

	err error
}

// runStep executes one node start to finish: resolve inputs, drive the
// self-call loop, then handle a clarification request when the kind's
// profile allows it. Only this node's dispatch blocks on the user; the
// rest of the round keeps running.
func (e *Executor) runStep(ctx context.Context, id string) stepResult {
	node, ok := e.graph.Node(id)
	if !ok {
		return stepResult{err: fmt.Errorf("executor: unknown node %q", id)}
	}
	logger := ctxlog.FromContext(ctx).With("node_id", id, "agent", node.Agent)

	worker, err := e.workers.Lookup(node.Agent)
	if err != nil {
		return stepResult{err: err}
	}

	prof, _ := e.profiles.Get(node.Agent)
	maxIter := e.opts.MaxIterations
	if prof.MaxIterations > 0 {
		maxIter = prof.MaxIterations
	}

	inputs := e.graph.Vars().Resolve(ctx, node.Reads)

	var (
		iterations []map[string]any
		current    agent.Output
		iterCtx    any
	)
	instruction := node.Instruction()

	for iteration := 1; ; iteration++ {
		inv := agent.Invocation{
			StepID:           id,
			Agent:            node.Agent,
			Instruction:      instruction,
			Reads:            node.Reads,
			Writes:           node.Writes,
			Inputs:           inputs,
			PreviousOutput:   current,
			IterationContext: iterCtx,
		}
		if prof.IncludeGlobals {
			inv.AllGlobals = e.graph.Vars().Snapshot()
			inv.OriginalQuery = e.graph.Query()
			inv.Session = &agent.SessionContext{
				SessionID:    e.graph.SessionID(),
				CreatedAt:    e.graph.CreatedAt(),
				FileManifest: e.graph.FileManifest(),
			}
		}

		out, err := worker.Invoke(ctx, inv)
		if err != nil {
			return stepResult{err: fmt.Errorf("worker invocation failed: %w", err)}
		}
		iterations = append(iterations, map[string]any(out))
		current = out

		if !out.CallSelf() {
			break
		}
		if iteration >= maxIter {
			logger.Warn("Self-call bound reached, keeping last output.",
				"iterations", iteration, "max_iterations", maxIter)
			break
		}
		if next, ok := out.NextInstruction(); ok {
			instruction = next
		}
		if ic, ok := out.IterationContext(); ok {
			iterCtx = ic
		}
		logger.Info("🔄 Worker requested another iteration.", "next_iteration", iteration+1)
	}

	res := stepResult{output: current, iterations: iterations}

	if msg, wants := current.ClarificationMessage(); wants && prof.Interactive {
		if e.interact == nil {
			return stepResult{err: fmt.Errorf("step requested user input but no interactor is configured")}
		}
		answer, err := e.interact.Prompt(ctx, msg, current.InteractionOptions())
		if err != nil {
			return stepResult{err: fmt.Errorf("user interaction failed: %w", err)}
		}
		answered := make(agent.Output, len(current)+2)
		for k, v := range current {
			answered[k] = v
		}
		answered["user_response"] = answer
		answered["interaction_completed"] = true
		res.output = answered
		res.interactionKey = current.WritesTo()
		res.interactionValue = answer
	}

	return res
}

// complete applies a successful step result: merge the nested execution
// result, persist formatter reports, extract every declared write, then
// mark the node completed.
func (e *Executor) complete(ctx context.Context, id string, res stepResult) {
	node, ok := e.graph.Node(id)
	if !ok {
		return
	}
	logger := ctxlog.FromContext(ctx).With("node_id", id, "agent", node.Agent)

	output := map[string]any(res.output)
	exec, hasExec := extract.ExecResult(output)
	output = extract.MergeExecutionResult(output)

	if res.interactionKey != "" {
		e.graph.Vars().Set(res.interactionKey, res.interactionValue)
		logger.Info("User response captured.", "name", res.interactionKey)
	}

	if e.reports != nil && e.patterns.Lookup(node.Agent) != nil {
		if saved, err := e.reports.Write(ctx, e.graph, id, output); err != nil {
			logger.Warn("Report persistence failed.", "error", err)
		} else if len(saved) > 0 {
			logger.Info("📄 Report saved.", "files", saved)
		}
	}

	set := e.patterns.Lookup(node.Agent)
	for _, key := range node.Writes {
		req := extract.Request{Key: key, StepID: id, Output: output, Patterns: set}
		if hasExec {
			req.Exec = exec
		}
		outcome, found := extract.Extract(req)
		if !found {
			logger.Warn("No extraction strategy matched, binding empty value.", "name", key)
			e.graph.Vars().Set(key, []any{})
			continue
		}
		e.graph.Vars().Set(key, outcome.Value)
		logger.Debug("Variable bound.", "name", key, "strategy", outcome.Strategy.String())
	}

	e.graph.SetIterations(ctx, id, res.iterations)
	usage := res.output.Usage()
	e.graph.MarkCompleted(ctx, id, output, graph.Costs{
		Cost:         usage.Cost,
		InputTokens:  usage.InputTokens,
		OutputTokens: usage.OutputTokens,
	})
}
