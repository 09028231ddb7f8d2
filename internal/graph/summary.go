package graph

import "sort"

// StepCost is one step's share of the run's accounting totals.
type StepCost struct {
	Cost         float64 `json:"cost"`
	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
}

// Summary aggregates a run's outcome: step counts, accounting totals, and
// the "final outputs", meaning variables that were written but never read
// by any step. Those are the results the plan was run to produce.
type Summary struct {
	SessionID         string              `json:"session_id"`
	OriginalQuery     string              `json:"original_query,omitempty"`
	CompletedSteps    int                 `json:"completed_steps"`
	FailedSteps       int                 `json:"failed_steps"`
	NeverRanSteps     int                 `json:"never_ran_steps"`
	TotalSteps        int                 `json:"total_steps"`
	TotalCost         float64             `json:"total_cost"`
	TotalInputTokens  int                 `json:"total_input_tokens"`
	TotalOutputTokens int                 `json:"total_output_tokens"`
	TotalTokens       int                 `json:"total_tokens"`
	CostBreakdown     map[string]StepCost `json:"cost_breakdown"`
	FailedNodes       map[string]string   `json:"failed_nodes,omitempty"`
	NeverRanNodes     []string            `json:"never_ran_nodes,omitempty"`
	FinalOutputs      map[string]any      `json:"final_outputs"`
}

// Summary computes the execution summary for the current graph state.
func (s *Store) Summary() Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sum := Summary{
		SessionID:     s.sessionID,
		OriginalQuery: s.query,
		TotalSteps:    len(s.nodes) - 1,
		CostBreakdown: make(map[string]StepCost),
		FinalOutputs:  make(map[string]any),
	}

	allReads := make(map[string]bool)
	allWrites := make(map[string]bool)

	for _, n := range s.nodes {
		if n.ID == RootID {
			continue
		}
		switch n.Status {
		case StatusCompleted:
			sum.CompletedSteps++
		case StatusFailed:
			sum.FailedSteps++
			if sum.FailedNodes == nil {
				sum.FailedNodes = make(map[string]string)
			}
			sum.FailedNodes[n.ID] = n.Error
		default:
			sum.NeverRanSteps++
			sum.NeverRanNodes = append(sum.NeverRanNodes, n.ID)
		}

		if n.Cost > 0 {
			sum.CostBreakdown[n.ID+" ("+n.Agent+")"] = StepCost{
				Cost:         n.Cost,
				InputTokens:  n.InputTokens,
				OutputTokens: n.OutputTokens,
			}
		}
		sum.TotalCost += n.Cost
		sum.TotalInputTokens += n.InputTokens
		sum.TotalOutputTokens += n.OutputTokens

		for _, r := range n.Reads {
			allReads[r] = true
		}
		for _, w := range n.Writes {
			allWrites[w] = true
		}
	}
	sum.TotalTokens = sum.TotalInputTokens + sum.TotalOutputTokens
	sort.Strings(sum.NeverRanNodes)

	for name := range allWrites {
		if allReads[name] {
			continue
		}
		if v, ok := s.vars.Get(name); ok {
			sum.FinalOutputs[name] = v
		}
	}

	return sum
}
