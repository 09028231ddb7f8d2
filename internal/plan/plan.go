package plan

// Step is one unit of work in a plan, delegated to an agent worker.
type Step struct {
	// ID is the unique, stable identifier of the step within the plan.
	ID string `json:"id"`
	// Agent names the worker kind that executes this step.
	Agent string `json:"agentType"`
	// Description is free-form instruction text shown to the worker.
	Description string `json:"description"`
	// AgentPrompt, when present, overrides Description as the worker instruction.
	AgentPrompt string `json:"agentPrompt,omitempty"`
	// Reads lists the variable names this step consumes.
	Reads []string `json:"reads"`
	// Writes lists the variable names this step is expected to produce.
	Writes []string `json:"writes"`
}

// Edge is a directed dependency: Target depends on Source.
type Edge struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

// Plan is the full dependency graph handed to the engine. Seed holds
// initial variable bindings made available before any step runs.
type Plan struct {
	Steps []Step         `json:"nodes"`
	Edges []Edge         `json:"edges"`
	Query string         `json:"originalQuery,omitempty"`
	Seed  map[string]any `json:"seed,omitempty"`
}

// Step returns the step with the given id, if present.
func (p *Plan) Step(id string) (Step, bool) {
	for _, s := range p.Steps {
		if s.ID == id {
			return s, true
		}
	}
	return Step{}, false
}
