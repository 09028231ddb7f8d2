package agent

// Output is the opaque structured document a worker returns. The engine
// never assumes a shape; these accessors probe the handful of recognized
// optional fields.
type Output map[string]any

// CallSelf reports whether the worker requested another iteration.
func (o Output) CallSelf() bool {
	v, _ := o["call_self"].(bool)
	return v
}

// NextInstruction returns the refined instruction for the next iteration.
func (o Output) NextInstruction() (string, bool) {
	v, ok := o["next_instruction"].(string)
	return v, ok && v != ""
}

// IterationContext returns the opaque value carried between iterations.
func (o Output) IterationContext() (any, bool) {
	v, ok := o["iteration_context"]
	return v, ok && v != nil
}

// ClarificationMessage returns the prompt text of a user-interaction
// request.
func (o Output) ClarificationMessage() (string, bool) {
	v, ok := o["clarificationMessage"].(string)
	return v, ok && v != ""
}

// InteractionOptions returns the choice list of a user-interaction request.
func (o Output) InteractionOptions() []string {
	raw, ok := o["options"].([]any)
	if !ok {
		return nil
	}
	opts := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			opts = append(opts, s)
		}
	}
	return opts
}

// WritesTo names the variable a captured user response binds to.
func (o Output) WritesTo() string {
	if v, ok := o["writes_to"].(string); ok && v != "" {
		return v
	}
	return "user_response"
}

// Usage holds the accounting counters a worker reports (or the engine
// estimates) for one step.
type Usage struct {
	Cost         float64
	InputTokens  int
	OutputTokens int
}

// Usage reads the worker-reported accounting fields. Absent fields read as
// zero.
func (o Output) Usage() Usage {
	return Usage{
		Cost:         floatField(o, "cost"),
		InputTokens:  intField(o, "input_tokens"),
		OutputTokens: intField(o, "output_tokens"),
	}
}

// floatField reads a numeric field, tolerating the float64/int ambiguity of
// decoded JSON.
func floatField(o Output, key string) float64 {
	switch v := o[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return 0
}

func intField(o Output, key string) int {
	switch v := o[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return 0
}
