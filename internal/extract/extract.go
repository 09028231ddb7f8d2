package extract

import (
	"encoding/json"
	"sort"
	"strings"
)

// Strategy identifies which stage of the chain produced a value.
type Strategy int

const (
	// StrategyNone means every strategy missed.
	StrategyNone Strategy = iota
	// StrategyExecDirect is a top-level match in the execution result.
	StrategyExecDirect
	// StrategyExecDeep is a depth-first match in the execution result tree.
	StrategyExecDeep
	// StrategyOutputDirect is a top-level match in the raw output.
	StrategyOutputDirect
	// StrategyOutputDeep is a depth-first match in the raw output tree.
	StrategyOutputDeep
	// StrategyNamePattern matched a per-agent-kind derived key name.
	StrategyNamePattern
	// StrategyLastResort took the first non-empty value available anywhere.
	StrategyLastResort
)

// String names the strategy for logs.
func (s Strategy) String() string {
	switch s {
	case StrategyExecDirect:
		return "exec_direct"
	case StrategyExecDeep:
		return "exec_deep"
	case StrategyOutputDirect:
		return "output_direct"
	case StrategyOutputDeep:
		return "output_deep"
	case StrategyNamePattern:
		return "name_pattern"
	case StrategyLastResort:
		return "last_resort"
	}
	return "none"
}

// reservedKeys are worker bookkeeping fields, never treated as step data by
// the last-resort strategy.
var reservedKeys = map[string]bool{
	"call_self":             true,
	"next_instruction":      true,
	"iteration_context":     true,
	"cost":                  true,
	"input_tokens":          true,
	"output_tokens":         true,
	"total_tokens":          true,
	"execution_result":      true,
	"execution_status":      true,
	"execution_error":       true,
	"execution_time":        true,
	"executed_variant":      true,
	"code_variants":         true,
	"interaction_completed": true,
}

// Request is one extraction: find the value for Key in a step's output.
type Request struct {
	// Key is the declared write name being resolved.
	Key string
	// StepID is the owning step's id, used by name-pattern templates.
	StepID string
	// Output is the step's raw worker output (after any execution-result
	// merge).
	Output map[string]any
	// Exec is the nested code-execution sub-result ({status, result, ...}),
	// nil when the step triggered none.
	Exec map[string]any
	// Patterns enables the name-pattern fallback for this step's agent
	// kind; nil disables it.
	Patterns *PatternSet
}

// Outcome reports the extracted value and the strategy that found it.
type Outcome struct {
	Value    any
	Strategy Strategy
}

// strategyFunc is one pure stage of the chain.
type strategyFunc func(Request) (any, bool)

// chain is the fixed strategy order. Extraction is deterministic and
// idempotent: the same request always resolves through the same stage to
// the same value.
var chain = []struct {
	strategy Strategy
	fn       strategyFunc
}{
	{StrategyExecDirect, execDirect},
	{StrategyExecDeep, execDeep},
	{StrategyOutputDirect, outputDirect},
	{StrategyOutputDeep, outputDeep},
	{StrategyNamePattern, namePattern},
	{StrategyLastResort, lastResort},
}

// Extract runs the strategy chain for one write key. The second return is
// false only when every strategy missed; the caller then binds the key to
// an empty sequence and records a warning.
func Extract(req Request) (Outcome, bool) {
	for _, stage := range chain {
		if v, ok := stage.fn(req); ok {
			return Outcome{Value: v, Strategy: stage.strategy}, true
		}
	}
	return Outcome{Strategy: StrategyNone}, false
}

// execResultData returns the mapping extraction should search for direct
// execution-result matches: the sub-result's `result` mapping when it is a
// non-empty map, otherwise the sub-result itself. Nil when the step had no
// successful execution result.
func execResultData(req Request) map[string]any {
	if req.Exec == nil {
		return nil
	}
	if status, _ := req.Exec["status"].(string); status != "success" {
		return nil
	}
	if m, ok := req.Exec["result"].(map[string]any); ok && len(m) > 0 {
		return m
	}
	return req.Exec
}

// execDirect resolves a top-level key of the execution result, unwrapping
// content-list envelopes around JSON arrays.
func execDirect(req Request) (any, bool) {
	data := execResultData(req)
	if data == nil {
		return nil, false
	}
	v, ok := data[req.Key]
	if !ok {
		return nil, false
	}
	return unwrapContentList(v), true
}

// execDeep searches the execution-result tree depth-first.
func execDeep(req Request) (any, bool) {
	if execResultData(req) == nil {
		return nil, false
	}
	root := req.Exec["result"]
	if root == nil {
		root = any(req.Exec)
	}
	return deepSearch(root, req.Key)
}

// outputDirect resolves a top-level key of the raw output. Values merged in
// by a prior execution-result merge are visible here.
func outputDirect(req Request) (any, bool) {
	v, ok := req.Output[req.Key]
	return v, ok
}

// outputDeep searches the raw output tree depth-first.
func outputDeep(req Request) (any, bool) {
	return deepSearch(req.Output, req.Key)
}

// namePattern tries the agent kind's derived key templates in order, then
// its key-hint substrings, then any key containing the step id or the
// target key name. Disabled for agent kinds with no registered pattern set.
func namePattern(req Request) (any, bool) {
	if req.Patterns == nil {
		return nil, false
	}
	for _, candidate := range req.Patterns.expand(req.Key, req.StepID) {
		if v, ok := req.Output[candidate]; ok && nonEmpty(v) {
			return v, true
		}
	}
	for _, hint := range req.Patterns.KeyHints {
		if v, ok := firstKeyContaining(req.Output, hint); ok {
			return v, true
		}
	}
	for _, term := range []string{req.StepID, req.Key} {
		if term == "" {
			continue
		}
		if v, ok := firstKeyContaining(req.Output, term); ok {
			return v, true
		}
	}
	return nil, false
}

// lastResort takes the first non-empty value in the execution result, then
// the first non-empty non-bookkeeping value in the raw output.
func lastResort(req Request) (any, bool) {
	if data := execResultData(req); data != nil {
		for _, k := range sortedKeys(data) {
			if nonEmpty(data[k]) {
				return data[k], true
			}
		}
	}
	for _, k := range sortedKeys(req.Output) {
		if reservedKeys[k] {
			continue
		}
		if nonEmpty(req.Output[k]) {
			return req.Output[k], true
		}
	}
	return nil, false
}

// deepSearch walks maps and sequences depth-first looking for a key.
// Map keys are visited in sorted order so the first match is deterministic.
func deepSearch(data any, key string) (any, bool) {
	switch t := data.(type) {
	case map[string]any:
		for _, k := range sortedKeys(t) {
			if k == key {
				return t[k], true
			}
		}
		for _, k := range sortedKeys(t) {
			if v, ok := deepSearch(t[k], key); ok {
				return v, true
			}
		}
	case []any:
		for _, item := range t {
			if v, ok := deepSearch(item, key); ok {
				return v, true
			}
		}
	}
	return nil, false
}

// unwrapContentList unwraps the tool-call envelope some workers return:
// a mapping with a `content` list whose first element carries a `text`
// field holding a JSON array. Anything else passes through verbatim.
func unwrapContentList(v any) any {
	m, ok := v.(map[string]any)
	if !ok {
		return v
	}
	content, ok := m["content"].([]any)
	if !ok || len(content) == 0 {
		return v
	}
	first, ok := content[0].(map[string]any)
	if !ok {
		return v
	}
	text, ok := first["text"].(string)
	if !ok {
		return v
	}
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "[") || !strings.HasSuffix(trimmed, "]") {
		return v
	}
	var parsed []any
	if err := json.Unmarshal([]byte(trimmed), &parsed); err != nil {
		return v
	}
	return parsed
}

// firstKeyContaining returns the first non-empty value whose key contains
// the term (case-insensitive), in sorted key order.
func firstKeyContaining(output map[string]any, term string) (any, bool) {
	lower := strings.ToLower(term)
	for _, k := range sortedKeys(output) {
		if reservedKeys[k] {
			continue
		}
		if strings.Contains(strings.ToLower(k), lower) && nonEmpty(output[k]) {
			return output[k], true
		}
	}
	return nil, false
}

// nonEmpty mirrors the loose truthiness of worker payloads: zero numbers,
// empty strings, empty collections, nil, and false are all "empty".
func nonEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case string:
		return t != ""
	case bool:
		return t
	case float64:
		return t != 0
	case int:
		return t != 0
	case []any:
		return len(t) > 0
	case map[string]any:
		return len(t) > 0
	}
	return true
}

// sortedKeys returns the map's keys in sorted order.
func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
