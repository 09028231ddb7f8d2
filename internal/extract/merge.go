package extract

// MergeExecutionResult lifts a successful nested execution result's
// variables to the top level of the output, so that later direct-output
// extraction (and downstream readers of the stored output) see them.
// Content-list envelopes are unwrapped during the lift. The input map is
// not mutated.
func MergeExecutionResult(output map[string]any) map[string]any {
	exec, ok := output["execution_result"].(map[string]any)
	if !ok {
		return output
	}
	status, _ := exec["status"].(string)
	result, isMap := exec["result"].(map[string]any)
	if status != "success" || !isMap || len(result) == 0 {
		return output
	}

	merged := make(map[string]any, len(output)+len(result))
	for k, v := range output {
		merged[k] = v
	}
	for _, k := range sortedKeys(result) {
		merged[k] = unwrapContentList(result[k])
	}
	return merged
}

// ExecResult pulls the nested execution sub-result out of a worker output,
// when present.
func ExecResult(output map[string]any) (map[string]any, bool) {
	exec, ok := output["execution_result"].(map[string]any)
	return exec, ok
}
