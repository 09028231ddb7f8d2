package agent

import "strings"

// Pricing per million tokens, and the word-to-token ratio used when the
// provider reports no usage.
const (
	tokensPerWord      = 1.5
	inputCostPerToken  = 0.1 / 1_000_000
	outputCostPerToken = 0.4 / 1_000_000
)

// EstimateUsage approximates token usage and cost from prompt and response
// text.
func EstimateUsage(input, output string) Usage {
	in := int(float64(len(strings.Fields(input))) * tokensPerWord)
	out := int(float64(len(strings.Fields(output))) * tokensPerWord)
	return Usage{
		Cost:         float64(in)*inputCostPerToken + float64(out)*outputCostPerToken,
		InputTokens:  in,
		OutputTokens: out,
	}
}
