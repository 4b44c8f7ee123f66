// Package tokenizer estimates token counts for providers that do not report
// usage, such as OpenAI-compatible local servers.
package tokenizer

import "strings"

// Estimate approximates the token count of text at four tokens per three
// words. Non-empty text counts at least one token.
func Estimate(text string) int {
	words := len(strings.Fields(text))
	if words == 0 {
		return 0
	}
	return max(words*4/3, 1)
}

// EstimateAll sums Estimate over texts.
func EstimateAll(texts ...string) int {
	n := 0
	for _, t := range texts {
		n += Estimate(t)
	}
	return n
}
