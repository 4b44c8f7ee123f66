package rag

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/nikhilbhutani/docchat/internal/apperr"
	"github.com/nikhilbhutani/docchat/internal/llm"
)

const DefaultRerankTopN = 3

// Reranker asks the model to order candidate chunks by relevance.
type Reranker struct {
	gateway llm.Gateway
	model   string
	topN    int
}

func NewReranker(gw llm.Gateway, model string, topN int) *Reranker {
	if model == "" {
		model = "gpt-4o"
	}
	if topN <= 0 {
		topN = DefaultRerankTopN
	}
	return &Reranker{gateway: gw, model: model, topN: topN}
}

// Rerank returns at most topN chunks in the order the model ranked them. A
// reply that cannot be parsed yields fewer chunks, possibly none.
func (r *Reranker) Rerank(ctx context.Context, query string, chunks []string) ([]string, error) {
	if len(chunks) == 0 {
		return nil, nil
	}

	numbered := make([]string, len(chunks))
	for i, c := range chunks {
		numbered[i] = fmt.Sprintf("[%d] %s", i+1, c)
	}
	prompt := fmt.Sprintf("Query: %s\n\nBelow are retrieved text chunks:\n\n", query) +
		strings.Join(numbered, "\n\n") +
		"\n\nRank the most relevant chunks by numbers (comma-separated):"

	resp, err := r.gateway.Chat(ctx, llm.UserPrompt(r.model, prompt))
	if err != nil {
		return nil, apperr.Provider("rerank chunks", err)
	}

	var out []string
	for _, i := range parseRanking(resp.Content, len(chunks), r.topN) {
		out = append(out, chunks[i])
	}
	return out, nil
}

// parseRanking reads a comma-separated list of 1-based positions. Tokens that
// are not plain digits, out of range or already seen are skipped. It returns
// at most limit 0-based indices.
func parseRanking(reply string, n, limit int) []int {
	var out []int
	seen := make(map[int]bool)
	for _, tok := range strings.Split(reply, ",") {
		tok = strings.TrimSpace(tok)
		if !isDigits(tok) {
			continue
		}
		pos, err := strconv.Atoi(tok)
		if err != nil || pos < 1 || pos > n || seen[pos-1] {
			continue
		}
		seen[pos-1] = true
		out = append(out, pos-1)
		if len(out) == limit {
			break
		}
	}
	return out
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
