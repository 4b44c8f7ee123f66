package rag

import (
	"context"
	"fmt"
	"strings"

	"github.com/nikhilbhutani/docchat/internal/apperr"
	"github.com/nikhilbhutani/docchat/internal/llm"
	"github.com/nikhilbhutani/docchat/internal/models"
)

// Refiner rewrites a follow-up question so it stands on its own, using the
// recent turns of the conversation.
type Refiner struct {
	gateway llm.Gateway
	model   string
}

func NewRefiner(gw llm.Gateway, model string) *Refiner {
	if model == "" {
		model = "gpt-4o"
	}
	return &Refiner{gateway: gw, model: model}
}

// Refine asks the model once; a provider failure is returned, not retried.
// history should already be limited to the turns worth showing.
func (r *Refiner) Refine(ctx context.Context, question string, history []models.ChatMessage) (string, error) {
	prompt := fmt.Sprintf("Refine the question based on previous conversation:\n%s\nUser: %s", Transcript(history), question)

	resp, err := r.gateway.Chat(ctx, llm.UserPrompt(r.model, prompt))
	if err != nil {
		return "", apperr.Provider("refine question", err)
	}
	return strings.TrimSpace(resp.Content), nil
}

// Transcript renders turns as "User: q\nAI: a" blocks separated by newlines.
func Transcript(history []models.ChatMessage) string {
	lines := make([]string, len(history))
	for i, m := range history {
		lines[i] = fmt.Sprintf("User: %s\nAI: %s", m.Question, m.Answer)
	}
	return strings.Join(lines, "\n")
}
