package rag

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/nikhilbhutani/docchat/internal/llm"
	"github.com/nikhilbhutani/docchat/internal/models"
)

const DefaultPacing = 10 * time.Millisecond

// Generator streams an answer word by word.
type Generator struct {
	gateway llm.Gateway
	model   string
	pacing  time.Duration
}

// NewGenerator pauses for pacing after each word. A zero pacing disables
// the pause.
func NewGenerator(gw llm.Gateway, model string, pacing time.Duration) *Generator {
	if model == "" {
		model = "gpt-4o"
	}
	if pacing < 0 {
		pacing = 0
	}
	return &Generator{gateway: gw, model: model, pacing: pacing}
}

// AnswerPrompt builds the single user prompt for an answer.
func AnswerPrompt(query string, chunks []string, history []models.ChatMessage) string {
	chat := "No previous chats."
	if len(history) > 0 {
		chat = Transcript(history)
	}
	docs := "No documents found."
	if len(chunks) > 0 {
		docs = strings.Join(chunks, "\n\n")
	}

	return fmt.Sprintf(`You are a helpful AI assistant. Answer the user's question by considering both the prior conversation and relevant document context.

---

📂 Previous Conversation:
%s

📄 Relevant Document Chunks:
%s

❓ User Query:
%s`, chat, docs, strings.TrimSpace(query))
}

// Generate starts the completion and returns the words as they complete.
// Each word is sent with its trailing space; whatever is left when the model
// finishes is sent once, trimmed. A provider failure is sent as an
// "[Internal error: ...]" fragment and ends the stream. The channel is
// closed when the answer is done or ctx is cancelled.
func (g *Generator) Generate(ctx context.Context, query string, chunks []string, history []models.ChatMessage) <-chan string {
	out := make(chan string)
	req := llm.UserPrompt(g.model, AnswerPrompt(query, chunks, history))

	go func() {
		defer close(out)

		stream, err := g.gateway.ChatStream(ctx, req)
		if err != nil {
			send(ctx, out, internalError(err))
			return
		}
		defer drain(stream)

		var buf strings.Builder
		for chunk := range stream {
			if chunk.Error != nil {
				send(ctx, out, internalError(chunk.Error))
				return
			}
			if chunk.Content != "" {
				buf.WriteString(chunk.Content)
				rest := buf.String()
				for {
					i := strings.IndexByte(rest, ' ')
					if i < 0 {
						break
					}
					if !send(ctx, out, rest[:i+1]) || !g.pause(ctx) {
						return
					}
					rest = rest[i+1:]
				}
				buf.Reset()
				buf.WriteString(rest)
			}
			if chunk.Done {
				break
			}
		}

		if err := ctx.Err(); err != nil {
			return
		}
		if tail := strings.TrimSpace(buf.String()); tail != "" {
			send(ctx, out, tail)
		}
	}()
	return out
}

func (g *Generator) pause(ctx context.Context) bool {
	if g.pacing == 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(g.pacing)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func internalError(err error) string {
	return fmt.Sprintf("\n[Internal error: %v]", err)
}

func send(ctx context.Context, out chan<- string, s string) bool {
	select {
	case out <- s:
		return true
	case <-ctx.Done():
		return false
	}
}

// drain unblocks a provider goroutine still writing to stream.
func drain(stream <-chan llm.StreamChunk) {
	go func() {
		for range stream {
		}
	}()
}
