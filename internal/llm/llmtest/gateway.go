// Package llmtest provides a scripted llm.Gateway for tests.
package llmtest

import (
	"context"
	"errors"
	"hash/fnv"
	"sync"

	"github.com/nikhilbhutani/docchat/internal/llm"
)

var ErrNotScripted = errors.New("llmtest: no scripted reply")

type chatReply struct {
	content string
	err     error
}

type streamScript struct {
	openErr error
	parts   []string
	midErr  error
}

// Gateway replays queued replies in order. Embeddings come from Embedder,
// which defaults to HashEmbedding.
type Gateway struct {
	mu      sync.Mutex
	chats   []chatReply
	streams []streamScript

	Embedder func(texts []string) ([][]float32, error)

	ChatCalls   []llm.ChatRequest
	StreamCalls []llm.ChatRequest
	EmbedCalls  [][]string
}

var _ llm.Gateway = (*Gateway)(nil)

func New() *Gateway {
	return &Gateway{Embedder: HashEmbedding}
}

func (g *Gateway) QueueChat(content string) *Gateway {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.chats = append(g.chats, chatReply{content: content})
	return g
}

func (g *Gateway) QueueChatError(err error) *Gateway {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.chats = append(g.chats, chatReply{err: err})
	return g
}

// QueueStream scripts a stream that delivers parts then completes.
func (g *Gateway) QueueStream(parts ...string) *Gateway {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.streams = append(g.streams, streamScript{parts: parts})
	return g
}

// QueueStreamFailure scripts a stream that delivers parts then breaks with err.
func (g *Gateway) QueueStreamFailure(err error, parts ...string) *Gateway {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.streams = append(g.streams, streamScript{parts: parts, midErr: err})
	return g
}

// QueueStreamOpenError scripts a stream that cannot be opened.
func (g *Gateway) QueueStreamOpenError(err error) *Gateway {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.streams = append(g.streams, streamScript{openErr: err})
	return g
}

func (g *Gateway) Chat(_ context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.ChatCalls = append(g.ChatCalls, req)
	if len(g.chats) == 0 {
		return nil, ErrNotScripted
	}
	r := g.chats[0]
	g.chats = g.chats[1:]
	if r.err != nil {
		return nil, r.err
	}
	return &llm.ChatResponse{Provider: "llmtest", Model: req.Model, Content: r.content}, nil
}

func (g *Gateway) ChatStream(ctx context.Context, req llm.ChatRequest) (<-chan llm.StreamChunk, error) {
	g.mu.Lock()
	g.StreamCalls = append(g.StreamCalls, req)
	if len(g.streams) == 0 {
		g.mu.Unlock()
		return nil, ErrNotScripted
	}
	s := g.streams[0]
	g.streams = g.streams[1:]
	g.mu.Unlock()

	if s.openErr != nil {
		return nil, s.openErr
	}

	ch := make(chan llm.StreamChunk)
	go func() {
		defer close(ch)
		emit := func(c llm.StreamChunk) bool {
			select {
			case ch <- c:
				return true
			case <-ctx.Done():
				return false
			}
		}
		for _, p := range s.parts {
			if !emit(llm.StreamChunk{Content: p}) {
				return
			}
		}
		if s.midErr != nil {
			emit(llm.StreamChunk{Error: s.midErr, Done: true})
			return
		}
		emit(llm.StreamChunk{Done: true})
	}()
	return ch, nil
}

func (g *Gateway) Embed(_ context.Context, req llm.EmbeddingRequest) (*llm.EmbeddingResponse, error) {
	g.mu.Lock()
	g.EmbedCalls = append(g.EmbedCalls, append([]string(nil), req.Input...))
	embed := g.Embedder
	g.mu.Unlock()

	vecs, err := embed(req.Input)
	if err != nil {
		return nil, err
	}
	return &llm.EmbeddingResponse{Provider: "llmtest", Model: req.Model, Embeddings: vecs}, nil
}

// Prompts returns the user content of each Chat call, in order.
func (g *Gateway) Prompts() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]string, 0, len(g.ChatCalls))
	for _, c := range g.ChatCalls {
		if len(c.Messages) > 0 {
			out = append(out, c.Messages[len(c.Messages)-1].Content)
		}
	}
	return out
}

// HashEmbedding maps each text to a deterministic, non-zero 4-dim vector.
func HashEmbedding(texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		h := fnv.New64a()
		h.Write([]byte(t))
		sum := h.Sum64()
		v := make([]float32, 4)
		for j := range v {
			v[j] = 0.1 + float32((sum>>(16*j))&0xffff)/65535
		}
		out[i] = v
	}
	return out, nil
}
