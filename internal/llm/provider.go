package llm

import (
	"context"
	"errors"
	"time"
)

var ErrEmbeddingsUnsupported = errors.New("provider does not support embeddings")

// Provider is one completion/embedding backend (OpenAI, Anthropic, Ollama).
type Provider interface {
	Name() string
	Complete(ctx context.Context, req ChatRequest) (*ChatResponse, error)
	Stream(ctx context.Context, req ChatRequest) (<-chan StreamChunk, error)
	Embed(ctx context.Context, req EmbeddingRequest) (*EmbeddingResponse, error)
}

// Gateway routes requests to a configured provider, with optional retry
// and fallback. Pipeline stages depend on this, never on a Provider.
type Gateway interface {
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)
	ChatStream(ctx context.Context, req ChatRequest) (<-chan StreamChunk, error)
	Embed(ctx context.Context, req EmbeddingRequest) (*EmbeddingResponse, error)
}

type Message struct {
	Role    string `json:"role"` // system, user, assistant
	Content string `json:"content"`
}

type ChatRequest struct {
	Provider    string    `json:"provider,omitempty"`
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

// UserPrompt builds the single-message request every pipeline stage sends.
func UserPrompt(model, prompt string) ChatRequest {
	return ChatRequest{
		Model:    model,
		Messages: []Message{{Role: "user", Content: prompt}},
	}
}

type ChatResponse struct {
	ID           string  `json:"id"`
	Provider     string  `json:"provider"`
	Model        string  `json:"model"`
	Content      string  `json:"content"`
	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
	CostUSD      float64 `json:"cost_usd"`
	LatencyMs    int64   `json:"latency_ms"`
}

// StreamChunk is one delta of a streaming completion. The last chunk on a
// channel has Done set; Error is non-nil when the stream broke.
type StreamChunk struct {
	Content      string
	Done         bool
	InputTokens  int
	OutputTokens int
	Error        error
}

type EmbeddingRequest struct {
	Provider string   `json:"provider,omitempty"`
	Model    string   `json:"model"`
	Input    []string `json:"input"`
}

type EmbeddingResponse struct {
	Provider   string      `json:"provider"`
	Model      string      `json:"model"`
	Embeddings [][]float32 `json:"embeddings"`
	Tokens     int         `json:"tokens"`
	CostUSD    float64     `json:"cost_usd"`
}

// UsageRecord is reported to the gateway's usage hook after each call.
type UsageRecord struct {
	Provider     string
	Model        string
	Endpoint     string // chat, stream, embed
	InputTokens  int
	OutputTokens int
	CostUSD      float64
	Latency      time.Duration
}

// send delivers c unless ctx is cancelled first. Streaming goroutines use it
// so an abandoned consumer never leaks them.
func send(ctx context.Context, ch chan<- StreamChunk, c StreamChunk) bool {
	select {
	case ch <- c:
		return true
	case <-ctx.Done():
		return false
	}
}
