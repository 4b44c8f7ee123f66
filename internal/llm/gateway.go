package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nikhilbhutani/docchat/internal/config"
	"github.com/nikhilbhutani/docchat/pkg/tokenizer"
)

type gateway struct {
	providers         map[string]Provider
	defaultProvider   string
	embeddingProvider string
	fallbackProvider  string
	maxRetries        int
	onUsage           func(UsageRecord)
}

type Option func(*gateway)

// WithUsageHook registers fn to observe token usage and cost of each call.
func WithUsageHook(fn func(UsageRecord)) Option {
	return func(g *gateway) { g.onUsage = fn }
}

// WithProvider registers p under its Name, replacing any configured one.
func WithProvider(p Provider) Option {
	return func(g *gateway) { g.providers[p.Name()] = p }
}

func NewGateway(cfg config.LLMConfig, opts ...Option) Gateway {
	g := &gateway{
		providers:         make(map[string]Provider),
		defaultProvider:   cfg.DefaultProvider,
		embeddingProvider: cfg.EmbeddingProvider,
		fallbackProvider:  cfg.FallbackProvider,
		maxRetries:        cfg.MaxRetries,
	}

	if cfg.OpenAIKey != "" {
		g.providers["openai"] = NewOpenAIProvider(cfg.OpenAIKey, "")
	}
	if cfg.AnthropicKey != "" {
		g.providers["anthropic"] = NewAnthropicProvider(cfg.AnthropicKey)
	}
	if cfg.OllamaURL != "" {
		g.providers["ollama"] = NewOllamaProvider(cfg.OllamaURL)
	}

	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *gateway) provider(name string) (Provider, error) {
	p, ok := g.providers[name]
	if !ok {
		return nil, fmt.Errorf("provider %q not configured", name)
	}
	return p, nil
}

func (g *gateway) report(r UsageRecord) {
	slog.Debug("llm usage",
		"provider", r.Provider,
		"model", r.Model,
		"endpoint", r.Endpoint,
		"input_tokens", r.InputTokens,
		"output_tokens", r.OutputTokens,
		"cost_usd", r.CostUSD,
		"latency_ms", r.Latency.Milliseconds(),
	)
	if g.onUsage != nil {
		g.onUsage(r)
	}
}

func (g *gateway) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	providerName := req.Provider
	if providerName == "" {
		providerName = g.defaultProvider
	}

	resp, err := g.chatWithRetry(ctx, providerName, req)
	if err != nil && g.fallbackProvider != "" && g.fallbackProvider != providerName {
		slog.Warn("primary provider failed, trying fallback",
			"primary", providerName,
			"fallback", g.fallbackProvider,
			"error", err,
		)
		return g.chatWithRetry(ctx, g.fallbackProvider, req)
	}
	return resp, err
}

// chatWithRetry makes 1+maxRetries attempts. maxRetries defaults to 0:
// callers surface provider failures rather than wait on backoff.
func (g *gateway) chatWithRetry(ctx context.Context, providerName string, req ChatRequest) (*ChatResponse, error) {
	p, err := g.provider(providerName)
	if err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 0; attempt <= g.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(attempt*attempt) * 500 * time.Millisecond
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
			slog.Debug("retrying LLM call", "provider", providerName, "attempt", attempt)
		}

		resp, err := p.Complete(ctx, req)
		if err == nil {
			g.report(UsageRecord{
				Provider:     p.Name(),
				Model:        req.Model,
				Endpoint:     "chat",
				InputTokens:  resp.InputTokens,
				OutputTokens: resp.OutputTokens,
				CostUSD:      resp.CostUSD,
				Latency:      time.Duration(resp.LatencyMs) * time.Millisecond,
			})
			return resp, nil
		}
		lastErr = err
	}
	if g.maxRetries == 0 {
		return nil, lastErr
	}
	return nil, fmt.Errorf("all retries exhausted for %s: %w", providerName, lastErr)
}

// ChatStream opens a stream on the requested provider, falling back only if
// the stream cannot be opened. Mid-stream failures arrive as a chunk Error.
func (g *gateway) ChatStream(ctx context.Context, req ChatRequest) (<-chan StreamChunk, error) {
	providerName := req.Provider
	if providerName == "" {
		providerName = g.defaultProvider
	}

	ch, err := g.openStream(ctx, providerName, req)
	if err != nil && g.fallbackProvider != "" && g.fallbackProvider != providerName {
		slog.Warn("primary provider stream failed, trying fallback",
			"primary", providerName,
			"fallback", g.fallbackProvider,
			"error", err,
		)
		return g.openStream(ctx, g.fallbackProvider, req)
	}
	return ch, err
}

func (g *gateway) openStream(ctx context.Context, providerName string, req ChatRequest) (<-chan StreamChunk, error) {
	p, err := g.provider(providerName)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	src, err := p.Stream(ctx, req)
	if err != nil {
		return nil, err
	}

	// Relay so usage can be reported once the provider finishes.
	out := make(chan StreamChunk, cap(src))
	go func() {
		defer close(out)
		var text strings.Builder
		for c := range src {
			text.WriteString(c.Content)
			if c.Done && c.Error == nil {
				in, outTokens := c.InputTokens, c.OutputTokens
				if in == 0 && outTokens == 0 {
					in, outTokens = promptTokens(req), tokenizer.Estimate(text.String())
				}
				g.report(UsageRecord{
					Provider:     p.Name(),
					Model:        req.Model,
					Endpoint:     "stream",
					InputTokens:  in,
					OutputTokens: outTokens,
					CostUSD:      CalculateCost(req.Model, in, outTokens),
					Latency:      time.Since(start),
				})
			}
			if !send(ctx, out, c) {
				// Drain so the provider goroutine can exit.
				for range src {
				}
				return
			}
		}
	}()
	return out, nil
}

// promptTokens estimates the input of a request whose provider reported no
// usage.
func promptTokens(req ChatRequest) int {
	n := 0
	for _, m := range req.Messages {
		n += tokenizer.Estimate(m.Content)
	}
	return n
}

func (g *gateway) Embed(ctx context.Context, req EmbeddingRequest) (*EmbeddingResponse, error) {
	providerName := req.Provider
	if providerName == "" {
		providerName = g.embeddingProvider
	}
	if providerName == "" {
		providerName = g.defaultProvider
	}

	p, err := g.provider(providerName)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := p.Embed(ctx, req)
	if err != nil {
		return nil, err
	}
	g.report(UsageRecord{
		Provider:    p.Name(),
		Model:       resp.Model,
		Endpoint:    "embed",
		InputTokens: resp.Tokens,
		CostUSD:     resp.CostUSD,
		Latency:     time.Since(start),
	})
	return resp, nil
}
