package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"time"

	"github.com/nikhilbhutani/docchat/internal/cache"
)

// VectorCache is the subset of cache.Cache the embedder needs.
type VectorCache interface {
	Get(ctx context.Context, key string, dest any) error
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
}

// CachedEmbedder memoises single query embeddings. Batch calls pass straight
// through; ingestion never repeats a batch. A broken cache only costs the
// lookup.
type CachedEmbedder struct {
	next  Embedder
	cache VectorCache
	model string
	ttl   time.Duration
}

var _ Embedder = (*CachedEmbedder)(nil)

func NewCachedEmbedder(next Embedder, c VectorCache, model string, ttl time.Duration) *CachedEmbedder {
	return &CachedEmbedder{next: next, cache: c, model: model, ttl: ttl}
}

func (e *CachedEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return e.next.Embed(ctx, texts)
}

func (e *CachedEmbedder) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	key := e.key(text)

	var vec []float32
	err := e.cache.Get(ctx, key, &vec)
	switch {
	case err == nil && len(vec) > 0:
		return vec, nil
	case err != nil && !errors.Is(err, cache.ErrMiss):
		slog.Warn("embedding cache read failed", "error", err)
	}

	vec, err = e.next.EmbedSingle(ctx, text)
	if err != nil {
		return nil, err
	}

	if err := e.cache.Set(ctx, key, vec, e.ttl); err != nil {
		slog.Warn("embedding cache write failed", "error", err)
	}
	return vec, nil
}

func (e *CachedEmbedder) key(text string) string {
	sum := sha256.Sum256([]byte(e.model + "\x00" + text))
	return "emb:" + hex.EncodeToString(sum[:])
}
