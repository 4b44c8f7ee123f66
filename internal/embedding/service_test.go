package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikhilbhutani/docchat/internal/apperr"
	"github.com/nikhilbhutani/docchat/internal/cache"
	"github.com/nikhilbhutani/docchat/internal/llm/llmtest"
)

func TestEmbedEmptyInput(t *testing.T) {
	gw := llmtest.New()
	svc := NewService(gw, "")

	vecs, err := svc.Embed(context.Background(), nil)
	assert.NoError(t, err)
	assert.Nil(t, vecs)
	assert.Empty(t, gw.EmbedCalls)
}

func TestEmbedBatchesAndPreservesOrder(t *testing.T) {
	gw := llmtest.New()
	svc := NewService(gw, "m")

	texts := make([]string, 250)
	for i := range texts {
		texts[i] = fmt.Sprintf("chunk %d", i)
	}

	vecs, err := svc.Embed(context.Background(), texts)
	require.NoError(t, err)
	require.Len(t, vecs, 250)

	require.Len(t, gw.EmbedCalls, 3)
	assert.Len(t, gw.EmbedCalls[0], 100)
	assert.Len(t, gw.EmbedCalls[2], 50)

	want, _ := llmtest.HashEmbedding([]string{texts[137]})
	assert.Equal(t, want[0], vecs[137])
}

func TestEmbedProviderFailure(t *testing.T) {
	gw := llmtest.New()
	gw.Embedder = func([]string) ([][]float32, error) { return nil, errors.New("quota exceeded") }
	svc := NewService(gw, "")

	_, err := svc.Embed(context.Background(), []string{"a"})
	assert.ErrorIs(t, err, apperr.ErrProvider)

	_, err = svc.EmbedSingle(context.Background(), "a")
	assert.ErrorIs(t, err, apperr.ErrProvider)
}

func TestEmbedCountMismatch(t *testing.T) {
	gw := llmtest.New()
	gw.Embedder = func([]string) ([][]float32, error) { return [][]float32{{1}}, nil }
	svc := NewService(gw, "")

	_, err := svc.Embed(context.Background(), []string{"a", "b"})
	assert.ErrorIs(t, err, apperr.ErrProvider)
}

type mapCache struct {
	data    map[string][]byte
	failGet bool
	sets    int
}

func (m *mapCache) Get(_ context.Context, key string, dest any) error {
	if m.failGet {
		return errors.New("connection refused")
	}
	b, ok := m.data[key]
	if !ok {
		return cache.ErrMiss
	}
	return json.Unmarshal(b, dest)
}

func (m *mapCache) Set(_ context.Context, key string, value any, _ time.Duration) error {
	b, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.data[key] = b
	m.sets++
	return nil
}

func TestCachedEmbedderHitsCache(t *testing.T) {
	gw := llmtest.New()
	c := &mapCache{data: map[string][]byte{}}
	e := NewCachedEmbedder(NewService(gw, "m"), c, "m", time.Hour)

	first, err := e.EmbedSingle(context.Background(), "what is my dosage?")
	require.NoError(t, err)
	second, err := e.EmbedSingle(context.Background(), "what is my dosage?")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Len(t, gw.EmbedCalls, 1)
	assert.Equal(t, 1, c.sets)
}

func TestCachedEmbedderBypassesBrokenCache(t *testing.T) {
	gw := llmtest.New()
	c := &mapCache{data: map[string][]byte{}, failGet: true}
	e := NewCachedEmbedder(NewService(gw, "m"), c, "m", time.Hour)

	vec, err := e.EmbedSingle(context.Background(), "q")
	require.NoError(t, err)
	assert.Len(t, vec, 4)
	assert.Len(t, gw.EmbedCalls, 1)
}

func TestCachedEmbedderBatchPassThrough(t *testing.T) {
	gw := llmtest.New()
	c := &mapCache{data: map[string][]byte{}}
	e := NewCachedEmbedder(NewService(gw, "m"), c, "m", time.Hour)

	vecs, err := e.Embed(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Len(t, vecs, 2)
	assert.Zero(t, c.sets)
}
