package embedding

import (
	"context"
	"errors"
	"fmt"

	"github.com/nikhilbhutani/docchat/internal/apperr"
	"github.com/nikhilbhutani/docchat/internal/llm"
)

const batchSize = 100

// Embedder turns text into vectors. Output order matches input order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedSingle(ctx context.Context, text string) ([]float32, error)
}

type Service struct {
	gateway llm.Gateway
	model   string
}

var _ Embedder = (*Service)(nil)

func NewService(gw llm.Gateway, model string) *Service {
	if model == "" {
		model = "text-embedding-ada-002"
	}
	return &Service{gateway: gw, model: model}
}

func (s *Service) Model() string { return s.model }

// Embed returns one vector per text. An empty input is a no-op, not an
// error; provider failures match apperr.ErrProvider.
func (s *Service) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	all := make([][]float32, 0, len(texts))
	for i := 0; i < len(texts); i += batchSize {
		end := min(i+batchSize, len(texts))
		batch := texts[i:end]

		resp, err := s.gateway.Embed(ctx, llm.EmbeddingRequest{
			Model: s.model,
			Input: batch,
		})
		if err != nil {
			return nil, apperr.Provider(fmt.Sprintf("embed batch %d", i/batchSize), err)
		}
		if len(resp.Embeddings) != len(batch) {
			return nil, apperr.Provider(fmt.Sprintf("embed batch %d", i/batchSize),
				fmt.Errorf("got %d vectors for %d inputs", len(resp.Embeddings), len(batch)))
		}

		all = append(all, resp.Embeddings...)
	}

	return all, nil
}

func (s *Service) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := s.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(embeddings) == 0 {
		return nil, apperr.Provider("embed query", errors.New("no embedding returned"))
	}
	return embeddings[0], nil
}
