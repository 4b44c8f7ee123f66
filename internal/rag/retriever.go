package rag

import (
	"context"
	"fmt"

	"github.com/nikhilbhutani/docchat/internal/embedding"
	"github.com/nikhilbhutani/docchat/internal/models"
	"github.com/nikhilbhutani/docchat/internal/vectorstore"
)

const DefaultCandidates = 20

// Retriever finds chunks of one session similar to a query. The index is
// searched by user only; matches from the user's other sessions are dropped
// afterwards, so fewer than the candidate count may come back.
type Retriever struct {
	index      vectorstore.Index
	embedder   embedding.Embedder
	candidates int
}

func NewRetriever(index vectorstore.Index, embedder embedding.Embedder, candidates int) *Retriever {
	if candidates <= 0 {
		candidates = DefaultCandidates
	}
	return &Retriever{index: index, embedder: embedder, candidates: candidates}
}

func (r *Retriever) Retrieve(ctx context.Context, userID, sessionID, query string) ([]string, error) {
	vec, err := r.embedder.EmbedSingle(ctx, query)
	if err != nil {
		return nil, err
	}

	matches, err := r.index.Query(ctx, vec, r.candidates, vectorstore.Metadata{models.MetaUserID: userID})
	if err != nil {
		return nil, fmt.Errorf("query index: %w", err)
	}

	var docs []string
	for _, m := range matches {
		if m.Metadata.String(models.MetaSessionID) == sessionID {
			docs = append(docs, m.Document)
		}
	}
	return docs, nil
}
