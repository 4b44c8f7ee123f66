package vectorstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

var ErrLengthMismatch = errors.New("ids, documents, metadatas and embeddings differ in length")

// Metadata is the JSON object stored next to each vector. Filters match by
// JSON equality on every key they name.
type Metadata map[string]any

// String returns m[key] when it is a string.
func (m Metadata) String(key string) string {
	s, _ := m[key].(string)
	return s
}

type Record struct {
	ID       string   `json:"id"`
	Document string   `json:"document"`
	Metadata Metadata `json:"metadata"`
}

type Match struct {
	Record
	Score float64 `json:"score"`
}

// Index is a similarity index with server-side metadata filtering.
//
// Query applies only the filter it is given. Callers that need a narrower
// scope than the filter can express re-filter the returned matches.
type Index interface {
	// Add upserts entries; an existing id is overwritten.
	Add(ctx context.Context, ids, documents []string, metadatas []Metadata, embeddings [][]float32) error
	// Query returns up to topK filtered entries, most similar first.
	Query(ctx context.Context, embedding []float32, topK int, filter Metadata) ([]Match, error)
	// Get returns every entry matching filter.
	Get(ctx context.Context, filter Metadata) ([]Record, error)
	// Delete removes ids; absent ids are ignored.
	Delete(ctx context.Context, ids []string) error
}

func checkLengths(ids, documents []string, metadatas []Metadata, embeddings [][]float32) error {
	n := len(ids)
	if len(documents) != n || len(metadatas) != n || len(embeddings) != n {
		return fmt.Errorf("%w: %d/%d/%d/%d", ErrLengthMismatch, n, len(documents), len(metadatas), len(embeddings))
	}
	return nil
}

// normalize round-trips m through JSON so values compare the way jsonb
// containment does (all numbers become float64).
func normalize(m Metadata) (Metadata, error) {
	if m == nil {
		return Metadata{}, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode metadata: %w", err)
	}
	var out Metadata
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}
	return out, nil
}
