package vectorstore

import (
	"context"
	"math"
	"reflect"
	"sort"
	"sync"
)

type memEntry struct {
	Record
	embedding []float32
	seq       int
}

// MemoryStore is an in-process Index scoring by cosine similarity. It backs
// local development and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]*memEntry
	seq     int
}

var _ Index = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]*memEntry)}
}

func (s *MemoryStore) Add(_ context.Context, ids, documents []string, metadatas []Metadata, embeddings [][]float32) error {
	if err := checkLengths(ids, documents, metadatas, embeddings); err != nil {
		return err
	}

	normalized := make([]Metadata, len(metadatas))
	for i, m := range metadatas {
		n, err := normalize(m)
		if err != nil {
			return err
		}
		normalized[i] = n
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i, id := range ids {
		seq := s.seq
		if old, ok := s.entries[id]; ok {
			seq = old.seq
		} else {
			s.seq++
		}
		s.entries[id] = &memEntry{
			Record:    Record{ID: id, Document: documents[i], Metadata: normalized[i]},
			embedding: append([]float32(nil), embeddings[i]...),
			seq:       seq,
		}
	}
	return nil
}

func (s *MemoryStore) Query(_ context.Context, embedding []float32, topK int, filter Metadata) ([]Match, error) {
	f, err := normalize(filter)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	var matches []Match
	seqs := make(map[string]int)
	for _, e := range s.entries {
		if !contains(e.Metadata, f) {
			continue
		}
		matches = append(matches, Match{Record: e.Record, Score: cosine(embedding, e.embedding)})
		seqs[e.ID] = e.seq
	}
	s.mu.RUnlock()

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return seqs[matches[i].ID] < seqs[matches[j].ID]
	})
	if topK > 0 && len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

func (s *MemoryStore) Get(_ context.Context, filter Metadata) ([]Record, error) {
	f, err := normalize(filter)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	var hits []*memEntry
	for _, e := range s.entries {
		if contains(e.Metadata, f) {
			hits = append(hits, e)
		}
	}
	s.mu.RUnlock()

	sort.Slice(hits, func(i, j int) bool { return hits[i].seq < hits[j].seq })
	out := make([]Record, len(hits))
	for i, e := range hits {
		out[i] = e.Record
	}
	return out, nil
}

func (s *MemoryStore) Delete(_ context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		delete(s.entries, id)
	}
	return nil
}

// Len reports the number of stored entries.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func contains(meta, filter Metadata) bool {
	for k, want := range filter {
		got, ok := meta[k]
		if !ok || !reflect.DeepEqual(got, want) {
			return false
		}
	}
	return true
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
