package vectorstore

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// PgVectorStore keeps chunks in the doc_chunks table. Filters use jsonb
// containment on metadata; similarity is cosine.
type PgVectorStore struct {
	db        *pgxpool.Pool
	dimension int
}

var _ Index = (*PgVectorStore)(nil)

func NewPgVectorStore(db *pgxpool.Pool, dimension int) *PgVectorStore {
	return &PgVectorStore{db: db, dimension: dimension}
}

func (s *PgVectorStore) Add(ctx context.Context, ids, documents []string, metadatas []Metadata, embeddings [][]float32) error {
	if err := checkLengths(ids, documents, metadatas, embeddings); err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}
	for i, e := range embeddings {
		if s.dimension > 0 && len(e) != s.dimension {
			return fmt.Errorf("embedding %d has dimension %d, index expects %d", i, len(e), s.dimension)
		}
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for i, id := range ids {
		meta := metadatas[i]
		if meta == nil {
			meta = Metadata{}
		}
		batch.Queue(
			`INSERT INTO doc_chunks (id, document, metadata, embedding)
			 VALUES ($1, $2, $3, $4)
			 ON CONFLICT (id) DO UPDATE
			 SET document = EXCLUDED.document, metadata = EXCLUDED.metadata, embedding = EXCLUDED.embedding`,
			id, documents[i], meta, pgvector.NewVector(embeddings[i]),
		)
	}

	br := tx.SendBatch(ctx, batch)
	for i := range ids {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return fmt.Errorf("upsert chunk %s: %w", ids[i], err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("close batch: %w", err)
	}

	return tx.Commit(ctx)
}

func (s *PgVectorStore) Query(ctx context.Context, embedding []float32, topK int, filter Metadata) ([]Match, error) {
	if topK <= 0 {
		topK = 10
	}
	if filter == nil {
		filter = Metadata{}
	}

	rows, err := s.db.Query(ctx,
		`SELECT id, document, metadata, 1 - (embedding <=> $1) AS score
		 FROM doc_chunks
		 WHERE metadata @> $2
		 ORDER BY embedding <=> $1
		 LIMIT $3`,
		pgvector.NewVector(embedding), filter, topK,
	)
	if err != nil {
		return nil, fmt.Errorf("similarity search: %w", err)
	}
	defer rows.Close()

	var matches []Match
	for rows.Next() {
		var m Match
		if err := rows.Scan(&m.ID, &m.Document, &m.Metadata, &m.Score); err != nil {
			return nil, fmt.Errorf("scan match: %w", err)
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

func (s *PgVectorStore) Get(ctx context.Context, filter Metadata) ([]Record, error) {
	if filter == nil {
		filter = Metadata{}
	}

	rows, err := s.db.Query(ctx,
		`SELECT id, document, metadata FROM doc_chunks
		 WHERE metadata @> $1
		 ORDER BY created_at, id`,
		filter,
	)
	if err != nil {
		return nil, fmt.Errorf("get chunks: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.ID, &r.Document, &r.Metadata); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

func (s *PgVectorStore) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := s.db.Exec(ctx, "DELETE FROM doc_chunks WHERE id = ANY($1)", ids); err != nil {
		return fmt.Errorf("delete chunks: %w", err)
	}
	return nil
}
