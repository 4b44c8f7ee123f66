// Package document ingests uploaded files into a session: it stores the raw
// bytes, attaches the document to the session and indexes its chunks.
package document

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/nikhilbhutani/docchat/internal/apperr"
	"github.com/nikhilbhutani/docchat/internal/embedding"
	"github.com/nikhilbhutani/docchat/internal/metrics"
	"github.com/nikhilbhutani/docchat/internal/models"
	"github.com/nikhilbhutani/docchat/internal/session"
	"github.com/nikhilbhutani/docchat/internal/storage"
	"github.com/nikhilbhutani/docchat/internal/vectorstore"
	"github.com/nikhilbhutani/docchat/pkg/chunker"
)

const (
	MsgProcessed = "Document processed and embedded"
	MsgNoText    = "No readable text found in document"
	MsgDuplicate = "Document already exists in this session. Skipping re-embedding."
)

// Purger removes stored objects out of band.
type Purger interface {
	EnqueueStoragePurge(ctx context.Context, path string) error
}

type Service struct {
	sessions  session.Store
	index     vectorstore.Index
	embedder  embedding.Embedder
	storage   storage.Storage
	extractor Extractor
	purger    Purger
	metrics   *metrics.Metrics
	chunkSize int
	now       func() time.Time
}

type Option func(*Service)

// WithPurger hands object removal to a background queue instead of deleting
// inline.
func WithPurger(p Purger) Option {
	return func(s *Service) { s.purger = p }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithExtractor(e Extractor) Option {
	return func(s *Service) { s.extractor = e }
}

func WithChunkSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.chunkSize = n
		}
	}
}

func NewService(sessions session.Store, index vectorstore.Index, embedder embedding.Embedder, store storage.Storage, opts ...Option) *Service {
	s := &Service{
		sessions:  sessions,
		index:     index,
		embedder:  embedder,
		storage:   store,
		extractor: NewTextExtractor(),
		chunkSize: chunker.DefaultSize,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type Upload struct {
	UserID      string
	SessionID   string
	FileName    string
	ContentType string
	Data        []byte
}

type Result struct {
	Message    string   `json:"message"`
	DocID      string   `json:"doc_id"`
	StorageURL string   `json:"cloudinary_url"`
	ChunkCount int      `json:"chunk_count"`
	ChunkIDs   []string `json:"chunk_ids"`
}

// DocID is the hex SHA-256 of data.
func DocID(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// ChunkID names chunk i of a document within a session.
func ChunkID(docID string, i int, sessionID string) string {
	return fmt.Sprintf("%s_chunk_%d_session_%s", docID, i, sessionID)
}

// Process ingests one upload. Re-uploading bytes already attached to the
// session is a no-op that reports MsgDuplicate. A failure after the document
// is attached is not rolled back.
func (s *Service) Process(ctx context.Context, up Upload) (*Result, error) {
	if !s.extractor.Supported(up.ContentType) {
		return nil, apperr.ClientInput("Unsupported file type")
	}
	if err := s.extractor.Validate(up.Data, up.ContentType); err != nil {
		s.metrics.Ingested("corrupt", 0)
		return nil, err
	}

	docID := DocID(up.Data)
	log := slog.With("user_id", up.UserID, "session_id", up.SessionID, "doc_id", docID)

	start := time.Now()
	url, err := s.storage.Upload(ctx, storage.DocumentPath(up.UserID, up.SessionID, docID), up.Data, up.ContentType)
	s.metrics.ObserveStage("upload", start, err)
	if err != nil {
		return nil, apperr.Provider("upload document", err)
	}

	doc := models.Document{
		DocID: docID,
		Metadata: models.DocumentMetadata{
			FileName: up.FileName,
			FileType: up.ContentType,
			FileSize: int64(len(up.Data)),
		},
		StorageURL: url,
		UploadedAt: s.now().UTC(),
	}
	if n := s.extractor.PageCount(up.Data, up.ContentType); n > 0 {
		doc.Metadata.PageCount = &n
	}

	if _, err := s.sessions.Ensure(ctx, up.UserID, up.SessionID); err != nil {
		return nil, fmt.Errorf("ensure session: %w", err)
	}
	added, err := s.sessions.AppendDocument(ctx, up.UserID, up.SessionID, doc)
	if err != nil {
		return nil, fmt.Errorf("attach document: %w", err)
	}

	result := &Result{DocID: docID, StorageURL: url, ChunkIDs: []string{}}
	if !added {
		log.Info("document already attached, skipping")
		s.metrics.Ingested("duplicate", 0)
		result.Message = MsgDuplicate
		return result, nil
	}

	start = time.Now()
	chunks, err := s.extractor.Chunks(up.Data, up.ContentType, s.chunkSize)
	s.metrics.ObserveStage("extract", start, err)
	if err != nil {
		log.Warn("text extraction failed", "error", err)
		chunks = nil
	}
	if chunker.AllBlank(chunks) {
		s.metrics.Ingested("empty", 0)
		result.Message = MsgNoText
		return result, nil
	}

	start = time.Now()
	vectors, err := s.embedder.Embed(ctx, chunks)
	s.metrics.ObserveStage("embed", start, err)
	if err != nil {
		return nil, err
	}

	ids := make([]string, len(chunks))
	metas := make([]vectorstore.Metadata, len(chunks))
	for i := range chunks {
		ids[i] = ChunkID(docID, i, up.SessionID)
		metas[i] = vectorstore.Metadata{
			models.MetaDocID:      docID,
			models.MetaUserID:     up.UserID,
			models.MetaSessionID:  up.SessionID,
			models.MetaChunkIndex: i,
		}
	}

	start = time.Now()
	err = s.index.Add(ctx, ids, chunks, metas, vectors)
	s.metrics.ObserveStage("index", start, err)
	if err != nil {
		return nil, fmt.Errorf("index chunks: %w", err)
	}

	log.Info("document ingested", "chunks", len(chunks), "file_name", up.FileName)
	s.metrics.Ingested("embedded", len(chunks))
	result.Message = MsgProcessed
	result.ChunkCount = len(chunks)
	result.ChunkIDs = ids
	return result, nil
}

// Delete detaches docID from the session and drops its chunks in that
// session. It returns the number of chunks removed.
func (s *Service) Delete(ctx context.Context, userID, docID, sessionID string) (int, error) {
	sess, err := s.sessions.Find(ctx, userID, sessionID)
	if err != nil {
		return 0, err
	}
	if !sess.HasDocument(docID) {
		return 0, apperr.NotFound("Document not found in session")
	}

	log := slog.With("user_id", userID, "session_id", sessionID, "doc_id", docID)

	if err := s.sessions.RemoveDocument(ctx, userID, sessionID, docID); err != nil {
		return 0, fmt.Errorf("detach document: %w", err)
	}

	path := storage.DocumentPath(userID, sessionID, docID)
	if err := s.removeObject(ctx, path); err != nil {
		log.Warn("failed to remove stored document", "path", path, "error", err)
	}

	records, err := s.index.Get(ctx, vectorstore.Metadata{models.MetaDocID: docID})
	if err != nil {
		return 0, fmt.Errorf("lookup chunks: %w", err)
	}
	var ids []string
	for _, r := range records {
		if r.Metadata.String(models.MetaSessionID) == sessionID {
			ids = append(ids, r.ID)
		}
	}
	if err := s.index.Delete(ctx, ids); err != nil {
		return 0, fmt.Errorf("delete chunks: %w", err)
	}

	log.Info("document deleted", "chunks", len(ids))
	return len(ids), nil
}

func (s *Service) removeObject(ctx context.Context, path string) error {
	if s.purger != nil {
		return s.purger.EnqueueStoragePurge(ctx, path)
	}
	return s.storage.Delete(ctx, path)
}

// List returns the documents attached to a session.
func (s *Service) List(ctx context.Context, userID, sessionID string) ([]models.Document, error) {
	sess, err := s.sessions.Find(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.Documents == nil {
		return []models.Document{}, nil
	}
	return sess.Documents, nil
}

// DebugChunks returns the indexed chunks of one document in one session.
func (s *Service) DebugChunks(ctx context.Context, userID, docID, sessionID string) ([]vectorstore.Record, error) {
	records, err := s.index.Get(ctx, vectorstore.Metadata{models.MetaDocID: docID})
	if err != nil {
		return nil, fmt.Errorf("lookup chunks: %w", err)
	}
	var out []vectorstore.Record
	for _, r := range records {
		if r.Metadata.String(models.MetaSessionID) == sessionID && r.Metadata.String(models.MetaUserID) == userID {
			out = append(out, r)
		}
	}
	if len(out) == 0 {
		return nil, apperr.NotFound(fmt.Sprintf("No chunks found for doc_id: %s, session_id: %s, and user_id: %s", docID, sessionID, userID))
	}
	return out, nil
}
