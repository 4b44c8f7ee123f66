package document

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikhilbhutani/docchat/internal/apperr"
	"github.com/nikhilbhutani/docchat/internal/embedding"
	"github.com/nikhilbhutani/docchat/internal/llm/llmtest"
	"github.com/nikhilbhutani/docchat/internal/session"
	"github.com/nikhilbhutani/docchat/internal/storage"
	"github.com/nikhilbhutani/docchat/internal/vectorstore"
	"github.com/nikhilbhutani/docchat/pkg/chunker"
	"github.com/nikhilbhutani/docchat/pkg/textextract"
)

type fakeStorage struct {
	mu        sync.Mutex
	objects   map[string][]byte
	deleted   []string
	deleteErr error
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{objects: map[string][]byte{}}
}

func (f *fakeStorage) Upload(_ context.Context, path string, data []byte, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[path] = data
	return "https://files.test/" + path, nil
}

func (f *fakeStorage) Delete(_ context.Context, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, path)
	if f.deleteErr != nil {
		return f.deleteErr
	}
	delete(f.objects, path)
	return nil
}

// plainExtractor treats the bytes as text and accepts anything textextract
// supports. Bytes starting with "BROKEN" fail validation.
type plainExtractor struct{}

func (plainExtractor) Supported(mimeType string) bool { return textextract.Supported(mimeType) }

func (plainExtractor) Validate(data []byte, _ string) error {
	if strings.HasPrefix(string(data), "BROKEN") {
		return apperr.Corrupt(errors.New("bad xref"))
	}
	return nil
}

func (plainExtractor) Chunks(data []byte, _ string, size int) ([]string, error) {
	return chunker.Split(string(data), size), nil
}

func (plainExtractor) PageCount([]byte, string) int { return 1 }

type recordingPurger struct{ paths []string }

func (p *recordingPurger) EnqueueStoragePurge(_ context.Context, path string) error {
	p.paths = append(p.paths, path)
	return nil
}

type fixture struct {
	svc      *Service
	sessions *session.MemoryStore
	index    *vectorstore.MemoryStore
	store    *fakeStorage
	gw       *llmtest.Gateway
}

func newFixture(opts ...Option) *fixture {
	f := &fixture{
		sessions: session.NewMemoryStore(),
		index:    vectorstore.NewMemoryStore(),
		store:    newFakeStorage(),
		gw:       llmtest.New(),
	}
	opts = append([]Option{WithExtractor(plainExtractor{}), WithChunkSize(10)}, opts...)
	f.svc = NewService(f.sessions, f.index, embedding.NewService(f.gw, "m"), f.store, opts...)
	return f
}

func upload(session, body string) Upload {
	return Upload{
		UserID:      "u1",
		SessionID:   session,
		FileName:    "notes.pdf",
		ContentType: textextract.MimePDF,
		Data:        []byte(body),
	}
}

func TestProcessEmbedsNewDocument(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	res, err := f.svc.Process(ctx, upload("s1", "0123456789abcdefghijXYZ"))
	require.NoError(t, err)

	docID := DocID([]byte("0123456789abcdefghijXYZ"))
	assert.Equal(t, MsgProcessed, res.Message)
	assert.Equal(t, docID, res.DocID)
	assert.Equal(t, 3, res.ChunkCount)
	assert.Equal(t, []string{
		docID + "_chunk_0_session_s1",
		docID + "_chunk_1_session_s1",
		docID + "_chunk_2_session_s1",
	}, res.ChunkIDs)
	assert.Equal(t, "https://files.test/"+storage.DocumentPath("u1", "s1", docID), res.StorageURL)

	recs, err := f.index.Get(ctx, vectorstore.Metadata{"doc_id": docID})
	require.NoError(t, err)
	require.Len(t, recs, 3)
	var rebuilt strings.Builder
	for _, r := range recs {
		rebuilt.WriteString(r.Document)
		assert.Equal(t, "u1", r.Metadata.String("user_id"))
		assert.Equal(t, "s1", r.Metadata.String("session_id"))
	}
	assert.Equal(t, "0123456789abcdefghijXYZ", rebuilt.String())

	sess, err := f.sessions.Find(ctx, "u1", "s1")
	require.NoError(t, err)
	require.Len(t, sess.Documents, 1)
	assert.Equal(t, "notes.pdf", sess.Documents[0].Metadata.FileName)
	assert.Equal(t, int64(23), sess.Documents[0].Metadata.FileSize)
	require.NotNil(t, sess.Documents[0].Metadata.PageCount)
}

func TestProcessIsIdempotentPerSession(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.svc.Process(ctx, upload("s1", "same bytes every time"))
	require.NoError(t, err)
	calls := len(f.gw.EmbedCalls)

	again, err := f.svc.Process(ctx, upload("s1", "same bytes every time"))
	require.NoError(t, err)
	assert.Equal(t, MsgDuplicate, again.Message)
	assert.Zero(t, again.ChunkCount)
	assert.Empty(t, again.ChunkIDs)
	assert.Len(t, f.gw.EmbedCalls, calls)

	recs, _ := f.index.Get(ctx, vectorstore.Metadata{"doc_id": again.DocID, "session_id": "s1"})
	assert.Len(t, recs, 3)

	sess, _ := f.sessions.Find(ctx, "u1", "s1")
	assert.Len(t, sess.Documents, 1)
}

func TestProcessSameBytesOtherSessionIsIndexedSeparately(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	a, err := f.svc.Process(ctx, upload("s1", "shared content"))
	require.NoError(t, err)
	b, err := f.svc.Process(ctx, upload("s2", "shared content"))
	require.NoError(t, err)

	assert.Equal(t, a.DocID, b.DocID)
	assert.Equal(t, MsgProcessed, b.Message)
	assert.Equal(t, 4, f.index.Len())
}

func TestProcessRejectsBeforeSideEffects(t *testing.T) {
	tests := []struct {
		name string
		up   Upload
		kind error
	}{
		{"unsupported type", Upload{UserID: "u1", SessionID: "s1", ContentType: "image/png", Data: []byte("png")}, apperr.ErrClientInput},
		{"corrupt", upload("s1", "BROKEN pdf"), apperr.ErrCorruptDocument},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			_, err := f.svc.Process(context.Background(), tt.up)
			assert.ErrorIs(t, err, tt.kind)
			assert.Empty(t, f.store.objects)
			_, err = f.sessions.Find(context.Background(), "u1", "s1")
			assert.ErrorIs(t, err, apperr.ErrNotFound)
		})
	}
}

func TestProcessBlankDocument(t *testing.T) {
	f := newFixture()

	res, err := f.svc.Process(context.Background(), upload("s1", "   \n\t   "))
	require.NoError(t, err)
	assert.Equal(t, MsgNoText, res.Message)
	assert.Zero(t, res.ChunkCount)
	assert.Empty(t, f.gw.EmbedCalls)
	assert.Zero(t, f.index.Len())
}

func TestProcessEmbeddingFailureKeepsAttachment(t *testing.T) {
	f := newFixture()
	f.gw.Embedder = func([]string) ([][]float32, error) { return nil, errors.New("rate limited") }

	_, err := f.svc.Process(context.Background(), upload("s1", "some text"))
	assert.ErrorIs(t, err, apperr.ErrProvider)

	sess, err := f.sessions.Find(context.Background(), "u1", "s1")
	require.NoError(t, err)
	assert.Len(t, sess.Documents, 1)
	assert.Zero(t, f.index.Len())
}

func TestDeleteRemovesOnlyThatSession(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	res, err := f.svc.Process(ctx, upload("s1", "shared content"))
	require.NoError(t, err)
	_, err = f.svc.Process(ctx, upload("s2", "shared content"))
	require.NoError(t, err)

	n, err := f.svc.Delete(ctx, "u1", res.DocID, "s1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	left, _ := f.index.Get(ctx, vectorstore.Metadata{"doc_id": res.DocID})
	require.Len(t, left, 2)
	for _, r := range left {
		assert.Equal(t, "s2", r.Metadata.String("session_id"))
	}

	sess, _ := f.sessions.Find(ctx, "u1", "s1")
	assert.Empty(t, sess.Documents)
	assert.Equal(t, []string{storage.DocumentPath("u1", "s1", res.DocID)}, f.store.deleted)
}

func TestDeleteStorageFailureIsNotFatal(t *testing.T) {
	f := newFixture()
	f.store.deleteErr = errors.New("bucket unreachable")
	ctx := context.Background()

	res, err := f.svc.Process(ctx, upload("s1", "content"))
	require.NoError(t, err)

	n, err := f.svc.Delete(ctx, "u1", res.DocID, "s1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestDeleteUsesPurgerWhenConfigured(t *testing.T) {
	p := &recordingPurger{}
	f := newFixture(WithPurger(p))
	ctx := context.Background()

	res, err := f.svc.Process(ctx, upload("s1", "content"))
	require.NoError(t, err)
	_, err = f.svc.Delete(ctx, "u1", res.DocID, "s1")
	require.NoError(t, err)

	assert.Equal(t, []string{storage.DocumentPath("u1", "s1", res.DocID)}, p.paths)
	assert.Empty(t, f.store.deleted)
}

func TestDeleteNotFound(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.svc.Delete(ctx, "u1", "nope", "s1")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.EqualError(t, err, "Session not found")

	_, err = f.svc.Process(ctx, upload("s1", "content"))
	require.NoError(t, err)
	_, err = f.svc.Delete(ctx, "u1", "nope", "s1")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.EqualError(t, err, "Document not found in session")
}

func TestListAndDebugChunks(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	res, err := f.svc.Process(ctx, upload("s1", "0123456789ab"))
	require.NoError(t, err)

	docs, err := f.svc.List(ctx, "u1", "s1")
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, res.DocID, docs[0].DocID)

	chunks, err := f.svc.DebugChunks(ctx, "u1", res.DocID, "s1")
	require.NoError(t, err)
	assert.Len(t, chunks, 2)

	_, err = f.svc.DebugChunks(ctx, "u2", res.DocID, "s1")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = f.svc.List(ctx, "u1", "missing")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}
