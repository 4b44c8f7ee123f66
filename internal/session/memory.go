package session

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/nikhilbhutani/docchat/internal/apperr"
	"github.com/nikhilbhutani/docchat/internal/models"
)

type memKey struct{ user, session string }

// MemoryStore keeps sessions in process. Returned sessions are copies.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[memKey]*models.Session
	now      func() time.Time
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[memKey]*models.Session), now: time.Now}
}

func (s *MemoryStore) Find(_ context.Context, userID, sessionID string) (*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[memKey{userID, sessionID}]
	if !ok {
		return nil, apperr.NotFound("Session not found")
	}
	return clone(sess), nil
}

func (s *MemoryStore) Ensure(_ context.Context, userID, sessionID string) (*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := memKey{userID, sessionID}
	sess, ok := s.sessions[k]
	if !ok {
		now := s.now().UTC()
		sess = &models.Session{
			SessionID: sessionID,
			UserID:    userID,
			Documents: []models.Document{},
			Messages:  []models.ChatMessage{},
			CreatedAt: now,
			UpdatedAt: now,
		}
		s.sessions[k] = sess
	}
	return clone(sess), nil
}

func (s *MemoryStore) AppendDocument(_ context.Context, userID, sessionID string, doc models.Document) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[memKey{userID, sessionID}]
	if !ok {
		return false, apperr.NotFound("Session not found")
	}
	if sess.HasDocument(doc.DocID) {
		return false, nil
	}
	sess.Documents = append(sess.Documents, doc)
	sess.UpdatedAt = s.now().UTC()
	return true, nil
}

func (s *MemoryStore) RemoveDocument(_ context.Context, userID, sessionID, docID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[memKey{userID, sessionID}]
	if !ok {
		return apperr.NotFound("Session not found")
	}
	kept := sess.Documents[:0]
	for _, d := range sess.Documents {
		if d.DocID != docID {
			kept = append(kept, d)
		}
	}
	sess.Documents = kept
	sess.UpdatedAt = s.now().UTC()
	return nil
}

func (s *MemoryStore) AppendMessage(_ context.Context, userID, sessionID string, msg models.ChatMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[memKey{userID, sessionID}]
	if !ok {
		return apperr.NotFound("Session not found")
	}
	sess.Messages = append(sess.Messages, msg)
	sess.UpdatedAt = s.now().UTC()
	return nil
}

func (s *MemoryStore) ListByUser(_ context.Context, userID string) ([]models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Session
	for k, sess := range s.sessions {
		if k.user == userID {
			out = append(out, *clone(sess))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].SessionID < out[j].SessionID
	})
	return out, nil
}

func (s *MemoryStore) CountByUser(_ context.Context, userID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for k := range s.sessions {
		if k.user == userID {
			n++
		}
	}
	return n, nil
}

func clone(s *models.Session) *models.Session {
	c := *s
	c.Documents = append([]models.Document{}, s.Documents...)
	c.Messages = append([]models.ChatMessage{}, s.Messages...)
	return &c
}
