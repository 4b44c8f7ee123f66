// Package session persists chat sessions: their attached documents and the
// append-only message log.
package session

import (
	"context"

	"github.com/nikhilbhutani/docchat/internal/models"
)

// Store is keyed by (userID, sessionID). Lookups of a session that does not
// exist for that user fail with apperr.ErrNotFound.
type Store interface {
	Find(ctx context.Context, userID, sessionID string) (*models.Session, error)
	// Ensure returns the session, creating an empty one if needed.
	Ensure(ctx context.Context, userID, sessionID string) (*models.Session, error)
	// AppendDocument attaches doc unless a document with the same DocID is
	// already attached. It reports whether doc was added.
	AppendDocument(ctx context.Context, userID, sessionID string, doc models.Document) (bool, error)
	RemoveDocument(ctx context.Context, userID, sessionID, docID string) error
	// AppendMessage pushes msg and bumps updated_at.
	AppendMessage(ctx context.Context, userID, sessionID string, msg models.ChatMessage) error
	ListByUser(ctx context.Context, userID string) ([]models.Session, error)
	CountByUser(ctx context.Context, userID string) (int64, error)
}
