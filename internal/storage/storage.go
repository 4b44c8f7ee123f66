package storage

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/nikhilbhutani/docchat/internal/config"
)

// Storage holds raw uploads and generated audio. Upload overwrites an
// existing object at path and returns a URL clients can fetch it from.
type Storage interface {
	Upload(ctx context.Context, path string, data []byte, contentType string) (string, error)
	Delete(ctx context.Context, path string) error
}

// New builds the backend named in cfg. A minio bucket is created if it does
// not exist.
func New(ctx context.Context, cfg config.StorageConfig) (Storage, error) {
	switch cfg.Backend {
	case "", "minio":
		s, err := NewMinioStorage(cfg)
		if err != nil {
			return nil, err
		}
		if err := s.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		return s, nil
	case "supabase":
		if cfg.SupabaseURL == "" || cfg.SupabaseKey == "" {
			return nil, fmt.Errorf("supabase storage needs SUPABASE_URL and SUPABASE_SERVICE_KEY")
		}
		return NewSupabaseStorage(cfg.SupabaseURL, cfg.SupabaseKey, cfg.Bucket), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

// DocumentPath is where an uploaded document lives.
func DocumentPath(userID, sessionID, docID string) string {
	return fmt.Sprintf("users/%s/sessions/%s/%s", userID, sessionID, docID)
}

// AudioPath is where a synthesized answer lives.
func AudioPath(userID, sessionID, file string) string {
	return fmt.Sprintf("users/%s/sessions/%s/audio/%s", userID, sessionID, file)
}

// escapePath escapes each segment of an object path for use in a URL.
func escapePath(p string) string {
	parts := strings.Split(p, "/")
	for i, s := range parts {
		parts[i] = url.PathEscape(s)
	}
	return strings.Join(parts, "/")
}
