package workers

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/nikhilbhutani/docchat/internal/queue"
)

// ObjectDeleter is the part of storage.Storage the purge worker needs.
type ObjectDeleter interface {
	Delete(ctx context.Context, path string) error
}

type PurgeWorker struct {
	store ObjectDeleter
}

func NewPurgeWorker(store ObjectDeleter) *PurgeWorker {
	return &PurgeWorker{store: store}
}

// ProcessTask deletes the object named in the task. Storage errors are
// returned so asynq retries; malformed payloads are not retried.
func (w *PurgeWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	p, err := queue.ParseStoragePurge(t)
	if err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}

	if err := w.store.Delete(ctx, p.Path); err != nil {
		slog.Warn("storage purge failed", "path", p.Path, "error", err)
		return fmt.Errorf("purge %s: %w", p.Path, err)
	}

	slog.Info("storage object purged", "path", p.Path)
	return nil
}
