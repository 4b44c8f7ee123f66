package workers

import (
	"context"
	"errors"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikhilbhutani/docchat/internal/queue"
)

type fakeDeleter struct {
	deleted []string
	err     error
}

func (f *fakeDeleter) Delete(_ context.Context, path string) error {
	if f.err != nil {
		return f.err
	}
	f.deleted = append(f.deleted, path)
	return nil
}

func TestPurgeWorkerDeletesObject(t *testing.T) {
	store := &fakeDeleter{}
	task, err := queue.NewStoragePurgeTask("users/u1/sessions/1/abc")
	require.NoError(t, err)
	assert.Equal(t, queue.TypeStoragePurge, task.Type())

	require.NoError(t, NewPurgeWorker(store).ProcessTask(context.Background(), task))
	assert.Equal(t, []string{"users/u1/sessions/1/abc"}, store.deleted)
}

func TestPurgeWorkerRetriesStorageErrors(t *testing.T) {
	boom := errors.New("s3 unavailable")
	task, _ := queue.NewStoragePurgeTask("a")

	err := NewPurgeWorker(&fakeDeleter{err: boom}).ProcessTask(context.Background(), task)
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, asynq.SkipRetry)
}

func TestPurgeWorkerSkipsMalformedPayload(t *testing.T) {
	task := asynq.NewTask(queue.TypeStoragePurge, []byte(`{"path":""}`))

	err := NewPurgeWorker(&fakeDeleter{}).ProcessTask(context.Background(), task)
	assert.ErrorIs(t, err, asynq.SkipRetry)

	_, err = queue.NewStoragePurgeTask("")
	assert.Error(t, err)
}
