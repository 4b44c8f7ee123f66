package queue

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
)

// TypeStoragePurge removes an object from object storage after its
// document was detached from a session.
const TypeStoragePurge = "storage:purge"

type StoragePurgePayload struct {
	Path string `json:"path"`
}

func NewStoragePurgeTask(path string) (*asynq.Task, error) {
	if path == "" {
		return nil, errors.New("storage purge: empty path")
	}
	data, err := json.Marshal(StoragePurgePayload{Path: path})
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return asynq.NewTask(TypeStoragePurge, data), nil
}

func ParseStoragePurge(t *asynq.Task) (StoragePurgePayload, error) {
	var p StoragePurgePayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return p, fmt.Errorf("unmarshal payload: %w", err)
	}
	if p.Path == "" {
		return p, errors.New("storage purge: empty path")
	}
	return p, nil
}
