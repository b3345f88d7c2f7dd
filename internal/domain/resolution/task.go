package resolution

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

// TaskTypeResolveEvent is the asynq task type for resolving queued events.
const TaskTypeResolveEvent = "event:resolve"

// ResolveEventPayload is the serialized payload for a resolve event task.
type ResolveEventPayload struct {
	LogID string `json:"log_id"`
}

// NewResolveEventTask creates a new asynq task for resolving an event.
func NewResolveEventTask(logID string) (*asynq.Task, error) {
	payload, err := json.Marshal(ResolveEventPayload{LogID: logID})
	if err != nil {
		return nil, fmt.Errorf("marshaling task payload: %w", err)
	}
	return asynq.NewTask(TaskTypeResolveEvent, payload), nil
}

// ParseResolveEventPayload deserializes the task payload.
func ParseResolveEventPayload(data []byte) (*ResolveEventPayload, error) {
	var p ResolveEventPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("unmarshaling task payload: %w", err)
	}
	return &p, nil
}
