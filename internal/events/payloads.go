package events

import (
	"encoding/json"
	"time"
)

// EventPayload is the interface all typed payloads implement.
type EventPayload interface {
	EventType() EventType
}

// =============================================================================
// PROJECT EVENTS
// =============================================================================

type ProjectCreatedPayload struct {
	Title string `json:"title"`
}

func (ProjectCreatedPayload) EventType() EventType { return EventProjectCreated }

type ProjectUpdatedPayload struct {
	Title string `json:"title"`
}

func (ProjectUpdatedPayload) EventType() EventType { return EventProjectUpdated }

type ProjectDeletedPayload struct {
	Title     string `json:"title"`
	TaskCount int    `json:"task_count"`
}

func (ProjectDeletedPayload) EventType() EventType { return EventProjectDeleted }

// =============================================================================
// TASK EVENTS
// =============================================================================

type TaskCreatedPayload struct {
	TaskID string `json:"task_id"`
	Title  string `json:"title"`
	Stage  string `json:"stage"`
	Index  int    `json:"index"`
}

func (TaskCreatedPayload) EventType() EventType { return EventTaskCreated }

type TaskUpdatedPayload struct {
	TaskID string `json:"task_id"`
	Title  string `json:"title"`
}

func (TaskUpdatedPayload) EventType() EventType { return EventTaskUpdated }

type TaskDeletedPayload struct {
	TaskID string `json:"task_id"`
}

func (TaskDeletedPayload) EventType() EventType { return EventTaskDeleted }

type TasksReassignedPayload struct {
	Stages  []string `json:"stages"`
	Updated int      `json:"updated"`
	Skipped []string `json:"skipped,omitempty"`
}

func (TasksReassignedPayload) EventType() EventType { return EventTasksReassigned }

// =============================================================================
// TYPED EVENT CONSTRUCTORS
// =============================================================================

// NewTypedEvent builds an event for projectID from a typed payload.
func NewTypedEvent(source EventSource, projectID string, payload EventPayload) Event {
	return Event{
		ID:        generateEventID(),
		ProjectID: projectID,
		Type:      payload.EventType(),
		Timestamp: time.Now(),
		Source:    source,
		Payload:   toMap(payload),
	}
}

func toMap(v any) map[string]any {
	var result map[string]any
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return nil
	}
	return result
}

// =============================================================================
// TYPED PAYLOAD EXTRACTORS
// =============================================================================

// ExtractPayload decodes the payload of e as T. It reports false when e is
// not an event of T's type.
func ExtractPayload[T EventPayload](e Event) (T, bool) {
	var result T
	if result.EventType() != e.Type {
		return result, false
	}
	data, err := json.Marshal(e.Payload)
	if err != nil {
		return result, false
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return result, false
	}
	return result, true
}
