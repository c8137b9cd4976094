package events

import (
	"fmt"
	"sync/atomic"
	"time"
)

// EventType represents the type of event.
type EventType string

const (
	// Projects
	EventProjectCreated EventType = "project.created"
	EventProjectUpdated EventType = "project.updated"
	EventProjectDeleted EventType = "project.deleted"

	// Tasks
	EventTaskCreated     EventType = "task.created"
	EventTaskUpdated     EventType = "task.updated"
	EventTaskDeleted     EventType = "task.deleted"
	EventTasksReassigned EventType = "tasks.reassigned"
)

// EventSource identifies the component that emitted an event.
type EventSource string

const (
	SourceService EventSource = "service"
	SourceSeed    EventSource = "seed"
)

// Event represents an event in the system.
type Event struct {
	ID        string         `json:"id"`
	ProjectID string         `json:"project_id,omitempty"`
	RequestID string         `json:"request_id,omitempty"`
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	Source    EventSource    `json:"source"`
	Payload   map[string]any `json:"payload"`
}

// eventIDCounter is used to generate sequential event IDs.
var eventIDCounter uint64

func generateEventID() string {
	seq := atomic.AddUint64(&eventIDCounter, 1)
	return fmt.Sprintf("%d-%d", time.Now().UnixNano(), seq)
}
