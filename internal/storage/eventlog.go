// Package storage keeps an append-only audit trail of board events on disk.
package storage

import (
	"bufio"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/dohr-michael/taskboard/internal/events"
)

const globalLog = "_global.jsonl"

// EventLogger persists bus events to JSONL files, one file per project.
type EventLogger struct {
	dir         string
	bus         *events.Bus
	mu          sync.Mutex // guards files against concurrent Read
	unsubscribe func()
}

// NewEventLogger creates an EventLogger that subscribes to all bus events
// and writes them as JSONL to dir.
func NewEventLogger(dir string, bus *events.Bus) *EventLogger {
	el := &EventLogger{
		dir: dir,
		bus: bus,
	}
	el.unsubscribe = bus.SubscribeOrdered(el.handleEvent)
	return el
}

// Close unsubscribes the logger from the event bus.
func (el *EventLogger) Close() {
	if el.unsubscribe != nil {
		el.unsubscribe()
	}
}

func (el *EventLogger) handleEvent(e events.Event) {
	if err := el.writeEvent(e); err != nil {
		slog.Warn("event log write", "event", e.ID, "error", err)
	}
}

func (el *EventLogger) writeEvent(e events.Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	data = append(data, '\n')

	el.mu.Lock()
	defer el.mu.Unlock()

	if err := os.MkdirAll(el.dir, 0755); err != nil {
		return err
	}

	f, err := os.OpenFile(el.logPath(e.ProjectID), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = f.Write(data)
	return err
}

// Read returns the logged events of a project, oldest first. An empty id
// reads the events that belong to no project.
func (el *EventLogger) Read(projectID string) ([]events.Event, error) {
	el.mu.Lock()
	defer el.mu.Unlock()

	f, err := os.Open(el.logPath(projectID))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []events.Event
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		var e events.Event
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			return out, err
		}
		out = append(out, e)
	}
	return out, sc.Err()
}

func (el *EventLogger) logPath(projectID string) string {
	if projectID == "" || strings.ContainsAny(projectID, `/\.`) {
		return filepath.Join(el.dir, globalLog)
	}
	return filepath.Join(el.dir, projectID+".jsonl")
}
