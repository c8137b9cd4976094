// Package board owns the project/task aggregate of the kanban board: task
// numbering on creation, stage reassignment and the error taxonomy the HTTP
// layer maps to status codes.
package board

import "time"

// StageRequested is the stage every new task starts in.
const StageRequested = "Requested"

// Attachment is a typed link attached to a task.
type Attachment struct {
	Kind string `json:"type" yaml:"type"`
	URL  string `json:"url" yaml:"url"`
}

// Task is a unit of work owned by exactly one Project.
type Task struct {
	ID          string       `json:"_id"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Order       int          `json:"order"` // position within the current stage
	Stage       string       `json:"stage"`
	Index       int          `json:"index"` // position at creation time
	Attachments []Attachment `json:"attachment"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// Project is a board with a unique title and an ordered collection of tasks.
type Project struct {
	ID          string    `json:"_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Tasks       []Task    `json:"task"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Task returns the task with the given id, if the project owns one.
func (p *Project) Task(id string) (*Task, bool) {
	for i := range p.Tasks {
		if p.Tasks[i].ID == id {
			return &p.Tasks[i], true
		}
	}
	return nil, false
}

// Stage returns the tasks currently in stage, sorted by order.
func (p *Project) Stage(stage string) []Task {
	var out []Task
	for _, t := range p.Tasks {
		if t.Stage == stage {
			out = append(out, t)
		}
	}
	sortByOrder(out)
	return out
}

// Stages returns the distinct stage labels in first-seen task order.
func (p *Project) Stages() []string {
	seen := make(map[string]bool)
	var out []string
	for _, t := range p.Tasks {
		if !seen[t.Stage] {
			seen[t.Stage] = true
			out = append(out, t.Stage)
		}
	}
	return out
}

// Summary returns the list view of the project.
func (p *Project) Summary() ProjectSummary {
	return ProjectSummary{
		ID:          p.ID,
		Title:       p.Title,
		Description: p.Description,
		CreatedAt:   p.CreatedAt,
	}
}

// ProjectSummary is the list view of a project: tasks and updatedAt are omitted.
type ProjectSummary struct {
	ID          string    `json:"_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"createdAt"`
}

// ProjectInput carries the replaceable fields of a project.
type ProjectInput struct {
	Title       string `json:"title" yaml:"title"`
	Description string `json:"description" yaml:"description"`
}

// TaskInput carries the fields a client may set on a task.
type TaskInput struct {
	Title       string       `json:"title" yaml:"title"`
	Description string       `json:"description" yaml:"description"`
	Attachments []Attachment `json:"attachment,omitempty" yaml:"attachment,omitempty"`
}

// NewTask builds the task appended to a project that currently holds count
// tasks. order is 1-based and index 0-based, matching what existing boards
// were written with.
func NewTask(in TaskInput, count int) Task {
	return Task{
		Title:       in.Title,
		Description: in.Description,
		Stage:       StageRequested,
		Order:       count + 1,
		Index:       count,
		Attachments: in.Attachments,
	}
}
