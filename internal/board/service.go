package board

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dohr-michael/taskboard/internal/events"
	"github.com/dohr-michael/taskboard/internal/validate"
)

// MaxAppendAttempts bounds how often AddTask re-reads the project after a
// concurrent append changed its task count.
const MaxAppendAttempts = 3

// Publisher receives one event per successful mutation.
type Publisher interface {
	Publish(events.Event)
}

// Service implements the project and task operations on top of a Store.
type Service struct {
	store  Store
	bus    Publisher
	source events.EventSource
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithPublisher sets where change events are published.
func WithPublisher(p Publisher) ServiceOption {
	return func(s *Service) { s.bus = p }
}

// WithSource sets the source events are tagged with (default "service").
func WithSource(src events.EventSource) ServiceOption {
	return func(s *Service) { s.source = src }
}

// NewService creates a Service backed by store.
func NewService(store Store, opts ...ServiceOption) *Service {
	s := &Service{store: store, source: events.SourceService}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateProject validates in and inserts a new project. A taken title is
// reported by the store as ErrDuplicateTitle.
func (s *Service) CreateProject(ctx context.Context, in ProjectInput) (*Project, error) {
	if err := validate.Project(in); err != nil {
		return nil, err
	}

	p := &Project{Title: in.Title, Description: in.Description, Tasks: []Task{}}
	if err := s.store.CreateProject(ctx, p); err != nil {
		return nil, fmt.Errorf("create project: %w", err)
	}

	s.publish(ctx, p.ID, events.ProjectCreatedPayload{Title: p.Title})
	return p, nil
}

// GetProject returns a project with all its tasks.
func (s *Service) GetProject(ctx context.Context, id string) (*Project, error) {
	p, err := s.store.GetProject(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get project %s: %w", id, err)
	}
	return p, nil
}

// ListProjects returns every project without its tasks.
func (s *Service) ListProjects(ctx context.Context) ([]ProjectSummary, error) {
	list, err := s.store.ListProjects(ctx)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	if list == nil {
		list = []ProjectSummary{}
	}
	return list, nil
}

// UpdateProject replaces title and description. Tasks are untouched.
func (s *Service) UpdateProject(ctx context.Context, id string, in ProjectInput) (*Project, error) {
	if err := validate.Project(in); err != nil {
		return nil, err
	}

	p, err := s.store.UpdateProject(ctx, id, in)
	if err != nil {
		return nil, fmt.Errorf("update project %s: %w", id, err)
	}

	s.publish(ctx, p.ID, events.ProjectUpdatedPayload{Title: p.Title})
	return p, nil
}

// DeleteProject removes a project and its tasks, returning what was deleted.
func (s *Service) DeleteProject(ctx context.Context, id string) (*Project, error) {
	p, err := s.store.DeleteProject(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("delete project %s: %w", id, err)
	}

	s.publish(ctx, p.ID, events.ProjectDeletedPayload{Title: p.Title, TaskCount: len(p.Tasks)})
	return p, nil
}

// AddTask appends a task in the Requested stage. Its numbering comes from
// the task count the append is conditioned on, so two concurrent appends
// cannot both take the same index.
func (s *Service) AddTask(ctx context.Context, projectID string, in TaskInput) (*Task, error) {
	if err := validate.Task(in); err != nil {
		return nil, err
	}

	for attempt := 1; ; attempt++ {
		p, err := s.store.GetProject(ctx, projectID)
		if err != nil {
			return nil, fmt.Errorf("add task to %s: %w", projectID, err)
		}

		count := len(p.Tasks)
		t := NewTask(in, count)
		err = s.store.AppendTask(ctx, projectID, count, &t)
		if errors.Is(err, ErrConflict) && attempt < MaxAppendAttempts {
			slog.Debug("task append conflict, retrying", "project_id", projectID, "attempt", attempt)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("add task to %s: %w", projectID, err)
		}

		s.publish(ctx, projectID, events.TaskCreatedPayload{
			TaskID: t.ID,
			Title:  t.Title,
			Stage:  t.Stage,
			Index:  t.Index,
		})
		return &t, nil
	}
}

// GetTask returns one task of a project.
func (s *Service) GetTask(ctx context.Context, projectID, taskID string) (*Task, error) {
	p, err := s.store.GetProject(ctx, projectID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			err = ErrTaskNotFound
		}
		return nil, fmt.Errorf("get task %s/%s: %w", projectID, taskID, err)
	}

	t, ok := p.Task(taskID)
	if !ok {
		return nil, fmt.Errorf("get task %s/%s: %w", projectID, taskID, ErrTaskNotFound)
	}
	return t, nil
}

// UpdateTask replaces title and description of one task and returns the
// whole parent project. Stage, order and index are untouched.
func (s *Service) UpdateTask(ctx context.Context, projectID, taskID string, in TaskInput) (*Project, error) {
	if err := validate.Task(in); err != nil {
		return nil, err
	}

	p, err := s.store.UpdateTask(ctx, projectID, taskID, in)
	if err != nil {
		return nil, fmt.Errorf("update task %s/%s: %w", projectID, taskID, err)
	}

	s.publish(ctx, projectID, events.TaskUpdatedPayload{TaskID: taskID, Title: in.Title})
	return p, nil
}

// DeleteTask removes one task and returns the updated project.
func (s *Service) DeleteTask(ctx context.Context, projectID, taskID string) (*Project, error) {
	p, err := s.store.DeleteTask(ctx, projectID, taskID)
	if err != nil {
		return nil, fmt.Errorf("delete task %s/%s: %w", projectID, taskID, err)
	}

	s.publish(ctx, projectID, events.TaskDeletedPayload{TaskID: taskID})
	return p, nil
}

// ReassignTasks moves tasks to the stages and positions of groups: the task
// at position p of a stage's list gets order p and that stage. Outcomes come
// back in placement order; ids the project doesn't own are skipped, not
// failed.
func (s *Service) ReassignTasks(ctx context.Context, projectID string, groups StageGroups) ([]Outcome, error) {
	for _, g := range groups {
		if g.Stage == "" {
			return nil, &ValidationError{Field: "stage", Message: `"stage" is not allowed to be empty`}
		}
	}

	// An empty request still reaches the store so a malformed id is reported.
	outcomes, err := s.store.ApplyPlacements(ctx, projectID, groups.Placements())
	if err != nil {
		return nil, fmt.Errorf("reassign tasks of %s: %w", projectID, err)
	}
	if outcomes == nil {
		outcomes = []Outcome{}
	}

	payload := events.TasksReassignedPayload{}
	for _, g := range groups {
		payload.Stages = append(payload.Stages, g.Stage)
	}
	for _, o := range outcomes {
		if o.Updated {
			payload.Updated++
		} else {
			payload.Skipped = append(payload.Skipped, o.TaskID)
		}
	}
	if len(payload.Skipped) > 0 {
		slog.Warn("reassignment skipped unknown tasks", "project_id", projectID, "skipped", payload.Skipped)
	}
	if payload.Updated > 0 {
		s.publish(ctx, projectID, payload)
	}
	return outcomes, nil
}

// Snapshots returns the project snapshot of every updated outcome, the
// response shape existing clients of the reorder endpoint expect.
func Snapshots(outcomes []Outcome) []*Project {
	out := make([]*Project, 0, len(outcomes))
	for _, o := range outcomes {
		if o.Updated && o.Project != nil {
			out = append(out, o.Project)
		}
	}
	return out
}

func (s *Service) publish(ctx context.Context, projectID string, payload events.EventPayload) {
	if s.bus == nil {
		return
	}
	e := events.NewTypedEvent(s.source, projectID, payload)
	e.RequestID = events.RequestIDFromContext(ctx)
	s.bus.Publish(e)
}
