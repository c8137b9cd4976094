package board_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/dohr-michael/taskboard/internal/board"
	"github.com/dohr-michael/taskboard/internal/events"
	"github.com/dohr-michael/taskboard/internal/store/sqlitestore"
)

// recorder collects published events synchronously.
type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recorder) Publish(e events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) types() []events.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.EventType, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}

// conflictStore makes the first n appends lose a race.
type conflictStore struct {
	board.Store
	mu        sync.Mutex
	conflicts int
	appends   int
}

func (s *conflictStore) AppendTask(ctx context.Context, projectID string, expected int, t *board.Task) error {
	s.mu.Lock()
	s.appends++
	lose := s.conflicts > 0
	if lose {
		s.conflicts--
	}
	s.mu.Unlock()
	if lose {
		return board.ErrConflict
	}
	return s.Store.AppendTask(ctx, projectID, expected, t)
}

func newStore(t *testing.T) board.Store {
	t.Helper()
	s, err := sqlitestore.Open(context.Background(), sqlitestore.MemoryPath)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func newService(t *testing.T) (*board.Service, *recorder) {
	t.Helper()
	rec := &recorder{}
	return board.NewService(newStore(t), board.WithPublisher(rec)), rec
}

func mustProject(t *testing.T, svc *board.Service, title string) *board.Project {
	t.Helper()
	p, err := svc.CreateProject(context.Background(), board.ProjectInput{Title: title, Description: "x"})
	if err != nil {
		t.Fatalf("CreateProject(%q): %v", title, err)
	}
	return p
}

func mustTask(t *testing.T, svc *board.Service, projectID, title string) *board.Task {
	t.Helper()
	task, err := svc.AddTask(context.Background(), projectID, board.TaskInput{Title: title, Description: "y"})
	if err != nil {
		t.Fatalf("AddTask(%q): %v", title, err)
	}
	return task
}

func TestCreateProjectValidation(t *testing.T) {
	svc, rec := newService(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		in    board.ProjectInput
		field string
	}{
		{"short title", board.ProjectInput{Title: "ab", Description: "x"}, "title"},
		{"long title", board.ProjectInput{Title: "0123456789012345678901234567890", Description: "x"}, "title"},
		{"empty description", board.ProjectInput{Title: "Sprint 1"}, "description"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateProject(ctx, tt.in)
			var ve *board.ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if ve.Field != tt.field {
				t.Errorf("field: got %q, want %q", ve.Field, tt.field)
			}
		})
	}

	if len(rec.types()) != 0 {
		t.Errorf("rejected input must not publish, got %v", rec.types())
	}
}

func TestTitleBounds(t *testing.T) {
	svc, _ := newService(t)
	for _, title := range []string{"abc", "012345678901234567890123456789"} {
		p := mustProject(t, svc, title)
		got, err := svc.GetProject(context.Background(), p.ID)
		if err != nil || got.Title != title {
			t.Errorf("round trip of %q: %+v, %v", title, got, err)
		}
	}
}

func TestDuplicateTitle(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	mustProject(t, svc, "Sprint 1")

	if _, err := svc.CreateProject(ctx, board.ProjectInput{Title: "Sprint 1", Description: "y"}); !errors.Is(err, board.ErrDuplicateTitle) {
		t.Fatalf("expected ErrDuplicateTitle, got %v", err)
	}

	other := mustProject(t, svc, "Sprint 2")
	if _, err := svc.UpdateProject(ctx, other.ID, board.ProjectInput{Title: "Sprint 1", Description: "y"}); !errors.Is(err, board.ErrDuplicateTitle) {
		t.Fatalf("rename: expected ErrDuplicateTitle, got %v", err)
	}
}

func TestAddTaskNumbering(t *testing.T) {
	svc, rec := newService(t)
	ctx := context.Background()
	p := mustProject(t, svc, "Sprint 1")

	for n := 0; n < 4; n++ {
		task := mustTask(t, svc, p.ID, "Task "+string(rune('A'+n)))
		if task.Index != n || task.Order != n+1 || task.Stage != board.StageRequested {
			t.Fatalf("task %d: unexpected numbering %+v", n, task)
		}
		got, err := svc.GetProject(ctx, p.ID)
		if err != nil {
			t.Fatal(err)
		}
		if len(got.Tasks) != n+1 {
			t.Fatalf("expected %d tasks, got %d", n+1, len(got.Tasks))
		}
	}

	types := rec.types()
	if types[0] != events.EventProjectCreated || types[len(types)-1] != events.EventTaskCreated {
		t.Errorf("unexpected events %v", types)
	}
}

func TestAddTaskRetriesConflict(t *testing.T) {
	cs := &conflictStore{Store: newStore(t), conflicts: board.MaxAppendAttempts - 1}
	svc := board.NewService(cs)
	ctx := context.Background()

	p, err := svc.CreateProject(ctx, board.ProjectInput{Title: "Sprint 1", Description: "x"})
	if err != nil {
		t.Fatal(err)
	}
	task, err := svc.AddTask(ctx, p.ID, board.TaskInput{Title: "Design API", Description: "y"})
	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if task.Index != 0 || cs.appends != board.MaxAppendAttempts {
		t.Errorf("unexpected task %+v after %d appends", task, cs.appends)
	}
}

func TestAddTaskGivesUp(t *testing.T) {
	cs := &conflictStore{Store: newStore(t), conflicts: board.MaxAppendAttempts}
	svc := board.NewService(cs)
	ctx := context.Background()

	p, _ := svc.CreateProject(ctx, board.ProjectInput{Title: "Sprint 1", Description: "x"})
	if _, err := svc.AddTask(ctx, p.ID, board.TaskInput{Title: "Design API", Description: "y"}); !errors.Is(err, board.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestConcurrentAddTask(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	p := mustProject(t, svc, "Sprint 1")

	const n = 3
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.AddTask(ctx, p.ID, board.TaskInput{Title: "Task " + string(rune('A'+i)), Description: "y"})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)

	ok := 0
	for err := range errs {
		if err == nil {
			ok++
		} else if !errors.Is(err, board.ErrConflict) {
			t.Fatalf("unexpected error %v", err)
		}
	}

	got, err := svc.GetProject(ctx, p.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Tasks) != ok {
		t.Fatalf("expected %d tasks, got %d", ok, len(got.Tasks))
	}
	seen := make(map[int]bool)
	for _, task := range got.Tasks {
		if seen[task.Index] {
			t.Fatalf("index %d assigned twice", task.Index)
		}
		seen[task.Index] = true
	}
}

func TestAddTaskUnknownProject(t *testing.T) {
	svc, _ := newService(t)
	_, err := svc.AddTask(context.Background(), uuid.NewString(), board.TaskInput{Title: "Design API", Description: "y"})
	if !errors.Is(err, board.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGetTask(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	p := mustProject(t, svc, "Sprint 1")
	task := mustTask(t, svc, p.ID, "Design API")

	got, err := svc.GetTask(ctx, p.ID, task.ID)
	if err != nil || got.Title != "Design API" {
		t.Fatalf("GetTask: %+v, %v", got, err)
	}
	if _, err := svc.GetTask(ctx, p.ID, uuid.NewString()); !errors.Is(err, board.ErrTaskNotFound) {
		t.Errorf("unknown task: expected ErrTaskNotFound, got %v", err)
	}
	if _, err := svc.GetTask(ctx, uuid.NewString(), task.ID); !errors.Is(err, board.ErrTaskNotFound) {
		t.Errorf("unknown project: expected ErrTaskNotFound, got %v", err)
	}
}

func TestUpdateTaskKeepsPlacement(t *testing.T) {
	svc, rec := newService(t)
	ctx := context.Background()
	p := mustProject(t, svc, "Sprint 1")
	mustTask(t, svc, p.ID, "Design API")
	task := mustTask(t, svc, p.ID, "Write docs")

	updated, err := svc.UpdateTask(ctx, p.ID, task.ID, board.TaskInput{Title: "Write README", Description: "z"})
	if err != nil {
		t.Fatalf("UpdateTask: %v", err)
	}
	if len(updated.Tasks) != 2 {
		t.Fatalf("expected the whole project back, got %d tasks", len(updated.Tasks))
	}
	got, _ := updated.Task(task.ID)
	if got.Title != "Write README" || got.Order != 2 || got.Index != 1 || got.Stage != board.StageRequested {
		t.Errorf("unexpected task after update %+v", got)
	}

	if _, err := svc.UpdateTask(ctx, p.ID, task.ID, board.TaskInput{Title: "ab", Description: "z"}); err == nil {
		t.Error("expected validation error")
	}
	if types := rec.types(); types[len(types)-1] != events.EventTaskUpdated {
		t.Errorf("expected task.updated last, got %v", types)
	}
}

func TestDeleteThenGet(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	p := mustProject(t, svc, "Sprint 1")
	task := mustTask(t, svc, p.ID, "Design API")

	after, err := svc.DeleteTask(ctx, p.ID, task.ID)
	if err != nil || len(after.Tasks) != 0 {
		t.Fatalf("DeleteTask: %+v, %v", after, err)
	}
	if _, err := svc.DeleteTask(ctx, p.ID, task.ID); !errors.Is(err, board.ErrTaskNotFound) {
		t.Errorf("second delete: expected ErrTaskNotFound, got %v", err)
	}

	deleted, err := svc.DeleteProject(ctx, p.ID)
	if err != nil || deleted.ID != p.ID {
		t.Fatalf("DeleteProject: %+v, %v", deleted, err)
	}
	if _, err := svc.GetProject(ctx, p.ID); !errors.Is(err, board.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := svc.DeleteProject(ctx, p.ID); !errors.Is(err, board.ErrNotFound) {
		t.Errorf("second delete: expected ErrNotFound, got %v", err)
	}
}

func TestListProjects(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	list, err := svc.ListProjects(ctx)
	if err != nil || list == nil || len(list) != 0 {
		t.Fatalf("expected empty non-nil list, got %#v, %v", list, err)
	}

	mustProject(t, svc, "Sprint 1")
	mustProject(t, svc, "Sprint 2")
	list, _ = svc.ListProjects(ctx)
	if len(list) != 2 || list[0].Title != "Sprint 1" || list[1].Title != "Sprint 2" {
		t.Errorf("unexpected list %+v", list)
	}
}

func TestReassignTasks(t *testing.T) {
	svc, rec := newService(t)
	ctx := context.Background()
	p := mustProject(t, svc, "Sprint 1")
	a := mustTask(t, svc, p.ID, "Task A")
	b := mustTask(t, svc, p.ID, "Task B")
	c := mustTask(t, svc, p.ID, "Task C")
	ghost := uuid.NewString()

	groups := board.StageGroups{
		{Stage: "Done", Items: []board.TaskRef{{ID: c.ID}, {ID: a.ID}}},
		{Stage: "In Progress", Items: []board.TaskRef{{ID: ghost}, {ID: b.ID}}},
	}
	outcomes, err := svc.ReassignTasks(ctx, p.ID, groups)
	if err != nil {
		t.Fatalf("ReassignTasks: %v", err)
	}
	if len(outcomes) != 4 {
		t.Fatalf("expected 4 outcomes, got %d", len(outcomes))
	}
	if outcomes[2].Updated || outcomes[2].TaskID != ghost {
		t.Errorf("ghost id must be skipped, got %+v", outcomes[2])
	}
	if snaps := board.Snapshots(outcomes); len(snaps) != 3 {
		t.Errorf("expected 3 snapshots, got %d", len(snaps))
	}

	got, _ := svc.GetProject(ctx, p.ID)
	want := map[string]struct {
		stage string
		order int
	}{
		c.ID: {"Done", 0},
		a.ID: {"Done", 1},
		b.ID: {"In Progress", 1},
	}
	for id, w := range want {
		task, _ := got.Task(id)
		if task.Stage != w.stage || task.Order != w.order {
			t.Errorf("task %s: got %s/%d, want %s/%d", task.Title, task.Stage, task.Order, w.stage, w.order)
		}
	}

	rec.mu.Lock()
	last := rec.events[len(rec.events)-1]
	rec.mu.Unlock()
	payload, ok := events.ExtractPayload[events.TasksReassignedPayload](last)
	if !ok {
		t.Fatalf("expected tasks.reassigned, got %s", last.Type)
	}
	if payload.Updated != 3 || len(payload.Skipped) != 1 {
		t.Errorf("unexpected payload %+v", payload)
	}
}

func TestReassignTasksEdgeCases(t *testing.T) {
	svc, rec := newService(t)
	ctx := context.Background()
	p := mustProject(t, svc, "Sprint 1")
	a := mustTask(t, svc, p.ID, "Task A")
	before := len(rec.types())

	outcomes, err := svc.ReassignTasks(ctx, p.ID, nil)
	if err != nil || outcomes == nil || len(outcomes) != 0 {
		t.Fatalf("empty request: %#v, %v", outcomes, err)
	}
	if len(rec.types()) != before {
		t.Error("an empty request must not publish")
	}

	_, err = svc.ReassignTasks(ctx, p.ID, board.StageGroups{{Stage: "", Items: []board.TaskRef{{ID: a.ID}}}})
	var ve *board.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("empty stage: expected ValidationError, got %v", err)
	}

	if _, err := svc.ReassignTasks(ctx, "not-an-id", nil); !errors.Is(err, board.ErrInvalidID) {
		t.Fatalf("malformed id: expected ErrInvalidID, got %v", err)
	}

	// A task listed twice ends with the last placement.
	_, err = svc.ReassignTasks(ctx, p.ID, board.StageGroups{
		{Stage: "Doing", Items: []board.TaskRef{{ID: a.ID}}},
		{Stage: "Done", Items: []board.TaskRef{{ID: "x"}, {ID: a.ID}}},
	})
	if err != nil {
		t.Fatal(err)
	}
	got, _ := svc.GetProject(ctx, p.ID)
	if task, _ := got.Task(a.ID); task.Stage != "Done" || task.Order != 1 {
		t.Errorf("expected last placement, got %s/%d", task.Stage, task.Order)
	}
}

func TestRequestIDPropagates(t *testing.T) {
	svc, rec := newService(t)
	ctx := events.ContextWithRequestID(context.Background(), "req-7")

	if _, err := svc.CreateProject(ctx, board.ProjectInput{Title: "Sprint 1", Description: "x"}); err != nil {
		t.Fatal(err)
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.events[0].RequestID != "req-7" || rec.events[0].Source != events.SourceService {
		t.Errorf("unexpected event %+v", rec.events[0])
	}
}
