package board

import "context"

// Store is the persistence gateway behind the service. Implementations report
// failures with the sentinel errors of this package: ErrNotFound,
// ErrTaskNotFound, ErrDuplicateTitle, ErrInvalidID and ErrConflict.
type Store interface {
	// CreateProject inserts p, assigning its ID and timestamps.
	CreateProject(ctx context.Context, p *Project) error
	GetProject(ctx context.Context, id string) (*Project, error)
	// ListProjects returns summaries in insertion order.
	ListProjects(ctx context.Context) ([]ProjectSummary, error)
	UpdateProject(ctx context.Context, id string, in ProjectInput) (*Project, error)
	// DeleteProject removes the project and every task it owns in one step.
	DeleteProject(ctx context.Context, id string) (*Project, error)

	// AppendTask adds t at the end of the project's tasks, assigning its ID
	// and timestamps, only if the project still holds expectedCount tasks.
	AppendTask(ctx context.Context, projectID string, expectedCount int, t *Task) error
	UpdateTask(ctx context.Context, projectID, taskID string, in TaskInput) (*Project, error)
	DeleteTask(ctx context.Context, projectID, taskID string) (*Project, error)

	// ApplyPlacements sets stage and order of each placed task, in slice
	// order. Ids that match no task yield an Outcome with Updated false.
	ApplyPlacements(ctx context.Context, projectID string, placements []Placement) ([]Outcome, error)

	Close() error
}
