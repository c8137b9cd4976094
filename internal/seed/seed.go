// Package seed imports boards described in YAML through the board service,
// so imported tasks get the same numbering as tasks created over HTTP.
package seed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"gopkg.in/yaml.v3"

	"github.com/dohr-michael/taskboard/internal/board"
)

// File is the document layout of a seed file.
type File struct {
	Projects []Project `yaml:"projects"`
}

// Project is one board to import.
type Project struct {
	board.ProjectInput `yaml:",inline"`
	Tasks              []Task `yaml:"tasks"`
}

// Task is one task to import. A Stage other than Requested is applied after
// creation, in file order.
type Task struct {
	board.TaskInput `yaml:",inline"`
	Stage           string `yaml:"stage,omitempty"`
}

// Result summarizes an import.
type Result struct {
	Projects int      `json:"projects"`
	Tasks    int      `json:"tasks"`
	Skipped  []string `json:"skipped,omitempty"` // titles already taken
}

// Parse decodes a seed document. Unknown keys are rejected.
func Parse(r io.Reader) (*File, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var f File
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return &File{}, nil
		}
		return nil, fmt.Errorf("parse seed: %w", err)
	}
	return &f, nil
}

// Apply creates every project of f with its tasks. Projects whose title is
// already taken are skipped; any other error stops the import.
func Apply(ctx context.Context, svc *board.Service, f *File) (*Result, error) {
	res := &Result{}
	for _, sp := range f.Projects {
		p, err := svc.CreateProject(ctx, sp.ProjectInput)
		if errors.Is(err, board.ErrDuplicateTitle) {
			slog.Info("seed project exists, skipping", "title", sp.Title)
			res.Skipped = append(res.Skipped, sp.Title)
			continue
		}
		if err != nil {
			return res, fmt.Errorf("seed project %q: %w", sp.Title, err)
		}
		res.Projects++

		var groups board.StageGroups
		pos := make(map[string]int)
		for _, st := range sp.Tasks {
			t, err := svc.AddTask(ctx, p.ID, st.TaskInput)
			if err != nil {
				return res, fmt.Errorf("seed task %q of %q: %w", st.Title, sp.Title, err)
			}
			res.Tasks++

			if st.Stage == "" || st.Stage == board.StageRequested {
				continue
			}
			i, ok := pos[st.Stage]
			if !ok {
				i = len(groups)
				pos[st.Stage] = i
				groups = append(groups, board.StageGroup{Stage: st.Stage})
			}
			groups[i].Items = append(groups[i].Items, board.TaskRef{ID: t.ID})
		}

		if len(groups) > 0 {
			if _, err := svc.ReassignTasks(ctx, p.ID, groups); err != nil {
				return res, fmt.Errorf("seed stages of %q: %w", sp.Title, err)
			}
		}
		slog.Debug("seeded project", "title", sp.Title, "id", p.ID, "tasks", len(sp.Tasks))
	}
	return res, nil
}
