// Package sqlitestore is the SQLite persistence gateway. A project row owns
// its task rows; every write that touches both runs in one transaction.
package sqlitestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/dohr-michael/taskboard/internal/board"
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

const schema = `
CREATE TABLE IF NOT EXISTS projects (
	id          TEXT PRIMARY KEY,
	title       TEXT NOT NULL UNIQUE,
	description TEXT NOT NULL,
	created_at  INTEGER NOT NULL,
	updated_at  INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS tasks (
	seq         INTEGER PRIMARY KEY AUTOINCREMENT,
	id          TEXT NOT NULL UNIQUE,
	project_id  TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
	title       TEXT NOT NULL,
	description TEXT NOT NULL,
	stage       TEXT NOT NULL,
	ord         INTEGER NOT NULL,
	idx         INTEGER NOT NULL,
	attachments TEXT NOT NULL DEFAULT '[]',
	created_at  INTEGER NOT NULL,
	updated_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS tasks_by_project ON tasks(project_id, seq);
`

// Store implements board.Store on SQLite.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

var _ board.Store = (*Store)(nil)

// Open opens (creating if needed) the database at path and its tables.
// Use MemoryPath for a throwaway database.
func Open(ctx context.Context, path string) (*Store, error) {
	dsn, err := dsnFor(path)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// SQLite allows a single writer, and an in-memory database only lives
	// as long as its one connection.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &Store{db: db, now: func() time.Time { return time.Now().UTC() }}, nil
}

func dsnFor(path string) (string, error) {
	pragmas := "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	if path == "" || path == MemoryPath {
		return "file::memory:?" + pragmas, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create database dir: %w", err)
	}
	return "file:" + path + "?" + pragmas + "&_pragma=journal_mode(WAL)", nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) CreateProject(ctx context.Context, p *board.Project) error {
	now := s.now()
	p.ID = uuid.NewString()
	p.CreatedAt, p.UpdatedAt = now, now
	if p.Tasks == nil {
		p.Tasks = []board.Task{}
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO projects (id, title, description, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		p.ID, p.Title, p.Description, now.UnixNano(), now.UnixNano())
	if isUniqueViolation(err) {
		return board.ErrDuplicateTitle
	}
	if err != nil {
		return fmt.Errorf("insert project: %w", err)
	}
	return nil
}

func (s *Store) GetProject(ctx context.Context, id string) (*board.Project, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}
	return loadProject(ctx, s.db, id)
}

func (s *Store) ListProjects(ctx context.Context) ([]board.ProjectSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, description, created_at FROM projects ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("query projects: %w", err)
	}
	defer rows.Close()

	list := []board.ProjectSummary{}
	for rows.Next() {
		var sum board.ProjectSummary
		var created int64
		if err := rows.Scan(&sum.ID, &sum.Title, &sum.Description, &created); err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		sum.CreatedAt = fromNanos(created)
		list = append(list, sum)
	}
	return list, rows.Err()
}

func (s *Store) UpdateProject(ctx context.Context, id string, in board.ProjectInput) (*board.Project, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}

	var p *board.Project
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE projects SET title = ?, description = ?, updated_at = ? WHERE id = ?`,
			in.Title, in.Description, s.now().UnixNano(), id)
		if isUniqueViolation(err) {
			return board.ErrDuplicateTitle
		}
		if err != nil {
			return fmt.Errorf("update project: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return board.ErrNotFound
		}
		p, err = loadProject(ctx, tx, id)
		return err
	})
	return p, err
}

func (s *Store) DeleteProject(ctx context.Context, id string) (*board.Project, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}

	var p *board.Project
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var err error
		if p, err = loadProject(ctx, tx, id); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM tasks WHERE project_id = ?`, id); err != nil {
			return fmt.Errorf("delete tasks: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, id); err != nil {
			return fmt.Errorf("delete project: %w", err)
		}
		return nil
	})
	return p, err
}

func (s *Store) AppendTask(ctx context.Context, projectID string, expectedCount int, t *board.Task) error {
	if err := checkID(projectID); err != nil {
		return err
	}

	attachments, err := encodeAttachments(t.Attachments)
	if err != nil {
		return err
	}

	return s.inTx(ctx, func(tx *sql.Tx) error {
		if err := touchProject(ctx, tx, projectID, s.now(), board.ErrNotFound); err != nil {
			return err
		}

		var count int
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM tasks WHERE project_id = ?`, projectID).Scan(&count); err != nil {
			return fmt.Errorf("count tasks: %w", err)
		}
		if count != expectedCount {
			return board.ErrConflict
		}

		now := s.now()
		t.ID = uuid.NewString()
		t.CreatedAt, t.UpdatedAt = now, now
		if t.Attachments == nil {
			t.Attachments = []board.Attachment{}
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO tasks (id, project_id, title, description, stage, ord, idx, attachments, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			t.ID, projectID, t.Title, t.Description, t.Stage, t.Order, t.Index, attachments,
			now.UnixNano(), now.UnixNano())
		if err != nil {
			return fmt.Errorf("insert task: %w", err)
		}
		return nil
	})
}

func (s *Store) UpdateTask(ctx context.Context, projectID, taskID string, in board.TaskInput) (*board.Project, error) {
	if err := checkID(projectID); err != nil {
		return nil, err
	}

	var p *board.Project
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		now := s.now()
		set := `title = ?, description = ?, updated_at = ?`
		args := []any{in.Title, in.Description, now.UnixNano()}
		if in.Attachments != nil {
			enc, err := encodeAttachments(in.Attachments)
			if err != nil {
				return err
			}
			set += `, attachments = ?`
			args = append(args, enc)
		}
		args = append(args, projectID, taskID)

		res, err := tx.ExecContext(ctx,
			`UPDATE tasks SET `+set+` WHERE project_id = ? AND id = ?`, args...)
		if err != nil {
			return fmt.Errorf("update task: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return board.ErrTaskNotFound
		}
		if err := touchProject(ctx, tx, projectID, now, board.ErrTaskNotFound); err != nil {
			return err
		}
		p, err = loadProject(ctx, tx, projectID)
		return err
	})
	return p, err
}

func (s *Store) DeleteTask(ctx context.Context, projectID, taskID string) (*board.Project, error) {
	if err := checkID(projectID); err != nil {
		return nil, err
	}

	var p *board.Project
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`DELETE FROM tasks WHERE project_id = ? AND id = ?`, projectID, taskID)
		if err != nil {
			return fmt.Errorf("delete task: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return board.ErrTaskNotFound
		}
		if err := touchProject(ctx, tx, projectID, s.now(), board.ErrTaskNotFound); err != nil {
			return err
		}
		p, err = loadProject(ctx, tx, projectID)
		return err
	})
	return p, err
}

// ApplyPlacements runs every placement in one transaction: either all
// matched tasks move or none do.
func (s *Store) ApplyPlacements(ctx context.Context, projectID string, placements []board.Placement) ([]board.Outcome, error) {
	if err := checkID(projectID); err != nil {
		return nil, err
	}

	var outcomes []board.Outcome
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		outcomes = make([]board.Outcome, 0, len(placements))
		for _, pl := range placements {
			o := board.Outcome{TaskID: pl.TaskID, Stage: pl.Stage, Order: pl.Order}

			now := s.now()
			res, err := tx.ExecContext(ctx,
				`UPDATE tasks SET stage = ?, ord = ?, updated_at = ? WHERE project_id = ? AND id = ?`,
				pl.Stage, pl.Order, now.UnixNano(), projectID, pl.TaskID)
			if err != nil {
				return fmt.Errorf("place task %s: %w", pl.TaskID, err)
			}
			if n, _ := res.RowsAffected(); n > 0 {
				if err := touchProject(ctx, tx, projectID, now, board.ErrNotFound); err != nil {
					return err
				}
				if o.Project, err = loadProject(ctx, tx, projectID); err != nil {
					return err
				}
				o.Updated = true
			}
			outcomes = append(outcomes, o)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return outcomes, nil
}

func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// touchProject bumps updated_at, returning missing when the project is gone.
func touchProject(ctx context.Context, q querier, id string, now time.Time, missing error) error {
	res, err := q.ExecContext(ctx, `UPDATE projects SET updated_at = ? WHERE id = ?`, now.UnixNano(), id)
	if err != nil {
		return fmt.Errorf("touch project: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return missing
	}
	return nil
}

func loadProject(ctx context.Context, q querier, id string) (*board.Project, error) {
	var p board.Project
	var created, updated int64
	err := q.QueryRowContext(ctx,
		`SELECT id, title, description, created_at, updated_at FROM projects WHERE id = ?`, id).
		Scan(&p.ID, &p.Title, &p.Description, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, board.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load project: %w", err)
	}
	p.CreatedAt, p.UpdatedAt = fromNanos(created), fromNanos(updated)

	rows, err := q.QueryContext(ctx, `
		SELECT id, title, description, stage, ord, idx, attachments, created_at, updated_at
		FROM tasks WHERE project_id = ? ORDER BY seq`, id)
	if err != nil {
		return nil, fmt.Errorf("load tasks: %w", err)
	}
	defer rows.Close()

	p.Tasks = []board.Task{}
	for rows.Next() {
		var t board.Task
		var attachments string
		var tc, tu int64
		if err := rows.Scan(&t.ID, &t.Title, &t.Description, &t.Stage, &t.Order, &t.Index,
			&attachments, &tc, &tu); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		if err := json.Unmarshal([]byte(attachments), &t.Attachments); err != nil {
			return nil, fmt.Errorf("decode attachments of %s: %w", t.ID, err)
		}
		t.CreatedAt, t.UpdatedAt = fromNanos(tc), fromNanos(tu)
		p.Tasks = append(p.Tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load tasks: %w", err)
	}
	return &p, nil
}

func encodeAttachments(a []board.Attachment) (string, error) {
	if a == nil {
		a = []board.Attachment{}
	}
	data, err := json.Marshal(a)
	if err != nil {
		return "", fmt.Errorf("encode attachments: %w", err)
	}
	return string(data), nil
}

// checkID rejects ids this store could never have generated.
func checkID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return board.ErrInvalidID
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if errors.As(err, &se) {
		return se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
	}
	return false
}

func fromNanos(n int64) time.Time {
	return time.Unix(0, n).UTC()
}
