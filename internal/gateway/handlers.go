package gateway

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/dohr-michael/taskboard/internal/board"
	"github.com/dohr-michael/taskboard/internal/validate"
)

func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	list, err := s.svc.ListProjects(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var in board.ProjectInput
	if err := readBody(w, r, validate.ProjectJSON, &in); err != nil {
		writeError(w, r, err)
		return
	}

	p, err := s.svc.CreateProject(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleGetProject(w http.ResponseWriter, r *http.Request) {
	p, err := s.svc.GetProject(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleUpdateProject(w http.ResponseWriter, r *http.Request) {
	var in board.ProjectInput
	if err := readBody(w, r, validate.ProjectJSON, &in); err != nil {
		writeError(w, r, err)
		return
	}

	p, err := s.svc.UpdateProject(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleDeleteProject(w http.ResponseWriter, r *http.Request) {
	p, err := s.svc.DeleteProject(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleAddTask(w http.ResponseWriter, r *http.Request) {
	var in board.TaskInput
	if err := readBody(w, r, validate.TaskJSON, &in); err != nil {
		writeError(w, r, err)
		return
	}

	t, err := s.svc.AddTask(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	t, err := s.svc.GetTask(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "taskId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleUpdateTask(w http.ResponseWriter, r *http.Request) {
	var in board.TaskInput
	if err := readBody(w, r, validate.TaskJSON, &in); err != nil {
		writeError(w, r, err)
		return
	}

	p, err := s.svc.UpdateTask(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "taskId"), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	p, err := s.svc.DeleteTask(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "taskId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// handleReassign applies a drag-and-drop board state. The response is the
// list of project snapshots, or the per-item outcomes with ?outcomes=true.
func (s *Server) handleReassign(w http.ResponseWriter, r *http.Request) {
	var groups board.StageGroups
	if err := readBody(w, r, validate.StageGroupsJSON, &groups); err != nil {
		writeError(w, r, err)
		return
	}

	outcomes, err := s.svc.ReassignTasks(r.Context(), chi.URLParam(r, "id"), groups)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if want, _ := strconv.ParseBool(r.URL.Query().Get("outcomes")); want {
		writeJSON(w, http.StatusOK, outcomes)
		return
	}
	writeJSON(w, http.StatusOK, board.Snapshots(outcomes))
}
