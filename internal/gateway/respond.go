package gateway

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/dohr-michael/taskboard/internal/board"
)

const maxBodyBytes = 1 << 20

type errorBody struct {
	Error   bool   `json:"error"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("write response", "error", err)
	}
}

// writeError maps a service error to its status code and client message.
// Internal failures are logged and never described to the client.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var ve *board.ValidationError
	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{Error: true, Message: ve.Message})
	case errors.Is(err, board.ErrDuplicateTitle):
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{Error: true, Message: "Title must be unique"})
	case errors.Is(err, board.ErrTaskNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: true, Message: "Task not found"})
	case errors.Is(err, board.ErrNotFound), errors.Is(err, board.ErrInvalidID):
		writeJSON(w, http.StatusNotFound, errorBody{Error: true, Message: "Project not found"})
	default:
		slog.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", middleware.GetReqID(r.Context()),
			"error", err,
		)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: true, Message: "Server error"})
	}
}

// readBody reads the request body, checks it with check and decodes it into v.
func readBody(w http.ResponseWriter, r *http.Request, check func([]byte) error, v any) error {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return &board.ValidationError{Field: "value", Message: "request body is too large"}
	}
	if err := check(data); err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return &board.ValidationError{Field: "value", Message: "request body must be valid JSON"}
	}
	return nil
}
