// Package gateway exposes the board service over HTTP.
package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/dohr-michael/taskboard/internal/board"
	"github.com/dohr-michael/taskboard/internal/events"
	"github.com/dohr-michael/taskboard/internal/gateway/ws"
)

// Options configures the listener and the browser origin allowed by CORS.
type Options struct {
	Host       string
	Port       int
	CORSOrigin string
	// OnListen, when set, receives the address actually bound by Start.
	OnListen func(addr string)
	// EventLog, when set, serves project history from the audit log
	// instead of the in-memory ring buffer.
	EventLog EventReader
}

// EventReader reads the logged events of one project, oldest first.
type EventReader interface {
	Read(projectID string) ([]events.Event, error)
}

// Server is the taskboard HTTP server.
type Server struct {
	httpServer *http.Server
	hub        *ws.Hub
	bus        *events.Bus
	svc        *board.Service
	eventLog   EventReader
	addr       string
	onListen   func(addr string)
}

// NewServer creates a new server for svc. bus feeds the event endpoints.
func NewServer(svc *board.Service, bus *events.Bus, opts Options) *Server {
	hub := ws.NewHub(bus, originPatterns(opts.CORSOrigin)...)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:     []string{opts.CORSOrigin},
		AllowedMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:     []string{"Accept", "Content-Type", "X-Request-Id"},
		AllowCredentials:   true,
		MaxAge:             300,
		OptionsPassthrough: true,
	}))
	r.Use(preflight)
	r.Use(eventRequestID)

	s := &Server{
		hub:      hub,
		bus:      bus,
		svc:      svc,
		eventLog: opts.EventLog,
		addr:     fmt.Sprintf("%s:%d", opts.Host, opts.Port),
		onListen: opts.OnListen,
	}

	// Ops
	r.Get("/api/health", s.handleHealth)
	r.Get("/api/ws", hub.ServeWS)
	r.Get("/api/events", s.handleEvents)

	// Projects
	r.Get("/projects", s.handleListProjects)
	r.Post("/project", s.handleCreateProject)
	r.Route("/project/{id}", func(r chi.Router) {
		r.Get("/", s.handleGetProject)
		r.Put("/", s.handleUpdateProject)
		r.Delete("/", s.handleDeleteProject)

		r.Post("/task", s.handleAddTask)
		r.Get("/task/{taskId}", s.handleGetTask)
		r.Put("/task/{taskId}", s.handleUpdateTask)
		r.Delete("/task/{taskId}", s.handleDeleteTask)

		r.Put("/todo", s.handleReassign)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, errorBody{Error: true, Message: "Not found"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, errorBody{Error: true, Message: "Method not allowed"})
	})

	s.httpServer = &http.Server{
		Addr:              s.addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start begins listening. It blocks until the server is stopped.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	addr := ln.Addr().String()
	slog.Info("taskboard listening", "addr", addr)
	if s.onListen != nil {
		s.onListen(addr)
	}
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.Close()
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 {
		limit = v
	}

	var history []events.Event
	pid := r.URL.Query().Get("project_id")
	switch {
	case pid != "" && s.eventLog != nil:
		logged, err := s.eventLog.Read(pid)
		if err != nil {
			writeError(w, r, fmt.Errorf("read event log: %w", err))
			return
		}
		if len(logged) > limit {
			logged = logged[len(logged)-limit:]
		}
		history = logged
	case pid != "":
		history = s.bus.ProjectHistory(pid, limit)
	default:
		history = s.bus.History(limit)
	}

	type eventJSON struct {
		ID        string             `json:"id"`
		ProjectID string             `json:"project_id,omitempty"`
		RequestID string             `json:"request_id,omitempty"`
		Type      string             `json:"type"`
		Timestamp string             `json:"timestamp"`
		Source    events.EventSource `json:"source"`
		Payload   map[string]any     `json:"payload"`
	}

	result := make([]eventJSON, len(history))
	for i, e := range history {
		result[i] = eventJSON{
			ID:        e.ID,
			ProjectID: e.ProjectID,
			RequestID: e.RequestID,
			Type:      string(e.Type),
			Timestamp: e.Timestamp.Format(time.RFC3339Nano),
			Source:    e.Source,
			Payload:   e.Payload,
		}
	}

	writeJSON(w, http.StatusOK, result)
}

// originPatterns turns the CORS origin into the host pattern the WebSocket
// upgrade checks against.
func originPatterns(origin string) []string {
	if origin == "" || origin == "*" {
		return nil
	}
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return nil
	}
	return []string{u.Host}
}
