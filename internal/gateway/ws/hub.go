// Package ws streams board events to WebSocket clients.
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/coder/websocket"

	"github.com/dohr-michael/taskboard/internal/events"
)

const defaultHistoryLimit = 50

// Client represents a connected WebSocket client.
type Client struct {
	conn *websocket.Conn
	send chan []byte
	hub  *Hub

	mu        sync.RWMutex
	projectID string // empty: every project
}

func (c *Client) wants(projectID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.projectID == "" || c.projectID == projectID
}

// Hub manages WebSocket clients and bridges them to the event bus.
type Hub struct {
	mu             sync.RWMutex
	clients        map[*Client]struct{}
	bus            *events.Bus
	originPatterns []string
	unsubscribe    func()
}

// NewHub creates a hub connected to bus. originPatterns are host patterns
// accepted on upgrade (see websocket.AcceptOptions); none allows any origin.
func NewHub(bus *events.Bus, originPatterns ...string) *Hub {
	h := &Hub{
		clients:        make(map[*Client]struct{}),
		bus:            bus,
		originPatterns: originPatterns,
	}

	h.unsubscribe = bus.SubscribeOrdered(func(e events.Event) {
		data, err := eventFrame(e)
		if err != nil {
			slog.Error("marshal event frame", "error", err)
			return
		}
		h.broadcast(e.ProjectID, data)
	})

	return h
}

func eventFrame(e events.Event) ([]byte, error) {
	frame, err := NewEventFrame(string(e.Type), e.ProjectID, e)
	if err != nil {
		return nil, err
	}
	return MarshalFrame(frame)
}

// broadcast sends data to every client following projectID.
func (h *Hub) broadcast(projectID string, data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients {
		if !c.wants(projectID) {
			continue
		}
		select {
		case c.send <- data:
		default:
			// Client too slow, skip
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
	slog.Info("ws client connected", "clients", len(h.clients))
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
		slog.Info("ws client disconnected", "clients", len(h.clients))
	}
}

// ServeWS handles a WebSocket upgrade and manages the client lifecycle.
// A project_id query parameter subscribes the client to that project only.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	opts := &websocket.AcceptOptions{OriginPatterns: h.originPatterns}
	if len(h.originPatterns) == 0 {
		opts.InsecureSkipVerify = true
	}
	conn, err := websocket.Accept(w, r, opts)
	if err != nil {
		slog.Error("ws accept", "error", err)
		return
	}

	client := &Client{
		conn:      conn,
		send:      make(chan []byte, 256),
		hub:       h,
		projectID: r.URL.Query().Get("project_id"),
	}

	h.register(client)

	ctx := r.Context()
	go client.writePump(ctx)
	client.readPump(ctx)
}

// readPump reads frames from the WS connection and dispatches them.
func (c *Client) readPump(ctx context.Context) {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		_, data, err := c.conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 {
				slog.Debug("ws read closed", "status", websocket.CloseStatus(err))
			} else {
				slog.Debug("ws read error", "error", err)
			}
			return
		}

		frame, err := UnmarshalFrame(data)
		if err != nil {
			slog.Error("ws unmarshal frame", "error", err)
			continue
		}

		c.handleFrame(frame)
	}
}

func (c *Client) handleFrame(frame Frame) {
	switch frame.Type {
	case FrameTypeRequest:
		c.handleRequest(frame)
	default:
		slog.Debug("ws unknown frame type", "type", frame.Type)
	}
}

// handleRequest processes a request frame (method dispatch).
func (c *Client) handleRequest(frame Frame) {
	var params ProjectParams
	if len(frame.Params) > 0 {
		if err := json.Unmarshal(frame.Params, &params); err != nil {
			c.sendError(frame.ID, "invalid params")
			return
		}
	}

	switch Method(frame.Method) {
	case MethodSubscribe:
		c.mu.Lock()
		c.projectID = params.ProjectID
		c.mu.Unlock()
		c.sendOK(frame.ID, map[string]string{"project_id": params.ProjectID})

	case MethodHistory:
		limit := params.Limit
		if limit <= 0 {
			limit = defaultHistoryLimit
		}
		var history []events.Event
		if params.ProjectID != "" {
			history = c.hub.bus.ProjectHistory(params.ProjectID, limit)
		} else {
			history = c.hub.bus.History(limit)
		}
		if history == nil {
			history = []events.Event{}
		}
		c.sendOK(frame.ID, history)

	default:
		c.sendError(frame.ID, "unknown method: "+frame.Method)
	}
}

// writePump writes queued messages to the WS connection.
func (c *Client) writePump(ctx context.Context) {
	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.Write(ctx, websocket.MessageText, msg); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func (c *Client) sendOK(id string, payload any) {
	c.reply(NewResponseFrame(id, true, payload, ""))
}

func (c *Client) sendError(id string, errMsg string) {
	c.reply(NewResponseFrame(id, false, nil, errMsg))
}

func (c *Client) reply(f Frame, err error) {
	if err != nil {
		return
	}
	data, err := MarshalFrame(f)
	if err != nil {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

// Close shuts down the hub and all client connections.
func (h *Hub) Close() {
	if h.unsubscribe != nil {
		h.unsubscribe()
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		c.conn.Close(websocket.StatusGoingAway, "server shutdown")
		delete(h.clients, c)
	}
}
