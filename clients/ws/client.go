// Package ws provides a WebSocket client for the taskboard event stream.
package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"

	"github.com/coder/websocket"

	wsprotocol "github.com/dohr-michael/taskboard/internal/gateway/ws"
)

// Client is a WebSocket client for a taskboard server.
type Client struct {
	conn   *websocket.Conn
	reqSeq uint64
	ctx    context.Context
	cancel context.CancelFunc
}

// DialOptions configures Dial.
type DialOptions struct {
	// Origin is sent on the upgrade request; servers check it against
	// their CORS origin.
	Origin string
}

// Dial connects to the server WebSocket endpoint.
func Dial(ctx context.Context, url string, opts DialOptions) (*Client, error) {
	var dialOpts *websocket.DialOptions
	if opts.Origin != "" {
		dialOpts = &websocket.DialOptions{HTTPHeader: http.Header{"Origin": []string{opts.Origin}}}
	}
	conn, _, err := websocket.Dial(ctx, url, dialOpts)
	if err != nil {
		return nil, fmt.Errorf("ws dial: %w", err)
	}

	clientCtx, cancel := context.WithCancel(ctx)

	return &Client{
		conn:   conn,
		ctx:    clientCtx,
		cancel: cancel,
	}, nil
}

// Subscribe narrows the stream to one project; an empty id follows all.
// It returns the request id the server's response frame will carry.
func (c *Client) Subscribe(projectID string) (string, error) {
	return c.request(wsprotocol.MethodSubscribe, wsprotocol.ProjectParams{ProjectID: projectID})
}

// History asks for up to limit recent events, optionally of one project.
func (c *Client) History(projectID string, limit int) (string, error) {
	return c.request(wsprotocol.MethodHistory, wsprotocol.ProjectParams{ProjectID: projectID, Limit: limit})
}

func (c *Client) request(method wsprotocol.Method, params any) (string, error) {
	seq := atomic.AddUint64(&c.reqSeq, 1)
	id := fmt.Sprintf("req-%d", seq)

	raw, err := json.Marshal(params)
	if err != nil {
		return "", err
	}

	data, err := wsprotocol.MarshalFrame(wsprotocol.Frame{
		Type:   wsprotocol.FrameTypeRequest,
		ID:     id,
		Method: string(method),
		Params: raw,
	})
	if err != nil {
		return "", err
	}
	return id, c.conn.Write(c.ctx, websocket.MessageText, data)
}

// ReadFrame reads the next frame from the connection.
func (c *Client) ReadFrame() (wsprotocol.Frame, error) {
	_, data, err := c.conn.Read(c.ctx)
	if err != nil {
		return wsprotocol.Frame{}, err
	}
	return wsprotocol.UnmarshalFrame(data)
}

// Close gracefully closes the connection.
func (c *Client) Close() error {
	c.cancel()
	return c.conn.Close(websocket.StatusNormalClosure, "bye")
}
