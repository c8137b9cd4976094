package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/coder/websocket"
	"github.com/urfave/cli/v3"

	wsclient "github.com/dohr-michael/taskboard/clients/ws"
	"github.com/dohr-michael/taskboard/internal/events"
	wsprotocol "github.com/dohr-michael/taskboard/internal/gateway/ws"
)

// NewWatchCommand returns the watch subcommand.
func NewWatchCommand() *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "Stream board events from a running server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "url",
				Usage: "Server WebSocket URL (default from config)",
			},
			&cli.StringFlag{
				Name:  "project",
				Usage: "Only show events of this project",
			},
			&cli.IntFlag{
				Name:  "history",
				Usage: "Print this many past events first",
			},
		},
		Action: runWatch,
	}
}

func runWatch(ctx context.Context, cmd *cli.Command) error {
	cfg, err := setup(cmd)
	if err != nil {
		return err
	}

	url := cmd.String("url")
	if url == "" {
		url = fmt.Sprintf("ws://%s:%d/api/ws", cfg.Server.Host, cfg.Server.Port)
	}

	client, err := wsclient.Dial(ctx, url, wsclient.DialOptions{Origin: cfg.Server.CORSOrigin})
	if err != nil {
		return err
	}
	defer client.Close()

	project := cmd.String("project")
	if _, err := client.Subscribe(project); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	if n := int(cmd.Int("history")); n > 0 {
		if _, err := client.History(project, n); err != nil {
			return fmt.Errorf("history: %w", err)
		}
	}

	w := cmd.Root().Writer
	for {
		frame, err := client.ReadFrame()
		if err != nil {
			if errors.Is(err, context.Canceled) || websocket.CloseStatus(err) != -1 {
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}
		if err := printFrame(w, frame); err != nil {
			return err
		}
	}
}

// printFrame writes events one per line. History responses are expanded;
// other responses only surface when they failed.
func printFrame(w io.Writer, frame wsprotocol.Frame) error {
	switch frame.Type {
	case wsprotocol.FrameTypeEvent:
		var e events.Event
		if err := json.Unmarshal(frame.Payload, &e); err != nil {
			return fmt.Errorf("decode event: %w", err)
		}
		printEvent(w, e)

	case wsprotocol.FrameTypeResponse:
		if frame.OK == nil || !*frame.OK {
			return fmt.Errorf("server: %s", frame.Error)
		}
		var history []events.Event
		if json.Unmarshal(frame.Payload, &history) == nil {
			for _, e := range history {
				printEvent(w, e)
			}
		}
	}
	return nil
}

func printEvent(w io.Writer, e events.Event) {
	payload, _ := json.Marshal(e.Payload)
	fmt.Fprintf(w, "%s  %-18s %s %s\n", e.Timestamp.Format(time.TimeOnly), e.Type, e.ProjectID, payload)
}
