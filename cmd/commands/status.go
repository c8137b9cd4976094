package commands

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/dohr-michael/taskboard/internal/config"
	"github.com/dohr-michael/taskboard/internal/heartbeat"
)

// staleAfter is how old a heartbeat may get before the server is reported stale.
const staleAfter = 2 * heartbeat.DefaultInterval

// NewStatusCommand returns the status subcommand.
func NewStatusCommand() *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Show taskboard server status",
		Action: func(_ context.Context, cmd *cli.Command) error {
			return printStatus(cmd.Root().Writer, config.HeartbeatPath())
		},
	}
}

func printStatus(w io.Writer, path string) error {
	status, hb, err := heartbeat.Check(path, staleAfter)
	if err != nil {
		return fmt.Errorf("check heartbeat: %w", err)
	}

	switch status {
	case heartbeat.StatusAlive:
		fmt.Fprintf(w, "Server: ALIVE (PID %d, %s, store %s, uptime %s)\n", hb.PID, hb.Addr, hb.Store, hb.Uptime)
	case heartbeat.StatusStale:
		fmt.Fprintf(w, "Server: STALE (PID %d, last heartbeat %s ago)\n",
			hb.PID, time.Since(hb.Timestamp).Truncate(time.Second))
	case heartbeat.StatusDead:
		fmt.Fprintln(w, "Server: NOT RUNNING")
	}
	return nil
}
