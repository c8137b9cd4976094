package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/urfave/cli/v3"

	"github.com/dohr-michael/taskboard/internal/board"
	"github.com/dohr-michael/taskboard/internal/config"
	"github.com/dohr-michael/taskboard/internal/events"
	"github.com/dohr-michael/taskboard/internal/gateway"
	"github.com/dohr-michael/taskboard/internal/heartbeat"
	"github.com/dohr-michael/taskboard/internal/storage"
	"github.com/dohr-michael/taskboard/internal/store"
)

// NewServeCommand returns the serve subcommand.
func NewServeCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the taskboard HTTP server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "host",
				Usage: "Host to listen on",
			},
			&cli.IntFlag{
				Name:  "port",
				Usage: "Port to listen on",
			},
			&cli.StringFlag{
				Name:  "store",
				Usage: "Store driver (sqlite or mongo)",
			},
		},
		Action: runServe,
	}
}

func runServe(ctx context.Context, cmd *cli.Command) error {
	cfg, err := setup(cmd)
	if err != nil {
		return err
	}

	// CLI flags override config
	if cmd.IsSet("host") {
		cfg.Server.Host = cmd.String("host")
	}
	if cmd.IsSet("port") {
		cfg.Server.Port = int(cmd.Int("port"))
	}
	if cmd.IsSet("store") {
		cfg.Store.Driver = cmd.String("store")
	}

	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	bus := events.NewBus(cfg.Events.BufferSize)
	defer bus.Close()

	var eventLog gateway.EventReader
	if cfg.Events.Log {
		el := storage.NewEventLogger(cfg.Events.LogDir, bus)
		defer el.Close()
		eventLog = el
		slog.Info("event log enabled", "dir", cfg.Events.LogDir)
	}

	hb := heartbeat.NewWriter(config.HeartbeatPath(), heartbeat.DefaultInterval, heartbeat.Info{
		Addr:  fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Store: cfg.Store.Driver,
	})
	hb.Start()
	defer hb.Stop()

	svc := board.NewService(st, board.WithPublisher(bus))
	server := gateway.NewServer(svc, bus, gateway.Options{
		Host:       cfg.Server.Host,
		Port:       cfg.Server.Port,
		CORSOrigin: cfg.Server.CORSOrigin,
		OnListen:   hb.SetAddr,
		EventLog:   eventLog,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration())
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
