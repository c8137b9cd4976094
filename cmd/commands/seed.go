package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/dohr-michael/taskboard/internal/board"
	"github.com/dohr-michael/taskboard/internal/events"
	"github.com/dohr-michael/taskboard/internal/seed"
	"github.com/dohr-michael/taskboard/internal/store"
)

// NewSeedCommand returns the seed subcommand.
func NewSeedCommand() *cli.Command {
	return &cli.Command{
		Name:      "seed",
		Usage:     "Import projects and tasks from a YAML file",
		ArgsUsage: "<file.yaml>",
		Action:    runSeed,
	}
}

func runSeed(ctx context.Context, cmd *cli.Command) error {
	path := cmd.Args().First()
	if path == "" {
		return fmt.Errorf("usage: taskboard seed <file.yaml>")
	}

	cfg, err := setup(cmd)
	if err != nil {
		return err
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open seed file: %w", err)
	}
	defer f.Close()

	doc, err := seed.Parse(f)
	if err != nil {
		return err
	}

	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	res, err := seed.Apply(ctx, board.NewService(st, board.WithSource(events.SourceSeed)), doc)
	if err != nil {
		return err
	}

	w := cmd.Root().Writer
	fmt.Fprintf(w, "Imported %d projects, %d tasks\n", res.Projects, res.Tasks)
	for _, title := range res.Skipped {
		fmt.Fprintf(w, "  skipped %q (title already exists)\n", title)
	}
	return nil
}
