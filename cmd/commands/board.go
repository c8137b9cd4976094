package commands

import (
	"context"
	"fmt"

	"charm.land/lipgloss/v2"
	"github.com/urfave/cli/v3"

	"github.com/dohr-michael/taskboard/internal/board"
	"github.com/dohr-michael/taskboard/internal/boardview"
	"github.com/dohr-michael/taskboard/internal/store"
)

// NewBoardCommand returns the board subcommand.
func NewBoardCommand() *cli.Command {
	return &cli.Command{
		Name:      "board",
		Usage:     "Render a project as stage columns",
		ArgsUsage: "<project-id>",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "width",
				Usage: "Column width",
				Value: boardview.DefaultColumnWidth,
			},
		},
		Action: runBoard,
	}
}

func runBoard(ctx context.Context, cmd *cli.Command) error {
	id := cmd.Args().First()
	if id == "" {
		return fmt.Errorf("usage: taskboard board <project-id>")
	}

	cfg, err := setup(cmd)
	if err != nil {
		return err
	}

	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	p, err := board.NewService(st).GetProject(ctx, id)
	if err != nil {
		return err
	}

	_, err = lipgloss.Fprintln(cmd.Root().Writer, boardview.Render(p, int(cmd.Int("width"))))
	return err
}
