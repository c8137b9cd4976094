// Package boardview renders a project as one terminal column per stage.
package boardview

import (
	"fmt"
	"strings"

	"charm.land/lipgloss/v2"

	"github.com/dohr-michael/taskboard/internal/board"
)

// DefaultColumnWidth is the content width of a stage column.
const DefaultColumnWidth = 28

// Columns returns the stage labels in display order: Requested first, then
// the other stages in first-seen order.
func Columns(p *board.Project) []string {
	cols := []string{board.StageRequested}
	for _, s := range p.Stages() {
		if s != board.StageRequested {
			cols = append(cols, s)
		}
	}
	return cols
}

// Render draws p with columns of the given content width.
func Render(p *board.Project, width int) string {
	if width <= 0 {
		width = DefaultColumnWidth
	}

	header := TitleStyle.Render(p.Title)
	if p.Description != "" {
		header += "\n" + SubtitleStyle.Render(p.Description)
	}

	var columns []string
	for _, stage := range Columns(p) {
		columns = append(columns, renderColumn(stage, p.Stage(stage), width))
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		"",
		lipgloss.JoinHorizontal(lipgloss.Top, columns...),
		HintStyle.Render(fmt.Sprintf("%d tasks", len(p.Tasks))),
	)
}

func renderColumn(stage string, tasks []board.Task, width int) string {
	var b strings.Builder
	b.WriteString(StageStyle.Render(fmt.Sprintf("%s (%d)", stage, len(tasks))))
	for _, t := range tasks {
		b.WriteString("\n")
		b.WriteString(TaskStyle.Render(fmt.Sprintf("%d. %s", t.Order, t.Title)))
		if t.Description != "" {
			b.WriteString("\n")
			b.WriteString(HintStyle.Render("   " + truncate(t.Description, width-3)))
		}
	}
	if len(tasks) == 0 {
		b.WriteString("\n")
		b.WriteString(HintStyle.Render("empty"))
	}
	return ColumnStyle.Width(width + 4).Render(b.String())
}

func truncate(s string, n int) string {
	if n <= 1 {
		return ""
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
