package boardview

import "charm.land/lipgloss/v2"

const (
	ColorPrimary = "#7C3AED" // Violet - board title
	ColorAccent  = "#60A5FA" // Blue - stage headers
	ColorMuted   = "#6B7280" // Gray - descriptions, counters
	ColorBorder  = "#374151" // Dark gray - column borders
	ColorText    = "#E5E7EB" // Light gray - task titles
)

var (
	TitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(ColorPrimary)).
			Bold(true)

	SubtitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(ColorMuted)).
			Italic(true)

	ColumnStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color(ColorBorder)).
			Padding(0, 1)

	StageStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(ColorAccent)).
			Bold(true)

	TaskStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(ColorText))

	HintStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(ColorMuted))
)
