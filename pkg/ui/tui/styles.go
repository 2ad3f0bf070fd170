package tui

import "github.com/charmbracelet/lipgloss"

var (
	accentCyan    = lipgloss.Color("#2BD9FE")
	accentPurple  = lipgloss.Color("#8C8CFA")
	accentGreen   = lipgloss.Color("#5AF78E")
	accentYellow  = lipgloss.Color("#F3F99D")
	accentOrange  = lipgloss.Color("#FF9F43")
	alertRed      = lipgloss.Color("#FF5C57")
	darkBg        = lipgloss.Color("#191724")
	panelBg       = lipgloss.Color("#1F1D2E")
	dimWhite      = lipgloss.Color("#B0B0B0")
	timestampGray = lipgloss.Color("#666666")

	baseStyle = lipgloss.NewStyle().
			Background(darkBg).
			Foreground(dimWhite)

	headerStyle = lipgloss.NewStyle().
			Foreground(accentCyan).
			Bold(true).
			Padding(1, 0).
			Align(lipgloss.Center)

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(accentPurple).
			Background(panelBg).
			Padding(1, 2)

	titleStyle = lipgloss.NewStyle().
			Background(accentPurple).
			Foreground(darkBg).
			Bold(true).
			Padding(0, 1)

	labelStyle = lipgloss.NewStyle().
			Foreground(accentCyan).
			Bold(true)

	valueStyle = lipgloss.NewStyle().
			Foreground(accentYellow)

	successStyle = lipgloss.NewStyle().
			Foreground(accentGreen).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(alertRed).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(accentOrange).
			Bold(true)

	mutedStyle = lipgloss.NewStyle().
			Foreground(dimWhite).
			Faint(true)

	logTimestampStyle = lipgloss.NewStyle().
				Foreground(timestampGray)

	logMessageStyle = lipgloss.NewStyle().
			Foreground(dimWhite)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#626262")).
			Padding(1, 0, 0, 2)
)

// PhaseStyle returns the style used to render a phase label
func PhaseStyle(p Phase) lipgloss.Style {
	switch p {
	case PhaseCooling:
		return warningStyle
	case PhaseFetching:
		return valueStyle
	case PhaseIdle:
		return successStyle
	default:
		return mutedStyle
	}
}
