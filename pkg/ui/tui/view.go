package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"mastowatch/pkg/mirror"
)

// View renders the entire dashboard
func (m *Model) View() string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	width := (m.width - 4) / 2

	left := lipgloss.JoinVertical(lipgloss.Left,
		m.renderStatusPanel(width),
		m.renderStatsPanel(width),
	)
	right := lipgloss.JoinVertical(lipgloss.Left,
		m.renderActivityPanel(width),
		m.renderLogsPanel(width),
	)

	sections := []string{
		headerStyle.Width(m.width).Render(fmt.Sprintf("MASTOWATCH  %s → %s", m.source, m.target)),
		lipgloss.JoinHorizontal(lipgloss.Top, left, "  ", right),
	}

	if m.showHelp {
		sections = append(sections, m.renderHelp())
	} else {
		sections = append(sections, helpStyle.Render("Press ? for help, q to stop mirroring"))
	}

	return baseStyle.Width(m.width).Height(m.height).Render(
		lipgloss.JoinVertical(lipgloss.Left, sections...),
	)
}

func (m *Model) renderStatusPanel(width int) string {
	title := titleStyle.Render(" LOOP ")

	phase := PhaseStyle(m.phase).Render(string(m.phase))
	if m.phase == PhaseFetching || m.phase == PhaseStarting {
		phase = m.spinner.View() + " " + phase
	}

	account := m.account
	if account == "" {
		account = "…"
	}
	watermark := m.watermark
	if watermark == "" {
		watermark = "none"
	}

	lines := []string{
		field("Account:", "@"+account),
		labelStyle.Render("State:") + " " + phase,
		field("Watermark:", watermark),
		field("Uptime:", formatDuration(m.now().Sub(m.startedAt))),
	}

	if m.phase == PhaseIdle && !m.nextCycle.IsZero() {
		lines = append(lines, field("Next poll in:", formatDuration(m.nextCycle.Sub(m.now()))))
	}
	if m.phase == PhaseCooling {
		lines = append(lines,
			field("Cooldown:", formatDuration(m.coolingUntil.Sub(m.now()))),
			m.cooldown.ViewAs(m.cooldownProgress()),
		)
	}

	return panelStyle.Width(width).Render(
		lipgloss.JoinVertical(lipgloss.Left, title, strings.Join(lines, "\n")),
	)
}

func (m *Model) renderStatsPanel(width int) string {
	title := titleStyle.Render(" TOTALS ")

	lines := []string{
		field("Cycles:", fmt.Sprintf("%d", m.stats.Cycles)),
		labelStyle.Render("Published:") + " " + successStyle.Render(fmt.Sprintf("%d", m.stats.Published)),
		field("Skipped:", fmt.Sprintf("%d", m.stats.Skipped)),
		labelStyle.Render("Failed:") + " " + countStyle(m.stats.Failed, errorStyle).Render(fmt.Sprintf("%d", m.stats.Failed)),
		labelStyle.Render("Rate limited:") + " " + countStyle(m.stats.RateLimited, warningStyle).Render(fmt.Sprintf("%d", m.stats.RateLimited)),
		field("Media skipped:", fmt.Sprintf("%d", m.stats.MediaFailed)),
		field("Fetch failures:", fmt.Sprintf("%d", m.fetchFailures)),
	}

	return panelStyle.Width(width).Render(
		lipgloss.JoinVertical(lipgloss.Left, title, strings.Join(lines, "\n")),
	)
}

func (m *Model) renderActivityPanel(width int) string {
	title := titleStyle.Render(" RECENT POSTS ")

	if len(m.posts) == 0 {
		return panelStyle.Width(width).Render(
			lipgloss.JoinVertical(lipgloss.Left, title, mutedStyle.Render("Waiting for new posts...")),
		)
	}

	var rows []string
	for i := len(m.posts) - 1; i >= 0; i-- {
		rows = append(rows, renderPost(m.posts[i], width-6))
	}

	return panelStyle.Width(width).Render(
		lipgloss.JoinVertical(lipgloss.Left, title, strings.Join(rows, "\n")),
	)
}

func renderPost(p PostEntry, width int) string {
	var icon string
	switch p.Kind {
	case mirror.EventPublished:
		icon = successStyle.Render("✓")
	case mirror.EventSkipped:
		icon = mutedStyle.Render("↷")
	case mirror.EventRateLimited:
		icon = warningStyle.Render("⏸")
	default:
		icon = errorStyle.Render("✗")
	}

	text := p.Preview
	if text == "" {
		text = p.StatusID
	}
	if p.Detail != "" {
		text += " (" + p.Detail + ")"
	}

	return fmt.Sprintf("%s %s %s", logTimestampStyle.Render(p.Time.Format("15:04:05")), icon, truncate(text, width-12))
}

func (m *Model) renderLogsPanel(width int) string {
	title := titleStyle.Render(" LOG ")

	start := len(m.logMessages) - 8
	if start < 0 {
		start = 0
	}

	var logs []string
	for _, entry := range m.logMessages[start:] {
		timestamp := logTimestampStyle.Render(entry.Time.Format("15:04:05"))
		level := lipgloss.NewStyle().Foreground(entry.Color).Bold(true).Render(fmt.Sprintf("[%-5s]", entry.Level))
		logs = append(logs, fmt.Sprintf("%s %s %s", timestamp, level, logMessageStyle.Render(truncate(entry.Message, width-24))))
	}

	content := strings.Join(logs, "\n")
	if content == "" {
		content = mutedStyle.Render("No logs yet...")
	}

	return panelStyle.Width(width).Render(
		lipgloss.JoinVertical(lipgloss.Left, title, content),
	)
}

func (m *Model) renderHelp() string {
	help := `
  Keys:
    q/Q      - Stop mirroring and exit
    ctrl+l   - Clear the log panel
    ?        - Toggle this help

  Activity:
    ` + successStyle.Render("✓") + `        - Published to the target
    ` + mutedStyle.Render("↷") + `        - Skipped (reblog, reply or mention)
    ` + warningStyle.Render("⏸") + `        - Rate limited, will retry
    ` + errorStyle.Render("✗") + `        - Publish failed
`
	return panelStyle.Width(m.width).Render(help)
}

func field(label, value string) string {
	return labelStyle.Render(label) + " " + valueStyle.Render(value)
}

func countStyle(n int, hot lipgloss.Style) lipgloss.Style {
	if n == 0 {
		return valueStyle
	}
	return hot
}

// truncate shortens s to at most max runes, marking the cut with "..."
func truncate(s string, max int) string {
	if max < 4 {
		max = 4
	}
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}

// formatDuration formats a duration as MM:SS or HH:MM:SS
func formatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}

	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60

	if h > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}
