package tui

import (
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"mastowatch/pkg/mirror"
)

// Phase is what the loop is doing right now
type Phase string

const (
	PhaseStarting Phase = "starting"
	PhaseFetching Phase = "fetching"
	PhaseIdle     Phase = "idle"
	PhaseCooling  Phase = "cooling down"
)

// PostEntry is one processed post shown in the activity panel
type PostEntry struct {
	Time     time.Time
	StatusID string
	Preview  string
	Kind     mirror.EventKind
	Detail   string
}

// LogMessage represents a log entry
type LogMessage struct {
	Time    time.Time
	Level   string
	Message string
	Color   lipgloss.Color
}

// Model holds the dashboard state
type Model struct {
	spinner  spinner.Model
	cooldown progress.Model

	source  string
	target  string
	account string

	phase         Phase
	watermark     string
	stats         mirror.Stats
	fetchFailures int
	startedAt     time.Time
	nextCycle     time.Time
	coolingSince  time.Time
	coolingUntil  time.Time

	posts          []PostEntry
	maxPosts       int
	logMessages    []LogMessage
	maxLogMessages int

	width    int
	height   int
	showHelp bool

	now func() time.Time
	mu  sync.RWMutex
}

// NewModel creates a dashboard for mirroring source to target
func NewModel(source, target string) *Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(accentCyan)

	p := progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage())
	p.Width = 30

	return &Model{
		spinner:        s,
		cooldown:       p,
		source:         source,
		target:         target,
		phase:          PhaseStarting,
		startedAt:      time.Now(),
		maxPosts:       12,
		maxLogMessages: 50,
		now:            time.Now,
	}
}

// Init starts the spinner and the clock
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, tickCmd())
}

// ApplyEvent folds a loop event into the dashboard state
func (m *Model) ApplyEvent(ev mirror.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if ev.Watermark != "" {
		m.watermark = ev.Watermark
	}

	switch ev.Kind {
	case mirror.EventStarted:
		m.account = ev.Reason
		m.phase = PhaseIdle
		m.appendLog("INFO", "Mirroring @"+ev.Reason)

	case mirror.EventCycleStarted:
		m.stats.Cycles++
		m.phase = PhaseFetching
		m.coolingUntil = time.Time{}

	case mirror.EventCycleFinished:
		m.phase = PhaseIdle
		m.nextCycle = ev.Until

	case mirror.EventPublished:
		m.stats.Published++
		detail := ""
		if ev.Media > 0 {
			detail = fmt.Sprintf("%d media", ev.Media)
		}
		m.appendPost(ev, detail)

	case mirror.EventSkipped:
		m.stats.Skipped++
		m.appendPost(ev, ev.Reason)

	case mirror.EventFailed:
		m.stats.Failed++
		m.appendPost(ev, errText(ev.Err))
		m.appendLog("ERROR", "Publish failed for "+ev.StatusID+": "+errText(ev.Err))

	case mirror.EventRateLimited:
		m.stats.RateLimited++
		m.phase = PhaseCooling
		m.coolingSince = ev.Time
		m.coolingUntil = ev.Until
		m.appendPost(ev, "rate limited")
		m.appendLog("WARN", "Target rate limited, cooling down")

	case mirror.EventMediaFailed:
		m.stats.MediaFailed++
		m.appendLog("WARN", "Media skipped for "+ev.StatusID+": "+errText(ev.Err))

	case mirror.EventFetchFailed:
		m.fetchFailures++
		m.appendLog("WARN", "Fetch failed: "+errText(ev.Err))
	}
}

// AddLogMessage adds a log message
func (m *Model) AddLogMessage(level, message string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.appendLog(level, message)
}

// Stats returns the counters seen so far
func (m *Model) Stats() mirror.Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.stats
}

// Posts returns the recent activity, oldest first
func (m *Model) Posts() []PostEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	posts := make([]PostEntry, len(m.posts))
	copy(posts, m.posts)
	return posts
}

// Phase returns the current phase
func (m *Model) Phase() Phase {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.phase
}

// CooldownProgress reports how far through the current cooldown the loop
// is, from 0 to 1. It is 1 when no cooldown is running.
func (m *Model) CooldownProgress() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cooldownProgress()
}

func (m *Model) cooldownProgress() float64 {
	total := m.coolingUntil.Sub(m.coolingSince)
	if m.coolingUntil.IsZero() || total <= 0 {
		return 1
	}
	done := m.now().Sub(m.coolingSince)
	switch {
	case done <= 0:
		return 0
	case done >= total:
		return 1
	}
	return float64(done) / float64(total)
}

func (m *Model) appendPost(ev mirror.Event, detail string) {
	m.posts = append(m.posts, PostEntry{
		Time:     ev.Time,
		StatusID: ev.StatusID,
		Preview:  ev.Preview,
		Kind:     ev.Kind,
		Detail:   detail,
	})
	if len(m.posts) > m.maxPosts {
		m.posts = m.posts[len(m.posts)-m.maxPosts:]
	}
}

func (m *Model) appendLog(level, message string) {
	m.logMessages = append(m.logMessages, LogMessage{
		Time:    m.now(),
		Level:   level,
		Message: message,
		Color:   levelColor(level),
	})
	if len(m.logMessages) > m.maxLogMessages {
		m.logMessages = m.logMessages[len(m.logMessages)-m.maxLogMessages:]
	}
}

func levelColor(level string) lipgloss.Color {
	switch level {
	case "ERROR":
		return alertRed
	case "WARN":
		return accentOrange
	case "SUCCESS":
		return accentGreen
	case "INFO":
		return accentCyan
	default:
		return dimWhite
	}
}

func errText(err error) string {
	if err == nil {
		return "unknown error"
	}
	return err.Error()
}
