// Package tui renders a live dashboard of the mirror loop.
package tui

import (
	"bytes"
	"encoding/json"
	"strings"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"mastowatch/pkg/mirror"
)

const eventBuffer = 256

// TUI owns the bubbletea program and the queue feeding it
type TUI struct {
	program *tea.Program
	model   *Model
	events  chan tea.Msg
	done    chan struct{}
	once    sync.Once
}

// NewTUI creates a dashboard for mirroring source to target. Extra program
// options are passed through, which tests use to swap input and output.
func NewTUI(source, target string, opts ...tea.ProgramOption) *TUI {
	model := NewModel(source, target)
	if len(opts) == 0 {
		opts = []tea.ProgramOption{tea.WithAltScreen()}
	}

	return &TUI{
		program: tea.NewProgram(model, opts...),
		model:   model,
		events:  make(chan tea.Msg, eventBuffer),
		done:    make(chan struct{}),
	}
}

// Start runs the program until the user quits or Stop is called
func (t *TUI) Start() error {
	go t.pump()
	defer t.once.Do(func() { close(t.done) })

	_, err := t.program.Run()
	return err
}

// Stop quits the program
func (t *TUI) Stop() {
	t.program.Quit()
}

// Observer returns a mirror.Observer that queues events for the dashboard.
// Events are dropped when the queue is full so the loop never waits on
// rendering.
func (t *TUI) Observer() mirror.Observer {
	return func(ev mirror.Event) {
		t.enqueue(EventMsg(ev))
	}
}

// Log queues a log line for the dashboard
func (t *TUI) Log(level, message string) {
	t.enqueue(LogMsg{Level: level, Message: message})
}

// LogWriter returns an io.Writer that turns JSON log lines into dashboard
// log entries. It is meant to replace the console writer while the
// dashboard owns the terminal.
func (t *TUI) LogWriter() *LogWriter {
	return &LogWriter{send: t.Log}
}

// Model exposes the dashboard state
func (t *TUI) Model() *Model {
	return t.model
}

func (t *TUI) enqueue(msg tea.Msg) {
	select {
	case <-t.done:
	case t.events <- msg:
	default:
	}
}

func (t *TUI) pump() {
	for {
		select {
		case <-t.done:
			return
		case msg := <-t.events:
			t.program.Send(msg)
		}
	}
}

// LogWriter adapts JSON log output to dashboard log entries
type LogWriter struct {
	send func(level, message string)
	mu   sync.Mutex
	buf  bytes.Buffer
}

// Write consumes whole lines; a trailing partial line is kept until the
// rest arrives
func (w *LogWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.buf.Write(p)
	for {
		line, err := w.buf.ReadBytes('\n')
		if err != nil {
			// Put the partial line back for the next write.
			rest := append([]byte(nil), line...)
			w.buf.Reset()
			w.buf.Write(rest)
			break
		}
		w.emit(bytes.TrimSpace(line))
	}
	return len(p), nil
}

func (w *LogWriter) emit(line []byte) {
	if len(line) == 0 {
		return
	}

	var entry struct {
		Level   string `json:"level"`
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(line, &entry); err != nil {
		w.send("INFO", string(line))
		return
	}

	level := strings.ToUpper(entry.Level)
	if level == "WARNING" {
		level = "WARN"
	}
	message := entry.Message
	if entry.Error != "" {
		message += ": " + entry.Error
	}
	w.send(level, message)
}
