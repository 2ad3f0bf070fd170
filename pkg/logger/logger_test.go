package logger

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"mastowatch/pkg/config"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *config.LoggingConfig
		wantErr bool
	}{
		{
			name: "info level",
			cfg:  &config.LoggingConfig{Level: "info"},
		},
		{
			name: "debug level",
			cfg:  &config.LoggingConfig{Level: "debug"},
		},
		{
			name:    "invalid level",
			cfg:     &config.LoggingConfig{Level: "loud"},
			wantErr: true,
		},
		{
			name: "file output",
			cfg:  &config.LoggingConfig{Level: "info", File: filepath.Join(t.TempDir(), "logs", "mastowatch.log")},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := New(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, l)
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		level    string
		expected zerolog.Level
		wantErr  bool
	}{
		{"debug", zerolog.DebugLevel, false},
		{"INFO", zerolog.InfoLevel, false},
		{"", zerolog.InfoLevel, false},
		{"warning", zerolog.WarnLevel, false},
		{"error", zerolog.ErrorLevel, false},
		{"disabled", zerolog.Disabled, false},
		{"verbose", zerolog.InfoLevel, true},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			level, err := parseLogLevel(tt.level)
			assert.Equal(t, tt.wantErr, err != nil)
			assert.Equal(t, tt.expected, level)
		})
	}
}

func newBufferLogger(buf *bytes.Buffer) *zerologLogger {
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	zlog := zerolog.New(buf).Level(zerolog.DebugLevel)
	return &zerologLogger{logger: &zlog, fields: map[string]interface{}{}}
}

func TestWithFieldsAreInherited(t *testing.T) {
	var buf bytes.Buffer
	base := newBufferLogger(&buf)

	child := base.WithField("component", "mirror").WithFields(map[string]interface{}{
		"status_id": "109",
		"media":     2,
	})
	child.Info("Post mirrored")

	out := buf.String()
	assert.Contains(t, out, "Post mirrored")
	assert.Contains(t, out, `"component":"mirror"`)
	assert.Contains(t, out, `"status_id":"109"`)
	assert.Contains(t, out, `"media":2`)

	// The parent must not see the child's fields.
	buf.Reset()
	base.Info("plain")
	assert.NotContains(t, buf.String(), "component")
}

func TestWithError(t *testing.T) {
	var buf bytes.Buffer
	l := newBufferLogger(&buf)

	l.WithError(errors.New("boom")).Error("request failed")
	assert.Contains(t, buf.String(), `"error":"boom"`)

	buf.Reset()
	l.WithError(nil).Warn("nothing")
	assert.False(t, strings.Contains(buf.String(), `"error"`))
}

func TestLevelMethodsWithFields(t *testing.T) {
	var buf bytes.Buffer
	l := newBufferLogger(&buf)

	l.DebugWithFields("debug line", map[string]interface{}{"n": 1})
	l.WarnWithFields("warn line", map[string]interface{}{"ok": false})
	l.ErrorWithFields("error line", map[string]interface{}{"names": []string{"a", "b"}})

	out := buf.String()
	assert.Contains(t, out, `"level":"debug"`)
	assert.Contains(t, out, `"level":"warn"`)
	assert.Contains(t, out, `"names":["a","b"]`)
}

func TestTestLoggerCapturesChildren(t *testing.T) {
	tl := NewTestLogger()

	tl.WithField("run_id", "abc").WarnWithFields("guard tripped", map[string]interface{}{"pages": 3})
	tl.Error("fatal")

	msgs := tl.GetMessages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "WARN", msgs[0].Level)
	assert.Equal(t, "abc", msgs[0].Fields["run_id"])
	assert.Equal(t, 3, msgs[0].Fields["pages"])
	assert.True(t, tl.HasMessage("guard tripped"))
	assert.True(t, tl.HasError())
	assert.Len(t, tl.GetMessagesByLevel("INFO"), 0)
}

func TestNewWithWriter(t *testing.T) {
	var buf bytes.Buffer
	l, err := NewWithWriter(&config.LoggingConfig{Level: "debug"}, &buf)
	require.NoError(t, err)

	l.WithField("status_id", "7").Warn("Target rate limited")
	out := buf.String()
	assert.Contains(t, out, `"level":"warn"`)
	assert.Contains(t, out, `"message":"Target rate limited"`)
	assert.Contains(t, out, `"status_id":"7"`)
	assert.Contains(t, out, `"app":"mastowatch"`)

	_, err = NewWithWriter(&config.LoggingConfig{Level: "loud"}, &buf)
	assert.Error(t, err)
}
