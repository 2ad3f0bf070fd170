package ui

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func captureOutput(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := Out
	Out = &buf
	t.Cleanup(func() { Out = prev })
	return &buf
}

func TestPrintHelpers(t *testing.T) {
	buf := captureOutput(t)

	PrintError("Run failed", errors.New("boom"))
	PrintSuccess("Snapshot saved")
	PrintInfo("Followers", "42")
	PrintWarning("No SMTP server configured")

	out := buf.String()
	assert.Contains(t, out, Red("✗ Run failed: boom"))
	assert.Contains(t, out, Green("✓ Snapshot saved"))
	assert.Contains(t, out, Cyan("Followers")+": "+Yellow("42"))
	assert.Contains(t, out, Yellow("! No SMTP server configured"))
}

func TestPrintErrorWithoutCause(t *testing.T) {
	buf := captureOutput(t)
	PrintError("Nothing to do", nil)
	assert.Equal(t, Red("✗ Nothing to do")+"\n", buf.String())
}

func TestPrintList(t *testing.T) {
	buf := captureOutput(t)

	PrintList("Removed followers", []string{"alice@example.social", "bob@other.host"})
	assert.Contains(t, buf.String(), "  • alice@example.social\n")
	assert.Contains(t, buf.String(), "  • bob@other.host\n")

	buf.Reset()
	PrintList("Removed followers", nil)
	assert.Contains(t, buf.String(), "(none)")
}

func TestColorize(t *testing.T) {
	assert.Equal(t, "\033[32mok\033[0m", Green("ok"))
	assert.Equal(t, "\033[2mquiet\033[0m", Dim("quiet"))
}
