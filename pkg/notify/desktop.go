package notify

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
)

// commandRunner runs an external program
type commandRunner func(ctx context.Context, name string, args ...string) error

func runCommand(ctx context.Context, name string, args ...string) error {
	return exec.CommandContext(ctx, name, args...).Run()
}

// DesktopNotifier shows alerts as desktop notifications using the
// platform's own tool (notify-send, osascript or PowerShell)
type DesktopNotifier struct {
	goos string
	run  commandRunner
}

// NewDesktopNotifier creates a notifier for the current platform
func NewDesktopNotifier() *DesktopNotifier {
	return &DesktopNotifier{goos: runtime.GOOS, run: runCommand}
}

// Supported reports whether the platform has a notification tool
func (d *DesktopNotifier) Supported() bool {
	switch d.goos {
	case "linux", "darwin", "windows":
		return true
	default:
		return false
	}
}

// Notify pops up the subject with the first line of the body
func (d *DesktopNotifier) Notify(ctx context.Context, subject, body string) error {
	message := summarize(body)

	switch d.goos {
	case "linux":
		return d.run(ctx, "notify-send", subject, message)
	case "darwin":
		script := fmt.Sprintf(`display notification %s with title %s`, appleScriptString(message), appleScriptString(subject))
		return d.run(ctx, "osascript", "-e", script)
	case "windows":
		script := fmt.Sprintf(`
			[Windows.UI.Notifications.ToastNotificationManager, Windows.UI.Notifications, ContentType = WindowsRuntime] | Out-Null
			$template = [Windows.UI.Notifications.ToastNotificationManager]::GetTemplateContent([Windows.UI.Notifications.ToastTemplateType]::ToastText02)
			$text = $template.GetElementsByTagName("text")
			$text.Item(0).AppendChild($template.CreateTextNode(%s)) | Out-Null
			$text.Item(1).AppendChild($template.CreateTextNode(%s)) | Out-Null
			$toast = [Windows.UI.Notifications.ToastNotification]::new($template)
			[Windows.UI.Notifications.ToastNotificationManager]::CreateToastNotifier("mastowatch").Show($toast)
		`, powerShellString(subject), powerShellString(message))
		return d.run(ctx, "powershell", "-NoProfile", "-NonInteractive", "-Command", script)
	default:
		return fmt.Errorf("desktop notifications are not supported on %s", d.goos)
	}
}

// summarize keeps alert popups short: the first non-empty line after the
// header, plus a count of what was left out
func summarize(body string) string {
	var lines []string
	for _, line := range strings.Split(body, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	switch len(lines) {
	case 0:
		return ""
	case 1:
		return lines[0]
	case 2:
		return lines[1]
	default:
		return fmt.Sprintf("%s and %d more", lines[1], len(lines)-2)
	}
}

func appleScriptString(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
}

func powerShellString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
