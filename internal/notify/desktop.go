package notify

import (
	"os/exec"
	"runtime"
	"strings"
)

// DesktopNotifier raises OS-level notifications via osascript on macOS
// and notify-send on Linux. Other platforms are skipped.
type DesktopNotifier struct {
	enabled bool
}

// NewDesktopNotifier creates a desktop notifier
func NewDesktopNotifier(enabled bool) *DesktopNotifier {
	return &DesktopNotifier{enabled: enabled}
}

// Send raises the notification when the platform supports it
func (d *DesktopNotifier) Send(n Notification) error {
	if !d.enabled {
		return nil
	}
	cmd := notifyCommand(n)
	if cmd == nil {
		return nil
	}
	return cmd.Run()
}

func notifyCommand(n Notification) *exec.Cmd {
	switch runtime.GOOS {
	case "darwin":
		script := `display notification "` + escapeAppleScript(n.Message) +
			`" with title "` + escapeAppleScript(n.Title) + `"`
		return exec.Command("osascript", "-e", script)
	case "linux":
		return exec.Command("notify-send", "-i", IconForType(n.Type), n.Title, n.Message)
	default:
		return nil
	}
}

// escapeAppleScript keeps quotes and backslashes in error text from
// breaking out of the osascript string literal.
func escapeAppleScript(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `"`, `\"`)
}

// IconForType returns the freedesktop icon name for a notification type
func IconForType(t NotificationType) string {
	switch t {
	case NotifySuccess:
		return "dialog-positive"
	case NotifyWarning:
		return "dialog-warning"
	case NotifyError:
		return "dialog-error"
	default:
		return "dialog-information"
	}
}
