// Package notify delivers execution outcomes to operators. Notification
// failures are reported to the caller but must never abort the pipeline.
package notify

import (
	"errors"
	"fmt"
	"time"

	"github.com/exoforge/exo-orchestrator/internal/domain"
)

// NotificationType classifies a notification for display
type NotificationType int

const (
	NotifyInfo NotificationType = iota
	NotifySuccess
	NotifyWarning
	NotifyError
)

// Notification is one message to deliver
type Notification struct {
	Title   string
	Message string
	Type    NotificationType
	TraceID string
	Branch  string
}

// Notifier sends a notification through one channel
type Notifier interface {
	Send(n Notification) error
}

// ForResult builds the notification for a finished execution
func ForResult(plan *domain.Plan, res domain.ExecutionResult) Notification {
	if res.Success {
		return Notification{
			Title:   fmt.Sprintf("Plan executed: %s", plan.Title),
			Message: fmt.Sprintf("Committed %s on %s in %s", res.Commit, res.Branch, res.Duration.Round(time.Millisecond)),
			Type:    NotifySuccess,
			TraceID: res.TraceID,
			Branch:  res.Branch,
		}
	}
	return Notification{
		Title:   fmt.Sprintf("Plan failed: %s", plan.Title),
		Message: res.ErrorText(),
		Type:    NotifyError,
		TraceID: res.TraceID,
	}
}

// MultiNotifier fans one notification out to every channel, collecting
// failures instead of stopping at the first.
type MultiNotifier struct {
	notifiers []Notifier
}

// NewMultiNotifier creates a notifier that sends through all given channels
func NewMultiNotifier(notifiers ...Notifier) *MultiNotifier {
	return &MultiNotifier{notifiers: notifiers}
}

// Send delivers to every channel and joins any errors
func (m *MultiNotifier) Send(n Notification) error {
	var errs []error
	for _, notifier := range m.notifiers {
		if err := notifier.Send(n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// NoopNotifier discards everything
type NoopNotifier struct{}

func (NoopNotifier) Send(n Notification) error { return nil }
