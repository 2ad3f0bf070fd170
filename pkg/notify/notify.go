// Package notify delivers human-facing alerts.
//
// The follower-diff run hands its alert to a Notifier. SMTPNotifier sends
// it by mail through an authenticated relay, DesktopNotifier pops it up on
// the local desktop, LogNotifier only writes it to the log. Multi fans one
// alert out to several notifiers.
package notify

import (
	"context"
	"errors"
	"fmt"

	"mastowatch/pkg/logger"
)

// Notifier delivers a single alert
type Notifier interface {
	Notify(ctx context.Context, subject, body string) error
}

// NotifierFunc adapts a function to the Notifier interface
type NotifierFunc func(ctx context.Context, subject, body string) error

// Notify calls f
func (f NotifierFunc) Notify(ctx context.Context, subject, body string) error {
	return f(ctx, subject, body)
}

// Multi delivers to every notifier and joins their errors
type Multi []Notifier

// Notify sends the alert through all notifiers, even when one fails
func (m Multi) Notify(ctx context.Context, subject, body string) error {
	var errs []error
	for i, n := range m {
		if err := n.Notify(ctx, subject, body); err != nil {
			errs = append(errs, fmt.Errorf("notifier %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

// LogNotifier writes alerts to the log instead of sending them anywhere
type LogNotifier struct {
	logger logger.Logger
}

// NewLogNotifier creates a LogNotifier
func NewLogNotifier(log logger.Logger) *LogNotifier {
	if log == nil {
		log = logger.GetLogger()
	}
	return &LogNotifier{logger: log}
}

// Notify logs the alert at warn level
func (n *LogNotifier) Notify(_ context.Context, subject, body string) error {
	n.logger.WarnWithFields(subject, map[string]interface{}{
		"body": body,
	})
	return nil
}
