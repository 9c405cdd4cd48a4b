package notification

import (
	"context"
	"errors"
)

// Notifier delivers a notification Event to some backend.
type Notifier interface {
	Notify(ctx context.Context, event *Event) error
}

// MultiNotifier composes multiple notifiers and sends to all of them,
// joining any delivery errors rather than stopping at the first failure.
type MultiNotifier struct {
	notifiers []Notifier
}

// NewMultiNotifier returns a MultiNotifier over the given backends. Nil
// notifiers are filtered out for convenience when a backend is optionally
// configured.
func NewMultiNotifier(notifiers ...Notifier) *MultiNotifier {
	filtered := make([]Notifier, 0, len(notifiers))
	for _, n := range notifiers {
		if n != nil {
			filtered = append(filtered, n)
		}
	}
	return &MultiNotifier{notifiers: filtered}
}

// Notify sends the event to every configured notifier.
func (m *MultiNotifier) Notify(ctx context.Context, event *Event) error {
	var errs []error
	for _, n := range m.notifiers {
		if err := n.Notify(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// NoopNotifier discards every event. Useful when alerting is disabled or
// for tests that don't care about delivery.
type NoopNotifier struct{}

func (NoopNotifier) Notify(context.Context, *Event) error { return nil }
