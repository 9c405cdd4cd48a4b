package notification

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeNotifier struct {
	calls int
	err   error
}

func (f *fakeNotifier) Notify(context.Context, *Event) error {
	f.calls++
	return f.err
}

func TestMultiNotifierFansOutToAll(t *testing.T) {
	a, b := &fakeNotifier{}, &fakeNotifier{}
	m := NewMultiNotifier(a, b)
	event := NewEvent(EventThreatDetected, "DEV_1", "system", "", time.Now(), nil)

	if err := m.Notify(context.Background(), event); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if a.calls != 1 || b.calls != 1 {
		t.Errorf("calls = %d,%d want 1,1", a.calls, b.calls)
	}
}

func TestMultiNotifierFiltersNilBackends(t *testing.T) {
	a := &fakeNotifier{}
	m := NewMultiNotifier(a, nil)
	if len(m.notifiers) != 1 {
		t.Errorf("len(notifiers) = %d, want 1", len(m.notifiers))
	}
}

func TestMultiNotifierJoinsErrorsWithoutStoppingEarly(t *testing.T) {
	a := &fakeNotifier{err: errors.New("a failed")}
	b := &fakeNotifier{}
	m := NewMultiNotifier(a, b)
	event := NewEvent(EventThreatDetected, "DEV_1", "system", "", time.Now(), nil)

	err := m.Notify(context.Background(), event)
	if err == nil {
		t.Fatal("expected a joined error")
	}
	if b.calls != 1 {
		t.Error("expected the second notifier to still run after the first failed")
	}
}

func TestNoopNotifierNeverErrors(t *testing.T) {
	var n NoopNotifier
	if err := n.Notify(context.Background(), &Event{}); err != nil {
		t.Errorf("Notify: %v", err)
	}
}
