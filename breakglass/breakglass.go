// Package breakglass implements the quarantine-override escape hatch: an
// operator may temporarily let a quarantined device through for
// troubleshooting, subject to a cooldown, a per-operator/per-device quota,
// and an escalation flag, fully audited via the accompanying Store.
package breakglass

import (
	"fmt"
	"sync"
	"time"
)

// Status is the lifecycle of one override event.
type Status string

const (
	StatusActive Status = "active"
	StatusClosed Status = "closed"
)

// Event is one quarantine-override grant.
type Event struct {
	ID        string
	Operator  string
	DeviceID  string
	Reason    string
	Status    Status
	CreatedAt time.Time
	ExpiresAt time.Time
	ClosedAt  time.Time
}

// Policy bounds how often and how many overrides may be active, per device
// and per operator, generalized from the teacher's per-user/per-profile
// quota+cooldown idiom to per-operator/per-device.
type Policy struct {
	Cooldown            time.Duration
	MaxPerOperator       int
	MaxPerDevice         int
	QuotaWindow          time.Duration
	EscalationThreshold  int
	DefaultDuration      time.Duration
}

// DefaultPolicy is a conservative starting point: a 5 minute cooldown
// between grants for the same (operator, device), at most 3 grants per
// operator and 2 per device in a rolling hour, and an escalation flag from
// an operator's 2nd grant in the window onward.
func DefaultPolicy() Policy {
	return Policy{
		Cooldown:            5 * time.Minute,
		MaxPerOperator:      3,
		MaxPerDevice:        2,
		QuotaWindow:         time.Hour,
		EscalationThreshold: 2,
		DefaultDuration:     15 * time.Minute,
	}
}

// Result is the outcome of a rate-limit check.
type Result struct {
	Allowed        bool
	Reason         string
	RetryAfter     time.Duration
	OperatorCount  int
	DeviceCount    int
	ShouldEscalate bool
}

// Store is the append-only record of override events.
type Store interface {
	Append(e Event) error
	ListByOperator(operator string) ([]Event, error)
	ListByDevice(deviceID string) ([]Event, error)
	Close(id string, closedAt time.Time) error
}

// MemoryStore is an in-process Store, suitable for a fully local
// deployment and for tests.
type MemoryStore struct {
	mu     sync.Mutex
	events []Event
}

// NewMemoryStore returns a ready-to-use MemoryStore.
func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

func (m *MemoryStore) Append(e Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, e)
	return nil
}

func (m *MemoryStore) ListByOperator(operator string) ([]Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Event
	for _, e := range m.events {
		if e.Operator == operator {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *MemoryStore) ListByDevice(deviceID string) ([]Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Event
	for _, e := range m.events {
		if e.DeviceID == deviceID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *MemoryStore) Close(id string, closedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.events {
		if m.events[i].ID == id {
			m.events[i].Status = StatusClosed
			m.events[i].ClosedAt = closedAt
			return nil
		}
	}
	return fmt.Errorf("breakglass event %s not found", id)
}

// CheckRateLimit evaluates cooldown, per-operator quota, and per-device
// quota against policy before a new override is granted.
func CheckRateLimit(store Store, policy Policy, operator, deviceID string, now time.Time) (Result, error) {
	deviceEvents, err := store.ListByDevice(deviceID)
	if err != nil {
		return Result{}, err
	}

	if policy.Cooldown > 0 {
		var last time.Time
		for _, e := range deviceEvents {
			if e.Operator == operator && e.CreatedAt.After(last) {
				last = e.CreatedAt
			}
		}
		if !last.IsZero() {
			elapsed := now.Sub(last)
			if elapsed < policy.Cooldown {
				return Result{Allowed: false, Reason: "cooldown period not elapsed", RetryAfter: policy.Cooldown - elapsed}, nil
			}
		}
	}

	operatorEvents, err := store.ListByOperator(operator)
	if err != nil {
		return Result{}, err
	}
	since := now.Add(-policy.QuotaWindow)

	operatorCount := countSince(operatorEvents, since)
	if policy.MaxPerOperator > 0 && operatorCount >= policy.MaxPerOperator {
		return Result{Allowed: false, Reason: "operator quota exceeded", OperatorCount: operatorCount}, nil
	}

	deviceCount := countSince(deviceEvents, since)
	if policy.MaxPerDevice > 0 && deviceCount >= policy.MaxPerDevice {
		return Result{Allowed: false, Reason: "device quota exceeded", DeviceCount: deviceCount}, nil
	}

	result := Result{Allowed: true, OperatorCount: operatorCount, DeviceCount: deviceCount}
	if policy.EscalationThreshold > 0 && operatorCount+1 >= policy.EscalationThreshold {
		result.ShouldEscalate = true
	}
	return result, nil
}

func countSince(events []Event, since time.Time) int {
	count := 0
	for _, e := range events {
		if e.CreatedAt.After(since) {
			count++
		}
	}
	return count
}

// FindActive returns the first non-expired active override for
// (operator, deviceID), or false if none exists.
func FindActive(store Store, operator, deviceID string, now time.Time) (Event, bool, error) {
	events, err := store.ListByDevice(deviceID)
	if err != nil {
		return Event{}, false, err
	}
	for _, e := range events {
		if e.Operator == operator && e.Status == StatusActive && now.Before(e.ExpiresAt) {
			return e, true, nil
		}
	}
	return Event{}, false, nil
}
