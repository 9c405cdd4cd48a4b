package breakglass

import (
	"testing"
	"time"
)

func TestCheckRateLimitAllowsFirstGrant(t *testing.T) {
	store := NewMemoryStore()
	result, err := CheckRateLimit(store, DefaultPolicy(), "alice", "DEV_1", time.Now())
	if err != nil {
		t.Fatalf("CheckRateLimit: %v", err)
	}
	if !result.Allowed {
		t.Errorf("expected first grant to be allowed, got %+v", result)
	}
}

func TestCheckRateLimitBlocksWithinCooldown(t *testing.T) {
	store := NewMemoryStore()
	now := time.Now()
	store.Append(Event{ID: "1", Operator: "alice", DeviceID: "DEV_1", Status: StatusActive, CreatedAt: now})

	policy := DefaultPolicy()
	result, err := CheckRateLimit(store, policy, "alice", "DEV_1", now.Add(time.Minute))
	if err != nil {
		t.Fatalf("CheckRateLimit: %v", err)
	}
	if result.Allowed {
		t.Error("expected cooldown to block a second grant")
	}
	if result.RetryAfter <= 0 {
		t.Error("expected a positive RetryAfter")
	}
}

func TestCheckRateLimitEnforcesOperatorQuota(t *testing.T) {
	store := NewMemoryStore()
	now := time.Now()
	policy := Policy{MaxPerOperator: 2, QuotaWindow: time.Hour}
	store.Append(Event{ID: "1", Operator: "alice", DeviceID: "DEV_1", CreatedAt: now.Add(-time.Minute)})
	store.Append(Event{ID: "2", Operator: "alice", DeviceID: "DEV_2", CreatedAt: now.Add(-time.Minute)})

	result, err := CheckRateLimit(store, policy, "alice", "DEV_3", now)
	if err != nil {
		t.Fatalf("CheckRateLimit: %v", err)
	}
	if result.Allowed {
		t.Error("expected operator quota to block the third grant")
	}
}

func TestCheckRateLimitEnforcesDeviceQuota(t *testing.T) {
	store := NewMemoryStore()
	now := time.Now()
	policy := Policy{MaxPerDevice: 1, QuotaWindow: time.Hour}
	store.Append(Event{ID: "1", Operator: "alice", DeviceID: "DEV_1", CreatedAt: now.Add(-time.Minute)})

	result, err := CheckRateLimit(store, policy, "bob", "DEV_1", now)
	if err != nil {
		t.Fatalf("CheckRateLimit: %v", err)
	}
	if result.Allowed {
		t.Error("expected device quota to block a grant from a different operator on the same device")
	}
}

func TestCheckRateLimitSetsEscalationFlag(t *testing.T) {
	store := NewMemoryStore()
	now := time.Now()
	policy := Policy{MaxPerOperator: 5, QuotaWindow: time.Hour, EscalationThreshold: 1}
	store.Append(Event{ID: "1", Operator: "alice", DeviceID: "DEV_1", CreatedAt: now.Add(-time.Minute)})

	result, err := CheckRateLimit(store, policy, "alice", "DEV_2", now)
	if err != nil {
		t.Fatalf("CheckRateLimit: %v", err)
	}
	if !result.Allowed || !result.ShouldEscalate {
		t.Errorf("expected allowed+escalated, got %+v", result)
	}
}

func TestFindActiveIgnoresExpiredEvents(t *testing.T) {
	store := NewMemoryStore()
	now := time.Now()
	store.Append(Event{ID: "1", Operator: "alice", DeviceID: "DEV_1", Status: StatusActive, ExpiresAt: now.Add(-time.Minute)})

	_, found, err := FindActive(store, "alice", "DEV_1", now)
	if err != nil {
		t.Fatalf("FindActive: %v", err)
	}
	if found {
		t.Error("expected an expired event not to be found active")
	}
}

func TestFindActiveFindsValidEvent(t *testing.T) {
	store := NewMemoryStore()
	now := time.Now()
	store.Append(Event{ID: "1", Operator: "alice", DeviceID: "DEV_1", Status: StatusActive, ExpiresAt: now.Add(time.Hour)})

	event, found, err := FindActive(store, "alice", "DEV_1", now)
	if err != nil {
		t.Fatalf("FindActive: %v", err)
	}
	if !found || event.ID != "1" {
		t.Errorf("FindActive = %+v,%v want event 1,true", event, found)
	}
}

func TestCloseMarksEventClosed(t *testing.T) {
	store := NewMemoryStore()
	store.Append(Event{ID: "1", Status: StatusActive})
	if err := store.Close("1", time.Now()); err != nil {
		t.Fatalf("Close: %v", err)
	}
	events, _ := store.ListByOperator("")
	if len(events) != 1 || events[0].Status != StatusClosed {
		t.Errorf("expected event closed, got %+v", events)
	}
}
