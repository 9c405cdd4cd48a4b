package testutil

import (
	"testing"
	"time"
)

func TestFixedClockAlwaysReturnsSameTime(t *testing.T) {
	want := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := FixedClock(want)
	if got := clock(); !got.Equal(want) {
		t.Errorf("clock() = %v, want %v", got, want)
	}
	if got := clock(); !got.Equal(want) {
		t.Errorf("second call clock() = %v, want %v", got, want)
	}
}

func TestMustParseTimePanicsOnInvalidValue(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected MustParseTime to panic on an invalid value")
		}
	}()
	MustParseTime(time.RFC3339, "not-a-time")
}

func TestMakeDeviceDefaultsToActive(t *testing.T) {
	d := MakeDevice("DEV_1", "AA:BB:CC:00:00:01")
	if d.Status != "active" {
		t.Errorf("Status = %v, want active", d.Status)
	}
	if d.MAC != "AA:BB:CC:00:00:01" {
		t.Errorf("MAC = %v", d.MAC)
	}
}
