package adapter

import (
	"testing"

	"github.com/soho-iot/zerotrust/ruleinstaller"
)

type fakeMACLookup struct {
	macs map[string]string
}

func (f *fakeMACLookup) MACOf(deviceID string) (string, bool) {
	mac, ok := f.macs[deviceID]
	return mac, ok
}

func TestOnTrustChangeAppliesBucketAction(t *testing.T) {
	installer := ruleinstaller.NewMemoryInstaller()
	macs := &fakeMACLookup{macs: map[string]string{"DEV_1": "AA:BB:CC:00:00:01"}}
	a := New(installer, macs)

	a.OnTrustChange("DEV_1", 70, 20, "severe anomaly") // trusted -> untrusted

	action, ok := installer.CurrentAction("DEV_1")
	if !ok || action != ruleinstaller.ActionQuarantine {
		t.Errorf("action = %v,%v want quarantine,true", action, ok)
	}
	if len(a.History("DEV_1")) != 1 {
		t.Errorf("expected one decision recorded, got %d", len(a.History("DEV_1")))
	}
}

func TestOnTrustChangeIgnoresSmallSameBucketDelta(t *testing.T) {
	installer := ruleinstaller.NewMemoryInstaller()
	macs := &fakeMACLookup{macs: map[string]string{"DEV_1": "AA:BB:CC:00:00:01"}}
	a := New(installer, macs)

	a.OnTrustChange("DEV_1", 80, 75, "positive tick") // both trusted, delta 5 < 10

	if _, ok := installer.CurrentAction("DEV_1"); ok {
		t.Error("expected no action for a small same-bucket delta")
	}
}

func TestOnTrustChangeActsOnLargeSameBucketDelta(t *testing.T) {
	installer := ruleinstaller.NewMemoryInstaller()
	macs := &fakeMACLookup{macs: map[string]string{"DEV_1": "AA:BB:CC:00:00:01"}}
	a := New(installer, macs)

	a.OnTrustChange("DEV_1", 95, 80, "moderate anomaly") // both trusted, delta 15 >= 10

	if _, ok := installer.CurrentAction("DEV_1"); !ok {
		t.Error("expected an action for a delta >= MinDeltaToAct even within the same bucket")
	}
}

func TestOnTrustChangeSkipsUnresolvableDevice(t *testing.T) {
	installer := ruleinstaller.NewMemoryInstaller()
	macs := &fakeMACLookup{macs: map[string]string{}}
	a := New(installer, macs)

	a.OnTrustChange("unknown", 70, 20, "anomaly")

	if _, ok := installer.CurrentAction("unknown"); ok {
		t.Error("expected no action for a device with no resolvable MAC")
	}
}

func TestHistoryRetainsLast100(t *testing.T) {
	installer := ruleinstaller.NewMemoryInstaller()
	macs := &fakeMACLookup{macs: map[string]string{"DEV_1": "AA:BB:CC:00:00:01"}}
	a := New(installer, macs)

	for i := 0; i < MaxHistory+10; i++ {
		if i%2 == 0 {
			a.OnTrustChange("DEV_1", 70, 20, "tick")
		} else {
			a.OnTrustChange("DEV_1", 20, 70, "tick")
		}
	}
	if len(a.History("DEV_1")) != MaxHistory {
		t.Errorf("history len = %d, want %d", len(a.History("DEV_1")), MaxHistory)
	}
}
