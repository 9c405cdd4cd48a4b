package ruleinstaller

import (
	"context"
	"testing"
)

func TestMemoryInstallerIdempotence(t *testing.T) {
	inst := NewMemoryInstaller()
	ctx := context.Background()

	fields := map[string]string{"eth_src": "AA:BB:CC:00:00:01"}
	if err := inst.Install(ctx, "DEV_1", ActionDeny, fields, 100, "cookie-1"); err != nil {
		t.Fatalf("install: %v", err)
	}
	if err := inst.Install(ctx, "DEV_1", ActionDeny, fields, 100, "cookie-1"); err != nil {
		t.Fatalf("install again: %v", err)
	}

	action, ok := inst.CurrentAction("DEV_1")
	if !ok || action != ActionDeny {
		t.Fatalf("CurrentAction = (%v, %v), want (deny, true)", action, ok)
	}
}

func TestMemoryInstallerRemove(t *testing.T) {
	inst := NewMemoryInstaller()
	ctx := context.Background()
	_ = inst.Install(ctx, "DEV_1", ActionAllow, nil, 1, "c")
	_ = inst.Remove(ctx, "DEV_1")

	if _, ok := inst.CurrentAction("DEV_1"); ok {
		t.Fatalf("expected no action after remove")
	}
}

func TestNoopInstallerNeverErrors(t *testing.T) {
	var inst Installer = NoopInstaller{}
	ctx := context.Background()
	if err := inst.Install(ctx, "DEV_1", ActionAllow, nil, 0, ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := inst.Remove(ctx, "DEV_1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	samples, err := inst.QueryFlows(ctx, "sw1")
	if err != nil || samples != nil {
		t.Fatalf("expected (nil, nil), got (%v, %v)", samples, err)
	}
}

func TestActionIsValid(t *testing.T) {
	for _, a := range []Action{ActionAllow, ActionDeny, ActionRedirect, ActionQuarantine} {
		if !a.IsValid() {
			t.Errorf("expected %v to be valid", a)
		}
	}
	if Action("bogus").IsValid() {
		t.Errorf("expected bogus action to be invalid")
	}
}
