package attestation

import (
	"testing"
	"time"
)

type fakeCA struct {
	valid map[string]bool
}

func (f *fakeCA) Verify(certRef string) bool { return f.valid[certRef] }

type fakeScorer struct {
	adjustments []string
}

func (f *fakeScorer) Adjust(deviceID string, delta int, reason string) (int, error) {
	f.adjustments = append(f.adjustments, deviceID+":"+reason)
	return 0, nil
}

func TestTickPassesWithValidCredentialAndFreshHeartbeat(t *testing.T) {
	ca := &fakeCA{valid: map[string]bool{"cert1": true}}
	scorer := &fakeScorer{}
	s := New(ca, scorer, time.Hour)
	s.Register("DEV_1", "cert1")
	s.Heartbeat("DEV_1")

	outcome := s.Tick("DEV_1")
	if !outcome.Passed {
		t.Errorf("expected Passed, got %+v", outcome)
	}
	if len(scorer.adjustments) != 0 {
		t.Errorf("expected no trust penalty on pass, got %v", scorer.adjustments)
	}
}

func TestTickFailsOnInvalidCredential(t *testing.T) {
	ca := &fakeCA{valid: map[string]bool{}}
	scorer := &fakeScorer{}
	s := New(ca, scorer, time.Hour)
	s.Register("DEV_1", "cert1")
	s.Heartbeat("DEV_1")

	outcome := s.Tick("DEV_1")
	if outcome.Passed || outcome.CredentialValid {
		t.Errorf("expected a failed credential check, got %+v", outcome)
	}
	if len(scorer.adjustments) != 1 {
		t.Errorf("expected one trust penalty, got %v", scorer.adjustments)
	}
}

func TestTickFailsOnMissingHeartbeat(t *testing.T) {
	ca := &fakeCA{valid: map[string]bool{"cert1": true}}
	scorer := &fakeScorer{}
	s := New(ca, scorer, time.Hour)
	s.Register("DEV_1", "cert1")

	outcome := s.Tick("DEV_1")
	if outcome.Passed || outcome.HeartbeatFresh {
		t.Errorf("expected a missing heartbeat to fail the tick, got %+v", outcome)
	}
}

func TestTickFailsOnStaleHeartbeat(t *testing.T) {
	ca := &fakeCA{valid: map[string]bool{"cert1": true}}
	scorer := &fakeScorer{}
	s := New(ca, scorer, 10*time.Millisecond)
	s.Register("DEV_1", "cert1")
	s.Heartbeat("DEV_1")
	time.Sleep(30 * time.Millisecond)

	outcome := s.Tick("DEV_1")
	if outcome.Passed {
		t.Errorf("expected a stale heartbeat (> 2x interval) to fail, got %+v", outcome)
	}
}

func TestLastOutcomeReflectsMostRecentTick(t *testing.T) {
	ca := &fakeCA{valid: map[string]bool{"cert1": true}}
	scorer := &fakeScorer{}
	s := New(ca, scorer, time.Hour)
	s.Register("DEV_1", "cert1")
	s.Heartbeat("DEV_1")
	s.Tick("DEV_1")

	outcome, ok := s.LastOutcome("DEV_1")
	if !ok || !outcome.Passed {
		t.Errorf("LastOutcome = %+v,%v want passed,true", outcome, ok)
	}
}
