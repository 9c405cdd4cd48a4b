// Package attestation implements the Attestation Scheduler (C9): a
// per-device tick that checks credential validity and heartbeat freshness,
// penalizing the Trust Scorer on any failure.
package attestation

import (
	"sync"
	"time"
)

// DefaultInterval is the per-device attestation tick interval, per spec §4.9.
const DefaultInterval = 300 * time.Second

// CredentialVerifier is the narrow CA capability used for the credential check.
type CredentialVerifier interface {
	Verify(certRef string) bool
}

// TrustPenalizer is the narrow Trust Scorer capability invoked on failure.
type TrustPenalizer interface {
	Adjust(deviceID string, delta int, reason string) (int, error)
}

const attestationFailureDelta = -20

// Outcome is one recorded attestation tick result.
type Outcome struct {
	DeviceID        string
	Timestamp       time.Time
	CredentialValid bool
	HeartbeatFresh  bool
	Passed          bool
}

// Scheduler is the Attestation Scheduler (C9).
type Scheduler struct {
	ca       CredentialVerifier
	scorer   TrustPenalizer
	interval time.Duration

	mu         sync.Mutex
	registered map[string]string // device_id -> cert_ref
	heartbeats map[string]time.Time
	outcomes   map[string]Outcome
}

// New constructs a Scheduler with the given interval (0 uses DefaultInterval).
func New(ca CredentialVerifier, scorer TrustPenalizer, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Scheduler{
		ca:         ca,
		scorer:     scorer,
		interval:   interval,
		registered: make(map[string]string),
		heartbeats: make(map[string]time.Time),
		outcomes:   make(map[string]Outcome),
	}
}

// Register starts attestation tracking for a device, called on C4
// onboarding and again for every device hydrated on supervisor boot.
func (s *Scheduler) Register(deviceID, certRef string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.registered[deviceID] = certRef
}

// Heartbeat records a liveness signal for a device.
func (s *Scheduler) Heartbeat(deviceID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.heartbeats[deviceID] = time.Now().UTC()
}

// RegisteredDeviceIDs returns the devices currently under attestation.
func (s *Scheduler) RegisteredDeviceIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.registered))
	for id := range s.registered {
		ids = append(ids, id)
	}
	return ids
}

// Tick runs one attestation check for deviceID (W6). On failure, invokes
// TrustPenalizer.Adjust with the attestation-failure delta.
func (s *Scheduler) Tick(deviceID string) Outcome {
	s.mu.Lock()
	certRef := s.registered[deviceID]
	lastHeartbeat, hasHeartbeat := s.heartbeats[deviceID]
	s.mu.Unlock()

	credentialValid := s.ca.Verify(certRef)
	heartbeatFresh := hasHeartbeat && time.Since(lastHeartbeat) < 2*s.interval

	outcome := Outcome{
		DeviceID:        deviceID,
		Timestamp:       time.Now().UTC(),
		CredentialValid: credentialValid,
		HeartbeatFresh:  heartbeatFresh,
		Passed:          credentialValid && heartbeatFresh,
	}

	s.mu.Lock()
	s.outcomes[deviceID] = outcome
	s.mu.Unlock()

	if !outcome.Passed {
		s.scorer.Adjust(deviceID, attestationFailureDelta, "attestation failure")
	}
	return outcome
}

// LastOutcome returns the most recent recorded outcome for a device.
func (s *Scheduler) LastOutcome(deviceID string) (Outcome, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.outcomes[deviceID]
	return o, ok
}
