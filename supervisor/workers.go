package supervisor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/soho-iot/zerotrust/anomaly"
	"github.com/soho-iot/zerotrust/honeypot"
	"github.com/soho-iot/zerotrust/identity"
	"github.com/soho-iot/zerotrust/logging"
	"github.com/soho-iot/zerotrust/mlpredict"
	"github.com/soho-iot/zerotrust/notification"
	"github.com/soho-iot/zerotrust/policy"
	"github.com/soho-iot/zerotrust/trust"
	"github.com/soho-iot/zerotrust/worker"
)

// collaboratorTimeout bounds every blocking call a worker tick makes to an
// external collaborator, per spec §5 ("≤5s recommended").
const collaboratorTimeout = 5 * time.Second

// Run starts every Supervisor-owned background worker (§5, W1-W9) and
// blocks until ctx is cancelled. Each worker exits at its own next cadence
// boundary, per spec §4.13's shutdown rule.
func (s *Supervisor) Run(ctx context.Context) error {
	cadences := s.cfg.Cadences
	var wg sync.WaitGroup

	start := func(interval time.Duration, fn func(context.Context)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			worker.Loop(ctx, interval, fn)
		}()
	}

	start(cadences.AdmissionPoll, s.tickAdmissionPoll)
	start(cadences.ProfilingMonitor, s.tickProfilingMonitor)
	start(cadences.FlowPoll, s.tickFlowPoll)
	start(cadences.AnomalyTick, s.tickAnomaly)
	start(cadences.AnalystReplay, s.tickAnalystReplay)
	start(cadences.Attestation, s.tickAttestation)
	start(cadences.PolicyAdapt, s.tickPolicyAdapt)
	start(cadences.HoneypotIngest, s.tickHoneypotIngest)
	start(cadences.ActivityUpdater, s.tickActivityUpdater)

	wg.Wait()
	return nil
}

// tickAdmissionPoll is W1: read link-layer events, enqueue into C3.
func (s *Supervisor) tickAdmissionPoll(ctx context.Context) {
	worker.RunOnce(ctx, collaboratorTimeout, func(ctx context.Context) {
		if err := s.Onboard.PollOnce(ctx); err != nil {
			s.logger.LogAdmissionEvent(logging.AdmissionEventEntry{
				Timestamp: time.Now().UTC(),
				Status:    "poll_error",
				Notes:     err.Error(),
			})
		}
	})
}

// tickProfilingMonitor is W2: finalize expired baselines via C5, then
// generate and persist the device's first policy (baseline finalization
// precedes first policy generation, per spec §5's ordering guarantee).
func (s *Supervisor) tickProfilingMonitor(ctx context.Context) {
	now := time.Now().UTC()
	for _, deviceID := range s.Profiler.ActiveDeviceIDs() {
		if !s.Profiler.IsExpired(deviceID, now) {
			continue
		}
		baseline, err := s.Profiler.Finalize(deviceID)
		if err != nil || baseline == nil {
			continue
		}
		generated := policy.Generate(policyInputFromBaseline(baseline))
		_ = s.Identity.SavePolicy(deviceID, generated)
	}
}

// tickFlowPoll is W3: request flow counters from every known switch, feed C6.
func (s *Supervisor) tickFlowPoll(ctx context.Context) {
	if len(s.switchIDs) == 0 {
		return
	}
	tickCtx, cancel := context.WithTimeout(ctx, collaboratorTimeout)
	defer cancel()
	s.FlowStats.PollSwitches(tickCtx, s.switchIDs)
}

// tickAnomaly is W4: run C7 over C6 aggregates for every known device,
// feeding every non-none result into the Trust Scorer (C8) per spec §4.8's
// anomaly event hook. Events also accumulate in the Detector's own history;
// W5 drains that history and routes it to the Traffic Orchestrator.
func (s *Supervisor) tickAnomaly(ctx context.Context) {
	devices, err := s.Identity.ListDevices()
	if err != nil {
		return
	}
	for _, d := range devices {
		stats := s.FlowStats.DeviceStats(d.DeviceID, 60)
		inputs := anomaly.Inputs{
			PPS:                stats.AvgPPS,
			BPS:                stats.AvgBPS,
			UniqueDestinations: stats.UniqueDestinations,
			UniquePorts:        stats.UniquePorts,
		}
		evt := s.Anomalies.Evaluate(d.DeviceID, inputs, anomalyBaselineOf(s.Identity, d.DeviceID))
		if evt.Severity != anomaly.SeverityNone {
			reason := fmt.Sprintf("anomaly:%s severity=%s", evt.Type, evt.Severity)
			s.Trust.Adjust(d.DeviceID, trust.AnomalyDelta(string(evt.Severity)), reason)
		}

		if s.predictorEscalates(ctx, mlpredict.PacketContext{DeviceID: d.DeviceID, PacketsPerSec: stats.AvgPPS, BytesPerSec: stats.AvgBPS}) {
			rec := honeypot.ThreatRecord{
				Timestamp: time.Now().UTC(),
				EventType: "ml.predicted_attack",
				Severity:  honeypot.SeverityCritical,
				DeviceID:  d.DeviceID,
			}
			s.Trust.Adjust(d.DeviceID, trust.SecurityDelta("high"), "ml.predicted_attack")
			decideCtx, cancel := context.WithTimeout(ctx, collaboratorTimeout)
			s.Orchestrator.Decide(decideCtx, d.DeviceID, &rec)
			cancel()
		}
	}
}

// anomalyBaselineOf loads a device's finalized Behavioral Baseline and
// narrows it to anomaly.Baseline, or nil if none has been finalized yet
// (in which case the Detector falls back to its absolute-threshold path).
func anomalyBaselineOf(store identity.Store, deviceID string) *anomaly.Baseline {
	b, err := store.GetBaseline(deviceID)
	if err != nil || b == nil {
		return nil
	}
	return &anomaly.Baseline{
		MeanPPS:         b.MeanPPS,
		MeanBPS:         b.MeanBPS,
		TopDestinations: len(b.TopDestinations),
		TopPorts:        len(b.TopPorts),
	}
}

// tickAnalystReplay is W5: drain any new C7 events not yet acted upon,
// deduped by (device, timestamp, type), and route each to the Traffic
// Orchestrator for a policy decision.
func (s *Supervisor) tickAnalystReplay(ctx context.Context) {
	for _, evt := range s.Anomalies.History() {
		if evt.Severity == anomaly.SeverityNone {
			continue
		}
		key := fmt.Sprintf("%s|%d|%s", evt.DeviceID, evt.Timestamp.UnixNano(), evt.Type)
		s.mu.Lock()
		already := s.acted[key]
		if !already {
			s.acted[key] = true
		}
		s.mu.Unlock()
		if already {
			continue
		}

		tickCtx, cancel := context.WithTimeout(ctx, collaboratorTimeout)
		s.Orchestrator.Decide(tickCtx, evt.DeviceID, nil)
		cancel()
	}
}

// tickAttestation is W6: run a per-device attestation tick, penalizing the
// Trust Scorer and notifying operators on any failure.
func (s *Supervisor) tickAttestation(ctx context.Context) {
	for _, deviceID := range s.Attestation.RegisteredDeviceIDs() {
		outcome := s.Attestation.Tick(deviceID)
		if outcome.Passed {
			continue
		}
		evt := notification.NewEvent(notification.EventAttestationFailed, deviceID, "supervisor",
			"credential or heartbeat check failed", time.Now().UTC(), map[string]any{
				"credential_valid": outcome.CredentialValid,
				"heartbeat_fresh":  outcome.HeartbeatFresh,
			})
		_ = s.notifier.Notify(ctx, evt)
	}
}

// tickPolicyAdapt is W7: sweep every device and ensure C10's installed
// action still matches its current trust bucket.
func (s *Supervisor) tickPolicyAdapt(ctx context.Context) {
	devices, err := s.Identity.ListDevices()
	if err != nil {
		return
	}
	for _, d := range devices {
		score, ok := s.Trust.Score(d.DeviceID)
		if !ok {
			continue
		}
		s.Adapter.OnTrustChange(d.DeviceID, score, score, "periodic sweep")
	}
}

// tickHoneypotIngest is W8: poll the external honeypot log source since
// the last successful poll, parse known events into Threat Records, and
// route high/critical-severity records with a resolved device to the
// Traffic Orchestrator.
func (s *Supervisor) tickHoneypotIngest(ctx context.Context) {
	since := s.lastHoneypot
	if since.IsZero() {
		since = time.Now().UTC().Add(-s.cfg.Cadences.HoneypotIngest)
	}

	tickCtx, cancel := context.WithTimeout(ctx, collaboratorTimeout)
	events, err := s.honeypot.FetchEvents(tickCtx, since)
	cancel()
	if err != nil {
		return
	}
	s.lastHoneypot = time.Now().UTC()

	for _, raw := range events {
		rec := honeypot.Parse(raw, s.resolveDeviceIDByIP, s.Trust.Score)
		s.recordThreat(rec)

		if rec.Severity != honeypot.SeverityHigh && rec.Severity != honeypot.SeverityCritical {
			continue
		}
		if rec.DeviceID != "" {
			s.Trust.Adjust(rec.DeviceID, trust.SecurityDelta(securityDeltaSeverity(rec.Severity)), "honeypot:"+rec.EventType)
			decideCtx, decideCancel := context.WithTimeout(ctx, collaboratorTimeout)
			s.Orchestrator.Decide(decideCtx, rec.DeviceID, &rec)
			decideCancel()
		}
		evt := notification.NewEvent(notification.EventThreatDetected, rec.DeviceID, "honeypot", rec.EventType, rec.Timestamp, map[string]any{
			"source_ip": rec.SourceIP,
			"severity":  string(rec.Severity),
		})
		_ = s.notifier.Notify(ctx, evt)
	}
}

// securityDeltaSeverity maps a honeypot.Severity onto the three levels
// trust.SecurityDelta understands; honeypot's "critical" has no separate
// entry in spec §4.8's event-hook table, so it is treated as "high".
func securityDeltaSeverity(sev honeypot.Severity) string {
	if sev == honeypot.SeverityCritical {
		return "high"
	}
	return string(sev)
}

// tickActivityUpdater is W9: refresh per-alert honeypot activity counts
// for every (source_ip, event_type) pair observed so far.
func (s *Supervisor) tickActivityUpdater(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, records := range s.threatRecords {
		count := len(records)
		for i := range records {
			records[i].ActivityCount = count
		}
		s.threatRecords[key] = records
	}
}

func (s *Supervisor) recordThreat(rec honeypot.ThreatRecord) {
	key := rec.SourceIP + "|" + rec.EventType
	s.mu.Lock()
	defer s.mu.Unlock()
	s.threatRecords[key] = append(s.threatRecords[key], rec)
}

func (s *Supervisor) resolveDeviceIDByIP(sourceIP string) string {
	d, err := s.Identity.GetDeviceByIP(sourceIP)
	if err != nil || d == nil {
		return ""
	}
	return d.DeviceID
}

// predictorEscalates reports whether the ML Predictor's advisory verdict on
// pc should be treated as a high-severity security alert, per spec §6.
func (s *Supervisor) predictorEscalates(ctx context.Context, pc mlpredict.PacketContext) bool {
	prediction, err := s.predictor.Predict(ctx, pc)
	if err != nil {
		return false
	}
	return prediction.IsHighConfidenceAttack()
}
