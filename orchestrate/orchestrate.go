// Package orchestrate implements the Traffic Orchestrator (C11): central
// decision fusion for alert paths that need an immediate policy decision
// rather than waiting for a trust-score cascade.
package orchestrate

import (
	"context"
	"sync"
	"time"

	"github.com/soho-iot/zerotrust/anomaly"
	"github.com/soho-iot/zerotrust/honeypot"
	"github.com/soho-iot/zerotrust/ruleinstaller"
)

// MaxHistory is the number of decision records retained per device, per spec §4.11.
const MaxHistory = 100

// RecentAlertWindow bounds how far back anomaly.Event history is considered
// "recent" for the bump-up rule.
const RecentAlertWindow = 5 * time.Minute

// ThreatLevel is the fused severity used to decide a PolicyAction.
type ThreatLevel string

const (
	ThreatNone     ThreatLevel = "none"
	ThreatLow      ThreatLevel = "low"
	ThreatMedium   ThreatLevel = "medium"
	ThreatHigh     ThreatLevel = "high"
	ThreatCritical ThreatLevel = "critical"
)

var threatRank = map[ThreatLevel]int{
	ThreatNone: 0, ThreatLow: 1, ThreatMedium: 2, ThreatHigh: 3, ThreatCritical: 4,
}

// TrustLookup is the narrow Trust Scorer capability.
type TrustLookup interface {
	Score(deviceID string) (int, bool)
}

// MACLookup resolves a device_id to its MAC for Rule Installer match fields.
type MACLookup interface {
	MACOf(deviceID string) (string, bool)
}

// Decision is one recorded orchestrator decision.
type Decision struct {
	DeviceID    string
	Timestamp   time.Time
	ThreatLevel ThreatLevel
	TrustScore  int
	Action      ruleinstaller.Action
}

// Orchestrator is the Traffic Orchestrator (C11).
type Orchestrator struct {
	installer ruleinstaller.Installer
	trust     TrustLookup
	anomalies *anomaly.Detector
	macs      MACLookup

	mu        sync.Mutex
	histories map[string][]Decision
}

// New constructs an Orchestrator.
func New(installer ruleinstaller.Installer, trust TrustLookup, anomalies *anomaly.Detector, macs MACLookup) *Orchestrator {
	return &Orchestrator{
		installer: installer,
		trust:     trust,
		anomalies: anomalies,
		macs:      macs,
		histories: make(map[string][]Decision),
	}
}

// Decide fuses inputs for deviceID and an optional external threat record,
// computes the threat level and PolicyAction, applies it via the Rule
// Installer, and records the decision. Per spec §4.11 step 2-3.
func (o *Orchestrator) Decide(ctx context.Context, deviceID string, record *honeypot.ThreatRecord) Decision {
	score, _ := o.trust.Score(deviceID)

	level := ThreatNone
	if record != nil {
		level = maxLevel(level, severityToThreat(record.Severity))
	}
	level = maxLevel(level, bumpFromRecentAlerts(o.recentAlerts(deviceID)))

	action := decideAction(level, score)

	if mac, ok := o.macs.MACOf(deviceID); ok {
		installCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		_ = o.installer.Install(installCtx, deviceID, action, map[string]string{"eth_src": mac}, 0, "")
		cancel()
	}

	decision := Decision{DeviceID: deviceID, Timestamp: time.Now().UTC(), ThreatLevel: level, TrustScore: score, Action: action}
	o.recordDecision(decision)
	return decision
}

func (o *Orchestrator) recentAlerts(deviceID string) []anomaly.Event {
	if o.anomalies == nil {
		return nil
	}
	cutoff := time.Now().UTC().Add(-RecentAlertWindow)
	var out []anomaly.Event
	for _, e := range o.anomalies.History() {
		if e.DeviceID == deviceID && !e.Timestamp.Before(cutoff) {
			out = append(out, e)
		}
	}
	return out
}

func (o *Orchestrator) recordDecision(d Decision) {
	o.mu.Lock()
	defer o.mu.Unlock()
	decisions := append(o.histories[d.DeviceID], d)
	if len(decisions) > MaxHistory {
		decisions = decisions[len(decisions)-MaxHistory:]
	}
	o.histories[d.DeviceID] = decisions
}

// History returns a copy of the device's retained decision records.
func (o *Orchestrator) History(deviceID string) []Decision {
	o.mu.Lock()
	defer o.mu.Unlock()
	rows := o.histories[deviceID]
	out := make([]Decision, len(rows))
	copy(out, rows)
	return out
}

func severityToThreat(s honeypot.Severity) ThreatLevel {
	switch s {
	case honeypot.SeverityCritical:
		return ThreatCritical
	case honeypot.SeverityHigh:
		return ThreatHigh
	case honeypot.SeverityMedium:
		return ThreatMedium
	case honeypot.SeverityLow:
		return ThreatLow
	default:
		return ThreatNone
	}
}

// bumpFromRecentAlerts applies the bump-up rule: >=1 high -> at least high;
// >=2 medium -> at least high; >=1 medium -> at least medium, per spec §4.11.
func bumpFromRecentAlerts(alerts []anomaly.Event) ThreatLevel {
	highCount, mediumCount := 0, 0
	for _, a := range alerts {
		switch a.Severity {
		case anomaly.SeverityHigh:
			highCount++
		case anomaly.SeverityMedium:
			mediumCount++
		}
	}
	switch {
	case highCount >= 1:
		return ThreatHigh
	case mediumCount >= 2:
		return ThreatHigh
	case mediumCount >= 1:
		return ThreatMedium
	default:
		return ThreatNone
	}
}

func maxLevel(a, b ThreatLevel) ThreatLevel {
	if threatRank[b] > threatRank[a] {
		return b
	}
	return a
}

// decideAction implements the priority decision tree of spec §4.11 step 3.
func decideAction(level ThreatLevel, trustScore int) ruleinstaller.Action {
	switch {
	case level == ThreatCritical:
		return ruleinstaller.ActionQuarantine
	case level == ThreatHigh && trustScore < 30:
		return ruleinstaller.ActionQuarantine
	case level == ThreatHigh:
		return ruleinstaller.ActionRedirect
	case trustScore < 30:
		return ruleinstaller.ActionQuarantine
	case trustScore < 50:
		return ruleinstaller.ActionDeny
	case trustScore < 70 || level == ThreatMedium:
		return ruleinstaller.ActionRedirect
	default:
		return ruleinstaller.ActionAllow
	}
}
