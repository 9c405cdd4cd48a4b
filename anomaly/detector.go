package anomaly

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// Absolute thresholds used when a device has no behavioral baseline yet.
// Chosen as conservative IoT-scale defaults; see the design ledger for the
// rationale (spec §4.7 specifies only that an absolute path exists with
// "the same severity/score mapping", not the absolute figures themselves).
const (
	AbsolutePPSMedium = 20.0
	AbsolutePPSHigh5  = 50.0
	AbsolutePPSHigh10 = 100.0
	AbsoluteBPSHigh10 = 1_000_000.0

	ScanDestinationFloor = 20
	PortScanFloor        = 10
)

// finding is one matched heuristic, carrying its type, severity, score, and
// a human-readable indicator describing what triggered it.
type finding struct {
	typ      Type
	severity Severity
	score    int
	detail   string
}

// MaxHistory is the number of recent events retained in memory per the
// detector as a whole, per spec §4.7.
const MaxHistory = 100

// Detector is the Anomaly Detector (C7).
type Detector struct {
	mu      sync.Mutex
	history []Event
}

// New constructs an empty Detector.
func New() *Detector {
	return &Detector{}
}

// Evaluate runs one heuristic path over a device's current aggregates: the
// baseline-relative path when baseline is non-nil, otherwise the
// absolute-threshold path. Returns the overall Event, whose Severity comes
// from the summed finding scores; Severity is "none" when that total is
// below 20, even if a finding matched (no history row is appended in that
// case).
func (d *Detector) Evaluate(deviceID string, in Inputs, baseline *Baseline) Event {
	var findings []finding
	if baseline != nil {
		findings = evaluateWithBaseline(in, *baseline)
	} else {
		findings = evaluateAbsolute(in)
	}

	totalScore := 0
	var best finding
	haveBest := false
	indicators := make([]string, 0, len(findings))
	for _, f := range findings {
		totalScore += f.score
		indicators = append(indicators, f.detail)
		if !haveBest || typePrecedence[f.typ] > typePrecedence[best.typ] {
			best = f
			haveBest = true
		}
	}

	overall := overallSeverity(totalScore)
	event := Event{
		DeviceID:  deviceID,
		Timestamp: time.Now().UTC(),
		Type:      best.typ,
		Severity:  overall,
		Score:     totalScore,
		Detail:    strings.Join(indicators, "; "),
	}
	if overall == SeverityNone {
		event.Type = ""
		event.Detail = ""
		return event
	}

	d.mu.Lock()
	d.history = append(d.history, event)
	if len(d.history) > MaxHistory {
		d.history = d.history[len(d.history)-MaxHistory:]
	}
	d.mu.Unlock()

	return event
}

// History returns a copy of the retained recent events (up to MaxHistory).
func (d *Detector) History() []Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Event, len(d.history))
	copy(out, d.history)
	return out
}

func overallSeverity(score int) Severity {
	switch {
	case score >= 70:
		return SeverityHigh
	case score >= 40:
		return SeverityMedium
	case score >= 20:
		return SeverityLow
	default:
		return SeverityNone
	}
}

func evaluateWithBaseline(in Inputs, b Baseline) []finding {
	var findings []finding

	if b.MeanPPS > 0 {
		ratio := in.PPS / b.MeanPPS
		detail := fmt.Sprintf("pps=%.1f is %.1fx baseline mean %.1f", in.PPS, ratio, b.MeanPPS)
		switch {
		case ratio > 10:
			findings = append(findings, finding{TypeDoS, SeverityHigh, 50, detail})
		case ratio > 5:
			findings = append(findings, finding{TypeDoS, SeverityHigh, 30, detail})
		case ratio > 2:
			findings = append(findings, finding{TypeDoS, SeverityMedium, 15, detail})
		}
	}

	if b.MeanBPS > 0 {
		ratio := in.BPS / b.MeanBPS
		if ratio > 10 {
			findings = append(findings, finding{TypeVolume, SeverityHigh, 40,
				fmt.Sprintf("bps=%.0f is %.1fx baseline mean %.0f", in.BPS, ratio, b.MeanBPS)})
		}
	}

	if float64(in.UniqueDestinations) > float64(b.TopDestinations)*5 && in.UniqueDestinations > ScanDestinationFloor {
		findings = append(findings, finding{TypeScanning, SeverityMedium, 25,
			fmt.Sprintf("unique_destinations=%d exceeds 5x baseline's %d", in.UniqueDestinations, b.TopDestinations)})
	}

	if float64(in.UniquePorts) > float64(b.TopPorts)*3 && in.UniquePorts > PortScanFloor {
		findings = append(findings, finding{TypePortScan, SeverityMedium, 20,
			fmt.Sprintf("unique_ports=%d exceeds 3x baseline's %d", in.UniquePorts, b.TopPorts)})
	}

	return findings
}

func evaluateAbsolute(in Inputs) []finding {
	var findings []finding

	switch {
	case in.PPS > AbsolutePPSHigh10:
		findings = append(findings, finding{TypeDoS, SeverityHigh, 50,
			fmt.Sprintf("pps=%.1f exceeds absolute threshold %.1f", in.PPS, AbsolutePPSHigh10)})
	case in.PPS > AbsolutePPSHigh5:
		findings = append(findings, finding{TypeDoS, SeverityHigh, 30,
			fmt.Sprintf("pps=%.1f exceeds absolute threshold %.1f", in.PPS, AbsolutePPSHigh5)})
	case in.PPS > AbsolutePPSMedium:
		findings = append(findings, finding{TypeDoS, SeverityMedium, 15,
			fmt.Sprintf("pps=%.1f exceeds absolute threshold %.1f", in.PPS, AbsolutePPSMedium)})
	}

	if in.BPS > AbsoluteBPSHigh10 {
		findings = append(findings, finding{TypeVolume, SeverityHigh, 40,
			fmt.Sprintf("bps=%.0f exceeds absolute threshold %.0f", in.BPS, AbsoluteBPSHigh10)})
	}

	if in.UniqueDestinations > ScanDestinationFloor {
		findings = append(findings, finding{TypeScanning, SeverityMedium, 25,
			fmt.Sprintf("unique_destinations=%d exceeds floor %d", in.UniqueDestinations, ScanDestinationFloor)})
	}

	if in.UniquePorts > PortScanFloor {
		findings = append(findings, finding{TypePortScan, SeverityMedium, 20,
			fmt.Sprintf("unique_ports=%d exceeds floor %d", in.UniquePorts, PortScanFloor)})
	}

	return findings
}
