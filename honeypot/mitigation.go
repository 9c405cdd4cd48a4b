package honeypot

import "fmt"

// Mitigate produces a short, human-readable suggested action for the record
// given the associated device's current trust score (or a neutral default
// when no device has been resolved). It is advisory only; the Policy
// Adapter and Traffic Orchestrator are the authoritative enforcement paths.
func Mitigate(rec ThreatRecord, deviceTrustScore int) string {
	switch {
	case rec.Severity == SeverityHigh && deviceTrustScore < 30:
		return fmt.Sprintf("quarantine recommended: %s already untrusted and triggered %s", rec.SourceIP, rec.EventType)
	case rec.Severity == SeverityHigh:
		return fmt.Sprintf("investigate %s: high-severity honeypot interaction (%s)", rec.SourceIP, rec.EventType)
	case rec.Severity == SeverityMedium:
		return fmt.Sprintf("monitor %s: repeated %s may indicate credential probing", rec.SourceIP, rec.EventType)
	default:
		return fmt.Sprintf("log only: low-severity %s from %s", rec.EventType, rec.SourceIP)
	}
}
