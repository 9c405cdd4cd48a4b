package honeypot

// severityFor maps a known event id to its inherent severity, per spec §6's
// parsing contract (the core parses known event ids and extracts severity).
func severityFor(eventID string) Severity {
	switch eventID {
	case EventLoginSuccess:
		return SeverityHigh // a successful honeypot login is itself a strong signal
	case EventCommandInput, EventFileDownload:
		return SeverityHigh
	case EventLoginFailed:
		return SeverityMedium
	case EventClientVersion:
		return SeverityLow
	default:
		return SeverityLow
	}
}

// neutralTrustScore is used when a record's device can't be resolved, or no
// trustScoreOf lookup is supplied: the floor of the trusted bucket, above
// Mitigate's quarantine threshold of 30, so Mitigate falls through to its
// non-quarantine branches.
const neutralTrustScore = 70

// Parse converts a RawEvent into a ThreatRecord, resolving device_id via
// resolveDeviceID (typically a MAC/IP-to-device lookup against the Identity
// Store) and the device's current trust score via trustScoreOf, so Mitigate
// can weigh in the resolved device's actual standing rather than a neutral
// default. Unknown event ids are parsed with low severity and the raw id
// kept as the event type, never dropped silently.
func Parse(evt RawEvent, resolveDeviceID func(sourceIP string) string, trustScoreOf func(deviceID string) (int, bool)) ThreatRecord {
	rec := ThreatRecord{
		SourceIP:  evt.SourceIP,
		Timestamp: evt.Timestamp,
		EventType: evt.EventID,
		Severity:  severityFor(evt.EventID),
		Details:   detailsFor(evt),
	}
	if resolveDeviceID != nil {
		rec.DeviceID = resolveDeviceID(evt.SourceIP)
	}

	score := neutralTrustScore
	if rec.DeviceID != "" && trustScoreOf != nil {
		if s, ok := trustScoreOf(rec.DeviceID); ok {
			score = s
		}
	}
	rec.Suggestion = Mitigate(rec, score)
	return rec
}

func detailsFor(evt RawEvent) string {
	switch evt.EventID {
	case EventCommandInput:
		if cmd, ok := evt.Fields["command"].(string); ok {
			return cmd
		}
	case EventFileDownload:
		if name, ok := evt.Fields["filename"].(string); ok {
			return name
		}
	case EventClientVersion:
		if v, ok := evt.Fields["version"].(string); ok {
			return v
		}
	}
	return ""
}
