// Package notification fans out operator alerts on critical trust and
// threat events: trust-score drops into the suspicious or untrusted bucket, high/critical
// threat-level orchestration decisions, attestation failures, and
// quarantine-override grants. Pluggable backends (SNS, webhook) implement
// Notifier; MultiNotifier composes them for fanout delivery.
package notification

import "time"

// EventType identifies the kind of control-plane event being reported.
type EventType string

const (
	// EventTrustDropped fires when a device's trust score crosses down into
	// the untrusted or suspicious bucket.
	EventTrustDropped EventType = "trust.dropped"
	// EventThreatDetected fires when the orchestrator reaches a high or
	// critical threat level for a device.
	EventThreatDetected EventType = "threat.detected"
	// EventAttestationFailed fires when a device fails its periodic
	// credential or heartbeat check.
	EventAttestationFailed EventType = "attestation.failed"
	// EventBreakglassGranted fires when an operator is granted a
	// quarantine-override.
	EventBreakglassGranted EventType = "breakglass.granted"
	// EventDeviceQuarantined fires when a device is moved into the
	// quarantine VLAN.
	EventDeviceQuarantined EventType = "device.quarantined"
)

// IsValid reports whether t is a known EventType.
func (t EventType) IsValid() bool {
	switch t {
	case EventTrustDropped, EventThreatDetected, EventAttestationFailed,
		EventBreakglassGranted, EventDeviceQuarantined:
		return true
	}
	return false
}

// String returns the string representation of the EventType.
func (t EventType) String() string { return string(t) }

// Event is a notification triggered by a device or operator state change.
type Event struct {
	Type      EventType
	DeviceID  string
	Timestamp time.Time
	// Actor is who/what triggered the event: "system" for automated
	// detections, or an operator identifier for breakglass grants.
	Actor string
	// Reason is a short human-readable explanation.
	Reason string
	// Detail carries event-specific structured data, e.g. old/new trust
	// score or threat level, serialized alongside the event.
	Detail map[string]any
}

// NewEvent creates an Event stamped with the given time (callers pass the
// current time explicitly since this package never calls time.Now() itself
// on a hot path shared with tests).
func NewEvent(eventType EventType, deviceID, actor, reason string, at time.Time, detail map[string]any) *Event {
	return &Event{
		Type:      eventType,
		DeviceID:  deviceID,
		Timestamp: at,
		Actor:     actor,
		Reason:    reason,
		Detail:    detail,
	}
}
