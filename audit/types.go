// Package audit provides a derived, read-only compliance view over a
// device's admission history and trust history — "who/what changed this
// device and when" — plus an optional DynamoDB mirror for long-retention
// export. It never adds a new write path: every row originates in the
// identity or admission stores and is only reshaped here.
package audit

import (
	"strconv"
	"time"
)

// EntryKind distinguishes the two underlying histories a Trail merges.
type EntryKind string

const (
	KindAdmission EntryKind = "admission"
	KindTrust     EntryKind = "trust"
)

// Entry is one chronological row in a device's compliance trail.
type Entry struct {
	Timestamp time.Time `json:"timestamp" dynamodbav:"timestamp"`
	DeviceID  string    `json:"device_id" dynamodbav:"device_id"`
	Kind      EntryKind `json:"kind" dynamodbav:"kind"`
	// Status is the admission PendingStatus for a KindAdmission row, or the
	// trust score (as a string) for a KindTrust row.
	Status string `json:"status" dynamodbav:"status"`
	Notes  string `json:"notes,omitempty" dynamodbav:"notes,omitempty"`
}

// Trail is a device's merged, time-ordered compliance history.
type Trail struct {
	DeviceID string  `json:"device_id"`
	Entries  []Entry `json:"entries"`
}

// AdmissionHistorySource is the narrow view of admission.Store a Trail
// needs.
type AdmissionHistorySource interface {
	History(mac string, limit int) ([]AdmissionHistoryRow, error)
}

// AdmissionHistoryRow mirrors admission.HistoryRow without importing the
// admission package, avoiding a dependency edge this package doesn't
// otherwise need.
type AdmissionHistoryRow struct {
	Timestamp time.Time
	MAC       string
	Status    string
	Notes     string
}

// TrustHistorySource is the narrow view of identity.Store a Trail needs.
type TrustHistorySource interface {
	TrustHistory(deviceID string) ([]TrustHistoryRow, error)
}

// TrustHistoryRow mirrors identity.TrustHistoryRow.
type TrustHistoryRow struct {
	Timestamp time.Time
	Score     int
	Reason    string
}

// BuildTrail merges a device's admission and trust history into a single
// chronological Trail, oldest first.
func BuildTrail(deviceID, mac string, admission AdmissionHistorySource, trust TrustHistorySource) (*Trail, error) {
	trail := &Trail{DeviceID: deviceID}

	if admission != nil && mac != "" {
		rows, err := admission.History(mac, 0)
		if err != nil {
			return nil, err
		}
		for _, r := range rows {
			trail.Entries = append(trail.Entries, Entry{
				Timestamp: r.Timestamp,
				DeviceID:  deviceID,
				Kind:      KindAdmission,
				Status:    r.Status,
				Notes:     r.Notes,
			})
		}
	}

	if trust != nil {
		rows, err := trust.TrustHistory(deviceID)
		if err != nil {
			return nil, err
		}
		for _, r := range rows {
			trail.Entries = append(trail.Entries, Entry{
				Timestamp: r.Timestamp,
				DeviceID:  deviceID,
				Kind:      KindTrust,
				Status:    scoreString(r.Score),
				Notes:     r.Reason,
			})
		}
	}

	sortEntriesByTime(trail.Entries)
	return trail, nil
}

func sortEntriesByTime(entries []Entry) {
	for i := 1; i < len(entries); i++ {
		for j := i; j > 0 && entries[j].Timestamp.Before(entries[j-1].Timestamp); j-- {
			entries[j], entries[j-1] = entries[j-1], entries[j]
		}
	}
}

func scoreString(score int) string {
	return strconv.Itoa(score)
}
