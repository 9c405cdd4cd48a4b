package audit

import (
	"testing"
	"time"
)

type fakeAdmissionSource struct {
	rows []AdmissionHistoryRow
}

func (f *fakeAdmissionSource) History(mac string, limit int) ([]AdmissionHistoryRow, error) {
	return f.rows, nil
}

type fakeTrustSource struct {
	rows []TrustHistoryRow
}

func (f *fakeTrustSource) TrustHistory(deviceID string) ([]TrustHistoryRow, error) {
	return f.rows, nil
}

func TestBuildTrailMergesAndSortsBothHistories(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	admission := &fakeAdmissionSource{rows: []AdmissionHistoryRow{
		{Timestamp: base, MAC: "AA:BB", Status: "pending", Notes: "enqueued"},
		{Timestamp: base.Add(3 * time.Hour), MAC: "AA:BB", Status: "approved"},
	}}
	trust := &fakeTrustSource{rows: []TrustHistoryRow{
		{Timestamp: base.Add(time.Hour), Score: 65, Reason: "anomaly: low"},
	}}

	trail, err := BuildTrail("DEV_1", "AA:BB", admission, trust)
	if err != nil {
		t.Fatalf("BuildTrail: %v", err)
	}
	if len(trail.Entries) != 3 {
		t.Fatalf("len(Entries) = %d, want 3", len(trail.Entries))
	}
	for i := 1; i < len(trail.Entries); i++ {
		if trail.Entries[i].Timestamp.Before(trail.Entries[i-1].Timestamp) {
			t.Fatalf("entries not sorted: %+v", trail.Entries)
		}
	}
	if trail.Entries[1].Kind != KindTrust || trail.Entries[1].Status != "65" {
		t.Errorf("middle entry = %+v, want trust/65", trail.Entries[1])
	}
}

func TestBuildTrailHandlesNilSources(t *testing.T) {
	trail, err := BuildTrail("DEV_1", "", nil, nil)
	if err != nil {
		t.Fatalf("BuildTrail: %v", err)
	}
	if len(trail.Entries) != 0 {
		t.Errorf("expected no entries, got %d", len(trail.Entries))
	}
}
