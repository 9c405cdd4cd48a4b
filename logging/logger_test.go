package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestJSONLoggerWritesOneLinePerEntry(t *testing.T) {
	var buf bytes.Buffer
	l := NewJSONLogger(&buf)

	l.LogPolicyAction(PolicyActionEntry{Timestamp: time.Now(), DeviceID: "DEV_1", Action: "quarantine", Reason: "trust_cascade"})
	l.LogAdmissionEvent(AdmissionEventEntry{Timestamp: time.Now(), MAC: "AA:BB:CC:00:00:01", Status: "pending"})
	l.LogTrustChange(TrustChangeEntry{Timestamp: time.Now(), DeviceID: "DEV_1", Old: 70, New: 30, Reason: "alert"})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(lines))
	}
	for _, line := range lines {
		var record map[string]interface{}
		if err := json.Unmarshal([]byte(line), &record); err != nil {
			t.Fatalf("line is not valid JSON: %v", err)
		}
		if _, ok := record["kind"]; !ok {
			t.Errorf("missing kind field in %s", line)
		}
	}
}

func TestNopLoggerDiscardsSilently(t *testing.T) {
	var l Logger = NopLogger{}
	l.LogPolicyAction(PolicyActionEntry{})
	l.LogAdmissionEvent(AdmissionEventEntry{})
	l.LogTrustChange(TrustChangeEntry{})
}

func TestMultiLoggerFansOutSkippingNil(t *testing.T) {
	var buf1, buf2 bytes.Buffer
	m := &MultiLogger{Loggers: []Logger{NewJSONLogger(&buf1), nil, NewJSONLogger(&buf2)}}

	m.LogTrustChange(TrustChangeEntry{DeviceID: "DEV_1", Old: 70, New: 60})

	if buf1.Len() == 0 || buf2.Len() == 0 {
		t.Fatalf("expected both non-nil loggers to receive the entry")
	}
}
