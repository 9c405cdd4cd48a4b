package profiler

import (
	"testing"
	"time"

	"github.com/soho-iot/zerotrust/identity"
)

type fakeSaver struct {
	saved map[string]*identity.Baseline
}

func newFakeSaver() *fakeSaver {
	return &fakeSaver{saved: make(map[string]*identity.Baseline)}
}

func (f *fakeSaver) SaveBaseline(id string, b *identity.Baseline) error {
	f.saved[id] = b
	return nil
}

func TestBeginThenRecordAccumulates(t *testing.T) {
	p := New(nil, time.Hour)
	p.Begin("DEV_1")
	p.Record("DEV_1", PacketInfo{Bytes: 100, Destination: "10.0.0.5", Port: "443", Protocol: "tcp"})
	p.Record("DEV_1", PacketInfo{Bytes: 50, Destination: "10.0.0.5", Port: "443", Protocol: "tcp"})

	acc := p.accs["DEV_1"]
	if acc.packetCount != 2 {
		t.Fatalf("packetCount = %d, want 2", acc.packetCount)
	}
	if acc.byteCount != 150 {
		t.Fatalf("byteCount = %d, want 150", acc.byteCount)
	}
}

func TestRecordIgnoredWithoutBegin(t *testing.T) {
	p := New(nil, time.Hour)
	p.Record("unknown", PacketInfo{Bytes: 100})
	if len(p.accs) != 0 {
		t.Fatalf("expected no accumulator created by Record alone")
	}
}

func TestIsExpired(t *testing.T) {
	p := New(nil, 10*time.Millisecond)
	p.Begin("DEV_1")
	if p.IsExpired("DEV_1", time.Now()) {
		t.Error("expected not expired immediately after Begin")
	}
	if !p.IsExpired("DEV_1", time.Now().Add(time.Second)) {
		t.Error("expected expired after duration elapses")
	}
	if !p.IsExpired("never-started", time.Now()) {
		t.Error("a device with no accumulator should report expired")
	}
}

func TestFinalizeComputesMeansAndPersists(t *testing.T) {
	saver := newFakeSaver()
	p := New(saver, time.Hour)
	p.Begin("DEV_1")
	for i := 0; i < 10; i++ {
		p.Record("DEV_1", PacketInfo{Bytes: 100, Destination: "10.0.0.5", Port: "80", Protocol: "tcp"})
	}

	baseline, err := p.Finalize("DEV_1")
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if baseline.LimitedTraffic {
		t.Error("expected a full baseline with 10 packets recorded")
	}
	if baseline.MeanPacketSize != 100 {
		t.Errorf("MeanPacketSize = %v, want 100", baseline.MeanPacketSize)
	}
	if len(baseline.TopDestinations) != 1 || baseline.TopDestinations[0].Key != "10.0.0.5" {
		t.Errorf("unexpected TopDestinations: %+v", baseline.TopDestinations)
	}
	if saver.saved["DEV_1"] == nil {
		t.Error("expected the baseline to be persisted via SaveBaseline")
	}
	if _, ok := p.accs["DEV_1"]; ok {
		t.Error("expected the accumulator to be removed after Finalize")
	}
}

func TestFinalizeAnnotatesLimitedTraffic(t *testing.T) {
	p := New(nil, time.Hour)
	p.Begin("DEV_1")
	p.Record("DEV_1", PacketInfo{Bytes: 10})

	baseline, err := p.Finalize("DEV_1")
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if !baseline.LimitedTraffic {
		t.Error("expected limited_traffic to be set for a device with under 5 packets")
	}
}

func TestFinalizeWithoutBeginReturnsNil(t *testing.T) {
	p := New(nil, time.Hour)
	baseline, err := p.Finalize("never-started")
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if baseline != nil {
		t.Errorf("expected nil baseline for a device never begun, got %+v", baseline)
	}
}

func TestTopKOrdersByCountThenKey(t *testing.T) {
	freq := map[string]int{"a": 1, "b": 3, "c": 3, "d": 2}
	top := topK(freq, 2)
	if len(top) != 2 {
		t.Fatalf("len = %d, want 2", len(top))
	}
	if top[0].Key != "b" || top[0].Count != 3 {
		t.Errorf("top[0] = %+v, want {b 3}", top[0])
	}
	if top[1].Key != "c" || top[1].Count != 3 {
		t.Errorf("top[1] = %+v, want {c 3}", top[1])
	}
}
