// Package profiler implements the Behavioral Profiler (C5): a time-bounded
// per-device traffic observation that produces a Behavioral Baseline.
package profiler

import (
	"sort"
	"sync"
	"time"

	"github.com/soho-iot/zerotrust/identity"
)

// DefaultDuration is the profiling window length, per spec §4.5.
const DefaultDuration = 300 * time.Second

// MinPacketsForFullBaseline is the packet-count floor below which a
// finalized baseline is annotated limited_traffic rather than blocked.
const MinPacketsForFullBaseline = 5

// PacketInfo is one observed packet/flow event fed to record.
type PacketInfo struct {
	Bytes       int
	Destination string
	Port        string
	Protocol    string
}

// accumulator holds the in-memory per-device state while profiling is active.
type accumulator struct {
	start        time.Time
	packetCount  int
	byteCount    int
	destinations map[string]int
	ports        map[string]int
	protocols    map[string]int
}

func newAccumulator(now time.Time) *accumulator {
	return &accumulator{
		start:        now,
		destinations: make(map[string]int),
		ports:        make(map[string]int),
		protocols:    make(map[string]int),
	}
}

// BaselineSaver is the narrow Identity Store capability the profiler
// depends on for persisting finalized baselines.
type BaselineSaver interface {
	SaveBaseline(id string, b *identity.Baseline) error
}

// Profiler is the Behavioral Profiler (C5).
type Profiler struct {
	duration time.Duration
	store    BaselineSaver

	mu    sync.Mutex
	accs  map[string]*accumulator
}

// New constructs a Profiler with the given observation duration (0 uses
// DefaultDuration).
func New(store BaselineSaver, duration time.Duration) *Profiler {
	if duration <= 0 {
		duration = DefaultDuration
	}
	return &Profiler{duration: duration, store: store, accs: make(map[string]*accumulator)}
}

// Begin resets the accumulator for device_id, starting a new profiling window.
func (p *Profiler) Begin(deviceID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.accs[deviceID] = newAccumulator(time.Now())
}

// Record updates counters for an actively-profiling device; ignored
// (never errors) if no profiling is active for that device.
func (p *Profiler) Record(deviceID string, pkt PacketInfo) {
	p.mu.Lock()
	defer p.mu.Unlock()
	acc, ok := p.accs[deviceID]
	if !ok {
		return
	}
	acc.packetCount++
	acc.byteCount += pkt.Bytes
	if pkt.Destination != "" {
		acc.destinations[pkt.Destination]++
	}
	if pkt.Port != "" {
		acc.ports[pkt.Port]++
	}
	if pkt.Protocol != "" {
		acc.protocols[pkt.Protocol]++
	}
}

// IsExpired returns true iff now - start >= duration for device_id. A
// device with no active accumulator is reported expired (nothing to wait for).
func (p *Profiler) IsExpired(deviceID string, now time.Time) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	acc, ok := p.accs[deviceID]
	if !ok {
		return true
	}
	return now.Sub(acc.start) >= p.duration
}

// ActiveDeviceIDs returns the set of devices currently being profiled, for
// the profiling-monitor worker (W2) to sweep.
func (p *Profiler) ActiveDeviceIDs() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	ids := make([]string, 0, len(p.accs))
	for id := range p.accs {
		ids = append(ids, id)
	}
	return ids
}

// Finalize computes the baseline, persists it to the Identity Store, and
// removes the accumulator. If the device's packet count is below
// MinPacketsForFullBaseline at expiry, the baseline is still produced,
// annotated limited_traffic, rather than blocking forever (spec §4.5).
func (p *Profiler) Finalize(deviceID string) (*identity.Baseline, error) {
	p.mu.Lock()
	acc, ok := p.accs[deviceID]
	if ok {
		delete(p.accs, deviceID)
	}
	p.mu.Unlock()

	if !ok {
		return nil, nil
	}

	elapsed := time.Since(acc.start).Seconds()
	if elapsed <= 0 {
		elapsed = 1
	}

	meanPPS := float64(acc.packetCount) / elapsed
	meanBPS := float64(acc.byteCount) / elapsed
	meanPacketSize := 0.0
	if acc.packetCount > 0 {
		meanPacketSize = float64(acc.byteCount) / float64(acc.packetCount)
	}

	baseline := &identity.Baseline{
		DeviceID:          deviceID,
		MeanPPS:           meanPPS,
		MeanBPS:           meanBPS,
		MeanPacketSize:    meanPacketSize,
		TopDestinations:   topK(acc.destinations, identity.TopK),
		TopPorts:          topK(acc.ports, identity.TopK),
		ProtocolHistogram: acc.protocols,
		EstablishedAt:     time.Now().UTC(),
		LimitedTraffic:    acc.packetCount < MinPacketsForFullBaseline,
	}

	if p.store != nil {
		if err := p.store.SaveBaseline(deviceID, baseline); err != nil {
			return nil, err
		}
	}
	return baseline, nil
}

func topK(freq map[string]int, k int) []identity.FreqEntry {
	entries := make([]identity.FreqEntry, 0, len(freq))
	for key, count := range freq {
		entries = append(entries, identity.FreqEntry{Key: key, Count: count})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Count != entries[j].Count {
			return entries[i].Count > entries[j].Count
		}
		return entries[i].Key < entries[j].Key
	})
	if len(entries) > k {
		entries = entries[:k]
	}
	return entries
}
