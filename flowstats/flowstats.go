// Package flowstats implements the Flow Statistics Aggregator (C6): it
// polls the Rule Installer's flow counters per switch and maintains a
// rolling per-device window of derived flow samples for the Anomaly
// Detector (C7) to read through a snapshot API.
package flowstats

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/soho-iot/zerotrust/identity"
	"github.com/soho-iot/zerotrust/ruleinstaller"
)

// WindowSize is the number of flow samples retained per device, per spec §4.6.
const WindowSize = 100

// minSwitchPollInterval bounds how often a single switch is actually
// queried, independent of the cadence PollSwitches is called at: a retried
// or overlapping tick must not double up requests against the same
// southbound switch.
const minSwitchPollInterval = 500 * time.Millisecond

// macResolver is the narrow Identity Store capability used to resolve a
// flow's eth_src match field to a device_id, satisfied by identity.Store.
type macResolver interface {
	GetDeviceByMAC(mac string) (*identity.Device, error)
}

// Sample is one flow observation, derived from a ruleinstaller.FlowSample
// and timestamped at ingest.
type Sample struct {
	Timestamp   time.Time
	Packets     uint64
	Bytes       uint64
	DurationSec float64
	Destination string
	Port        string
}

// Stats is the aggregated view returned by DeviceStats/AllDeviceStats.
type Stats struct {
	TotalPackets      uint64
	TotalBytes        uint64
	AvgPPS            float64
	AvgBPS            float64
	UniqueDestinations int
	UniquePorts        int
	FlowCount          int
}

// Aggregator is the Flow Statistics Aggregator (C6).
type Aggregator struct {
	installer ruleinstaller.Installer
	resolver  macResolver

	mu       sync.Mutex
	windows  map[string][]Sample      // device_id -> ring (append, trim to WindowSize)
	limiters map[string]*rate.Limiter // switch_id -> poll-rate limiter
}

// New constructs an Aggregator. resolver maps a flow's eth_src MAC to a
// device_id; flows for unresolvable MACs are dropped.
func New(installer ruleinstaller.Installer, resolver macResolver) *Aggregator {
	return &Aggregator{
		installer: installer,
		resolver:  resolver,
		windows:   make(map[string][]Sample),
		limiters:  make(map[string]*rate.Limiter),
	}
}

// PollSwitches requests flow counters from every switch in switchIDs (W3).
// Per spec §4.6, a single switch's failure does not stop polling the rest.
// A switch already polled within minSwitchPollInterval is skipped this tick.
func (a *Aggregator) PollSwitches(ctx context.Context, switchIDs []string) {
	for _, switchID := range switchIDs {
		if !a.limiterFor(switchID).Allow() {
			continue
		}
		flows, err := a.installer.QueryFlows(ctx, switchID)
		if err != nil {
			continue
		}
		for _, f := range flows {
			a.ingest(f)
		}
	}
}

func (a *Aggregator) limiterFor(switchID string) *rate.Limiter {
	a.mu.Lock()
	defer a.mu.Unlock()
	l, ok := a.limiters[switchID]
	if !ok {
		l = rate.NewLimiter(rate.Every(minSwitchPollInterval), 1)
		a.limiters[switchID] = l
	}
	return l
}

func (a *Aggregator) ingest(f ruleinstaller.FlowSample) {
	mac := f.MatchFields["eth_src"]
	if mac == "" {
		return
	}
	dev, err := a.resolver.GetDeviceByMAC(mac)
	if err != nil {
		return
	}
	deviceID := dev.DeviceID

	sample := Sample{
		Timestamp:   time.Now().UTC(),
		Packets:     f.Packets,
		Bytes:       f.Bytes,
		DurationSec: f.DurationSec,
		Destination: f.MatchFields["ipv4_dst"],
	}
	if p, ok := f.MatchFields["tcp_dst"]; ok {
		sample.Port = p
	} else if p, ok := f.MatchFields["udp_dst"]; ok {
		sample.Port = p
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	win := append(a.windows[deviceID], sample)
	if len(win) > WindowSize {
		win = win[len(win)-WindowSize:]
	}
	a.windows[deviceID] = win
}

// snapshot returns a copy of the device's current window, safe to read
// without holding the Aggregator's lock, per spec §5's no-lock-during-
// heuristic-evaluation requirement.
func (a *Aggregator) snapshot(deviceID string) []Sample {
	a.mu.Lock()
	defer a.mu.Unlock()
	win := a.windows[deviceID]
	out := make([]Sample, len(win))
	copy(out, win)
	return out
}

// DeviceStats aggregates the device's window over the trailing
// windowSeconds.
func (a *Aggregator) DeviceStats(deviceID string, windowSeconds int) Stats {
	return computeStats(a.snapshot(deviceID), windowSeconds)
}

// AllDeviceStats aggregates every tracked device's window over the
// trailing windowSeconds.
func (a *Aggregator) AllDeviceStats(windowSeconds int) map[string]Stats {
	a.mu.Lock()
	ids := make([]string, 0, len(a.windows))
	for id := range a.windows {
		ids = append(ids, id)
	}
	a.mu.Unlock()

	out := make(map[string]Stats, len(ids))
	for _, id := range ids {
		out[id] = a.DeviceStats(id, windowSeconds)
	}
	return out
}

func computeStats(samples []Sample, windowSeconds int) Stats {
	cutoff := time.Now().UTC().Add(-time.Duration(windowSeconds) * time.Second)

	var stats Stats
	destinations := make(map[string]bool)
	ports := make(map[string]bool)
	var totalDuration float64

	for _, s := range samples {
		if s.Timestamp.Before(cutoff) {
			continue
		}
		stats.TotalPackets += s.Packets
		stats.TotalBytes += s.Bytes
		stats.FlowCount++
		totalDuration += s.DurationSec
		if s.Destination != "" {
			destinations[s.Destination] = true
		}
		if s.Port != "" {
			ports[s.Port] = true
		}
	}

	stats.UniqueDestinations = len(destinations)
	stats.UniquePorts = len(ports)
	if totalDuration > 0 {
		stats.AvgPPS = float64(stats.TotalPackets) / totalDuration
		stats.AvgBPS = float64(stats.TotalBytes) / totalDuration
	}
	return stats
}
