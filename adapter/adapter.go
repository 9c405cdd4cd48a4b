// Package adapter implements the Policy Adapter (C10): a trust-change
// listener that maps trust buckets to enforcement actions and applies them
// via the Rule Installer.
package adapter

import (
	"context"
	"sync"
	"time"

	"github.com/soho-iot/zerotrust/ruleinstaller"
	"github.com/soho-iot/zerotrust/trust"
)

// MaxHistory is the number of decisions retained per device, per spec §4.10.
const MaxHistory = 100

// MinDeltaToAct is the score-delta floor that forces a re-decision even
// when the trust bucket did not change, per spec §4.10.
const MinDeltaToAct = 10

// bucketAction maps a trust bucket to its enforcement action, per spec §4.10.
var bucketAction = map[trust.Bucket]ruleinstaller.Action{
	trust.BucketUntrusted:  ruleinstaller.ActionQuarantine,
	trust.BucketSuspicious: ruleinstaller.ActionDeny,
	trust.BucketMonitored:  ruleinstaller.ActionRedirect,
	trust.BucketTrusted:    ruleinstaller.ActionAllow,
}

// Decision is one recorded policy-adapter action.
type Decision struct {
	DeviceID  string
	Timestamp time.Time
	OldScore  int
	NewScore  int
	Action    ruleinstaller.Action
}

// MACLookup resolves a device_id to its MAC for the Rule Installer's
// match-field contract.
type MACLookup interface {
	MACOf(deviceID string) (string, bool)
}

// Adapter is the Policy Adapter (C10).
type Adapter struct {
	installer ruleinstaller.Installer
	macs      MACLookup

	mu        sync.Mutex
	histories map[string][]Decision
}

// New constructs an Adapter.
func New(installer ruleinstaller.Installer, macs MACLookup) *Adapter {
	return &Adapter{installer: installer, macs: macs, histories: make(map[string][]Decision)}
}

// OnTrustChange is registered as a trust.Listener on the Trust Scorer (C8).
// Acts when either the trust bucket changed or the delta is at least
// MinDeltaToAct, per spec §4.10.
func (a *Adapter) OnTrustChange(deviceID string, old, new int, reason string) {
	oldBucket := trust.BucketOf(old)
	newBucket := trust.BucketOf(new)

	delta := new - old
	if delta < 0 {
		delta = -delta
	}
	if oldBucket == newBucket && delta < MinDeltaToAct {
		return
	}

	action := bucketAction[newBucket]
	mac, ok := a.macs.MACOf(deviceID)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = a.installer.Install(ctx, deviceID, action, map[string]string{"eth_src": mac}, 0, "")

	a.mu.Lock()
	defer a.mu.Unlock()
	decisions := append(a.histories[deviceID], Decision{
		DeviceID: deviceID, Timestamp: time.Now().UTC(), OldScore: old, NewScore: new, Action: action,
	})
	if len(decisions) > MaxHistory {
		decisions = decisions[len(decisions)-MaxHistory:]
	}
	a.histories[deviceID] = decisions
}

// History returns a copy of the device's retained policy-adapter decisions.
func (a *Adapter) History(deviceID string) []Decision {
	a.mu.Lock()
	defer a.mu.Unlock()
	rows := a.histories[deviceID]
	out := make([]Decision, len(rows))
	copy(out, rows)
	return out
}
