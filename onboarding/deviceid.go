// Package onboarding implements the Admission Service (C4): it watches
// link-layer events, generates device ids, funnels new MACs into the
// Pending Admission Queue, and drives onboarding through the CA and
// Identity Store on operator approval.
package onboarding

import (
	"crypto/rand"
	"fmt"
	"time"

	"github.com/soho-iot/zerotrust/validate"
)

const (
	randomSuffixAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	randomSuffixLength   = 6
	maxCollisionAttempts = 100
)

// DeviceIDGenerator produces device ids, retrying on collision per spec §4.4.
// exists reports whether a candidate id is already taken (across the
// Identity Store and the Pending Admission Queue).
type DeviceIDGenerator struct {
	exists func(id string) bool
}

// NewDeviceIDGenerator constructs a generator backed by an existence check.
func NewDeviceIDGenerator(exists func(id string) bool) *DeviceIDGenerator {
	return &DeviceIDGenerator{exists: exists}
}

// Generate builds DEV_<first-3-octets>_<6-char-A-Z0-9>, retrying the random
// suffix up to 100 times on collision, then falling back to a timestamp
// suffix (never returning a duplicate, matching the original source's
// collision-retry-then-fallback behavior).
func (g *DeviceIDGenerator) Generate(mac string) (string, error) {
	prefix, err := validate.MACPrefix(mac, 3)
	if err != nil {
		return "", err
	}

	for attempt := 0; attempt < maxCollisionAttempts; attempt++ {
		suffix, err := randomSuffix()
		if err != nil {
			return "", err
		}
		candidate := fmt.Sprintf("DEV_%s_%s", prefix, suffix)
		if g.exists == nil || !g.exists(candidate) {
			return candidate, nil
		}
	}

	fallback := fmt.Sprintf("DEV_%s_%d", prefix, time.Now().UnixNano())
	return fallback, nil
}

func randomSuffix() (string, error) {
	b := make([]byte, randomSuffixLength)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	out := make([]byte, randomSuffixLength)
	for i, v := range b {
		out[i] = randomSuffixAlphabet[int(v)%len(randomSuffixAlphabet)]
	}
	return string(out), nil
}
