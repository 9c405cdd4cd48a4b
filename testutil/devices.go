package testutil

import (
	"time"

	"github.com/soho-iot/zerotrust/identity"
)

// MakeDevice builds an active Device fixture with sensible defaults,
// mirroring the shape produced by a real onboarding flow.
func MakeDevice(deviceID, mac string) *identity.Device {
	now := time.Now().UTC()
	return &identity.Device{
		DeviceID:  deviceID,
		MAC:       mac,
		CertRef:   "cert/" + deviceID,
		KeyRef:    "key/" + deviceID,
		Status:    identity.StatusActive,
		FirstSeen: now,
		LastSeen:  now,
	}
}

// MakeBaseline builds a Baseline fixture with the given packets/bytes-per-
// second means and no top destinations/ports, suitable for anomaly-ratio
// tests that only care about the means.
func MakeBaseline(meanPPS, meanBPS float64) *identity.Baseline {
	return &identity.Baseline{
		MeanPPS: meanPPS,
		MeanBPS: meanBPS,
	}
}
