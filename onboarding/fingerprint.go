package onboarding

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// fingerprint derives the short content-hash of MAC + type + onboarding
// time named in spec §3, truncated to 16 hex characters for readability.
func fingerprint(mac, deviceType string, onboardingTime time.Time) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%s", mac, deviceType, onboardingTime.UTC().Format(time.RFC3339Nano))))
	return hex.EncodeToString(sum[:])[:16]
}
