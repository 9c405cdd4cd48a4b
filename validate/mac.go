// Package validate provides shared input validation for identifiers that
// cross a trust boundary: MAC addresses and device IDs.
// Centralizing these here keeps every component's edge-validation consistent
// with the ValidationError propagation policy (reject at the edge, never crash).
package validate

import (
	"fmt"
	"regexp"
	"strings"
)

var macRegex = regexp.MustCompile(`^[0-9A-F]{2}(:[0-9A-F]{2}){5}$`)

// NormalizeMAC uppercases and colon-separates a MAC address given in any of
// the common separator styles (colon, dash, dot, or none).
func NormalizeMAC(mac string) (string, error) {
	cleaned := strings.ToUpper(strings.NewReplacer(":", "", "-", "", ".", "", " ", "").Replace(mac))
	if len(cleaned) != 12 {
		return "", fmt.Errorf("malformed mac address: %q", mac)
	}
	for _, c := range cleaned {
		if !((c >= '0' && c <= '9') || (c >= 'A' && c <= 'F')) {
			return "", fmt.Errorf("malformed mac address: %q", mac)
		}
	}

	var b strings.Builder
	for i := 0; i < 12; i += 2 {
		if i > 0 {
			b.WriteByte(':')
		}
		b.WriteString(cleaned[i : i+2])
	}
	return b.String(), nil
}

// IsValidMAC reports whether mac is already in canonical XX:XX:XX:XX:XX:XX form.
func IsValidMAC(mac string) bool {
	return macRegex.MatchString(mac)
}

// MACPrefix returns the first n octets of a canonical MAC joined by
// underscores, e.g. MACPrefix("AA:BB:CC:00:00:01", 3) = "AA_BB_CC".
func MACPrefix(mac string, n int) (string, error) {
	if !IsValidMAC(mac) {
		return "", fmt.Errorf("malformed mac address: %q", mac)
	}
	octets := strings.Split(mac, ":")
	if n > len(octets) {
		n = len(octets)
	}
	return strings.Join(octets[:n], "_"), nil
}
