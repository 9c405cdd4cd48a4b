package validate

import "regexp"

// deviceIDRegex matches DEV_<3 octet groups>_<6 char A-Z0-9> as well as the
// timestamp-suffix fallback form produced on collision exhaustion.
var deviceIDRegex = regexp.MustCompile(`^DEV_[0-9A-F]{2}_[0-9A-F]{2}_[0-9A-F]{2}_[A-Z0-9]{6,}$`)

// IsValidDeviceID reports whether id matches the DEV_<mac-prefix>_<suffix> shape.
func IsValidDeviceID(id string) bool {
	return deviceIDRegex.MatchString(id)
}
