// Package testutil holds small helpers shared by this module's
// package-level tests: deterministic clocks and builders for the
// device/baseline fixtures most tests need.
package testutil

import "time"

// MustParseTime parses value with layout and panics on error. Useful for
// literal timestamps in table-driven test data where a parse failure
// indicates a typo in the test itself.
func MustParseTime(layout, value string) time.Time {
	t, err := time.Parse(layout, value)
	if err != nil {
		panic("testutil.MustParseTime: " + err.Error())
	}
	return t
}

// FixedClock returns a func() time.Time that always returns t, for
// components that take a clock function instead of calling time.Now
// directly.
func FixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}
