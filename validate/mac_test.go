package validate

import "testing"

func TestNormalizeMAC(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"aa:bb:cc:00:00:01", "AA:BB:CC:00:00:01", false},
		{"aa-bb-cc-00-00-01", "AA:BB:CC:00:00:01", false},
		{"AABBCC000001", "AA:BB:CC:00:00:01", false},
		{"aabb.cc00.0001", "AA:BB:CC:00:00:01", false},
		{"not-a-mac", "", true},
		{"AA:BB:CC:00:00", "", true},
		{"ZZ:BB:CC:00:00:01", "", true},
	}
	for _, tt := range tests {
		got, err := NormalizeMAC(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("NormalizeMAC(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if err == nil && got != tt.want {
			t.Errorf("NormalizeMAC(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestIsValidMAC(t *testing.T) {
	if !IsValidMAC("AA:BB:CC:00:00:01") {
		t.Errorf("expected canonical MAC to be valid")
	}
	if IsValidMAC("aa:bb:cc:00:00:01") {
		t.Errorf("expected lowercase MAC to be rejected (not canonical)")
	}
}

func TestMACPrefix(t *testing.T) {
	got, err := MACPrefix("AA:BB:CC:00:00:01", 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "AA_BB_CC" {
		t.Errorf("MACPrefix = %q, want AA_BB_CC", got)
	}
}

func TestIsValidDeviceID(t *testing.T) {
	if !IsValidDeviceID("DEV_AA_BB_CC_X7K2QZ") {
		t.Errorf("expected valid device id to pass")
	}
	if IsValidDeviceID("DEV_AABBCC_X7K2QZ") {
		t.Errorf("expected malformed device id to fail")
	}
}
