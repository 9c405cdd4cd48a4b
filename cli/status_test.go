package cli

import (
	"testing"
	"time"

	"github.com/soho-iot/zerotrust/identity"
	"github.com/soho-iot/zerotrust/trust"
)

func TestStatusCommandReportsDeviceAndTrust(t *testing.T) {
	devices := &fakeDevices{byID: map[string]*identity.Device{
		"DEV_1": {DeviceID: "DEV_1", MAC: "AA:BB", Status: identity.StatusActive},
	}}
	tr := &fakeTrust{
		scores: map[string]int{"DEV_1": 55},
		hist: map[string][]trust.HistoryRow{
			"DEV_1": {{Timestamp: time.Now(), Score: 55, Reason: "anomaly: medium"}},
		},
	}
	a := &App{Devices: devices, Trust: tr}

	if err := StatusCommand(a, StatusCommandInput{DeviceID: "DEV_1"}); err != nil {
		t.Fatalf("StatusCommand: %v", err)
	}
}

func TestStatusCommandErrorsOnUnknownDevice(t *testing.T) {
	a := &App{Devices: &fakeDevices{byID: map[string]*identity.Device{}}}
	if err := StatusCommand(a, StatusCommandInput{DeviceID: "nope"}); err == nil {
		t.Fatal("expected an error for an unknown device")
	}
}

func TestStatusCommandErrorsWithoutDeviceDirectory(t *testing.T) {
	a := &App{}
	if err := StatusCommand(a, StatusCommandInput{DeviceID: "DEV_1"}); err == nil {
		t.Fatal("expected an error when no device directory is configured")
	}
}
