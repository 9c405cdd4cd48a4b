package cli

import (
	"fmt"
	"time"

	"github.com/alecthomas/kingpin/v2"
)

// StatusCommandInput is the parsed input for the status command.
type StatusCommandInput struct {
	DeviceID string
}

// TrustHistoryEntry is one row of trust score history in status output.
type TrustHistoryEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Score     int       `json:"score"`
	Reason    string    `json:"reason"`
}

// StatusCommandOutput is the JSON printed on success.
type StatusCommandOutput struct {
	DeviceID    string              `json:"device_id"`
	MAC         string              `json:"mac"`
	DeviceState string              `json:"device_status"`
	TrustScore  int                 `json:"trust_score"`
	History     []TrustHistoryEntry `json:"trust_history,omitempty"`
}

// ConfigureStatusCommand registers the status command.
func ConfigureStatusCommand(app *kingpin.Application, a *App) {
	input := StatusCommandInput{}
	cmd := app.Command("status", "Show a device's current status and trust history")

	cmd.Arg("device-id", "Device ID to inspect").Required().StringVar(&input.DeviceID)

	cmd.Action(func(*kingpin.ParseContext) error {
		err := StatusCommand(a, input)
		app.FatalIfError(err, "status")
		return nil
	})
}

// StatusCommand reports a device's registry status and trust history.
func StatusCommand(a *App, input StatusCommandInput) error {
	if a.Devices == nil {
		return fmt.Errorf("status: no device directory configured")
	}
	device, err := a.Devices.GetDevice(input.DeviceID)
	if err != nil {
		return fmt.Errorf("status: %w", err)
	}

	output := StatusCommandOutput{
		DeviceID:    device.DeviceID,
		MAC:         device.MAC,
		DeviceState: string(device.Status),
	}

	if a.Trust != nil {
		score, ok := a.Trust.Score(input.DeviceID)
		if ok {
			output.TrustScore = score
		}
		for _, row := range a.Trust.History(input.DeviceID) {
			output.History = append(output.History, TrustHistoryEntry{Timestamp: row.Timestamp, Score: row.Score, Reason: row.Reason})
		}
	}

	return printJSON(output)
}
