package cli

import (
	"fmt"
	"time"

	"github.com/alecthomas/kingpin/v2"

	"github.com/soho-iot/zerotrust/breakglass"
)

// BreakglassListCommandInput is the parsed input for the
// breakglass-list command.
type BreakglassListCommandInput struct {
	Operator string
	DeviceID string
}

// BreakglassEventSummary is one event in the list output.
type BreakglassEventSummary struct {
	ID        string    `json:"id"`
	Operator  string    `json:"operator"`
	DeviceID  string    `json:"device_id"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// BreakglassListCommandOutput is the JSON printed on success.
type BreakglassListCommandOutput struct {
	Events []BreakglassEventSummary `json:"events"`
}

// ConfigureBreakglassListCommand registers the breakglass-list command.
func ConfigureBreakglassListCommand(app *kingpin.Application, a *App) {
	input := BreakglassListCommandInput{}
	cmd := app.Command("breakglass-list", "List quarantine-override events")

	cmd.Flag("operator", "Filter by operator").StringVar(&input.Operator)
	cmd.Flag("device-id", "Filter by device").StringVar(&input.DeviceID)

	cmd.Action(func(*kingpin.ParseContext) error {
		err := BreakglassListCommand(a, input)
		app.FatalIfError(err, "breakglass-list")
		return nil
	})
}

// BreakglassListCommand lists override events, preferring a device filter
// over an operator filter when both are given.
func BreakglassListCommand(a *App, input BreakglassListCommandInput) error {
	if a.Grants == nil {
		return fmt.Errorf("breakglass-list: no grant store configured")
	}

	var events []breakglass.Event
	var err error
	switch {
	case input.DeviceID != "":
		events, err = a.Grants.ListByDevice(input.DeviceID)
	default:
		events, err = a.Grants.ListByOperator(input.Operator)
	}
	if err != nil {
		return fmt.Errorf("breakglass-list: %w", err)
	}

	out := BreakglassListCommandOutput{Events: make([]BreakglassEventSummary, 0, len(events))}
	for _, e := range events {
		out.Events = append(out.Events, BreakglassEventSummary{
			ID:        e.ID,
			Operator:  e.Operator,
			DeviceID:  e.DeviceID,
			Status:    string(e.Status),
			CreatedAt: e.CreatedAt,
			ExpiresAt: e.ExpiresAt,
		})
	}
	return printJSON(out)
}
