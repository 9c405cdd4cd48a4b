package cli

import (
	"fmt"
	"time"

	"github.com/alecthomas/kingpin/v2"

	"github.com/soho-iot/zerotrust/breakglass"
)

// BreakglassGrantCommandInput is the parsed input for the breakglass-grant
// command.
type BreakglassGrantCommandInput struct {
	Operator string
	DeviceID string
	Reason   string
}

// BreakglassGrantCommandOutput is the JSON printed on success.
type BreakglassGrantCommandOutput struct {
	ID             string    `json:"id"`
	Operator       string    `json:"operator"`
	DeviceID       string    `json:"device_id"`
	ExpiresAt      time.Time `json:"expires_at"`
	ShouldEscalate bool      `json:"should_escalate"`
}

// ConfigureBreakglassGrantCommand registers the breakglass-grant command.
func ConfigureBreakglassGrantCommand(app *kingpin.Application, a *App) {
	input := BreakglassGrantCommandInput{}
	cmd := app.Command("breakglass-grant", "Grant a temporary quarantine override for a device")

	cmd.Flag("operator", "Operator requesting the override").Required().StringVar(&input.Operator)
	cmd.Flag("device-id", "Device to override").Required().StringVar(&input.DeviceID)
	cmd.Flag("reason", "Justification recorded with the grant").Required().StringVar(&input.Reason)

	cmd.Action(func(*kingpin.ParseContext) error {
		err := BreakglassGrantCommand(a, input, time.Now())
		app.FatalIfError(err, "breakglass-grant")
		return nil
	})
}

// BreakglassGrantCommand checks the rate limit and, if allowed, records a
// new override event.
func BreakglassGrantCommand(a *App, input BreakglassGrantCommandInput, now time.Time) error {
	if a.Grants == nil {
		return fmt.Errorf("breakglass-grant: no grant store configured")
	}
	policy := a.Policy
	if policy == (breakglass.Policy{}) {
		policy = breakglass.DefaultPolicy()
	}

	result, err := breakglass.CheckRateLimit(a.Grants, policy, input.Operator, input.DeviceID, now)
	if err != nil {
		return fmt.Errorf("breakglass-grant: %w", err)
	}
	if !result.Allowed {
		return fmt.Errorf("breakglass-grant: denied: %s", result.Reason)
	}

	event := breakglass.Event{
		ID:        fmt.Sprintf("%s-%d", input.DeviceID, now.UnixNano()),
		Operator:  input.Operator,
		DeviceID:  input.DeviceID,
		Reason:    input.Reason,
		Status:    breakglass.StatusActive,
		CreatedAt: now,
		ExpiresAt: now.Add(policy.DefaultDuration),
	}
	if err := a.Grants.Append(event); err != nil {
		return fmt.Errorf("breakglass-grant: %w", err)
	}

	return printJSON(BreakglassGrantCommandOutput{
		ID:             event.ID,
		Operator:       event.Operator,
		DeviceID:       event.DeviceID,
		ExpiresAt:      event.ExpiresAt,
		ShouldEscalate: result.ShouldEscalate,
	})
}
