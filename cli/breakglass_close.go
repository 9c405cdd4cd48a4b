package cli

import (
	"fmt"
	"time"

	"github.com/alecthomas/kingpin/v2"
)

// BreakglassCloseCommandInput is the parsed input for the
// breakglass-close command.
type BreakglassCloseCommandInput struct {
	EventID string
}

// BreakglassCloseCommandOutput is the JSON printed on success.
type BreakglassCloseCommandOutput struct {
	ID       string    `json:"id"`
	Status   string    `json:"status"`
	ClosedAt time.Time `json:"closed_at"`
}

// ConfigureBreakglassCloseCommand registers the breakglass-close command.
func ConfigureBreakglassCloseCommand(app *kingpin.Application, a *App) {
	input := BreakglassCloseCommandInput{}
	cmd := app.Command("breakglass-close", "Close an active quarantine-override event")

	cmd.Arg("event-id", "Event ID to close").Required().StringVar(&input.EventID)

	cmd.Action(func(*kingpin.ParseContext) error {
		err := BreakglassCloseCommand(a, input, time.Now())
		app.FatalIfError(err, "breakglass-close")
		return nil
	})
}

// BreakglassCloseCommand closes the named event.
func BreakglassCloseCommand(a *App, input BreakglassCloseCommandInput, now time.Time) error {
	if a.Grants == nil {
		return fmt.Errorf("breakglass-close: no grant store configured")
	}
	if err := a.Grants.Close(input.EventID, now); err != nil {
		return fmt.Errorf("breakglass-close: %w", err)
	}
	return printJSON(BreakglassCloseCommandOutput{ID: input.EventID, Status: "closed", ClosedAt: now})
}
