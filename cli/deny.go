package cli

import (
	"fmt"

	"github.com/alecthomas/kingpin/v2"
)

// DenyCommandInput is the parsed input for the deny command.
type DenyCommandInput struct {
	MAC   string
	Notes string
}

// DenyCommandOutput is the JSON printed on success.
type DenyCommandOutput struct {
	MAC    string `json:"mac"`
	Status string `json:"status"`
}

// ConfigureDenyCommand registers the deny command.
func ConfigureDenyCommand(app *kingpin.Application, a *App) {
	input := DenyCommandInput{}
	cmd := app.Command("deny", "Reject a device pending admission")

	cmd.Arg("mac", "MAC address of the pending device").Required().StringVar(&input.MAC)
	cmd.Flag("notes", "Operator notes recorded with the decision").StringVar(&input.Notes)

	cmd.Action(func(*kingpin.ParseContext) error {
		err := DenyCommand(a, input)
		app.FatalIfError(err, "deny")
		return nil
	})
}

// DenyCommand rejects the pending admission for input.MAC.
func DenyCommand(a *App, input DenyCommandInput) error {
	if a.Admission == nil {
		return fmt.Errorf("deny: no admission queue configured")
	}
	if _, err := a.Admission.GetByMAC(input.MAC); err != nil {
		return fmt.Errorf("deny: %w", err)
	}
	if err := a.Admission.Reject(input.MAC, input.Notes); err != nil {
		return fmt.Errorf("deny: %w", err)
	}
	return printJSON(DenyCommandOutput{MAC: input.MAC, Status: "rejected"})
}
