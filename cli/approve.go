package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/alecthomas/kingpin/v2"
)

// ApproveCommandInput is the parsed input for the approve command.
type ApproveCommandInput struct {
	MAC   string
	Notes string
}

// ApproveCommandOutput is the JSON printed on success.
type ApproveCommandOutput struct {
	MAC    string `json:"mac"`
	Status string `json:"status"`
}

// ConfigureApproveCommand registers the approve command.
func ConfigureApproveCommand(app *kingpin.Application, a *App) {
	input := ApproveCommandInput{}
	cmd := app.Command("approve", "Approve a device pending admission")

	cmd.Arg("mac", "MAC address of the pending device").Required().StringVar(&input.MAC)
	cmd.Flag("notes", "Operator notes recorded with the decision").StringVar(&input.Notes)

	cmd.Action(func(*kingpin.ParseContext) error {
		err := ApproveCommand(a, input)
		app.FatalIfError(err, "approve")
		return nil
	})
}

// ApproveCommand approves the pending admission for input.MAC.
func ApproveCommand(a *App, input ApproveCommandInput) error {
	if a.Admission == nil {
		return fmt.Errorf("approve: no admission queue configured")
	}
	if _, err := a.Admission.GetByMAC(input.MAC); err != nil {
		return fmt.Errorf("approve: %w", err)
	}
	if err := a.Admission.Approve(input.MAC, input.Notes); err != nil {
		return fmt.Errorf("approve: %w", err)
	}
	return printJSON(ApproveCommandOutput{MAC: input.MAC, Status: "approved"})
}

func printJSON(v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal output: %w", err)
	}
	fmt.Fprintln(os.Stdout, string(b))
	return nil
}
