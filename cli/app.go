// Package cli implements the thin operator command line: approve/reject
// pending devices, inspect device status, and grant/list/close
// quarantine-override (breakglass) events. Every command prints a single
// JSON object or array to stdout on success, following the teacher's
// Configure<X>Command/<X>Command(ctx, input) split so command logic stays
// testable without invoking kingpin at all.
package cli

import (
	"github.com/alecthomas/kingpin/v2"

	"github.com/soho-iot/zerotrust/admission"
	"github.com/soho-iot/zerotrust/breakglass"
	"github.com/soho-iot/zerotrust/identity"
	"github.com/soho-iot/zerotrust/trust"
)

// AdmissionQueue is the narrow admission.Store view the approve/reject/status
// commands need.
type AdmissionQueue interface {
	GetByMAC(mac string) (*admission.PendingAdmission, error)
	Approve(mac, notes string) error
	Reject(mac, notes string) error
	ListPending() ([]*admission.PendingAdmission, error)
}

// DeviceDirectory is the narrow identity.Store view the status command
// needs.
type DeviceDirectory interface {
	GetDevice(deviceID string) (*identity.Device, error)
}

// TrustLookup is the narrow trust.Scorer view the status command needs.
type TrustLookup interface {
	Score(deviceID string) (int, bool)
	History(deviceID string) []trust.HistoryRow
}

// App wires the collaborators every command reads or mutates. Every field
// is optional; a command reports an error rather than panicking if a
// dependency it needs wasn't wired.
type App struct {
	Admission AdmissionQueue
	Devices   DeviceDirectory
	Trust     TrustLookup
	Grants    breakglass.Store
	Policy    breakglass.Policy
}

// Configure registers every operator command on app.
func Configure(app *kingpin.Application, a *App) {
	ConfigureApproveCommand(app, a)
	ConfigureDenyCommand(app, a)
	ConfigureStatusCommand(app, a)
	ConfigureBreakglassGrantCommand(app, a)
	ConfigureBreakglassListCommand(app, a)
	ConfigureBreakglassCloseCommand(app, a)
}
