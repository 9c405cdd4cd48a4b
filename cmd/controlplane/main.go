package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/alecthomas/kingpin/v2"

	"github.com/soho-iot/zerotrust/admission"
	"github.com/soho-iot/zerotrust/breakglass"
	"github.com/soho-iot/zerotrust/cli"
	"github.com/soho-iot/zerotrust/config"
	"github.com/soho-iot/zerotrust/identity"
	"github.com/soho-iot/zerotrust/supervisor"
	"github.com/soho-iot/zerotrust/trust"
)

// Version is provided at compile time.
var Version = "dev"

// cliCommands lists every operator subcommand registered by cli.Configure,
// as opposed to the default "serve" command.
var cliCommands = map[string]bool{
	"approve":          true,
	"deny":             true,
	"status":           true,
	"breakglass-grant": true,
	"breakglass-list":  true,
	"breakglass-close": true,
}

func main() {
	app := kingpin.New("controlplane", "Zero-trust IoT LAN security control plane")
	app.Version(Version)

	configPath := app.Flag("config", "path to a YAML configuration file").String()

	serveCmd := app.Command("serve", "start the control plane (Supervisor + background workers)").Default()

	cliApp := &cli.App{}
	cli.Configure(app, cliApp)

	var cliStores *cliStoreHandles
	app.PreAction(func(*kingpin.ParseContext) error {
		if isServeInvocation(os.Args[1:]) {
			return nil
		}
		cfg, err := config.Load(*configPath)
		if err != nil {
			return fmt.Errorf("loading configuration: %w", err)
		}
		cliStores, err = openCLIStores(cfg)
		if err != nil {
			return fmt.Errorf("opening data stores: %w", err)
		}
		cliApp.Admission = cliStores.admission
		cliApp.Devices = cliStores.identity
		cliApp.Trust = cliStores.trust
		cliApp.Grants = cliStores.grants
		cliApp.Policy = breakglass.DefaultPolicy()
		return nil
	})

	serveCmd.Action(func(*kingpin.ParseContext) error {
		return serve(*configPath)
	})

	kingpin.MustParse(app.Parse(os.Args[1:]))

	if cliStores != nil {
		cliStores.Close()
	}
}

// isServeInvocation reports whether args select the default serve command
// rather than one of cli's operator subcommands. Every operator subcommand
// opens its own short-lived handle on the same bbolt files serve holds open
// for the process lifetime, so the two must never run against the same
// data_dir at once; this split keeps a bare "controlplane" invocation (or
// "controlplane serve") from paying for stores it won't use.
func isServeInvocation(args []string) bool {
	for i := 0; i < len(args); i++ {
		a := args[i]
		if a == "--config" {
			i++ // skip the flag's value
			continue
		}
		if strings.HasPrefix(a, "-") {
			continue
		}
		return !cliCommands[a]
	}
	return true
}

// cliStoreHandles holds the data-store handles an operator subcommand reads
// or mutates. It is distinct from supervisor.Supervisor: commands need only
// C1, C3, and C8, not the full component graph or any background worker.
type cliStoreHandles struct {
	identity  *identity.BoltStore
	admission *admission.BoltStore
	trust     *trust.Scorer
	grants    breakglass.Store
}

func openCLIStores(cfg config.Config) (*cliStoreHandles, error) {
	identityStore, err := identity.Open(filepath.Join(cfg.DataDir, "identity.db"))
	if err != nil {
		return nil, fmt.Errorf("open identity store: %w", err)
	}

	admissionQueue, err := admission.Open(filepath.Join(cfg.DataDir, "admission.db"))
	if err != nil {
		identityStore.Close()
		return nil, fmt.Errorf("open admission queue: %w", err)
	}

	scorer := trust.New(identityStore)
	if err := scorer.Hydrate(); err != nil {
		identityStore.Close()
		admissionQueue.Close()
		return nil, fmt.Errorf("hydrate trust scorer: %w", err)
	}

	return &cliStoreHandles{
		identity:  identityStore,
		admission: admissionQueue,
		trust:     scorer,
		grants:    breakglass.NewMemoryStore(),
	}, nil
}

func (h *cliStoreHandles) Close() {
	h.admission.Close()
	h.identity.Close()
}

// serve loads configuration, constructs the Supervisor, and blocks until
// an OS signal requests shutdown. There is no HTTP listener: the core's
// southbound and operator surfaces are the Rule Installer capability and
// this process's CLI subcommands, respectively (spec.md Non-goals).
func serve(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	s, err := supervisor.New(cfg)
	if err != nil {
		return fmt.Errorf("starting control plane: %w", err)
	}
	defer s.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return s.Run(ctx)
}
