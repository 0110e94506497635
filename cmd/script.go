package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/billm/baaaht/webbridge/pkg/app"
	"github.com/billm/baaaht/webbridge/pkg/script"
	"github.com/spf13/cobra"
)

var scriptCmd = &cobra.Command{
	Use:   "script <module.wasm> [args]...",
	Short: "Run a WebAssembly guest as the script runtime of a running host",
	Long: `script connects to a running host over the configured transport and runs
a WebAssembly guest on it. The guest imports op_ipc_send and op_ipc_recv
from the "webview" module to exchange messages with the host's pages, and
exports _start or run.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runScript,
}

func runScript(c *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := initLogger(cfg.Logging); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	ctx, stop := signal.NotifyContext(c.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ep, err := app.DialScriptTransport(ctx, cfg.Transport, rootLog)
	if err != nil {
		return err
	}
	defer ep.Close()

	opts := script.OptionsFromConfig(cfg.Script)
	opts.Args = args
	rootLog.Info("Running guest", "module_path", args[0], "transport", cfg.Transport.Kind)
	return app.RunGuest(ctx, ep.Transport, *cfg, args[0], opts, rootLog)
}
