package cmd

import (
	"context"
	"fmt"

	"github.com/billm/baaaht/webbridge/internal/config"
	"github.com/billm/baaaht/webbridge/internal/logger"
	"github.com/billm/baaaht/webbridge/pkg/app"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the host headless with virtual windows",
	Long: `serve opens the default window and relays messages between its page and
the script runtime until the last window closes or a shutdown signal
arrives. SIGHUP reloads the config file and applies new window defaults
and the log level.

With the memory transport, --script runs a WebAssembly guest in process.
Otherwise the script runtime connects over the configured transport, for
example with "webbridge script".`,
	RunE: runServe,
}

func init() {
	addHostFlags(serveCmd)
}

// addHostFlags adds the flags shared by the commands that run a host
func addHostFlags(c *cobra.Command) {
	c.Flags().String("script", "", "WebAssembly guest to run in process (memory transport)")
	c.Flags().String("url", "", "URL of the first window")
	c.Flags().String("title", "", "Title of the first window")
}

// bindHostFlags binds the host flags of c. Commands bind their own flags
// when they run since several commands share the keys.
func bindHostFlags(c *cobra.Command) error {
	for key, name := range map[string]string{
		"script.module_path":   "script",
		"window.default_url":   "url",
		"window.default_title": "title",
	} {
		if err := v.BindPFlag(key, c.Flags().Lookup(name)); err != nil {
			return err
		}
	}
	return nil
}

// hostRun is a bootstrapped host with signal handling and config
// reloading attached
type hostRun struct {
	app      *app.App
	shutdown *app.ShutdownManager
	cfg      *config.Config
}

// startHost loads the config and bootstraps the host
func startHost(ctx context.Context, c *cobra.Command, quietLogs bool) (*hostRun, error) {
	if err := bindHostFlags(c); err != nil {
		return nil, err
	}
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logCfg := cfg.Logging
	if quietLogs && (logCfg.Output == "stdout" || logCfg.Output == "stderr") {
		// the console owns the terminal
		logCfg.Level = "error"
		logCfg.Output = "stderr"
	}
	if err := initLogger(logCfg); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	rootLog.Info("Starting webbridge host",
		"version", app.GetVersion(),
		"transport", cfg.Transport.Kind)

	result, err := app.Bootstrap(ctx, app.BootstrapConfig{
		Config:  *cfg,
		Logger:  rootLog,
		Version: app.DefaultVersion,
	})
	if err != nil {
		rootLog.Error("Failed to bootstrap host", "error", err)
		return nil, err
	}
	a := result.App

	shutdown := app.NewShutdownManager(a, app.DefaultShutdownTimeout, rootLog)
	shutdown.Start()

	if path := configPath(); path != "" {
		reloader := config.NewReloader(path, cfg)
		reloader.SetLogger(rootLog.Slog())
		reloader.AddCallback(func(ctx context.Context, newCfg *config.Config) error {
			applyOverrides(newCfg)
			if !quietLogs {
				level, err := logger.ParseLevel(newCfg.Logging.Level)
				if err != nil {
					return err
				}
				rootLog.SetLevel(level)
			}
			a.SetWindowDefaults(newCfg.Window)
			rootLog.Info("Window defaults reloaded",
				"default_url", newCfg.Window.DefaultURL,
				"default_title", newCfg.Window.DefaultTitle)
			return nil
		})
		reloader.Start()
		shutdown.AddHook(app.BeforeClose, "stop-reloader", func(context.Context) error {
			reloader.Stop()
			return nil
		})
	}

	return &hostRun{app: a, shutdown: shutdown, cfg: cfg}, nil
}

// stop shuts the host down or waits for a signal-initiated shutdown
func (r *hostRun) stop() {
	ctx, cancel := context.WithTimeout(context.Background(), app.DefaultShutdownTimeout)
	defer cancel()

	var err error
	if r.shutdown.IsShuttingDown() {
		err = r.shutdown.WaitCompletion(ctx)
	} else {
		err = r.shutdown.ShutdownAndWait(ctx, "host finished")
	}
	if err != nil {
		rootLog.Warn("Shutdown did not complete", "error", err)
	} else if err := r.shutdown.Err(); err != nil {
		rootLog.Warn("Shutdown finished with errors", "error", err)
	}
	r.shutdown.Stop()
	rootLog.Info("webbridge shutdown complete", "stats", r.app.Stats().String())
}

func runServe(c *cobra.Command, args []string) error {
	run, err := startHost(c.Context(), c, false)
	if err != nil {
		return err
	}
	defer run.stop()
	a := run.app

	rootLog.Info("Host is running. Press Ctrl+C to stop.")

	guest := a.GuestDone()
	for {
		select {
		case <-a.Done():
			rootLog.Info("Last window closed")
			return nil
		case <-run.shutdown.Completed():
			return nil
		case err := <-guest:
			if err != nil {
				rootLog.Warn("Guest exited with error", "error", err)
			}
			// the windows stay open after the guest exits
			guest = nil
		}
	}
}
