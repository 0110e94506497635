package cmd

import (
	"context"

	"github.com/billm/baaaht/webbridge/pkg/app"
	"github.com/billm/baaaht/webbridge/pkg/tui"
	"github.com/spf13/cobra"
)

var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Run the host with an interactive terminal console",
	Long: `console runs the same host as serve and shows it in a terminal console:
the open windows, the messages relayed between pages and the script, and an
input line that drives the selected page. Type /help for the commands.`,
	RunE: runConsole,
}

func init() {
	addHostFlags(consoleCmd)
}

func runConsole(c *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(c.Context())
	defer cancel()

	run, err := startHost(ctx, c, true)
	if err != nil {
		return err
	}
	defer run.stop()

	// a shutdown signal ends the console too
	go func() {
		select {
		case <-run.shutdown.Completed():
			cancel()
		case <-ctx.Done():
		}
	}()

	return tui.Run(ctx, run.app.Dispatcher(), *run.cfg, "v"+app.GetVersion(), rootLog)
}
