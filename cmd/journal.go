package cmd

import (
	"fmt"

	"github.com/billm/baaaht/webbridge/pkg/host"
	"github.com/billm/baaaht/webbridge/pkg/journal"
	"github.com/billm/baaaht/webbridge/pkg/types"
	"github.com/spf13/cobra"
)

var (
	journalLimit  int
	journalKind   string
	journalWindow string
)

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Show events recorded in the journal",
	Long: `journal prints the newest dispatcher events recorded in the sqlite journal
configured with --journal or journal.path, oldest first.`,
	Args: cobra.NoArgs,
	RunE: runJournal,
}

func init() {
	journalCmd.Flags().IntVarP(&journalLimit, "limit", "n", 50, "Number of events to show")
	journalCmd.Flags().StringVar(&journalKind, "kind", "",
		"Only show events of this kind (window_opened, window_closed, command, to_script, broadcast)")
	journalCmd.Flags().StringVar(&journalWindow, "window", "", "Only show events of this window ID")
}

func runJournal(c *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if cfg.Journal.Path == "" {
		return fmt.Errorf("no journal configured, set --journal or journal.path")
	}

	j, err := journal.Open(cfg.Journal.Path, cfg.Journal.QueueSize, rootLog)
	if err != nil {
		return err
	}
	defer j.Close()

	entries, err := j.Recent(c.Context(), journal.Query{
		Kind:     host.EventKind(journalKind),
		WindowID: types.NewID(journalWindow),
		Limit:    journalLimit,
	})
	if err != nil {
		return err
	}

	out := c.OutOrStdout()
	if len(entries) == 0 {
		fmt.Fprintln(out, "no events recorded")
		return nil
	}
	for _, e := range entries {
		fmt.Fprintln(out, e.String())
	}
	return nil
}
