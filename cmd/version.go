package cmd

import (
	"fmt"

	"github.com/billm/baaaht/webbridge/pkg/app"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(c *cobra.Command, args []string) {
		info := app.GetVersionInfo()
		fmt.Fprintf(c.OutOrStdout(), "webbridge version %s (commit %s, built %s)\n",
			info["version"], info["git_commit"], info["build_time"])
	},
}
