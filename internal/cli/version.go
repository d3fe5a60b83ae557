package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"trm-report/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print build information",
	Run: func(cmd *cobra.Command, args []string) {
		info := version.Get()
		fmt.Fprintf(cmd.OutOrStdout(), "%s\ncommit: %s\nbuilt: %s\n", version.String(), info.Commit, info.BuildDate)
	},
}
