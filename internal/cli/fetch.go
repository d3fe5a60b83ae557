package cli

import (
	"github.com/spf13/cobra"

	"trm-report/internal/app"
)

var (
	fetchCSVPath string
	fetchPNGPath string
	fetchChart   string
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download the normalized daily series as CSV and/or PNG chart",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.FetchOptions{
			CSVPath:   fetchCSVPath,
			PNGPath:   fetchPNGPath,
			ChartMode: fetchChart,
		}

		return getApp().Fetch(cmd.Context(), opts)
	},
}

func init() {
	fetchCmd.Flags().StringVar(&fetchCSVPath, "csv", "", "Path to write CSV data (stdout when empty)")
	fetchCmd.Flags().StringVar(&fetchPNGPath, "png", "", "Path to write PNG chart")
	fetchCmd.Flags().StringVar(&fetchChart, "chart", "", "Chart mode for --png (defaults to config)")
}
