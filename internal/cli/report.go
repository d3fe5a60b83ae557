package cli

import (
	"github.com/spf13/cobra"

	"trm-report/internal/app"
)

var (
	reportFormat string
	reportChart  string
	reportOut    string
	reportNotify bool
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Generate a dated report file (pdf, docx or xlsx)",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.ReportOptions{
			Format:    reportFormat,
			ChartMode: reportChart,
			OutDir:    reportOut,
			Notify:    reportNotify,
		}

		_, err := getApp().Report(cmd.Context(), opts)
		return err
	},
}

func init() {
	reportCmd.Flags().StringVar(&reportFormat, "format", "", "Report format: pdf, docx or xlsx (defaults to config)")
	reportCmd.Flags().StringVar(&reportChart, "chart", "", "Chart mode: line, direction or annual (defaults to config)")
	reportCmd.Flags().StringVar(&reportOut, "out", "", "Output directory (defaults to report.output_dir)")
	reportCmd.Flags().BoolVar(&reportNotify, "notify", false, "Send the headline through Telegram after writing")
}
