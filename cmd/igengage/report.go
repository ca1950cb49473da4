package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"igengage/pkg/config"
	"igengage/pkg/report"
	"igengage/pkg/ui"
)

var (
	// Report command flags
	reportWeekly bool
	reportDate   string
	reportJSON   bool
)

// reportCmd represents the report command
var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Summarize recorded engagement activity",
	Long: `Summarize the engagement activity recorded by previous sessions.

By default the summary covers today. Use --date for another day or --weekly
for the trailing seven days.`,
	Example: `  # Today's activity
  igengage report

  # A specific day
  igengage report --date 2025-06-01

  # The trailing week, saved as JSON next to the CSV records
  igengage report --weekly --json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		runReport(cmd, args)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(reportCmd)

	reportCmd.Flags().BoolVar(&reportWeekly, "weekly", false, "summarize the trailing seven days")
	reportCmd.Flags().StringVar(&reportDate, "date", "", "day to summarize (YYYY-MM-DD, default today)")
	reportCmd.Flags().BoolVar(&reportJSON, "json", false, "also save the summary as JSON")
	reportCmd.Flags().StringVar(&reportDir, "report-dir", "", "directory holding activity reports")
}

func runReport(cmd *cobra.Command, args []string) {
	flags := make(map[string]interface{})
	if reportDir != "" {
		flags["report-dir"] = reportDir
	}

	cfg, err := config.Load(configFile, flags)
	if err != nil {
		ui.PrintError("Failed to load configuration", err.Error())
		os.Exit(1)
	}

	reporter := report.NewReporter(cfg.Report.Directory)

	var summary *report.Summary
	var name string
	if reportWeekly {
		summary, err = reporter.Weekly(time.Now())
		name = fmt.Sprintf("weekly_report_%s.json", time.Now().Format("2006-01-02"))
	} else {
		day := time.Now()
		if reportDate != "" {
			day, err = time.Parse("2006-01-02", reportDate)
			if err != nil {
				ui.PrintError("Invalid date", reportDate)
				os.Exit(1)
			}
		}
		summary, err = reporter.Daily(day)
		name = fmt.Sprintf("daily_report_%s.json", day.Format("2006-01-02"))
	}
	if err != nil {
		ui.PrintError("Failed to build report", err.Error())
		os.Exit(1)
	}

	report.RenderTable(os.Stdout, summary)

	if reportJSON {
		path, err := reporter.SaveJSON(summary, name)
		if err != nil {
			ui.PrintError("Failed to save JSON report", err.Error())
			os.Exit(1)
		}
		ui.PrintInfo("Saved", path)
	}
}
