package cmd

import (
	"fmt"
	"os"
	"time"

	"backupd/internal/analyzer"

	"github.com/spf13/cobra"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <name>",
	Short: "Rebuild the slow-path report from existing logs",
	Long: `Re-analyzes the named backup's on-disk log within its report horizon
and writes a fresh report, without running a backup.`,
	Args: cobra.ExactArgs(1),
	RunE: analyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
}

func analyze(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}

	backup, ok := cfg.Backup(args[0])
	if !ok {
		return fmt.Errorf("unknown backup: %s", args[0])
	}

	an, err := analyzer.New(cfg.Analysis)
	if err != nil {
		return err
	}

	reports, err := newReportWriter(cfg, logger)
	if err != nil {
		return err
	}

	// An absent log is not an error: the report is simply empty
	logText := ""
	if data, err := os.ReadFile(cfg.LogFile(backup.Name)); err == nil {
		logText = string(data)
	}

	rep := an.Analyze(backup.Name, logText, "", backup.ReportHorizon(), time.Now())

	path, err := reports.Write(cmd.Context(), rep)
	if err != nil {
		return err
	}
	fmt.Printf("report written to %s (%d entries)\n", path, len(rep.Entries))
	return nil
}
