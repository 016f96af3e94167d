package cmd

import (
	"context"
	"fmt"
	"os"

	"backupd/internal/analyzer"
	"backupd/internal/runner"

	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run <name>",
	Short: "Run one backup immediately and exit",
	Long: `Runs the named backup once, outside the scheduler, then analyzes the
log and writes the slow-path report. The exit code reflects the backup
outcome.`,
	Args: cobra.ExactArgs(1),
	RunE: runOnce,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runOnce(cmd *cobra.Command, args []string) error {
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

	ctx := context.Background()
	rec := runner.New(cfg, logger).Run(ctx, backup)

	logText := rec.Output
	if data, err := os.ReadFile(cfg.LogFile(backup.Name)); err == nil {
		logText = string(data)
	}
	rep := an.Analyze(backup.Name, logText, rec.Output, backup.ReportHorizon(), rec.FinishedAt)

	path, err := reports.Write(ctx, rep)
	if err != nil {
		return err
	}
	fmt.Printf("report written to %s\n", path)

	if rec.Status != runner.StatusSucceeded {
		return fmt.Errorf("backup %s failed: %s", backup.Name, rec.Summary())
	}
	return nil
}
