package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"backupd/internal/analyzer"
	"backupd/internal/msg"
	"backupd/internal/runner"
	"backupd/internal/worker"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the background backup scheduler",
	Long: `Starts the worker loop and keeps it running until interrupted.
Status events are consumed from the event stream and logged.`,
	RunE: runDaemon,
}

func init() {
	rootCmd.AddCommand(daemonCmd)
}

func runDaemon(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}

	an, err := analyzer.New(cfg.Analysis)
	if err != nil {
		return err
	}

	reports, err := newReportWriter(cfg, logger)
	if err != nil {
		return err
	}

	w := worker.New(cfg, runner.New(cfg, logger), an, reports, logger)

	go w.Run(context.Background())

	// Translate interrupt signals into a Quit command; the worker finishes
	// any in-flight run before exiting.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info().Msg("signal received, shutting down")
		w.Commands().Push(msg.Quit{})
	}()

	drainEvents(w.Events(), logger)
	return nil
}

// drainEvents is the daemon's presentation loop: it consumes status events
// and logs them until the worker terminates. It never calls into the worker
// beyond the two queues.
func drainEvents(events *msg.Queue[msg.Event], logger zerolog.Logger) {
	for {
		ev, ok := events.Poll(time.Second)
		if !ok {
			continue
		}

		switch e := ev.(type) {
		case msg.Started:
			logger.Info().Str("backup", e.Config).Msg("backup started")
		case msg.Succeeded:
			logger.Info().Str("backup", e.Config).Msg("backup succeeded")
		case msg.Failed:
			logger.Error().Str("backup", e.Config).Str("summary", e.Summary).Msg("backup failed")
		case msg.ReportReady:
			logger.Info().
				Str("backup", e.Config).
				Str("path", e.Path).
				Int("entries", len(e.Report.Entries)).
				Msg("report ready")
		case msg.Terminated:
			logger.Info().Msg("scheduler stopped")
			return
		}
	}
}
