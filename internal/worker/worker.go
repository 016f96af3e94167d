// Package worker drives the backup run loop for the lifetime of the
// process. It owns the schedule state, invokes the runner and analyzer, and
// talks to the presentation layer exclusively through the command and event
// queues.
package worker

import (
	"context"
	"os"
	"time"

	"backupd/internal/analyzer"
	"backupd/internal/config"
	"backupd/internal/msg"
	"backupd/internal/runner"

	"github.com/rs/zerolog"
)

// DefaultPollCeiling bounds the command-queue wait so quit and run-now
// commands are never delayed longer than this, regardless of how far away
// the next scheduled run is.
const DefaultPollCeiling = time.Second

// BackupRunner executes one backup synchronously. Satisfied by
// *runner.Runner.
type BackupRunner interface {
	Run(ctx context.Context, backup config.BackupConfig) *runner.RunRecord
}

// ReportWriter persists a generated report. Satisfied by *report.Writer.
type ReportWriter interface {
	Write(ctx context.Context, rep *analyzer.Report) (string, error)
}

// Worker is the background scheduler. It runs on exactly one goroutine; the
// schedule state and forced set are never shared outside it.
type Worker struct {
	cfg      *config.Config
	runner   BackupRunner
	analyzer *analyzer.Analyzer
	reports  ReportWriter
	logger   zerolog.Logger

	commands *msg.Queue[msg.Command]
	events   *msg.Queue[msg.Event]

	lastRun  map[string]time.Time
	forced   map[string]bool
	quitting bool

	now         func() time.Time
	pollCeiling time.Duration
}

// New creates a Worker wired to fresh command and event queues.
func New(cfg *config.Config, run BackupRunner, an *analyzer.Analyzer, reports ReportWriter, logger zerolog.Logger) *Worker {
	return &Worker{
		cfg:         cfg,
		runner:      run,
		analyzer:    an,
		reports:     reports,
		logger:      logger,
		commands:    msg.NewQueue[msg.Command](),
		events:      msg.NewQueue[msg.Event](),
		lastRun:     make(map[string]time.Time),
		forced:      make(map[string]bool),
		now:         time.Now,
		pollCeiling: DefaultPollCeiling,
	}
}

// Commands returns the queue the presentation layer pushes commands onto.
func (w *Worker) Commands() *msg.Queue[msg.Command] {
	return w.commands
}

// Events returns the queue the presentation layer drains status events from.
func (w *Worker) Events() *msg.Queue[msg.Event] {
	return w.events
}

// Run executes the worker loop until a Quit command arrives. Each iteration
// waits on the command queue with a bounded timeout, handles any pending
// commands, then starts at most one due backup. The only suspension points
// are the command wait and the synchronous backup run itself.
func (w *Worker) Run(ctx context.Context) {
	w.logger.Info().Int("backups", len(w.cfg.Backups)).Msg("worker started")

	for {
		if cmd, ok := w.commands.Poll(w.pollWait(w.now())); ok {
			w.handleCommand(cmd)
			for {
				cmd, ok := w.commands.TryPop()
				if !ok {
					break
				}
				w.handleCommand(cmd)
			}
		}

		if w.quitting {
			w.events.Push(msg.Terminated{})
			w.logger.Info().Msg("worker terminated")
			return
		}

		if backup, ok := w.nextDue(w.now()); ok {
			w.runOne(ctx, backup)
		}
	}
}

func (w *Worker) handleCommand(cmd msg.Command) {
	switch c := cmd.(type) {
	case msg.RunNow:
		if _, ok := w.cfg.Backup(c.Config); !ok {
			w.logger.Warn().Str("backup", c.Config).Msg("run-now for unknown backup ignored")
			return
		}
		w.logger.Info().Str("backup", c.Config).Msg("run-now requested")
		w.forced[c.Config] = true
	case msg.Quit:
		w.logger.Info().Msg("quit requested")
		w.quitting = true
	default:
		w.logger.Warn().Type("command", cmd).Msg("unknown command ignored")
	}
}

// pollWait returns how long to block on the command queue: the time until
// the next backup becomes due, capped by the poll ceiling.
func (w *Worker) pollWait(now time.Time) time.Duration {
	wait := w.pollCeiling
	for _, backup := range w.cfg.Backups {
		until := w.untilDue(backup, now)
		if until < wait {
			wait = until
		}
	}
	if wait < 0 {
		return 0
	}
	return wait
}

// untilDue returns how long until a backup is due; zero or negative means
// due now. A forced or never-run backup is always due.
func (w *Worker) untilDue(backup config.BackupConfig, now time.Time) time.Duration {
	if w.forced[backup.Name] {
		return 0
	}
	last, ok := w.lastRun[backup.Name]
	if !ok {
		return 0
	}
	return backup.Interval() - now.Sub(last)
}

// nextDue returns the first due backup in declared order. Declared order is
// the deterministic tie-break when several backups are due at once.
func (w *Worker) nextDue(now time.Time) (config.BackupConfig, bool) {
	for _, backup := range w.cfg.Backups {
		if w.untilDue(backup, now) <= 0 {
			return backup, true
		}
	}
	return config.BackupConfig{}, false
}

// runOne runs a single backup to completion, updates the schedule state and
// emits the transition events. A failed run still advances the schedule so
// the next attempt waits a full interval instead of retrying immediately.
func (w *Worker) runOne(ctx context.Context, backup config.BackupConfig) {
	w.events.Push(msg.Started{Config: backup.Name})

	rec := w.runner.Run(ctx, backup)

	delete(w.forced, backup.Name)
	w.lastRun[backup.Name] = w.now()

	if rec.Status == runner.StatusSucceeded {
		w.events.Push(msg.Succeeded{Config: backup.Name})
		w.logger.Info().Str("backup", backup.Name).Msg("backup succeeded")
	} else {
		summary := rec.Summary()
		w.events.Push(msg.Failed{Config: backup.Name, Summary: summary})
		w.logger.Error().Str("backup", backup.Name).Str("summary", summary).Msg("backup failed")
	}
	if rec.HookWarning != "" {
		w.logger.Warn().Str("backup", backup.Name).Msg(rec.HookWarning)
	}

	rep := w.analyze(backup, rec)

	path, err := w.reports.Write(ctx, rep)
	if err != nil {
		w.logger.Warn().Err(err).Str("backup", backup.Name).Msg("failed to write report")
	}

	w.events.Push(msg.ReportReady{Config: backup.Name, Report: rep, Path: path})
}

// analyze builds the slow-path report from the on-disk log, which at this
// point already includes the current run's appended output. If the log
// cannot be read, the captured output alone is analyzed.
func (w *Worker) analyze(backup config.BackupConfig, rec *runner.RunRecord) *analyzer.Report {
	text := rec.Output
	if data, err := os.ReadFile(w.cfg.LogFile(backup.Name)); err == nil {
		text = string(data)
	} else {
		w.logger.Debug().Err(err).Str("backup", backup.Name).Msg("log file unreadable, analyzing captured output only")
	}

	return w.analyzer.Analyze(backup.Name, text, rec.Output, backup.ReportHorizon(), w.now())
}
