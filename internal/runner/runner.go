// Package runner executes one backup's external tool command and optional
// post-backup hook, capturing combined output and exit status.
package runner

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"backupd/internal/config"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Status classifies the outcome of a run.
type Status string

const (
	StatusInProgress Status = "in_progress"
	StatusSucceeded  Status = "succeeded"
	StatusFailed     Status = "failed"
)

// RunRecord describes one complete execution of the external backup command
// (plus optional hook) for a single backup. It is mutated only by the worker
// thread and is immutable once FinishedAt is set.
type RunRecord struct {
	ID          string
	ConfigName  string
	StartedAt   time.Time
	FinishedAt  time.Time
	Status      Status
	Output      string
	Err         error
	HookWarning string
}

// Summary returns a short, always non-empty description of a failed run:
// the underlying error plus the last line of captured output.
func (r *RunRecord) Summary() string {
	var parts []string
	if r.Err != nil {
		parts = append(parts, r.Err.Error())
	}
	if last := lastLine(r.Output); last != "" {
		parts = append(parts, last)
	}
	if len(parts) == 0 {
		return "backup command failed with no output"
	}
	return strings.Join(parts, ": ")
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if trimmed := strings.TrimSpace(lines[i]); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

// Runner launches the external backup tool for one backup configuration.
// Stateless per invocation; safe to reuse across runs.
type Runner struct {
	cfg    *config.Config
	logger zerolog.Logger
}

// New creates a Runner.
func New(cfg *config.Config, logger zerolog.Logger) *Runner {
	return &Runner{cfg: cfg, logger: logger}
}

// Run executes the backup command for one configuration synchronously and
// returns a completed RunRecord. Combined stdout and stderr are captured in
// memory and appended to the backup's log file. The post-backup hook, when
// present, runs after the primary command; its failure is recorded as a
// warning, never escalated to a run failure. No timeout is enforced here:
// the scheduler is cooperative, and a hanging tool blocks its caller.
func (r *Runner) Run(ctx context.Context, backup config.BackupConfig) *RunRecord {
	rec := &RunRecord{
		ID:         uuid.NewString(),
		ConfigName: backup.Name,
		StartedAt:  time.Now(),
		Status:     StatusInProgress,
	}

	var buf bytes.Buffer
	sink := io.Writer(&buf)

	logPath := r.cfg.LogFile(backup.Name)
	logFile, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		r.logger.Warn().Err(err).Str("path", logPath).Msg("cannot open backup log file, capturing to memory only")
	} else {
		defer logFile.Close()
		sink = io.MultiWriter(&buf, logFile)
	}

	name, args := r.buildCommand(backup)
	r.logger.Info().Str("backup", backup.Name).Str("command", name).Strs("args", args).Msg("starting backup command")

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = sink
	cmd.Stderr = sink

	if err := cmd.Run(); err != nil {
		rec.Status = StatusFailed
		rec.Err = fmt.Errorf("backup command failed: %w", err)
		r.logger.Error().Err(err).Str("backup", backup.Name).Msg("backup command failed")
	} else {
		rec.Status = StatusSucceeded
	}

	r.runHook(ctx, backup, rec, sink)

	rec.FinishedAt = time.Now()
	rec.Output = buf.String()
	return rec
}

// buildCommand expands the tool argument template for one backup.
func (r *Runner) buildCommand(backup config.BackupConfig) (string, []string) {
	replacer := strings.NewReplacer(
		"{name}", backup.Name,
		"{host}", backup.Host,
		"{config}", r.cfg.ToolConfigFile(backup.Name),
	)

	args := make([]string, 0, len(r.cfg.Tool.Args))
	for _, arg := range r.cfg.Tool.Args {
		args = append(args, replacer.Replace(arg))
	}
	return r.cfg.Tool.Command, args
}

// runHook executes the post-backup-<name> script if it exists. The hook runs
// with the config directory as its working directory so relative paths in
// scripts resolve consistently.
func (r *Runner) runHook(ctx context.Context, backup config.BackupConfig, rec *RunRecord, sink io.Writer) {
	hookPath := r.cfg.HookScript(backup.Name)
	if _, err := os.Stat(hookPath); err != nil {
		return
	}

	r.logger.Info().Str("backup", backup.Name).Str("hook", hookPath).Msg("running post-backup hook")

	hook := exec.CommandContext(ctx, hookPath)
	hook.Dir = r.cfg.ConfigDir()
	hook.Stdout = sink
	hook.Stderr = sink

	if err := hook.Run(); err != nil {
		rec.HookWarning = fmt.Sprintf("post-backup hook failed: %v", err)
		r.logger.Warn().Err(err).Str("backup", backup.Name).Msg("post-backup hook failed")
	}
}
