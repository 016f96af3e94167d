// Package report renders slow-path reports to the reports directory and
// optionally mirrors them to an S3-compatible bucket.
package report

import (
	"context"
	"fmt"
	"os"
	"path"
	"strings"

	"backupd/internal/analyzer"
	"backupd/internal/config"

	"github.com/rs/zerolog"
)

// Uploader pushes a rendered report to an off-site location. Implementations
// must treat failures as their own concern; the Writer only logs them.
type Uploader interface {
	Upload(ctx context.Context, key string, body []byte) error
}

// Writer persists reports for the worker. One report per backup per run; the
// previous report for the same backup is overwritten.
type Writer struct {
	cfg      *config.Config
	uploader Uploader
	logger   zerolog.Logger
}

// NewWriter creates a Writer. uploader may be nil, in which case reports are
// only written locally.
func NewWriter(cfg *config.Config, uploader Uploader, logger zerolog.Logger) *Writer {
	return &Writer{cfg: cfg, uploader: uploader, logger: logger}
}

// Write renders the report, writes it under the reports directory and
// returns the file path. Mirror upload failures are logged as warnings and
// do not fail the write.
func (w *Writer) Write(ctx context.Context, rep *analyzer.Report) (string, error) {
	body := Render(rep)
	filePath := w.cfg.ReportFile(rep.ConfigName)

	if err := os.WriteFile(filePath, []byte(body), 0o644); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}

	if w.uploader != nil {
		key := path.Join(w.cfg.Mirror.Prefix, rep.ConfigName+"-paths.txt")
		if err := w.uploader.Upload(ctx, key, []byte(body)); err != nil {
			w.logger.Warn().Err(err).Str("backup", rep.ConfigName).Str("key", key).Msg("report mirror upload failed")
		}
	}

	return filePath, nil
}

// Render produces the plain-text report: slowest recorded paths first, then
// any error lines from the latest run.
func Render(rep *analyzer.Report) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Slowest paths for %s (generated %s):\n\n",
		rep.ConfigName, rep.GeneratedAt.Format("2006-01-02 15:04:05"))

	for _, entry := range rep.Entries {
		fmt.Fprintf(&b, "%.2fs: %s\n", entry.Duration.Seconds(), entry.Path)
	}

	if len(rep.ErrorLines) > 0 {
		fmt.Fprintf(&b, "\nErrors (latest run):\n")
		for _, line := range rep.ErrorLines {
			fmt.Fprintf(&b, "%s\n", line)
		}
	}

	return b.String()
}
