package cmd

import (
	"fmt"

	"backupd/internal/config"
	"backupd/internal/report"
	pkglog "backupd/pkg/log"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "backupd",
	Short: "Scheduled backup runner with slow-path log analysis",
	Long: `backupd periodically runs an external backup tool against a set of
named configurations, reports live status over its event stream, and
post-processes backup logs to surface the slowest-to-archive paths.`,
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file path (default $"+config.EnvHome+"/config.yaml)")
}

// setup loads the configuration, builds the logger and creates the directory
// layout. Every command starts here; any error is fatal before goroutines
// are spawned.
func setup() (*config.Config, zerolog.Logger, error) {
	cfg, err := config.NewConfig(configPath)
	if err != nil {
		return nil, zerolog.Nop(), fmt.Errorf("failed to load config: %w", err)
	}

	logger := pkglog.New(cfg.Log)

	if err := cfg.EnsureDirs(); err != nil {
		return nil, logger, err
	}

	return cfg, logger, nil
}

// newReportWriter wires the optional S3 mirror into the report writer.
func newReportWriter(cfg *config.Config, logger zerolog.Logger) (*report.Writer, error) {
	var uploader report.Uploader
	if cfg.Mirror.Enabled {
		mirror, err := report.NewS3Mirror(cfg.Mirror)
		if err != nil {
			return nil, fmt.Errorf("failed to set up report mirror: %w", err)
		}
		uploader = mirror
	}
	return report.NewWriter(cfg, uploader, logger), nil
}
