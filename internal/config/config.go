package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvHome is the environment variable that points at the application data
// root. Tool configs, logs and reports all live under it.
const EnvHome = "BACKUPD_HOME"

// Config represents the full daemon configuration
type Config struct {
	Root     string         `mapstructure:"-"`
	Tool     ToolConfig     `mapstructure:"tool"`
	Log      LogConfig      `mapstructure:"log"`
	Analysis AnalysisConfig `mapstructure:"analysis"`
	Mirror   MirrorConfig   `mapstructure:"mirror"`
	Backups  []BackupConfig `mapstructure:"backups"`
}

// ToolConfig describes how to invoke the external backup tool. Args is a
// template: the placeholders {name}, {host} and {config} are replaced with
// the backup name, its host identifier and its tool config file path.
type ToolConfig struct {
	Command string   `mapstructure:"command"`
	Args    []string `mapstructure:"args"`
}

// LogConfig represents the logging configuration
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Path       string `mapstructure:"path"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
}

// AnalysisConfig controls how backup tool output is turned into a slow-path
// report. Pattern must contain `path` and `duration` groups; the optional
// `unit` group accepts ms, s or m and defaults to seconds.
type AnalysisConfig struct {
	Pattern         string `mapstructure:"pattern"`
	TimestampLayout string `mapstructure:"timestamp_layout"`
	TopN            int    `mapstructure:"top_n"`
}

// MirrorConfig enables uploading generated reports to an S3-compatible
// bucket. Optional; mirror failures never fail a run.
type MirrorConfig struct {
	Enabled         bool   `mapstructure:"enabled"`
	Region          string `mapstructure:"region"`
	Endpoint        string `mapstructure:"endpoint"`
	Bucket          string `mapstructure:"bucket"`
	Prefix          string `mapstructure:"prefix"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
}

// BackupConfig is one named, independently-scheduled backup.
type BackupConfig struct {
	Name               string `mapstructure:"name"`
	Icon               string `mapstructure:"icon"`
	Host               string `mapstructure:"host"`
	IntervalCount      int    `mapstructure:"interval_count"`
	IntervalUnit       string `mapstructure:"interval_unit"`
	ReportHorizonHours int    `mapstructure:"report_horizon_hours"`
}

// Interval returns the minimum spacing between successive runs.
func (b BackupConfig) Interval() time.Duration {
	unit := time.Hour
	if b.IntervalUnit == "days" {
		unit = 24 * time.Hour
	}
	return time.Duration(b.IntervalCount) * unit
}

// ReportHorizon returns the window of log history scanned for reports.
func (b BackupConfig) ReportHorizon() time.Duration {
	return time.Duration(b.ReportHorizonHours) * time.Hour
}

// DefaultPattern matches the backup tool's per-path timing lines.
const DefaultPattern = `processing (?P<path>.+) took (?P<duration>[0-9.]+)(?P<unit>ms|s|m)?$`

// DefaultTimestampLayout matches the tool's bracketed log line timestamps.
const DefaultTimestampLayout = "2006-01-02 15:04:05"

// NewConfig loads configuration from file and environment variables.
// configPath: path to the config file. If empty, looks for "config.yaml"
// under the application data root.
func NewConfig(configPath string) (*Config, error) {
	root := os.Getenv(EnvHome)
	if root == "" {
		return nil, fmt.Errorf("environment variable %s is not set", EnvHome)
	}

	v := viper.New()

	v.SetDefault("tool.command", "borgmatic")
	v.SetDefault("tool.args", []string{"--config", "{config}", "--verbosity", "1"})

	v.SetDefault("log.level", "info")
	v.SetDefault("log.path", "stdout")
	v.SetDefault("log.max_size", 10)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age", 30)
	v.SetDefault("log.compress", false)

	v.SetDefault("analysis.pattern", DefaultPattern)
	v.SetDefault("analysis.timestamp_layout", DefaultTimestampLayout)
	v.SetDefault("analysis.top_n", 20)

	v.SetDefault("mirror.enabled", false)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(root)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix("backupd")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	config := new(Config)
	if err := v.Unmarshal(config); err != nil {
		return nil, err
	}
	config.Root = root

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks the configuration before the worker loop starts. Any error
// returned here is fatal.
func (c *Config) Validate() error {
	if c.Tool.Command == "" {
		return fmt.Errorf("tool.command must not be empty")
	}
	if c.Analysis.TopN <= 0 {
		return fmt.Errorf("analysis.top_n must be positive, got %d", c.Analysis.TopN)
	}
	re, err := regexp.Compile(c.Analysis.Pattern)
	if err != nil {
		return fmt.Errorf("invalid analysis.pattern: %w", err)
	}
	groups := re.SubexpNames()
	if !containsString(groups, "path") || !containsString(groups, "duration") {
		return fmt.Errorf("analysis.pattern must define `path` and `duration` groups")
	}

	seen := make(map[string]bool, len(c.Backups))
	for _, b := range c.Backups {
		if b.Name == "" {
			return fmt.Errorf("backup name must not be empty")
		}
		if seen[b.Name] {
			return fmt.Errorf("duplicate backup name: %s", b.Name)
		}
		seen[b.Name] = true

		if b.IntervalUnit != "hours" && b.IntervalUnit != "days" {
			return fmt.Errorf("backup %s: interval_unit must be hours or days, got %q", b.Name, b.IntervalUnit)
		}
		if b.IntervalCount <= 0 {
			return fmt.Errorf("backup %s: interval_count must be positive, got %d", b.Name, b.IntervalCount)
		}
		if b.ReportHorizonHours <= 0 {
			return fmt.Errorf("backup %s: report_horizon_hours must be positive, got %d", b.Name, b.ReportHorizonHours)
		}
	}

	if c.Mirror.Enabled {
		if c.Mirror.Bucket == "" {
			return fmt.Errorf("mirror.bucket must be set when mirror is enabled")
		}
		if c.Mirror.Region == "" {
			return fmt.Errorf("mirror.region must be set when mirror is enabled")
		}
	}

	return nil
}

// Backup returns the backup configuration with the given name.
func (c *Config) Backup(name string) (BackupConfig, bool) {
	for _, b := range c.Backups {
		if b.Name == name {
			return b, true
		}
	}
	return BackupConfig{}, false
}

func containsString(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}
