package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// ConfigDir returns the directory holding the external tool's per-backup
// configuration files and post-backup hook scripts.
func (c *Config) ConfigDir() string {
	return filepath.Join(c.Root, "config")
}

// LogsDir returns the directory holding per-backup tool output logs.
func (c *Config) LogsDir() string {
	return filepath.Join(c.Root, "logs")
}

// ReportsDir returns the directory generated slow-path reports are written to.
func (c *Config) ReportsDir() string {
	return filepath.Join(c.Root, "reports")
}

// ToolConfigFile returns the external tool config file for a backup name.
func (c *Config) ToolConfigFile(name string) string {
	return filepath.Join(c.ConfigDir(), name+".yml")
}

// LogFile returns the append-only tool output log for a backup name.
func (c *Config) LogFile(name string) string {
	return filepath.Join(c.LogsDir(), name+".log")
}

// ReportFile returns the slow-path report file for a backup name.
func (c *Config) ReportFile(name string) string {
	return filepath.Join(c.ReportsDir(), name+"-paths.txt")
}

// HookScript returns the post-backup hook script path for a backup name.
// The script is optional; its absence is not an error.
func (c *Config) HookScript(name string) string {
	return filepath.Join(c.ConfigDir(), "post-backup-"+name)
}

// EnsureDirs creates the config, logs and reports directories if they do not
// exist yet.
func (c *Config) EnsureDirs() error {
	for _, dir := range []string{c.ConfigDir(), c.LogsDir(), c.ReportsDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	return nil
}
