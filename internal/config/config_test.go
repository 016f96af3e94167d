package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig_Defaults(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv(EnvHome, tmpDir)

	configFile := filepath.Join(tmpDir, "config.yaml")
	f, err := os.Create(configFile)
	require.NoError(t, err)
	f.Close()

	cfg, err := NewConfig(configFile)
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, tmpDir, cfg.Root)
	assert.Equal(t, "borgmatic", cfg.Tool.Command)
	assert.Equal(t, []string{"--config", "{config}", "--verbosity", "1"}, cfg.Tool.Args)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "stdout", cfg.Log.Path)
	assert.Equal(t, 10, cfg.Log.MaxSize)
	assert.Equal(t, 3, cfg.Log.MaxBackups)

	assert.Equal(t, DefaultPattern, cfg.Analysis.Pattern)
	assert.Equal(t, DefaultTimestampLayout, cfg.Analysis.TimestampLayout)
	assert.Equal(t, 20, cfg.Analysis.TopN)

	assert.False(t, cfg.Mirror.Enabled)
	assert.Empty(t, cfg.Backups)
}

func TestNewConfig_MissingHome(t *testing.T) {
	t.Setenv(EnvHome, "")

	_, err := NewConfig("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), EnvHome)
}

func TestNewConfig_ParsesBackups(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv(EnvHome, tmpDir)

	configFile := filepath.Join(tmpDir, "config.yaml")
	content := `
backups:
  - name: documents
    icon: documents.ico
    host: debian
    interval_count: 2
    interval_unit: hours
    report_horizon_hours: 48
  - name: media
    host: debian
    interval_count: 1
    interval_unit: days
    report_horizon_hours: 24
`
	require.NoError(t, os.WriteFile(configFile, []byte(content), 0o644))

	cfg, err := NewConfig(configFile)
	require.NoError(t, err)
	require.Len(t, cfg.Backups, 2)

	docs := cfg.Backups[0]
	assert.Equal(t, "documents", docs.Name)
	assert.Equal(t, "debian", docs.Host)
	assert.Equal(t, 2*60*60, int(docs.Interval().Seconds()))
	assert.Equal(t, 48*60*60, int(docs.ReportHorizon().Seconds()))

	media := cfg.Backups[1]
	assert.Equal(t, 24*60*60, int(media.Interval().Seconds()))
}

func TestValidate_DuplicateName(t *testing.T) {
	cfg := validConfig()
	cfg.Backups = append(cfg.Backups, cfg.Backups[0])

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate backup name")
}

func TestValidate_NonPositiveInterval(t *testing.T) {
	cfg := validConfig()
	cfg.Backups[0].IntervalCount = 0

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "interval_count")
}

func TestValidate_BadIntervalUnit(t *testing.T) {
	cfg := validConfig()
	cfg.Backups[0].IntervalUnit = "minutes"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "interval_unit")
}

func TestValidate_PatternMissingGroups(t *testing.T) {
	cfg := validConfig()
	cfg.Analysis.Pattern = `took (?P<duration>[0-9.]+)s`

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "path")
}

func TestValidate_MirrorRequiresBucket(t *testing.T) {
	cfg := validConfig()
	cfg.Mirror.Enabled = true
	cfg.Mirror.Region = "us-east-1"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mirror.bucket")
}

func TestPaths(t *testing.T) {
	cfg := &Config{Root: "/data/backupd"}

	assert.Equal(t, "/data/backupd/config", cfg.ConfigDir())
	assert.Equal(t, "/data/backupd/logs", cfg.LogsDir())
	assert.Equal(t, "/data/backupd/reports", cfg.ReportsDir())
	assert.Equal(t, "/data/backupd/config/documents.yml", cfg.ToolConfigFile("documents"))
	assert.Equal(t, "/data/backupd/logs/documents.log", cfg.LogFile("documents"))
	assert.Equal(t, "/data/backupd/reports/documents-paths.txt", cfg.ReportFile("documents"))
	assert.Equal(t, "/data/backupd/config/post-backup-documents", cfg.HookScript("documents"))
}

func TestEnsureDirs(t *testing.T) {
	cfg := &Config{Root: t.TempDir()}
	require.NoError(t, cfg.EnsureDirs())

	for _, dir := range []string{cfg.ConfigDir(), cfg.LogsDir(), cfg.ReportsDir()} {
		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}

	// Idempotent
	require.NoError(t, cfg.EnsureDirs())
}

func validConfig() *Config {
	return &Config{
		Root: "/data/backupd",
		Tool: ToolConfig{Command: "borgmatic"},
		Analysis: AnalysisConfig{
			Pattern:         DefaultPattern,
			TimestampLayout: DefaultTimestampLayout,
			TopN:            20,
		},
		Backups: []BackupConfig{
			{Name: "documents", IntervalCount: 2, IntervalUnit: "hours", ReportHorizonHours: 48},
		},
	}
}
