package analyzer

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"backupd/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAnalyzer(t *testing.T, topN int) *Analyzer {
	t.Helper()
	a, err := New(config.AnalysisConfig{
		Pattern:         config.DefaultPattern,
		TimestampLayout: config.DefaultTimestampLayout,
		TopN:            topN,
	})
	require.NoError(t, err)
	return a
}

func TestNew_RejectsPatternWithoutGroups(t *testing.T) {
	_, err := New(config.AnalysisConfig{Pattern: `took [0-9]+s`, TopN: 10})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "path")
}

func TestAnalyze_EmptyInput(t *testing.T) {
	a := newTestAnalyzer(t, 10)

	report := a.Analyze("documents", "", "", 24*time.Hour, time.Now())
	require.NotNil(t, report)
	assert.Equal(t, "documents", report.ConfigName)
	assert.Empty(t, report.Entries)
	assert.Empty(t, report.ErrorLines)
}

func TestAnalyze_ExtractsAndRanks(t *testing.T) {
	a := newTestAnalyzer(t, 10)

	logText := "starting backup\n" +
		"processing /home/user/docs took 5s\n" +
		"some unrelated line\n" +
		"processing /home/user/media took 12s\n" +
		"processing /home/user/mail took 3s\n"

	report := a.Analyze("documents", logText, "", 24*time.Hour, time.Now())
	require.Len(t, report.Entries, 3)
	assert.Equal(t, "/home/user/media", report.Entries[0].Path)
	assert.Equal(t, 12*time.Second, report.Entries[0].Duration)
	assert.Equal(t, "/home/user/docs", report.Entries[1].Path)
	assert.Equal(t, "/home/user/mail", report.Entries[2].Path)
}

func TestAnalyze_TopNTruncationKeepsTieOrder(t *testing.T) {
	a := newTestAnalyzer(t, 3)

	// Durations 5, 3, 9, 1, 9 must rank as 9, 9, 5 with ties in file order
	logText := "processing /a took 5s\n" +
		"processing /b took 3s\n" +
		"processing /c took 9s\n" +
		"processing /d took 1s\n" +
		"processing /e took 9s\n"

	report := a.Analyze("x", logText, "", 24*time.Hour, time.Now())
	require.Len(t, report.Entries, 3)
	assert.Equal(t, "/c", report.Entries[0].Path)
	assert.Equal(t, "/e", report.Entries[1].Path)
	assert.Equal(t, "/a", report.Entries[2].Path)
}

func TestAnalyze_Idempotent(t *testing.T) {
	a := newTestAnalyzer(t, 5)
	now := time.Now()

	logText := "processing /a took 2s\nprocessing /b took 2s\nprocessing /c took 7s\n"

	first := a.Analyze("x", logText, "", 24*time.Hour, now)
	second := a.Analyze("x", logText, "", 24*time.Hour, now)
	assert.Equal(t, first, second)
}

func TestAnalyze_SkipsMalformedDurations(t *testing.T) {
	a := newTestAnalyzer(t, 10)

	logText := "processing /good took 4s\n" +
		"processing /bad took 1.2.3s\n"

	report := a.Analyze("x", logText, "", 24*time.Hour, time.Now())
	require.Len(t, report.Entries, 1)
	assert.Equal(t, "/good", report.Entries[0].Path)
}

func TestAnalyze_RepeatedPathsStayDistinct(t *testing.T) {
	a := newTestAnalyzer(t, 10)

	logText := "processing /a took 2s\nprocessing /a took 6s\n"

	report := a.Analyze("x", logText, "", 24*time.Hour, time.Now())
	require.Len(t, report.Entries, 2)
	assert.Equal(t, 6*time.Second, report.Entries[0].Duration)
	assert.Equal(t, 2*time.Second, report.Entries[1].Duration)
}

func TestAnalyze_UnitNormalization(t *testing.T) {
	a := newTestAnalyzer(t, 10)

	logText := "processing /ms took 1500ms\n" +
		"processing /m took 2m\n" +
		"processing /s took 3s\n"

	report := a.Analyze("x", logText, "", 24*time.Hour, time.Now())
	require.Len(t, report.Entries, 3)
	assert.Equal(t, 2*time.Minute, report.Entries[0].Duration)
	assert.Equal(t, 3*time.Second, report.Entries[1].Duration)
	assert.Equal(t, 1500*time.Millisecond, report.Entries[2].Duration)
}

func TestAnalyze_HorizonExcludesOldLines(t *testing.T) {
	a := newTestAnalyzer(t, 10)
	now := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)

	old := now.Add(-48 * time.Hour).Format(config.DefaultTimestampLayout)
	recent := now.Add(-1 * time.Hour).Format(config.DefaultTimestampLayout)

	logText := fmt.Sprintf("[%s] processing /old took 30s\n", old) +
		fmt.Sprintf("[%s,123] processing /recent took 5s\n", recent) +
		"processing /current took 2s\n"

	report := a.Analyze("x", logText, "", 24*time.Hour, now)
	require.Len(t, report.Entries, 2)
	assert.Equal(t, "/recent", report.Entries[0].Path)
	assert.Equal(t, "/current", report.Entries[1].Path)
}

func TestAnalyze_HorizonInNonUTCZone(t *testing.T) {
	a := newTestAnalyzer(t, 10)

	// Log timestamps carry no zone, so they must be read in the reference
	// time's zone. West of UTC a naive UTC parse would shift recent lines
	// past the horizon and drop them.
	zone := time.FixedZone("UTC-10", -10*60*60)
	now := time.Date(2026, 8, 25, 12, 0, 0, 0, zone)

	recent := now.Add(-1 * time.Hour).Format(config.DefaultTimestampLayout)
	old := now.Add(-8 * time.Hour).Format(config.DefaultTimestampLayout)

	logText := fmt.Sprintf("[%s] processing /recent took 5s\n", recent) +
		fmt.Sprintf("[%s] processing /old took 9s\n", old)

	report := a.Analyze("x", logText, "", 5*time.Hour, now)
	require.Len(t, report.Entries, 1)
	assert.Equal(t, "/recent", report.Entries[0].Path)
}

func TestAnalyze_OverlongLineDoesNotTruncateAnalysis(t *testing.T) {
	a := newTestAnalyzer(t, 10)

	// A pathological multi-megabyte line must only cost itself, not the
	// lines after it
	logText := "processing /before took 3s\n" +
		strings.Repeat("x", 2*1024*1024) + "\n" +
		"processing /after took 7s\n"

	report := a.Analyze("x", logText, "", 24*time.Hour, time.Now())
	require.Len(t, report.Entries, 2)
	assert.Equal(t, "/after", report.Entries[0].Path)
	assert.Equal(t, "/before", report.Entries[1].Path)
}

func TestAnalyze_CollectsErrorLinesFromLatestRun(t *testing.T) {
	a := newTestAnalyzer(t, 10)

	latest := "processing /a took 1s\n" +
		"/home/user/tmp: file changed while we read it!\n" +
		"Error: repository lock held\n"

	report := a.Analyze("x", "", latest, 24*time.Hour, time.Now())
	require.Len(t, report.ErrorLines, 2)
	assert.Contains(t, report.ErrorLines[0], "file changed")
	assert.Contains(t, report.ErrorLines[1], "repository lock")
}

func TestAnalyze_CustomPattern(t *testing.T) {
	a, err := New(config.AnalysisConfig{
		Pattern: `archived (?P<path>\S+) in (?P<duration>[0-9.]+) seconds`,
		TopN:    10,
	})
	require.NoError(t, err)

	report := a.Analyze("x", "archived /var/lib in 4.5 seconds\n", "", time.Hour, time.Now())
	require.Len(t, report.Entries, 1)
	assert.Equal(t, "/var/lib", report.Entries[0].Path)
	assert.Equal(t, 4500*time.Millisecond, report.Entries[0].Duration)
}
