// Package analyzer turns raw backup tool output into a ranked slow-path
// report. It is a pure transform: text in, report out. Writing the report
// anywhere is the caller's responsibility.
package analyzer

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"backupd/internal/config"
)

// TimingEntry records how long the backup tool spent on one path. Repeated
// occurrences of the same path stay distinct; the report ranks recorded
// instances, not per-path aggregates.
type TimingEntry struct {
	Path     string
	Duration time.Duration
}

// Report is the ranked outcome of one analysis pass. Entries are sorted by
// duration descending and capped to the configured top N.
type Report struct {
	ConfigName  string
	GeneratedAt time.Time
	Entries     []TimingEntry
	ErrorLines  []string
}

// Analyzer extracts per-path timings from free-text tool output using a
// configurable extraction rule.
type Analyzer struct {
	pattern  *regexp.Regexp
	tsLayout string
	topN     int

	pathIdx     int
	durationIdx int
	unitIdx     int
}

// New builds an Analyzer from the analysis configuration. The pattern must
// define `path` and `duration` groups; the optional `unit` group selects the
// duration unit (ms, s or m), defaulting to seconds.
func New(cfg config.AnalysisConfig) (*Analyzer, error) {
	re, err := regexp.Compile(cfg.Pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid timing pattern: %w", err)
	}

	a := &Analyzer{
		pattern:     re,
		tsLayout:    cfg.TimestampLayout,
		topN:        cfg.TopN,
		pathIdx:     -1,
		durationIdx: -1,
		unitIdx:     -1,
	}
	for i, name := range re.SubexpNames() {
		switch name {
		case "path":
			a.pathIdx = i
		case "duration":
			a.durationIdx = i
		case "unit":
			a.unitIdx = i
		}
	}
	if a.pathIdx < 0 || a.durationIdx < 0 {
		return nil, fmt.Errorf("timing pattern must define `path` and `duration` groups")
	}

	return a, nil
}

// errorMarkers flag lines worth surfacing from the latest run's output.
var errorMarkers = []string{
	"file changed while we read it!",
	"Error:",
	"error:",
}

// Analyze scans logText line by line and builds the ranked report for
// configName. Lines carrying a timestamp older than horizon (relative to
// now) are skipped; untimestamped lines are kept, so the current run's
// output always counts. latestRun, when non-empty, is scanned separately
// for error lines to attach to the report. Empty input yields an empty
// report, never an error.
func (a *Analyzer) Analyze(configName, logText, latestRun string, horizon time.Duration, now time.Time) *Report {
	report := &Report{
		ConfigName:  configName,
		GeneratedAt: now,
	}

	var entries []TimingEntry

	// The input is already in memory, so iterate by splitting rather than
	// through a size-capped scanner: one over-long line must not swallow
	// the rest of the log.
	for _, line := range strings.Split(logText, "\n") {
		if ts, ok := a.lineTimestamp(line, now.Location()); ok && now.Sub(ts) > horizon {
			continue
		}

		entry, ok := a.extract(line)
		if !ok {
			continue
		}
		entries = append(entries, entry)
	}

	// Stable keeps file order for equal durations
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Duration > entries[j].Duration
	})
	if len(entries) > a.topN {
		entries = entries[:a.topN]
	}
	report.Entries = entries

	if latestRun != "" {
		for _, line := range strings.Split(latestRun, "\n") {
			for _, marker := range errorMarkers {
				if strings.Contains(line, marker) {
					report.ErrorLines = append(report.ErrorLines, strings.TrimSpace(line))
					break
				}
			}
		}
	}

	return report
}

// extract applies the timing pattern to one line. Lines that do not match,
// or whose duration does not parse as a number, are skipped.
func (a *Analyzer) extract(line string) (TimingEntry, bool) {
	m := a.pattern.FindStringSubmatch(line)
	if m == nil {
		return TimingEntry{}, false
	}

	value, err := strconv.ParseFloat(m[a.durationIdx], 64)
	if err != nil || value < 0 {
		return TimingEntry{}, false
	}

	unit := time.Second
	if a.unitIdx >= 0 {
		switch m[a.unitIdx] {
		case "ms":
			unit = time.Millisecond
		case "m":
			unit = time.Minute
		}
	}

	return TimingEntry{
		Path:     m[a.pathIdx],
		Duration: time.Duration(value * float64(unit)),
	}, true
}

// lineTimestamp parses a bracketed leading timestamp like
// "[2026-08-25 10:00:00] ...". Sub-second suffixes after a comma are
// ignored, matching the tool's millisecond-rounded log format. The zoneless
// timestamp is interpreted in loc so horizon comparisons against a zoned
// reference time stay consistent.
func (a *Analyzer) lineTimestamp(line string, loc *time.Location) (time.Time, bool) {
	if a.tsLayout == "" || len(line) == 0 || line[0] != '[' {
		return time.Time{}, false
	}

	end := strings.IndexByte(line, ']')
	if end < 0 {
		return time.Time{}, false
	}

	raw := line[1:end]
	if comma := strings.IndexByte(raw, ','); comma >= 0 {
		raw = raw[:comma]
	}

	ts, err := time.ParseInLocation(a.tsLayout, raw, loc)
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}
