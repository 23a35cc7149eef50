package tools

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

var (
	logErrorRe     = regexp.MustCompile(`(?i)(error|exception|failed)`)
	logTimestampRe = regexp.MustCompile(`\d{4}-\d{2}-\d{2}[\sT]\d{2}:\d{2}:\d{2}`)
	timeRangeRe    = regexp.MustCompile(`^(\d+)\s*([smhdw])$`)
)

const recentErrorLimit = 10

// logSource resolves a log type to a configured path and reads its tail.
type logSource struct {
	paths     map[string]string
	tailLines int
}

func (s logSource) logTypes() []any {
	types := make([]string, 0, len(s.paths))
	for t := range s.paths {
		types = append(types, t)
	}
	sort.Strings(types)
	out := make([]any, len(types))
	for i, t := range types {
		out[i] = t
	}
	return out
}

func (s logSource) path(logType string) (string, error) {
	p, ok := s.paths[logType]
	if !ok || p == "" {
		return "", fmt.Errorf("unknown log type: %s", logType)
	}
	if _, err := os.Stat(p); err != nil {
		return "", fmt.Errorf("log file not found: %s", p)
	}
	return p, nil
}

// tail returns the last n lines of the file.
func tail(ctx context.Context, path string, n int) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	if n <= 0 {
		n = 1000
	}
	ring := make([]string, 0, n)
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for i := 0; scanner.Scan(); i++ {
		if i%4096 == 0 && ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if len(ring) == n {
			ring = append(ring[1:], scanner.Text())
		} else {
			ring = append(ring, scanner.Text())
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return ring, nil
}

// parseTimeRange accepts forms like 30m, 1h, 2d, 1w.
func parseTimeRange(s string) (time.Duration, error) {
	m := timeRangeRe.FindStringSubmatch(strings.ToLower(strings.TrimSpace(s)))
	if m == nil {
		return 0, fmt.Errorf("invalid time range %q (want e.g. 30m, 1h, 1d)", s)
	}
	n, _ := strconv.Atoi(m[1])
	unit := map[string]time.Duration{
		"s": time.Second,
		"m": time.Minute,
		"h": time.Hour,
		"d": 24 * time.Hour,
		"w": 7 * 24 * time.Hour,
	}[m[2]]
	return time.Duration(n) * unit, nil
}

func lineTime(line string) (time.Time, bool) {
	ts := logTimestampRe.FindString(line)
	if ts == "" {
		return time.Time{}, false
	}
	ts = strings.Replace(ts, "T", " ", 1)
	t, err := time.ParseInLocation("2006-01-02 15:04:05", ts, time.Local)
	return t, err == nil
}

// AnalyzeLogsTool reports the recent error lines of a configured log.
type AnalyzeLogsTool struct {
	src logSource
	now func() time.Time
}

func NewAnalyzeLogsTool(paths map[string]string, tailLines int) *AnalyzeLogsTool {
	if tailLines <= 0 {
		tailLines = 1000
	}
	return &AnalyzeLogsTool{src: logSource{paths: paths, tailLines: tailLines}, now: time.Now}
}

func (t *AnalyzeLogsTool) Name() string { return ToolNameAnalyzeLogs }

func (t *AnalyzeLogsTool) Description() string {
	return "Analyze a log file and find errors and exceptions"
}

func (t *AnalyzeLogsTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"log_type":   map[string]any{"type": "string", "enum": t.src.logTypes()},
			"time_range": map[string]any{"type": "string", "description": "Time range such as '1h', '30m', '1d'"},
		},
		"required": []any{"log_type"},
	}
}

// Execute expects "log_type" and an optional "time_range" (default 1h).
// Lines without a timestamp are always kept.
func (t *AnalyzeLogsTool) Execute(ctx context.Context, params map[string]any) (*ToolResult, error) {
	logType := stringParam(params, "log_type")
	path, err := t.src.path(logType)
	if err != nil {
		return nil, err
	}
	timeRange := stringParam(params, "time_range")
	if timeRange == "" {
		timeRange = "1h"
	}
	window, err := parseTimeRange(timeRange)
	if err != nil {
		return nil, err
	}

	lines, err := tail(ctx, path, t.src.tailLines)
	if err != nil {
		return nil, err
	}

	cutoff := t.now().Add(-window)
	errLines := []string{}
	considered := 0
	for _, line := range lines {
		if ts, ok := lineTime(line); ok && ts.Before(cutoff) {
			continue
		}
		considered++
		if logErrorRe.MatchString(line) {
			errLines = append(errLines, strings.TrimSpace(line))
		}
	}
	recent := errLines
	if len(recent) > recentErrorLimit {
		recent = recent[len(recent)-recentErrorLimit:]
	}

	return dataResult(map[string]any{
		"log_type":      logType,
		"time_range":    timeRange,
		"total_lines":   considered,
		"error_count":   len(errLines),
		"recent_errors": recent,
	}), nil
}

// SearchLogsTool greps a configured log for a keyword.
type SearchLogsTool struct {
	src logSource
}

func NewSearchLogsTool(paths map[string]string, tailLines int) *SearchLogsTool {
	return &SearchLogsTool{src: logSource{paths: paths, tailLines: tailLines}}
}

func (t *SearchLogsTool) Name() string { return ToolNameSearchLogs }

func (t *SearchLogsTool) Description() string {
	return "Search a log file for a keyword"
}

func (t *SearchLogsTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"keyword":  map[string]any{"type": "string", "description": "Keyword to search for"},
			"log_type": map[string]any{"type": "string", "enum": t.src.logTypes()},
			"lines":    map[string]any{"type": "integer", "description": "Number of matching lines to return", "default": 50},
		},
		"required": []any{"keyword", "log_type"},
	}
}

// Execute returns the last "lines" (default 50) lines containing keyword,
// compared case-insensitively.
func (t *SearchLogsTool) Execute(ctx context.Context, params map[string]any) (*ToolResult, error) {
	keyword := stringParam(params, "keyword")
	if keyword == "" {
		return nil, fmt.Errorf("missing 'keyword' parameter")
	}
	logType := stringParam(params, "log_type")
	path, err := t.src.path(logType)
	if err != nil {
		return nil, err
	}
	limit := intParam(params, "lines", 50)
	if limit <= 0 {
		limit = 50
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	needle := strings.ToLower(keyword)
	matches := []string{}
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.Contains(strings.ToLower(line), needle) {
			continue
		}
		if len(matches) == limit {
			matches = append(matches[1:], line)
		} else {
			matches = append(matches, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	return dataResult(map[string]any{
		"keyword":     keyword,
		"log_type":    logType,
		"matches":     matches,
		"match_count": len(matches),
	}), nil
}
