// Package parser classifies fetched log and text content and extracts the
// links a user pastes into a question.
package parser

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

const maxLogEntries = 100

var (
	timestampRe = regexp.MustCompile(`\d{4}-\d{2}-\d{2}[\sT]\d{2}:\d{2}:\d{2}`)
	ipRe        = regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`)
	errorRe     = regexp.MustCompile(`(?i)(error|exception|fail|fatal)`)
	warnRe      = regexp.MustCompile(`(?i)(warn|warning)`)
	infoRe      = regexp.MustCompile(`(?i)(info|information)`)
	debugRe     = regexp.MustCompile(`(?i)(debug|trace)`)
)

// Level order matters: a line is tagged with the first level that matches.
var levels = []struct {
	name string
	re   *regexp.Regexp
}{
	{"ERROR", errorRe},
	{"WARN", warnRe},
	{"INFO", infoRe},
	{"DEBUG", debugRe},
}

// Kind says which parse mode produced a Result.
type Kind string

const (
	KindEmpty Kind = "empty"
	KindJSON  Kind = "json"
	KindLog   Kind = "log"
	KindText  Kind = "text"
)

// Result is the outcome of ParseContent. Exactly one of JSON, Log or Text is
// set, according to Kind.
type Result struct {
	RawContent  string     `json:"raw_content"`
	ContentType string     `json:"content_type,omitempty"`
	Kind        Kind       `json:"kind"`
	JSON        *JSONParse `json:"json,omitempty"`
	Log         *LogParse  `json:"log,omitempty"`
	Text        *TextStats `json:"text,omitempty"`
	Summary     string     `json:"summary"`
	KeyPoints   []string   `json:"key_points"`
}

// JSONParse holds decoded JSON, or the decode error and raw input.
type JSONParse struct {
	Value any    `json:"value,omitempty"`
	Error string `json:"error,omitempty"`
	Raw   string `json:"raw,omitempty"`
}

// LogEntry is one classified log line.
type LogEntry struct {
	RawLine     string   `json:"raw_line"`
	Timestamp   string   `json:"timestamp,omitempty"`
	Level       string   `json:"level,omitempty"`
	IPAddresses []string `json:"ip_addresses"`
	IsError     bool     `json:"is_error"`
	IsWarning   bool     `json:"is_warning"`
}

// LogParse summarizes log-like content. Counts cover every non-blank line;
// Entries keeps at most the first 100.
type LogParse struct {
	TotalLines   int        `json:"total_lines"`
	ErrorCount   int        `json:"error_count"`
	WarningCount int        `json:"warning_count"`
	Entries      []LogEntry `json:"entries"`
}

// TextStats describes content that looks like neither JSON nor logs.
type TextStats struct {
	LineCount     int      `json:"line_count"`
	CharCount     int      `json:"char_count"`
	HasTimestamps bool     `json:"has_timestamps"`
	HasErrors     bool     `json:"has_errors"`
	IPAddresses   []string `json:"ip_addresses"`
}

// ParseContent classifies content and extracts a summary and key points.
// contentType is the MIME type reported by the source, possibly empty.
func ParseContent(content, contentType string) Result {
	res := Result{
		RawContent:  content,
		ContentType: contentType,
		Kind:        KindEmpty,
		KeyPoints:   []string{},
	}
	if strings.TrimSpace(content) == "" {
		return res
	}

	switch {
	case strings.Contains(strings.ToLower(contentType), "json"):
		res.Kind = KindJSON
		res.JSON = parseJSON(content)
	case IsLogContent(content):
		res.Kind = KindLog
		res.Log = parseLogs(content)
	default:
		res.Kind = KindText
		res.Text = parseText(content)
	}

	res.Summary = Summary(content)
	res.KeyPoints = KeyPoints(content)
	return res
}

// IsLogContent reports whether content carries a timestamp or any level keyword.
func IsLogContent(content string) bool {
	if timestampRe.MatchString(content) {
		return true
	}
	for _, l := range levels {
		if l.re.MatchString(content) {
			return true
		}
	}
	return false
}

func parseJSON(content string) *JSONParse {
	var v any
	if err := json.Unmarshal([]byte(content), &v); err != nil {
		return &JSONParse{Error: "invalid JSON format", Raw: content}
	}
	return &JSONParse{Value: v}
}

func parseLogs(content string) *LogParse {
	out := &LogParse{Entries: []LogEntry{}}
	for _, line := range splitLines(content) {
		if strings.TrimSpace(line) == "" {
			continue
		}
		entry := ParseLine(line)
		out.TotalLines++
		if entry.IsError {
			out.ErrorCount++
		}
		if entry.IsWarning {
			out.WarningCount++
		}
		if len(out.Entries) < maxLogEntries {
			out.Entries = append(out.Entries, entry)
		}
	}
	return out
}

// ParseLine classifies a single log line.
func ParseLine(line string) LogEntry {
	ips := ipRe.FindAllString(line, -1)
	if ips == nil {
		ips = []string{}
	}
	return LogEntry{
		RawLine:     line,
		Timestamp:   timestampRe.FindString(line),
		Level:       LineLevel(line),
		IPAddresses: ips,
		IsError:     errorRe.MatchString(line),
		IsWarning:   warnRe.MatchString(line),
	}
}

// LineLevel returns ERROR, WARN, INFO or DEBUG, or "" when no keyword matches.
func LineLevel(line string) string {
	for _, l := range levels {
		if l.re.MatchString(line) {
			return l.name
		}
	}
	return ""
}

func parseText(content string) *TextStats {
	return &TextStats{
		LineCount:     len(splitLines(content)),
		CharCount:     len([]rune(content)),
		HasTimestamps: timestampRe.MatchString(content),
		HasErrors:     errorRe.MatchString(content),
		IPAddresses:   uniqueIPs(content, 0),
	}
}

// Summary reports the line count plus error and warning keyword counts.
func Summary(content string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "content has %d lines", len(splitLines(content)))
	if n := len(errorRe.FindAllStringIndex(content, -1)); n > 0 {
		fmt.Fprintf(&b, ", %d errors", n)
	}
	if n := len(warnRe.FindAllStringIndex(content, -1)); n > 0 {
		fmt.Fprintf(&b, ", %d warnings", n)
	}
	return b.String()
}

// KeyPoints lists the first five error lines and up to ten IP addresses.
func KeyPoints(content string) []string {
	points := []string{}

	var errorLines []string
	for _, line := range strings.Split(content, "\n") {
		if errorRe.MatchString(line) {
			errorLines = append(errorLines, strings.TrimSpace(line))
		}
	}
	if len(errorLines) > 0 {
		points = append(points, fmt.Sprintf("found %d error lines:", len(errorLines)))
		points = append(points, errorLines[:min(5, len(errorLines))]...)
	}

	if ips := uniqueIPs(content, 10); len(ips) > 0 {
		points = append(points, "IP addresses involved: "+strings.Join(ips, ", "))
	}
	return points
}

// uniqueIPs returns IPs in first-seen order, at most limit when limit > 0.
func uniqueIPs(content string, limit int) []string {
	seen := make(map[string]bool)
	ips := []string{}
	for _, ip := range ipRe.FindAllString(content, -1) {
		if seen[ip] {
			continue
		}
		seen[ip] = true
		ips = append(ips, ip)
		if limit > 0 && len(ips) == limit {
			break
		}
	}
	return ips
}

func splitLines(content string) []string {
	return strings.Split(strings.TrimSpace(content), "\n")
}

// ErrorLines returns the lines of content that contain an error keyword.
func ErrorLines(content string) []string {
	var out []string
	for _, line := range strings.Split(content, "\n") {
		if errorRe.MatchString(line) {
			out = append(out, line)
		}
	}
	return out
}
