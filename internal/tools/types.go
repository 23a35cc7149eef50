// internal/tools/types.go
package tools

import (
	"context"
	"errors"
	"time"
)

var ErrToolNotFound = errors.New("tool not found")

// Tool defines the interface that all tools must implement
type Tool interface {
	// Name returns the unique identifier for this tool
	Name() string

	// Description returns a human-readable description of what the tool does
	Description() string

	// Parameters returns the JSON schema of the tool's arguments
	Parameters() map[string]any

	// Execute runs the tool with the given parameters
	Execute(ctx context.Context, params map[string]any) (*ToolResult, error)
}

// ToolResult contains the outcome of a tool execution
type ToolResult struct {
	Success  bool           `json:"success"`
	Output   string         `json:"output,omitempty"`
	Data     map[string]any `json:"data,omitempty"`
	Error    string         `json:"error,omitempty"`
	Duration time.Duration  `json:"duration"`
}

// Info describes a registered tool for listings.
type Info struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Constants for built-in tool names
const (
	ToolNameAnalyzeLogs   = "analyze_logs"
	ToolNameSearchLogs    = "search_logs"
	ToolNameSystemMetrics = "check_system_metrics"
	ToolNameCommand       = "execute_command"
	ToolNameFetchLogs     = "fetch_logs"
	ToolNameSearch        = "search_web"
)

const defaultToolTimeout = 30 * time.Second

func stringParam(params map[string]any, key string) string {
	s, _ := params[key].(string)
	return s
}

// intParam accepts JSON numbers (float64) as well as Go ints.
func intParam(params map[string]any, key string, def int) int {
	switch v := params[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return def
}

func stringSliceParam(params map[string]any, key string) []string {
	switch v := params[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case string:
		if v != "" {
			return []string{v}
		}
	}
	return nil
}
