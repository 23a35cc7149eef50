package tools

import (
	"log"
	"time"

	"go-triage/internal/config"
	"go-triage/internal/fetcher"
)

// RegisterDefaults registers the built-in tools that cfg enables. fetch_logs
// needs a non-nil f and search_web a configured SearXNG URL.
func RegisterDefaults(r *Registry, cfg *config.Config, f *fetcher.Fetcher) error {
	var builtins []Tool
	tc := cfg.Tools

	if tc.EnableLogAnalysis {
		builtins = append(builtins,
			NewAnalyzeLogsTool(tc.LogPaths, tc.TailLines),
			NewSearchLogsTool(tc.LogPaths, tc.TailLines),
		)
	}
	if tc.EnableMetricQuery {
		builtins = append(builtins, NewSystemMetricsTool())
	}
	if tc.EnableCommand {
		builtins = append(builtins, NewCommandTool(time.Duration(tc.CommandTimeoutSeconds)*time.Second))
	}
	if f != nil {
		builtins = append(builtins, NewFetchLogsTool(f))
	}
	if cfg.SearxNG.URL != "" {
		builtins = append(builtins, NewSearXNGTool(cfg.SearxNG.URL, cfg.SearxNG.MaxResults, r.timeout(ToolNameSearch)))
	}

	for _, t := range builtins {
		if !r.Enabled(t.Name()) {
			log.Printf("[ToolRegistry] Tool %s disabled by config", t.Name())
			continue
		}
		if err := r.Register(t); err != nil {
			return err
		}
	}
	return nil
}
