package tools

import (
	"context"
	"fmt"

	"go-triage/internal/fetcher"
)

const fetchPreviewChars = 4000

// FetchLogsTool lets the model pull a log or page by URL or path.
type FetchLogsTool struct {
	fetcher *fetcher.Fetcher
}

func NewFetchLogsTool(f *fetcher.Fetcher) *FetchLogsTool {
	return &FetchLogsTool{fetcher: f}
}

func (t *FetchLogsTool) Name() string { return ToolNameFetchLogs }

func (t *FetchLogsTool) Description() string {
	return "Fetch a log file or web page by URL or local path and summarize it"
}

func (t *FetchLogsTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"url": map[string]any{"type": "string", "description": "http(s) URL, file:// URL or absolute log path"},
		},
		"required": []any{"url"},
	}
}

func (t *FetchLogsTool) Execute(ctx context.Context, params map[string]any) (*ToolResult, error) {
	url := stringParam(params, "url")
	if url == "" {
		return nil, fmt.Errorf("missing 'url' parameter")
	}
	doc, err := t.fetcher.Fetch(ctx, url, "")
	if err != nil {
		return nil, err
	}

	content := doc.Parsed.RawContent
	if r := []rune(content); len(r) > fetchPreviewChars {
		content = string(r[len(r)-fetchPreviewChars:])
	}
	data := map[string]any{
		"url":          doc.URL,
		"content_type": doc.ContentType,
		"size":         doc.Size,
		"truncated":    doc.Truncated,
		"summary":      doc.Parsed.Summary,
		"key_points":   doc.Parsed.KeyPoints,
		"content":      content,
	}
	if doc.Parsed.Log != nil {
		data["error_count"] = doc.Parsed.Log.ErrorCount
		data["warning_count"] = doc.Parsed.Log.WarningCount
	}
	return dataResult(data), nil
}
