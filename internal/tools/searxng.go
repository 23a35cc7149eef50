// internal/tools/searxng.go
package tools

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// SearXNGTool implements the Tool interface for web searching
type SearXNGTool struct {
	client     *SearXNGClient
	maxResults int
}

// NewSearXNGTool creates a new SearXNG search tool
func NewSearXNGTool(baseURL string, maxResults int, timeout time.Duration) *SearXNGTool {
	if timeout == 0 {
		timeout = defaultToolTimeout
	}
	if maxResults <= 0 {
		maxResults = 5
	}
	return &SearXNGTool{
		client:     NewSearXNGClient(baseURL, timeout),
		maxResults: maxResults,
	}
}

// Name returns the tool identifier
func (t *SearXNGTool) Name() string {
	return ToolNameSearch
}

// Description returns what the tool does
func (t *SearXNGTool) Description() string {
	return "Search the web for an error message or symptom using SearXNG"
}

func (t *SearXNGTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query":       map[string]any{"type": "string", "description": "Search query, e.g. an exact error message"},
			"max_results": map[string]any{"type": "integer", "description": "Maximum number of results"},
		},
		"required": []any{"query"},
	}
}

// Execute performs a web search
// Expected params:
//   - "query" (string): search query
//   - "max_results" (int, optional): max number of results
func (t *SearXNGTool) Execute(ctx context.Context, params map[string]any) (*ToolResult, error) {
	query := stringParam(params, "query")
	if query == "" {
		return nil, fmt.Errorf("missing query parameter")
	}

	maxResults := intParam(params, "max_results", t.maxResults)
	if maxResults <= 0 {
		maxResults = t.maxResults
	}

	response, err := t.client.Search(ctx, query, maxResults)
	if err != nil {
		return nil, err
	}

	return &ToolResult{
		Success: true,
		Output:  t.formatSearchResults(response),
		Data: map[string]any{
			"query":            response.Query,
			"total_results":    response.NumberOfResults,
			"returned_results": len(response.Results),
			"sources":          t.extractSources(response),
		},
	}, nil
}

// formatSearchResults creates a readable summary of search results
func (t *SearXNGTool) formatSearchResults(response *SearchResponse) string {
	var builder strings.Builder

	builder.WriteString(fmt.Sprintf("Found %d results for: %s\n\n",
		len(response.Results), response.Query))

	for i, result := range response.Results {
		builder.WriteString(fmt.Sprintf("[%d] %s\n", i+1, result.Title))
		builder.WriteString(fmt.Sprintf("    URL: %s\n", result.URL))

		// Truncate content to ~200 chars
		content := result.Content
		if r := []rune(content); len(r) > 200 {
			content = string(r[:200]) + "..."
		}
		builder.WriteString(fmt.Sprintf("    %s\n\n", content))
	}

	return builder.String()
}

// extractSources pulls out the URLs for metadata
func (t *SearXNGTool) extractSources(response *SearchResponse) []string {
	sources := make([]string, 0, len(response.Results))
	for _, result := range response.Results {
		sources = append(sources, result.URL)
	}
	return sources
}
