// internal/tools/searxng_client.go
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const maxSearchResponseBytes = 2 << 20

// SearXNGClient handles communication with SearXNG search engine
type SearXNGClient struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewSearXNGClient creates a new SearXNG client
func NewSearXNGClient(baseURL string, timeout time.Duration) *SearXNGClient {
	return &SearXNGClient{
		BaseURL: baseURL,
		HTTPClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// SearchResult represents a single search result from SearXNG
type SearchResult struct {
	Title   string  `json:"title"`
	URL     string  `json:"url"`
	Content string  `json:"content"`
	Engine  string  `json:"engine,omitempty"`
	Score   float64 `json:"score,omitempty"`
}

// SearchResponse represents the full response from SearXNG
type SearchResponse struct {
	Query           string         `json:"query"`
	NumberOfResults int            `json:"number_of_results"`
	Results         []SearchResult `json:"results"`
}

// Search performs a search query against SearXNG. A base URL without a path
// gets /search appended.
func (c *SearXNGClient) Search(ctx context.Context, query string, maxResults int) (*SearchResponse, error) {
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if strings.Trim(u.Path, "/") == "" {
		u.Path = "/search"
	}

	q := u.Query()
	q.Set("q", query)
	q.Set("format", "json")
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("SearXNG returned status %d: %s", resp.StatusCode, string(body))
	}

	var parsed SearchResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxSearchResponseBytes)).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	if maxResults > 0 && len(parsed.Results) > maxResults {
		parsed.Results = parsed.Results[:maxResults]
	}
	if parsed.Results == nil {
		parsed.Results = []SearchResult{}
	}
	return &parsed, nil
}
