// Package fetcher pulls the logs and pages a user links to and runs them
// through the content parser.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"go-triage/internal/config"
	"go-triage/internal/parser"
)

var (
	ErrUnsupportedLink     = errors.New("unsupported link type")
	ErrOutsideAllowedRoots = errors.New("path outside allowed roots")
)

// Document is a fetched source after extraction and parsing.
type Document struct {
	URL         string            `json:"url"`
	ContentType string            `json:"content_type"`
	Size        int               `json:"size"`
	Headers     map[string]string `json:"headers,omitempty"`
	Truncated   bool              `json:"truncated"`
	Title       string            `json:"title,omitempty"`
	Cached      bool              `json:"cached,omitempty"`
	Parsed      parser.Result     `json:"parsed"`
}

// FetchResult pairs a link found in user input with what fetching it produced.
type FetchResult struct {
	Link    parser.Link `json:"source_link"`
	Data    *Document   `json:"fetched_data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Success bool        `json:"fetch_success"`
}

// Fetcher retrieves http(s) URLs and local log files.
type Fetcher struct {
	cfg        config.FetcherConfig
	httpClient *http.Client
	cache      Cache
	cacheTTL   time.Duration
}

// New creates a fetcher. cache may be nil.
func New(cfg config.FetcherConfig, cache Cache) *Fetcher {
	timeout := time.Duration(cfg.RequestTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if cfg.MaxLogSize <= 0 {
		cfg.MaxLogSize = 10 * 1024 * 1024
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 4
	}
	return &Fetcher{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return fmt.Errorf("stopped after 10 redirects")
				}
				return nil
			},
		},
		cache:    cache,
		cacheTTL: time.Duration(cfg.CacheTTLSeconds) * time.Second,
	}
}

// FetchFromInput extracts links from text and fetches each of them. Results
// follow link order; one failed source never stops the others.
func (f *Fetcher) FetchFromInput(ctx context.Context, text string) []FetchResult {
	links := parser.ExtractLinks(text)
	if len(links) == 0 {
		return []FetchResult{}
	}
	log.Printf("[Fetcher] Found %d links in input", len(links))

	results := make([]FetchResult, len(links))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.cfg.MaxConcurrent)
	for i, link := range links {
		g.Go(func() error {
			results[i] = FetchResult{Link: link}
			doc, err := f.Fetch(gctx, link.URL, link.Type)
			if err != nil {
				log.Printf("[Fetcher] Failed to fetch %s: %v", link.URL, err)
				results[i].Error = err.Error()
				return nil
			}
			results[i].Data = doc
			results[i].Success = true
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// Fetch retrieves one source. An empty linkType is detected from the URL.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string, linkType parser.LinkType) (*Document, error) {
	if linkType == "" {
		linkType = DetectLinkType(rawURL)
	}

	switch linkType {
	case parser.LinkHTTP:
		return f.fetchHTTP(ctx, rawURL)
	case parser.LinkFile, parser.LinkLogPath:
		return f.fetchFile(rawURL)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedLink, linkType)
	}
}

// DetectLinkType classifies a bare URL or path.
func DetectLinkType(rawURL string) parser.LinkType {
	lower := strings.ToLower(rawURL)
	switch {
	case strings.HasPrefix(lower, "http://"), strings.HasPrefix(lower, "https://"):
		return parser.LinkHTTP
	case strings.HasPrefix(lower, "ssh://"):
		return parser.LinkSSH
	case strings.HasPrefix(lower, "ftp://"):
		return parser.LinkFTP
	case strings.HasPrefix(lower, "file://"), strings.HasPrefix(rawURL, "/"):
		return parser.LinkFile
	case strings.HasSuffix(lower, ".log"):
		return parser.LinkLogPath
	default:
		return "unknown"
	}
}
