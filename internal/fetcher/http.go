package fetcher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"
	"github.com/ledongthuc/pdf"

	"go-triage/internal/parser"
)

const defaultContentType = "text/plain"

func (f *Fetcher) fetchHTTP(ctx context.Context, rawURL string) (*Document, error) {
	if doc := f.cached(ctx, rawURL); doc != nil {
		return doc, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if f.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", f.cfg.UserAgent)
	}
	for k, v := range f.cfg.AuthHeaders {
		req.Header.Set(k, v)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
	}
	if resp.ContentLength > f.cfg.MaxLogSize {
		log.Printf("[Fetcher] %s reports %d bytes, truncating to %d", rawURL, resp.ContentLength, f.cfg.MaxLogSize)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.cfg.MaxLogSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}
	truncated := int64(len(body)) > f.cfg.MaxLogSize
	if truncated {
		body = body[:f.cfg.MaxLogSize]
		log.Printf("[Fetcher] Content truncated to %d bytes: %s", f.cfg.MaxLogSize, rawURL)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = defaultContentType
	}

	text, title, err := extractText(rawURL, contentType, body)
	if err != nil {
		return nil, err
	}

	headers := make(map[string]string, len(resp.Header))
	for k := range resp.Header {
		headers[k] = resp.Header.Get(k)
	}

	doc := &Document{
		URL:         rawURL,
		ContentType: contentType,
		Size:        len(body),
		Headers:     headers,
		Truncated:   truncated,
		Title:       title,
		Parsed:      parser.ParseContent(text, contentType),
	}
	f.store(ctx, rawURL, doc)
	return doc, nil
}

// extractText turns a response body into plain text. HTML goes through
// readability, PDF through the pdf reader; anything else is used as is.
func extractText(rawURL, contentType string, body []byte) (text, title string, err error) {
	ct := strings.ToLower(contentType)
	switch {
	case strings.Contains(ct, "application/pdf"):
		text, err = pdfText(body)
		if err != nil {
			return "", "", err
		}
		return text, "", nil
	case strings.Contains(ct, "text/html"), strings.Contains(ct, "application/xhtml"):
		return htmlText(rawURL, body)
	default:
		return string(body), "", nil
	}
}

func htmlText(rawURL string, body []byte) (string, string, error) {
	pageURL, _ := url.Parse(rawURL)
	article, err := readability.FromReader(bytes.NewReader(body), pageURL)
	if err == nil && strings.TrimSpace(article.TextContent) != "" {
		return article.TextContent, article.Title, nil
	}
	if err != nil {
		log.Printf("[Fetcher] Readability failed for %s, falling back to raw text: %v", rawURL, err)
	}

	doc, qerr := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if qerr != nil {
		return "", "", fmt.Errorf("failed to parse HTML: %w", qerr)
	}
	title := strings.TrimSpace(doc.Find("title").First().Text())
	doc.Find("script, style, nav, aside, footer, header, iframe, noscript").Remove()

	var lines []string
	for _, line := range strings.Split(doc.Find("body").Text(), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n"), title, nil
}

func pdfText(body []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(body), int64(len(body)))
	if err != nil {
		return "", fmt.Errorf("failed to open PDF: %w", err)
	}

	var b strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		txt, err := page.GetPlainText(nil)
		if err != nil {
			log.Printf("[Fetcher] Failed to extract text from PDF page %d: %v", i, err)
			continue
		}
		b.WriteString(txt)
		b.WriteString("\n")
	}
	return b.String(), nil
}

func (f *Fetcher) cached(ctx context.Context, rawURL string) *Document {
	if f.cache == nil || f.cacheTTL <= 0 {
		return nil
	}
	raw, ok, err := f.cache.Get(ctx, rawURL)
	if err != nil {
		log.Printf("[Fetcher] Cache read failed for %s: %v", rawURL, err)
		return nil
	}
	if !ok {
		return nil
	}
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		log.Printf("[Fetcher] Dropping undecodable cache entry for %s: %v", rawURL, err)
		return nil
	}
	doc.Cached = true
	return &doc
}

func (f *Fetcher) store(ctx context.Context, rawURL string, doc *Document) {
	if f.cache == nil || f.cacheTTL <= 0 {
		return
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return
	}
	if err := f.cache.Set(ctx, rawURL, raw, f.cacheTTL); err != nil {
		log.Printf("[Fetcher] Cache write failed for %s: %v", rawURL, err)
	}
}
