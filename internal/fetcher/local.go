package fetcher

import (
	"fmt"
	"io"
	"log"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"go-triage/internal/parser"
)

// fetchFile reads a local file under one of the allowed roots. Large files
// are read from the end, since the newest log lines are the interesting ones.
func (f *Fetcher) fetchFile(rawURL string) (*Document, error) {
	path, err := f.resolvePath(rawURL)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}

	truncated := info.Size() > f.cfg.MaxLogSize
	if truncated {
		if _, err := file.Seek(info.Size()-f.cfg.MaxLogSize, io.SeekStart); err != nil {
			return nil, fmt.Errorf("seek %s: %w", path, err)
		}
		log.Printf("[Fetcher] %s is %d bytes, reading the last %d", path, info.Size(), f.cfg.MaxLogSize)
	}
	body, err := io.ReadAll(io.LimitReader(file, f.cfg.MaxLogSize))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	contentType := mime.TypeByExtension(filepath.Ext(path))
	if contentType == "" {
		contentType = defaultContentType
	}
	text, title, err := extractText(path, contentType, body)
	if err != nil {
		return nil, err
	}

	return &Document{
		URL:         rawURL,
		ContentType: contentType,
		Size:        len(body),
		Truncated:   truncated,
		Title:       title,
		Parsed:      parser.ParseContent(text, contentType),
	}, nil
}

// resolvePath strips a file:// scheme, cleans the path and checks it lies
// under an allowed root once symlinks are followed.
func (f *Fetcher) resolvePath(rawURL string) (string, error) {
	path := rawURL
	if len(path) >= 7 && strings.EqualFold(path[:7], "file://") {
		path = path[7:]
	}
	if !filepath.IsAbs(path) {
		return "", fmt.Errorf("%w: %s is not an absolute path", ErrOutsideAllowedRoots, rawURL)
	}
	path = filepath.Clean(path)
	if resolved, err := filepath.EvalSymlinks(path); err == nil {
		path = resolved
	}

	for _, root := range f.cfg.AllowedRoots {
		root = filepath.Clean(root)
		if resolved, err := filepath.EvalSymlinks(root); err == nil {
			root = resolved
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			continue
		}
		if rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))) {
			return path, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrOutsideAllowedRoots, path)
}
