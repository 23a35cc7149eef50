package parser

import (
	"regexp"
	"sort"
	"strings"
)

// LinkType names the pattern that matched a link.
type LinkType string

const (
	LinkHTTP    LinkType = "http"
	LinkFile    LinkType = "file"
	LinkSSH     LinkType = "ssh"
	LinkFTP     LinkType = "ftp"
	LinkLogPath LinkType = "log_path"
)

// Link is a reference found in free text. Start and End are byte offsets.
type Link struct {
	Type  LinkType `json:"type"`
	URL   string   `json:"url"`
	Start int      `json:"start"`
	End   int      `json:"end"`
}

// Patterns are tried in this order; on equal start offsets the earlier
// pattern wins.
var linkPatterns = []struct {
	typ LinkType
	re  *regexp.Regexp
}{
	{LinkHTTP, regexp.MustCompile("(?i)https?://[^\\s<>\"{}|\\\\^`\\[\\]]+")},
	{LinkFile, regexp.MustCompile(`(?i)(?:file://)?(?:/[^\s]+|[a-z]:[\\/][^\s]*)`)},
	{LinkSSH, regexp.MustCompile(`(?i)ssh://[^\s]+`)},
	{LinkFTP, regexp.MustCompile(`(?i)ftp://[^\s]+`)},
	{LinkLogPath, regexp.MustCompile(`(?i)(?:/var/log/[^\s]+|/logs?/[^\s]+|[^\s]*\.log[^\s]*)`)},
}

// ExtractLinks finds http, file, ssh, ftp and log path references in text.
// Links come back ordered by position. A URL is reported once, and a match
// that overlaps an earlier accepted link is dropped.
func ExtractLinks(text string) []Link {
	var found []Link
	for _, p := range linkPatterns {
		for _, loc := range p.re.FindAllStringIndex(text, -1) {
			if p.typ == LinkFile && !pathStart(text, loc[0]) {
				continue
			}
			url := strings.TrimRight(text[loc[0]:loc[1]], ".,;:!?)'\"")
			found = append(found, Link{
				Type:  p.typ,
				URL:   url,
				Start: loc[0],
				End:   loc[0] + len(url),
			})
		}
	}

	sort.SliceStable(found, func(i, j int) bool { return found[i].Start < found[j].Start })

	links := []Link{}
	seen := make(map[string]bool)
	lastEnd := -1
	for _, l := range found {
		if l.URL == "" || seen[l.URL] || l.Start < lastEnd {
			continue
		}
		seen[l.URL] = true
		links = append(links, l)
		lastEnd = l.End
	}
	return links
}

// pathStart rejects path matches glued to a preceding word, such as the
// "/or" in "and/or" or the "s://" tail of a URL scheme.
func pathStart(text string, start int) bool {
	if start == 0 {
		return true
	}
	switch text[start-1] {
	case ' ', '\t', '\n', '\r', '"', '\'', '(', '<', '[', '=', ',':
		return true
	}
	return false
}
