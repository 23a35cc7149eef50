package api

import (
	"errors"
	"net/http"
	"strings"

	"go-triage/internal/fetcher"

	"github.com/gin-gonic/gin"
)

// FetchRequest names one URL or path to fetch, or free text to scan for
// links.
type FetchRequest struct {
	URL  string `json:"url,omitempty"`
	Text string `json:"text,omitempty"`
}

// POST /fetch
func FetchHandler(f FetchService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if f == nil {
			errorJSON(c, http.StatusServiceUnavailable, "Fetcher not configured")
			return
		}
		var req FetchRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			errorJSON(c, http.StatusBadRequest, "Invalid request")
			return
		}
		ctx := c.Request.Context()
		switch {
		case strings.TrimSpace(req.URL) != "":
			doc, err := f.Fetch(ctx, req.URL, fetcher.DetectLinkType(req.URL))
			if err != nil {
				status := http.StatusBadGateway
				if errors.Is(err, fetcher.ErrUnsupportedLink) || errors.Is(err, fetcher.ErrOutsideAllowedRoots) {
					status = http.StatusBadRequest
				}
				errorJSON(c, status, err.Error())
				return
			}
			c.JSON(http.StatusOK, doc)
		case strings.TrimSpace(req.Text) != "":
			results := f.FetchFromInput(ctx, req.Text)
			if results == nil {
				results = []fetcher.FetchResult{}
			}
			c.JSON(http.StatusOK, gin.H{"results": results})
		default:
			errorJSON(c, http.StatusBadRequest, "url or text required")
		}
	}
}
