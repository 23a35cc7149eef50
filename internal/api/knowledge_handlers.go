package api

import (
	"log"
	"net/http"
	"strconv"
	"strings"

	"go-triage/internal/knowledge"
	"go-triage/internal/llm"

	"github.com/gin-gonic/gin"
)

// GET /knowledge/search?q=...&k=...
func KnowledgeSearchHandler(kb KnowledgeService, defaultK int) gin.HandlerFunc {
	return func(c *gin.Context) {
		query := strings.TrimSpace(c.Query("q"))
		if query == "" {
			errorJSON(c, http.StatusBadRequest, "missing q")
			return
		}
		k := defaultK
		if raw := c.Query("k"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n <= 0 {
				errorJSON(c, http.StatusBadRequest, "k must be a positive integer")
				return
			}
			k = n
		}
		results, err := kb.Search(c.Request.Context(), query, k)
		if err != nil {
			log.Printf("[API] Knowledge search failed: %v", err)
			errorJSON(c, http.StatusBadGateway, "knowledge search failed")
			return
		}
		if results == nil {
			results = []knowledge.Result{}
		}
		c.JSON(http.StatusOK, gin.H{"query": query, "results": results})
	}
}

// POST /knowledge  [admin only]
func AddKnowledgeHandler(kb KnowledgeService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Content  string         `json:"content"`
			Metadata map[string]any `json:"metadata,omitempty"`
		}
		if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Content) == "" {
			errorJSON(c, http.StatusBadRequest, "missing content")
			return
		}
		ctx := llm.WithPriority(c.Request.Context(), llm.PriorityBackground)
		if err := kb.Add(ctx, req.Content, req.Metadata); err != nil {
			log.Printf("[API] Adding knowledge failed: %v", err)
			errorJSON(c, http.StatusBadGateway, "failed to add knowledge")
			return
		}
		count, err := kb.Count(ctx)
		if err != nil {
			count = -1
		}
		c.JSON(http.StatusCreated, gin.H{"message": "Knowledge added", "count": count})
	}
}
