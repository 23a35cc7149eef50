package api

import (
	"log"
	"net/http"

	"go-triage/internal/config"
	"go-triage/internal/llm"

	"github.com/gin-gonic/gin"
)

func errorJSON(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{"error": gin.H{"message": message}})
}

// Helper to extract user ID from context
func getUserIDFromContext(c *gin.Context) (uint, bool) {
	idVal, exists := c.Get("userId")
	if !exists {
		return 0, false
	}
	switch v := idVal.(type) {
	case uint:
		return v, true
	case int:
		return uint(v), true
	case float64:
		return uint(v), true
	default:
		return 0, false
	}
}

// GET /health
func healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

// GET /config
func configHandler(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Only return non-sensitive config fields
		c.JSON(http.StatusOK, gin.H{
			"server": gin.H{
				"host":    cfg.Server.Host,
				"port":    cfg.Server.Port,
				"subpath": cfg.Server.Subpath,
			},
			"llm": gin.H{
				"base_url":        cfg.LLM.BaseURL,
				"model":           cfg.LLM.Model,
				"embedding_model": cfg.LLM.EmbeddingModel,
				"temperature":     cfg.LLM.Temperature,
				"max_tokens":      cfg.LLM.MaxTokens,
			},
			"knowledge": gin.H{
				"backend": cfg.Knowledge.Backend,
				"top_k":   cfg.Knowledge.TopK,
			},
			"agent": cfg.Agent,
			"tools": gin.H{
				"enable_log_analysis": cfg.Tools.EnableLogAnalysis,
				"enable_metric_query": cfg.Tools.EnableMetricQuery,
				"enable_command":      cfg.Tools.EnableCommand,
			},
			"searxng": gin.H{"enabled": cfg.SearxNG.URL != ""},
		})
	}
}

// GET /models
func ModelsHandler(discovery *llm.DiscoveryService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if discovery == nil {
			errorJSON(c, http.StatusServiceUnavailable, "Model discovery not configured")
			return
		}
		models, err := discovery.GetModels(c.Request.Context())
		if err != nil {
			log.Printf("[API] Model discovery failed: %v", err)
		}
		if models == nil {
			models = []llm.ModelInfo{}
		}
		status := discovery.Status()
		c.JSON(http.StatusOK, gin.H{
			"models":       models,
			"is_online":    status.IsOnline,
			"last_updated": status.LastUpdated,
			"error_count":  status.ErrorCount,
		})
	}
}
