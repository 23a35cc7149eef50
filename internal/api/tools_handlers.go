package api

import (
	"net/http"

	"go-triage/internal/tools"

	"github.com/gin-gonic/gin"
)

// GET /tools
func ListToolsHandler(registry *tools.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, registry.List())
	}
}

// POST /tools/:name  [admin only] runs a tool with the JSON body as its
// parameters.
func RunToolHandler(registry *tools.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		name := c.Param("name")
		if _, err := registry.Get(name); err != nil {
			errorJSON(c, http.StatusNotFound, err.Error())
			return
		}
		params := map[string]any{}
		if c.Request.ContentLength != 0 {
			if err := c.ShouldBindJSON(&params); err != nil {
				errorJSON(c, http.StatusBadRequest, "parameters must be a JSON object")
				return
			}
		}
		c.JSON(http.StatusOK, registry.Execute(c.Request.Context(), name, params))
	}
}
