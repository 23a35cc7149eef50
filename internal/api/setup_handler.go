package api

import (
	"net/http"
	"strings"

	"go-triage/internal/db"
	"go-triage/internal/user"

	"github.com/gin-gonic/gin"
)

type SetupRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// GET /setup
func SetupStatusHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"need_setup": !usersExist()})
	}
}

// POST /setup creates the first admin. It is refused once any user exists.
func SetupHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var count int64
		if err := db.DB.Model(&user.User{}).Count(&count).Error; err != nil {
			errorJSON(c, http.StatusInternalServerError, "DB error")
			return
		}
		if count != 0 {
			errorJSON(c, http.StatusForbidden, "Setup not allowed; users already exist")
			return
		}
		var req SetupRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			errorJSON(c, http.StatusBadRequest, "Invalid request")
			return
		}
		if req.Username == "" || req.Password == "" {
			errorJSON(c, http.StatusBadRequest, "Username and password required")
			return
		}
		if len(req.Username) > 32 {
			errorJSON(c, http.StatusBadRequest, "Username too long")
			return
		}
		pwHash, err := user.HashPassword(req.Password)
		if err != nil {
			errorJSON(c, http.StatusInternalServerError, "Password hash failed")
			return
		}
		u := user.User{
			Username:     req.Username,
			PasswordHash: pwHash,
			Role:         user.RoleAdmin,
		}
		if err := db.DB.Create(&u).Error; err != nil {
			if strings.Contains(strings.ToLower(err.Error()), "unique") {
				errorJSON(c, http.StatusBadRequest, "Username already exists")
				return
			}
			errorJSON(c, http.StatusInternalServerError, "DB error")
			return
		}
		c.JSON(http.StatusCreated, gin.H{
			"id":             u.ID,
			"username":       u.Username,
			"role":           u.Role,
			"createdAt":      u.CreatedAt,
			"setup_complete": true,
		})
	}
}
