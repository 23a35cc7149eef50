package api

import (
	"log"
	"net/http"
	"time"

	"go-triage/internal/auth"
	"go-triage/internal/config"
	"go-triage/internal/db"
	"go-triage/internal/user"

	"github.com/gin-gonic/gin"
)

const tokenLifetime = 7 * 24 * time.Hour

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}
type LoginResponse struct {
	Token    string `json:"token"`
	UserID   uint   `json:"userId"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

func LoginHandler(cfg *config.Config, sessions auth.SessionStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		// If no users exist, indicate need for setup
		var count int64
		if err := db.DB.Model(&user.User{}).Count(&count).Error; err != nil {
			errorJSON(c, http.StatusInternalServerError, "DB error")
			return
		}
		if count == 0 {
			c.JSON(http.StatusForbidden, gin.H{"error": gin.H{"message": "Initial setup required", "need_setup": true}})
			return
		}
		var req LoginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			errorJSON(c, http.StatusBadRequest, "Invalid request")
			return
		}
		var u user.User
		if err := db.DB.Where("username = ?", req.Username).First(&u).Error; err != nil {
			errorJSON(c, http.StatusUnauthorized, "Invalid username or password")
			return
		}
		if err := user.CheckPassword(u.PasswordHash, req.Password); err != nil {
			errorJSON(c, http.StatusUnauthorized, "Invalid username or password")
			return
		}
		token, err := auth.GenerateJWT(cfg.Server.JWTSecret, &u, tokenLifetime)
		if err != nil {
			errorJSON(c, http.StatusInternalServerError, "Failed to generate token")
			return
		}
		if err := sessions.Set(c.Request.Context(), u.ID, token, auth.SessionIdleTimeout); err != nil {
			log.Printf("[API] Failed to store session for user %d: %v", u.ID, err)
			errorJSON(c, http.StatusInternalServerError, "Failed to start session")
			return
		}
		c.JSON(http.StatusOK, LoginResponse{
			Token:    token,
			UserID:   u.ID,
			Username: u.Username,
			Role:     string(u.Role),
		})
	}
}

func LogoutHandler(sessions auth.SessionStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := getUserIDFromContext(c)
		if !ok {
			errorJSON(c, http.StatusUnauthorized, "Not authenticated")
			return
		}
		_ = sessions.Delete(c.Request.Context(), userID)
		c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
	}
}

func MeHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, _ := getUserIDFromContext(c)
		var u user.User
		if err := db.DB.First(&u, userID).Error; err != nil {
			errorJSON(c, http.StatusNotFound, "User not found")
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"id":        u.ID,
			"username":  u.Username,
			"role":      u.Role,
			"createdAt": u.CreatedAt,
		})
	}
}

// OnlineUserCountHandler returns the number of unique online users.
func OnlineUserCountHandler(sessions auth.SessionStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		count, err := sessions.OnlineCount(c.Request.Context())
		if err != nil {
			errorJSON(c, http.StatusInternalServerError, "Failed to count online users")
			return
		}
		c.JSON(http.StatusOK, gin.H{"online": count})
	}
}
