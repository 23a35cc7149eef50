package api

import (
	"errors"
	"net/http"
	"strconv"

	"go-triage/internal/auth"
	"go-triage/internal/db"
	"go-triage/internal/user"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

func userJSON(u user.User) gin.H {
	return gin.H{
		"id":        u.ID,
		"username":  u.Username,
		"role":      u.Role,
		"createdAt": u.CreatedAt,
	}
}

// GET /users  [admin only]
func ListUsersHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var users []user.User
		if err := db.DB.Order("id asc").Find(&users).Error; err != nil {
			errorJSON(c, http.StatusInternalServerError, "List error")
			return
		}
		result := make([]gin.H, 0, len(users))
		for _, u := range users {
			result = append(result, userJSON(u))
		}
		c.JSON(http.StatusOK, result)
	}
}

// POST /users  [admin only]
func CreateUserHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Username string `json:"username"`
			Password string `json:"password"`
			Role     string `json:"role"`
		}
		if err := c.ShouldBindJSON(&req); err != nil || req.Username == "" || req.Password == "" {
			errorJSON(c, http.StatusBadRequest, "Missing username or password")
			return
		}
		role, err := user.ParseRole(req.Role)
		if err != nil {
			errorJSON(c, http.StatusBadRequest, "Role must be admin or user")
			return
		}
		pwHash, err := user.HashPassword(req.Password)
		if err != nil {
			errorJSON(c, http.StatusInternalServerError, "Password hash failed")
			return
		}
		newUser := user.User{
			Username:     req.Username,
			PasswordHash: pwHash,
			Role:         role,
		}
		if err := db.DB.Create(&newUser).Error; err != nil {
			errorJSON(c, http.StatusInternalServerError, "Create error")
			return
		}
		c.JSON(http.StatusCreated, userJSON(newUser))
	}
}

type UpdateUserRequest struct {
	Password string `json:"password,omitempty"`
	Role     string `json:"role,omitempty"`
}

// PUT /users/:id  [admin only]. Changing the password or role ends the
// user's session.
func UpdateUserHandler(sessions auth.SessionStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.ParseUint(c.Param("id"), 10, 64)
		if err != nil {
			errorJSON(c, http.StatusBadRequest, "Invalid user id")
			return
		}
		var req UpdateUserRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			errorJSON(c, http.StatusBadRequest, "Invalid request")
			return
		}
		var role user.Role
		if req.Role != "" {
			if role, err = user.ParseRole(req.Role); err != nil {
				errorJSON(c, http.StatusBadRequest, "Role must be admin or user")
				return
			}
		}
		var u user.User
		if err := db.DB.First(&u, id).Error; err != nil {
			errorJSON(c, http.StatusNotFound, "User not found")
			return
		}
		if req.Password != "" {
			pwHash, err := user.HashPassword(req.Password)
			if err != nil {
				errorJSON(c, http.StatusInternalServerError, "Password hash failed")
				return
			}
			u.PasswordHash = pwHash
		}
		if role != "" {
			u.Role = role
		}
		if err := db.DB.Save(&u).Error; err != nil {
			errorJSON(c, http.StatusInternalServerError, "Update error")
			return
		}
		_ = sessions.Delete(c.Request.Context(), u.ID)
		c.JSON(http.StatusOK, gin.H{"message": "User updated"})
	}
}

// DELETE /users/:id  [admin only]
func DeleteUserHandler(sessions auth.SessionStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.ParseUint(c.Param("id"), 10, 64)
		if err != nil {
			errorJSON(c, http.StatusBadRequest, "Invalid user id")
			return
		}
		if self, _ := getUserIDFromContext(c); uint64(self) == id {
			errorJSON(c, http.StatusBadRequest, "Cannot delete yourself")
			return
		}
		var u user.User
		if err := db.DB.First(&u, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				errorJSON(c, http.StatusNotFound, "User not found")
				return
			}
			errorJSON(c, http.StatusInternalServerError, "DB error")
			return
		}
		if err := db.DB.Delete(&u).Error; err != nil {
			errorJSON(c, http.StatusInternalServerError, "Delete error")
			return
		}
		_ = sessions.Delete(c.Request.Context(), u.ID)
		c.JSON(http.StatusOK, gin.H{"message": "User deleted"})
	}
}
