package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go-triage/internal/user"

	"github.com/gin-gonic/gin"
)

func setupRouter(sessions SessionStore, requireAdmin bool) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(AuthMiddleware(testSecret, sessions, requireAdmin))
	r.GET("/protected", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"username": c.GetString(CtxUsername)})
	})
	return r
}

func login(t *testing.T, sessions SessionStore, id uint, role user.Role) string {
	t.Helper()
	token, err := GenerateJWT(testSecret, &user.User{ID: id, Username: "tester", Role: role}, time.Hour)
	if err != nil {
		t.Fatalf("GenerateJWT: %v", err)
	}
	if err := sessions.Set(context.Background(), id, token, SessionIdleTimeout); err != nil {
		t.Fatalf("Set: %v", err)
	}
	return token
}

func doGet(r http.Handler, token string) int {
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w.Code
}

func TestAuthMiddleware(t *testing.T) {
	sessions := NewMemorySessions()
	token := login(t, sessions, 1, user.RoleUser)

	if code := doGet(setupRouter(sessions, false), token); code != http.StatusOK {
		t.Errorf("expected 200, got %d", code)
	}
	if code := doGet(setupRouter(sessions, false), ""); code != http.StatusUnauthorized {
		t.Errorf("missing header: expected 401, got %d", code)
	}
	if code := doGet(setupRouter(sessions, false), "garbage"); code != http.StatusUnauthorized {
		t.Errorf("bad token: expected 401, got %d", code)
	}
	if code := doGet(setupRouter(sessions, true), token); code != http.StatusForbidden {
		t.Errorf("non-admin: expected 403, got %d", code)
	}
}

func TestAuthMiddleware_SessionMustMatch(t *testing.T) {
	sessions := NewMemorySessions()
	old := login(t, sessions, 2, user.RoleAdmin)
	// A newer login replaces the session token.
	time.Sleep(1100 * time.Millisecond)
	current := login(t, sessions, 2, user.RoleAdmin)

	r := setupRouter(sessions, true)
	if code := doGet(r, old); code != http.StatusUnauthorized {
		t.Errorf("stale token: expected 401, got %d", code)
	}
	if code := doGet(r, current); code != http.StatusOK {
		t.Errorf("current token: expected 200, got %d", code)
	}

	_ = sessions.Delete(context.Background(), 2)
	if code := doGet(r, current); code != http.StatusUnauthorized {
		t.Errorf("after logout: expected 401, got %d", code)
	}
}
