package api

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestSetupRouter_BasicRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := SetupRouter(newTestServices(t, &fakeModel{}))

	if w := doJSON(r, "GET", "/health", "", nil); w.Code != http.StatusOK {
		t.Errorf("GET /health should return 200, got %d", w.Code)
	}
	if w := doJSON(r, "GET", "/config", "", nil); w.Code != http.StatusOK {
		t.Errorf("GET /config should return 200, got %d", w.Code)
	}
	if w := doJSON(r, "GET", "/nope", "", nil); w.Code != http.StatusNotFound {
		t.Errorf("unknown route should return 404, got %d", w.Code)
	}
}

func TestSetupRouter_Subpath(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := newTestServices(t, &fakeModel{})
	svc.Config.Server.Subpath = "/triage"
	r := SetupRouter(svc)

	if w := doJSON(r, "GET", "/triage/health", "", nil); w.Code != http.StatusOK {
		t.Errorf("GET /triage/health should return 200, got %d", w.Code)
	}
	if w := doJSON(r, "GET", "/health", "", nil); w.Code != http.StatusNotFound {
		t.Errorf("GET /health outside the subpath should return 404, got %d", w.Code)
	}
}

func TestSetupRouter_ProtectedRoutesNeedToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := SetupRouter(newTestServices(t, &fakeModel{}))
	for _, route := range []struct{ method, path string }{
		{"GET", "/conversations"},
		{"POST", "/conversations"},
		{"GET", "/knowledge/search?q=x"},
		{"POST", "/knowledge"},
		{"GET", "/tools"},
		{"POST", "/tools/check_pool"},
		{"POST", "/fetch"},
		{"GET", "/models"},
		{"GET", "/ws/chat"},
	} {
		if w := doJSON(r, route.method, route.path, "", nil); w.Code != http.StatusUnauthorized {
			t.Errorf("%s %s without token: expected 401, got %d", route.method, route.path, w.Code)
		}
	}
}
