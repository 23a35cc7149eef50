package api

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"go-triage/internal/fetcher"
	"go-triage/internal/user"
)

func TestFetchHandler(t *testing.T) {
	logs := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		fmt.Fprintln(w, "2024-01-01 10:00:00 ERROR connection refused from 10.0.0.5")
		fmt.Fprintln(w, "2024-01-01 10:00:01 INFO retrying")
	}))
	defer logs.Close()

	svc := newTestServices(t, &fakeModel{})
	r := SetupRouter(svc)
	_, tok := loginAs(t, svc, "ops", user.RoleUser)

	if w := doJSON(r, "POST", "/fetch", tok, FetchRequest{URL: logs.URL}); w.Code != http.StatusServiceUnavailable {
		t.Errorf("without fetcher: expected 503, got %d", w.Code)
	}

	svc.Fetcher = fetcher.New(svc.Config.Fetcher, nil)
	r = SetupRouter(svc)

	w := doJSON(r, "POST", "/fetch", tok, FetchRequest{URL: logs.URL + "/app.log"})
	if w.Code != http.StatusOK || !contains(w.Body.String(), "connection refused") || !contains(w.Body.String(), `"error_count":1`) {
		t.Errorf("fetch url: got %d: %s", w.Code, w.Body.String())
	}

	w = doJSON(r, "POST", "/fetch", tok, FetchRequest{Text: "see " + logs.URL + "/app.log please"})
	if w.Code != http.StatusOK || !contains(w.Body.String(), `"fetch_success":true`) {
		t.Errorf("fetch text: got %d: %s", w.Code, w.Body.String())
	}

	if w := doJSON(r, "POST", "/fetch", tok, FetchRequest{URL: "ssh://host/var/log/app.log"}); w.Code != http.StatusBadRequest {
		t.Errorf("unsupported link: expected 400, got %d", w.Code)
	}
	if w := doJSON(r, "POST", "/fetch", tok, FetchRequest{URL: "/etc/passwd"}); w.Code != http.StatusBadRequest {
		t.Errorf("outside allowed roots: expected 400, got %d", w.Code)
	}
	if w := doJSON(r, "POST", "/fetch", tok, FetchRequest{}); w.Code != http.StatusBadRequest {
		t.Errorf("empty request: expected 400, got %d", w.Code)
	}
}
