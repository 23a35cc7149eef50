package api

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"go-triage/internal/auth"
	"go-triage/internal/db"
	"go-triage/internal/user"
)

func TestUserAdminRoutes(t *testing.T) {
	svc := newTestServices(t, &fakeModel{})
	r := SetupRouter(svc)
	admin, adminTok := loginAs(t, svc, "root", user.RoleAdmin)
	_, userTok := loginAs(t, svc, "ops", user.RoleUser)

	if w := doJSON(r, "GET", "/users", userTok, nil); w.Code != http.StatusForbidden {
		t.Errorf("non-admin list: expected 403, got %d", w.Code)
	}
	w := doJSON(r, "GET", "/users", adminTok, nil)
	if w.Code != http.StatusOK || !contains(w.Body.String(), "ops") {
		t.Fatalf("list: got %d: %s", w.Code, w.Body.String())
	}
	if contains(w.Body.String(), "PasswordHash") || contains(w.Body.String(), "$2a$") {
		t.Errorf("password hashes must not be listed: %s", w.Body.String())
	}

	w = doJSON(r, "POST", "/users", adminTok, map[string]string{"username": "newbie", "password": "pw"})
	if w.Code != http.StatusCreated {
		t.Fatalf("create: got %d: %s", w.Code, w.Body.String())
	}
	var created user.User
	if err := db.DB.Where("username = ?", "newbie").First(&created).Error; err != nil {
		t.Fatalf("user not created: %v", err)
	}
	if created.Role != user.RoleUser {
		t.Errorf("default role should be user, got %s", created.Role)
	}

	if w := doJSON(r, "POST", "/users", adminTok, map[string]string{"username": "x", "password": "pw", "role": "root"}); w.Code != http.StatusBadRequest {
		t.Errorf("unknown role on create: expected 400, got %d", w.Code)
	}
	if w := doJSON(r, "PUT", fmt.Sprintf("/users/%d", created.ID), adminTok, UpdateUserRequest{Role: "root"}); w.Code != http.StatusBadRequest {
		t.Errorf("unknown role on update: expected 400, got %d", w.Code)
	}

	w = doJSON(r, "PUT", fmt.Sprintf("/users/%d", created.ID), adminTok, UpdateUserRequest{Password: "changed", Role: "admin"})
	if w.Code != http.StatusOK {
		t.Fatalf("update: got %d: %s", w.Code, w.Body.String())
	}
	var updated user.User
	db.DB.First(&updated, created.ID)
	if updated.Role != user.RoleAdmin {
		t.Errorf("role not updated: %s", updated.Role)
	}
	if err := user.CheckPassword(updated.PasswordHash, "changed"); err != nil {
		t.Errorf("password not updated: %v", err)
	}

	if w := doJSON(r, "DELETE", fmt.Sprintf("/users/%d", admin.ID), adminTok, nil); w.Code != http.StatusBadRequest {
		t.Errorf("self delete: expected 400, got %d", w.Code)
	}
	if w := doJSON(r, "DELETE", fmt.Sprintf("/users/%d", created.ID), adminTok, nil); w.Code != http.StatusOK {
		t.Fatalf("delete: got %d: %s", w.Code, w.Body.String())
	}
	if _, err := svc.Sessions.Get(context.Background(), created.ID); err != auth.ErrNoSession {
		t.Errorf("deleted user should have no session, got %v", err)
	}
	if w := doJSON(r, "DELETE", "/users/9999", adminTok, nil); w.Code != http.StatusNotFound {
		t.Errorf("missing user: expected 404, got %d", w.Code)
	}
}
