package auth

import (
	"errors"
	"testing"
	"time"

	"go-triage/internal/user"

	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "my_test_jwt_secret"

func TestGenerateAndParseJWT(t *testing.T) {
	u := &user.User{ID: 42, Username: "testuser", Role: user.RoleUser}

	tokenString, err := GenerateJWT(testSecret, u, time.Hour)
	if err != nil {
		t.Fatalf("failed to generate JWT: %v", err)
	}
	if tokenString == "" {
		t.Fatalf("empty token string")
	}

	claims, err := ParseJWT(testSecret, tokenString)
	if err != nil {
		t.Fatalf("failed to parse JWT: %v", err)
	}
	if claims.UserID != u.ID || claims.Subject != "42" {
		t.Errorf("expected user 42, got id=%d sub=%q", claims.UserID, claims.Subject)
	}
	if claims.Username != u.Username {
		t.Errorf("expected username=%s, got %s", u.Username, claims.Username)
	}
	if claims.Role != user.RoleUser || claims.IsAdmin() {
		t.Errorf("expected plain user role, got %s", claims.Role)
	}
	if claims.ExpiresAt == nil || claims.ExpiresAt.Time.Before(time.Now()) {
		t.Errorf("token should not be expired, got expiresAt=%v", claims.ExpiresAt)
	}
}

func TestParseJWT_InvalidToken(t *testing.T) {
	if _, err := ParseJWT(testSecret, "this.is.not.a.valid.jwt"); err == nil {
		t.Errorf("expected error for invalid JWT, got nil")
	}
}

func TestParseJWT_WrongSecret(t *testing.T) {
	tokenString, err := GenerateJWT(testSecret, &user.User{ID: 99, Username: "wrongsecret", Role: user.RoleAdmin}, time.Hour)
	if err != nil {
		t.Fatalf("failed to generate JWT: %v", err)
	}
	if _, err := ParseJWT("totally_wrong_secret", tokenString); err == nil {
		t.Errorf("expected error for wrong secret, got nil")
	}
}

func TestParseJWT_Expired(t *testing.T) {
	tokenString, err := GenerateJWT(testSecret, &user.User{ID: 7, Username: "late", Role: user.RoleUser}, -time.Minute)
	if err != nil {
		t.Fatalf("failed to generate JWT: %v", err)
	}
	if _, err := ParseJWT(testSecret, tokenString); err == nil {
		t.Errorf("expected error for expired JWT, got nil")
	}
}

// Correctly signed tokens still need a known role and a subject that
// matches the user id.
func TestParseJWT_RejectsForgedClaims(t *testing.T) {
	sign := func(c Claims) string {
		s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString([]byte(testSecret))
		if err != nil {
			t.Fatal(err)
		}
		return s
	}
	base := jwt.RegisteredClaims{
		Issuer:    issuer,
		Subject:   "5",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}

	cases := map[string]Claims{
		"unknown role":     {UserID: 5, Username: "x", Role: "root", RegisteredClaims: base},
		"subject mismatch": {UserID: 1, Username: "x", Role: user.RoleAdmin, RegisteredClaims: base},
	}
	for name, c := range cases {
		if _, err := ParseJWT(testSecret, sign(c)); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("%s: expected ErrInvalidToken, got %v", name, err)
		}
	}

	otherIssuer := base
	otherIssuer.Issuer = "someone-else"
	if _, err := ParseJWT(testSecret, sign(Claims{UserID: 5, Role: user.RoleUser, RegisteredClaims: otherIssuer})); err == nil {
		t.Errorf("expected error for foreign issuer")
	}
}
