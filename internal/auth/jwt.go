package auth

import (
	"errors"
	"strconv"
	"time"

	"go-triage/internal/user"

	"github.com/golang-jwt/jwt/v5"
)

const issuer = "go-triage"

var ErrInvalidToken = errors.New("invalid token")

// Claims identify an operator. The subject carries the user id as well so
// generic JWT tooling can read it.
type Claims struct {
	UserID   uint      `json:"userId"`
	Username string    `json:"username"`
	Role     user.Role `json:"role"`
	jwt.RegisteredClaims
}

func (c *Claims) IsAdmin() bool { return c.Role == user.RoleAdmin }

// GenerateJWT signs an HS256 session token for u valid for ttl.
func GenerateJWT(secret string, u *user.User, ttl time.Duration) (string, error) {
	now := time.Now().UTC()
	claims := Claims{
		UserID:   u.ID,
		Username: u.Username,
		Role:     u.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   strconv.FormatUint(uint64(u.ID), 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// ParseJWT validates a token issued by GenerateJWT. Tokens whose subject
// and user id disagree, or whose role is unknown, are rejected.
func ParseJWT(secret, tokenStr string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(*jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(issuer))
	if err != nil {
		return nil, err
	}
	if !token.Valid || !claims.Role.Valid() || claims.Subject != strconv.FormatUint(uint64(claims.UserID), 10) {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
