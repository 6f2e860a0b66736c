// Package auth implements the token gate in front of mutating routes.
package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/example/hospital-availability/internal/apperrors"
)

// RoleAdmin may manage any hospital regardless of owner.
const RoleAdmin = "admin"

// Principal is the authenticated caller.
type Principal struct {
	UserID string
	Role   string
}

// Claims mirrors the payload issued by the account service:
// {"user": {"id": "...", "role": "..."}}. Subject is accepted as a fallback.
type Claims struct {
	User struct {
		ID   string `json:"id"`
		Role string `json:"role,omitempty"`
	} `json:"user"`
	jwt.RegisteredClaims
}

// Authenticator turns a raw header token into a Principal. With no secret
// configured it only checks that a token is present and uses the token
// itself as the caller identity.
type Authenticator struct {
	secret []byte
}

func NewAuthenticator(secret string) *Authenticator {
	return &Authenticator{secret: []byte(secret)}
}

func (a *Authenticator) Verifies() bool { return len(a.secret) > 0 }

func (a *Authenticator) Authenticate(token string) (Principal, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Principal{}, apperrors.Unauthorized("No token, authorization denied")
	}
	if !a.Verifies() {
		return Principal{UserID: token}, nil
	}
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Principal{}, apperrors.Unauthorized("Token expired")
		}
		return Principal{}, apperrors.Unauthorized("Token is not valid")
	}
	p := Principal{UserID: claims.User.ID, Role: claims.User.Role}
	if p.UserID == "" {
		p.UserID = claims.Subject
	}
	if p.UserID == "" {
		return Principal{}, apperrors.Unauthorized("Token is not valid")
	}
	return p, nil
}

// Issue signs a token for userID. Used by tooling and tests; the API
// itself never mints tokens.
func Issue(secret, userID, role string, ttl time.Duration) (string, error) {
	claims := Claims{}
	claims.User.ID = userID
	claims.User.Role = role
	claims.Subject = userID
	now := time.Now()
	claims.IssuedAt = jwt.NewNumericDate(now)
	if ttl != 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

type ctxKey struct{}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, ctxKey{}, p)
}

func FromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(ctxKey{}).(Principal)
	return p, ok
}
