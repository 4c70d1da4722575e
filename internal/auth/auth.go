// Package auth mints and reads the HS256 tokens of the identity provider.
// The subject carries the user id and the role claim the marketplace role.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-chi/jwtauth/v5"
	"github.com/golang-jwt/jwt/v4"

	"github.com/andymarkow/accountmart/internal/domain/users"
)

const roleClaim = "role"

type JWTAuth struct {
	secret   []byte
	issuer   string
	tokenTTL time.Duration
}

type Claims struct {
	Role string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

func NewJWTAuth(secret []byte, opts ...Option) *JWTAuth {
	a := &JWTAuth{
		secret:   secret,
		tokenTTL: 24 * time.Hour,
		issuer:   "accountmart",
	}

	for _, opt := range opts {
		opt(a)
	}

	return a
}

type Option func(a *JWTAuth)

func WithIssuer(issuer string) Option {
	return func(a *JWTAuth) {
		a.issuer = issuer
	}
}

func WithTokenTTL(ttl time.Duration) Option {
	return func(a *JWTAuth) {
		a.tokenTTL = ttl
	}
}

// TokenAuth returns the verifier matching the tokens minted by a.
func (a *JWTAuth) TokenAuth() *jwtauth.JWTAuth {
	return jwtauth.New("HS256", a.secret, nil)
}

func (a *JWTAuth) CreateJWTString(sub string, role users.Role) (string, error) {
	now := time.Now()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Role: string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    a.issuer,
			Subject:   sub,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.tokenTTL)),
		},
	})

	tokenString, err := token.SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("token.SignedString: %w", err)
	}

	return tokenString, nil
}

// IdentityFromContext reads the caller put into ctx by jwtauth.Verifier.
// A request without a token yields the anonymous identity.
func IdentityFromContext(ctx context.Context) (users.Identity, error) {
	token, claims, err := jwtauth.FromContext(ctx)
	if errors.Is(err, jwtauth.ErrNoTokenFound) {
		return users.Identity{}, nil
	}

	if err != nil {
		return users.Identity{}, fmt.Errorf("jwtauth.FromContext: %w", err)
	}

	if token == nil {
		return users.Identity{}, nil
	}

	rawRole, _ := claims[roleClaim].(string)

	role, err := users.ParseRole(rawRole)
	if err != nil {
		return users.Identity{}, fmt.Errorf("users.ParseRole: %w", err)
	}

	return users.Identity{UserID: token.Subject(), Role: role}, nil
}
