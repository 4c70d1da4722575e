package auth

import (
	"context"
	"testing"
	"time"

	"github.com/go-chi/jwtauth/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andymarkow/accountmart/internal/domain/users"
)

func TestJWTAuth_RoundTrip(t *testing.T) {
	a := NewJWTAuth([]byte("secret"), WithIssuer("test"), WithTokenTTL(time.Hour))

	tests := []struct {
		name string
		role users.Role
	}{
		{name: "User", role: users.RoleUser},
		{name: "Admin", role: users.RoleAdmin},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tokenString, err := a.CreateJWTString("u1", tt.role)
			require.NoError(t, err)

			token, err := a.TokenAuth().Decode(tokenString)
			require.NoError(t, err)

			ctx := jwtauth.NewContext(context.Background(), token, nil)

			identity, err := IdentityFromContext(ctx)
			require.NoError(t, err)
			assert.Equal(t, users.Identity{UserID: "u1", Role: tt.role}, identity)
		})
	}
}

func TestIdentityFromContext_NoToken(t *testing.T) {
	identity, err := IdentityFromContext(context.Background())
	require.NoError(t, err)
	assert.True(t, identity.IsAnonymous())
}

func TestJWTAuth_WrongSecret(t *testing.T) {
	tokenString, err := NewJWTAuth([]byte("secret")).CreateJWTString("u1", users.RoleUser)
	require.NoError(t, err)

	_, err = NewJWTAuth([]byte("other")).TokenAuth().Decode(tokenString)
	assert.Error(t, err)
}

func TestIdentityFromContext_VerifierWithoutToken(t *testing.T) {
	ctx := jwtauth.NewContext(context.Background(), nil, jwtauth.ErrNoTokenFound)

	identity, err := IdentityFromContext(ctx)
	require.NoError(t, err)
	assert.True(t, identity.IsAnonymous())
}
