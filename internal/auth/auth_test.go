package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/hospital-availability/internal/apperrors"
)

func TestPresenceOnlyMode(t *testing.T) {
	a := NewAuthenticator("")
	_, err := a.Authenticate("  ")
	assert.Equal(t, apperrors.KindUnauthorized, apperrors.KindOf(err))

	p, err := a.Authenticate("opaque-token")
	require.NoError(t, err)
	assert.Equal(t, "opaque-token", p.UserID)
}

func TestJWTMode(t *testing.T) {
	a := NewAuthenticator("s3cret")
	tok, err := Issue("s3cret", "u1", "admin", time.Hour)
	require.NoError(t, err)

	p, err := a.Authenticate(tok)
	require.NoError(t, err)
	assert.Equal(t, Principal{UserID: "u1", Role: "admin"}, p)

	forged, err := Issue("other", "u1", "admin", time.Hour)
	require.NoError(t, err)
	_, err = a.Authenticate(forged)
	assert.Equal(t, apperrors.KindUnauthorized, apperrors.KindOf(err))

	_, err = a.Authenticate("not-a-jwt")
	assert.Equal(t, apperrors.KindUnauthorized, apperrors.KindOf(err))
}

func TestExpiredToken(t *testing.T) {
	a := NewAuthenticator("s3cret")
	tok, err := Issue("s3cret", "u1", "", -time.Minute)
	require.NoError(t, err)
	_, err = a.Authenticate(tok)
	require.Error(t, err)
	assert.Equal(t, "Token expired", apperrors.Message(err))
}

func TestPrincipalContext(t *testing.T) {
	ctx := WithPrincipal(context.Background(), Principal{UserID: "u9"})
	p, ok := FromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, "u9", p.UserID)

	_, ok = FromContext(context.Background())
	assert.False(t, ok)
}
