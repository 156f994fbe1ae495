package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fortrealm/server/internal/errs"
)

func TestTokenRoundTrip(t *testing.T) {
	m := NewTokenManager("topsecret", time.Hour)

	token, err := m.Issue(42, "Waldgeist")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := m.Parse(token)
	require.NoError(t, err)
	assert.EqualValues(t, 42, claims.UserID)
	assert.Equal(t, "Waldgeist", claims.Username)
	assert.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt.Time, 5*time.Second)
}

func TestTokenExpiredRejected(t *testing.T) {
	m := NewTokenManager("topsecret", -time.Minute)

	token, err := m.Issue(42, "Waldgeist")
	require.NoError(t, err)

	_, err = m.Parse(token)
	assert.ErrorIs(t, err, errs.ErrAuthInvalid)
}

func TestTokenWrongSecretRejected(t *testing.T) {
	token, err := NewTokenManager("secret-a", time.Hour).Issue(7, "x")
	require.NoError(t, err)

	_, err = NewTokenManager("secret-b", time.Hour).Parse(token)
	assert.ErrorIs(t, err, errs.ErrAuthInvalid)
}

func TestTokenGarbageRejected(t *testing.T) {
	m := NewTokenManager("topsecret", time.Hour)
	for _, tok := range []string{"", "not-a-token", "aaa.bbb.ccc"} {
		_, err := m.Parse(tok)
		assert.True(t, errors.Is(err, errs.ErrAuthInvalid), "token %q must be rejected", tok)
	}
}
