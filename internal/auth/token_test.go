package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestIssuer() *Issuer {
	return NewIssuer("access-secret", "refresh-secret", 24*time.Hour, 7*24*time.Hour)
}

func TestAccessTokenRoundTrip(t *testing.T) {
	i := newTestIssuer()

	token, exp, err := i.AccessToken("user-1", "STUDIO_ADMIN")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().UTC().Add(24*time.Hour), exp, 5*time.Second)

	claims, err := i.VerifyAccess(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "STUDIO_ADMIN", claims.Role)
}

func TestRefreshTokenRoundTrip(t *testing.T) {
	i := newTestIssuer()

	token, exp, err := i.RefreshToken("user-1")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().UTC().Add(7*24*time.Hour), exp, 5*time.Second)

	claims, err := i.VerifyRefresh(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
}

func TestSecretSeparation(t *testing.T) {
	i := newTestIssuer()

	access, _, err := i.AccessToken("user-1", "USER")
	require.NoError(t, err)
	refresh, _, err := i.RefreshToken("user-1")
	require.NoError(t, err)

	// A token of one kind never verifies as the other.
	_, err = i.VerifyRefresh(access)
	assert.ErrorIs(t, err, ErrInvalidToken)
	_, err = i.VerifyAccess(refresh)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsForgedToken(t *testing.T) {
	i := newTestIssuer()
	other := NewIssuer("other-access", "other-refresh", time.Hour, time.Hour)

	forged, _, err := other.AccessToken("user-1", "SUPER_ADMIN")
	require.NoError(t, err)

	_, err = i.VerifyAccess(forged)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	expired := NewIssuer("access-secret", "refresh-secret", -time.Minute, -time.Minute)

	access, _, err := expired.AccessToken("user-1", "USER")
	require.NoError(t, err)
	refresh, _, err := expired.RefreshToken("user-1")
	require.NoError(t, err)

	i := newTestIssuer()
	_, err = i.VerifyAccess(access)
	assert.ErrorIs(t, err, ErrInvalidToken)
	_, err = i.VerifyRefresh(refresh)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsGarbage(t *testing.T) {
	i := newTestIssuer()

	for _, token := range []string{"", "garbage", "a.b.c"} {
		_, err := i.VerifyAccess(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
		_, err = i.VerifyRefresh(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	}
}
