package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simshield/simshield-server/internal/config"
)

func newTestManager() *JWTManager {
	cfg := &config.JWTConfig{
		Secret:          "unit-test-secret",
		AccessTokenTTL:  config.Duration{Duration: 15 * time.Minute},
		RefreshTokenTTL: config.Duration{Duration: time.Hour},
	}
	return NewJWTManager(cfg)
}

func TestTokenRoundTrip(t *testing.T) {
	m := newTestManager()

	access, refresh, err := m.GenerateTokenPair("admin@example.com")
	require.NoError(t, err)
	require.NotEmpty(t, access)
	require.NotEmpty(t, refresh)

	claims, err := m.ValidateToken(access)
	require.NoError(t, err)
	assert.Equal(t, "admin@example.com", claims.Email)
	assert.True(t, claims.IsAdmin)
	assert.Equal(t, "simshield-server", claims.Issuer)
}

func TestValidateRejectsWrongSecret(t *testing.T) {
	m := newTestManager()

	access, _, err := m.GenerateTokenPair("admin@example.com")
	require.NoError(t, err)

	other := NewJWTManager(&config.JWTConfig{
		Secret:          "different-secret",
		AccessTokenTTL:  config.Duration{Duration: 15 * time.Minute},
		RefreshTokenTTL: config.Duration{Duration: time.Hour},
	})
	_, err = other.ValidateToken(access)
	assert.Error(t, err)
}

func TestValidateRejectsGarbage(t *testing.T) {
	m := newTestManager()

	_, err := m.ValidateToken("not.a.token")
	assert.Error(t, err)
}

func TestRefreshIssuesNewPair(t *testing.T) {
	m := newTestManager()

	_, refresh, err := m.GenerateTokenPair("admin@example.com")
	require.NoError(t, err)

	access, _, err := m.RefreshToken(refresh)
	require.NoError(t, err)

	claims, err := m.ValidateToken(access)
	require.NoError(t, err)
	assert.Equal(t, "admin@example.com", claims.Email)
}

func TestRefreshRejectsExpiredToken(t *testing.T) {
	m := NewJWTManager(&config.JWTConfig{
		Secret:          "unit-test-secret",
		AccessTokenTTL:  config.Duration{Duration: 15 * time.Minute},
		RefreshTokenTTL: config.Duration{Duration: -time.Minute},
	})

	_, refresh, err := m.GenerateTokenPair("admin@example.com")
	require.NoError(t, err)

	_, _, err = m.RefreshToken(refresh)
	assert.Error(t, err)
}
