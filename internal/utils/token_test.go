// internal/utils/token_test.go
package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlaybackTokenRoundTrip(t *testing.T) {
	SetPlaybackSecret("round-trip-secret")

	token, err := GeneratePlaybackToken("0x1111111111111111111111111111111111111111", 1, time.Hour)
	require.NoError(t, err)

	claims, err := ValidatePlaybackToken(token)
	require.NoError(t, err)
	assert.Equal(t, "0x1111111111111111111111111111111111111111", claims.WalletAddress)
	assert.Equal(t, int64(1), claims.TokenID)
	assert.Equal(t, "mixtape-backend", claims.Issuer)
	assert.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt.Time, 5*time.Second)
}

func TestExpiredPlaybackTokenRejected(t *testing.T) {
	SetPlaybackSecret("round-trip-secret")

	token, err := GeneratePlaybackToken("0x1111111111111111111111111111111111111111", 1, -time.Minute)
	require.NoError(t, err)

	_, err = ValidatePlaybackToken(token)
	assert.Error(t, err)
}

func TestPlaybackTokenSignedWithOtherSecretRejected(t *testing.T) {
	SetPlaybackSecret("secret-one")
	token, err := GeneratePlaybackToken("0x1111111111111111111111111111111111111111", 1, time.Hour)
	require.NoError(t, err)

	SetPlaybackSecret("secret-two")
	_, err = ValidatePlaybackToken(token)
	assert.Error(t, err)
}

func TestPlaybackTokensCarryUniqueIDs(t *testing.T) {
	SetPlaybackSecret("round-trip-secret")

	first, err := GeneratePlaybackToken("0x1111111111111111111111111111111111111111", 1, time.Hour)
	require.NoError(t, err)
	second, err := GeneratePlaybackToken("0x1111111111111111111111111111111111111111", 1, time.Hour)
	require.NoError(t, err)

	firstClaims, err := ValidatePlaybackToken(first)
	require.NoError(t, err)
	secondClaims, err := ValidatePlaybackToken(second)
	require.NoError(t, err)

	assert.NotEqual(t, firstClaims.ID, secondClaims.ID)
}
