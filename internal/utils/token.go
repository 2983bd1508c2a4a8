// internal/utils/token.go
package utils

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// PlaybackClaims is the payload of a bearer playback token: one wallet, one
// media object, fixed expiry. There is no revocation list; expiry is the
// only enforcement mechanism.
type PlaybackClaims struct {
	WalletAddress string `json:"wallet_address"`
	TokenID       int64  `json:"token_id"`
	jwt.RegisteredClaims
}

var playbackSecret = []byte("playback-secret-change-in-production")

func SetPlaybackSecret(secret string) {
	playbackSecret = []byte(secret)
}

func GeneratePlaybackToken(walletAddress string, tokenID int64, ttl time.Duration) (string, error) {
	jti, err := GenerateRandomString(16)
	if err != nil {
		return "", err
	}

	now := time.Now()
	claims := PlaybackClaims{
		WalletAddress: walletAddress,
		TokenID:       tokenID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    "mixtape-backend",
			Subject:   walletAddress,
			ID:        jti,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(playbackSecret)
}

func ValidatePlaybackToken(tokenString string) (*PlaybackClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &PlaybackClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return playbackSecret, nil
	})

	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*PlaybackClaims); ok && token.Valid {
		return claims, nil
	}

	return nil, errors.New("invalid playback token")
}
