// internal/services/access_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mixtapefm/mixtape-backend/internal/config"
	"github.com/mixtapefm/mixtape-backend/internal/models"
	"github.com/mixtapefm/mixtape-backend/internal/utils"
)

// MetadataStore is implemented by MixtapeService.
type MetadataStore interface {
	GetByTokenID(ctx context.Context, tokenID int64) (*models.MixtapeMetadata, error)
}

// URLPresigner is implemented by StorageService.
type URLPresigner interface {
	Configured() bool
	PresignGet(key string, expiration time.Duration) (string, error)
}

// Grant is a bearer capability for one media object. Expiry is the only
// enforcement mechanism; nothing is persisted and nothing can be revoked.
type Grant struct {
	MediaURL  string
	ExpiresAt time.Time
}

// AccessService turns a passed ownership check into a time-limited media
// URL. It must be called only after OwnershipService confirmed a non-zero
// balance in the same request.
type AccessService struct {
	metadata  MetadataStore
	presigner URLPresigner
	tokenID   int64
	ttl       time.Duration
	baseURL   string
}

func NewAccessService(metadata MetadataStore, presigner URLPresigner, chainCfg config.ChainConfig, grantCfg config.GrantConfig) *AccessService {
	return &AccessService{
		metadata:  metadata,
		presigner: presigner,
		tokenID:   chainCfg.TokenID,
		ttl:       time.Duration(grantCfg.TTL) * time.Second,
		baseURL:   strings.TrimRight(grantCfg.PublicBaseURL, "/"),
	}
}

func (s *AccessService) IssueGrant(ctx context.Context, walletAddress string) (*Grant, error) {
	metadata, err := s.metadata.GetByTokenID(ctx, s.tokenID)
	if err != nil {
		if errors.Is(err, ErrMediaNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrGrantIssuance, err)
	}

	expiresAt := time.Now().Add(s.ttl)

	if s.presigner.Configured() {
		url, err := s.presigner.PresignGet(metadata.AudioObjectKey, s.ttl)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrGrantIssuance, err)
		}
		return &Grant{MediaURL: url, ExpiresAt: expiresAt}, nil
	}

	// No object storage configured: hand out a signed playback token
	// redeemed at the stream endpoint instead.
	token, err := utils.GeneratePlaybackToken(strings.ToLower(walletAddress), s.tokenID, s.ttl)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGrantIssuance, err)
	}

	return &Grant{
		MediaURL:  fmt.Sprintf("%s/v1/stream?token=%s", s.baseURL, token),
		ExpiresAt: expiresAt,
	}, nil
}
