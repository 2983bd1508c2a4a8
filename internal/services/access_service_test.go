// internal/services/access_service_test.go
package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mixtapefm/mixtape-backend/internal/config"
	"github.com/mixtapefm/mixtape-backend/internal/models"
	"github.com/mixtapefm/mixtape-backend/internal/utils"
)

type fakeMetadataStore struct {
	metadata *models.MixtapeMetadata
	err      error
}

func (f *fakeMetadataStore) GetByTokenID(ctx context.Context, tokenID int64) (*models.MixtapeMetadata, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.metadata, nil
}

type fakePresigner struct {
	configured bool
	url        string
	err        error
	lastKey    string
	lastTTL    time.Duration
}

func (f *fakePresigner) Configured() bool { return f.configured }

func (f *fakePresigner) PresignGet(key string, expiration time.Duration) (string, error) {
	f.lastKey = key
	f.lastTTL = expiration
	if f.err != nil {
		return "", f.err
	}
	return f.url, nil
}

type AccessServiceTestSuite struct {
	suite.Suite
	metadata  *fakeMetadataStore
	presigner *fakePresigner
	service   *AccessService
}

func (suite *AccessServiceTestSuite) SetupTest() {
	utils.SetPlaybackSecret("test-playback-secret")
	suite.metadata = &fakeMetadataStore{metadata: &models.MixtapeMetadata{
		TokenID:        1,
		Title:          "Midnight Drive",
		AudioObjectKey: "audio/midnight-drive.mp3",
	}}
	suite.presigner = &fakePresigner{}
	suite.service = NewAccessService(suite.metadata, suite.presigner,
		config.ChainConfig{TokenID: 1},
		config.GrantConfig{TTL: 3600, PublicBaseURL: "https://api.mixtape.fm"},
	)
}

func (suite *AccessServiceTestSuite) TestPresignedURLWhenStorageConfigured() {
	suite.presigner.configured = true
	suite.presigner.url = "https://bucket.s3.amazonaws.com/audio/midnight-drive.mp3?X-Amz-Signature=abc"

	grant, err := suite.service.IssueGrant(context.Background(), testWallet)

	suite.Require().NoError(err)
	suite.Equal(suite.presigner.url, grant.MediaURL)
	suite.Equal("audio/midnight-drive.mp3", suite.presigner.lastKey)
	suite.Equal(time.Hour, suite.presigner.lastTTL)
	suite.WithinDuration(time.Now().Add(time.Hour), grant.ExpiresAt, 5*time.Second)
}

func (suite *AccessServiceTestSuite) TestPlaybackTokenFallback() {
	grant, err := suite.service.IssueGrant(context.Background(), strings.ToUpper(testWallet))

	suite.Require().NoError(err)
	suite.True(strings.HasPrefix(grant.MediaURL, "https://api.mixtape.fm/v1/stream?token="))

	token := strings.TrimPrefix(grant.MediaURL, "https://api.mixtape.fm/v1/stream?token=")
	claims, err := utils.ValidatePlaybackToken(token)
	suite.Require().NoError(err)
	suite.Equal(testWallet, claims.WalletAddress)
	suite.Equal(int64(1), claims.TokenID)
}

func (suite *AccessServiceTestSuite) TestMissingMetadata() {
	suite.metadata.err = ErrMediaNotFound

	_, err := suite.service.IssueGrant(context.Background(), testWallet)

	suite.ErrorIs(err, ErrMediaNotFound)
}

func (suite *AccessServiceTestSuite) TestPresignFailureFailsClosed() {
	suite.presigner.configured = true
	suite.presigner.err = errors.New("s3 unavailable")

	_, err := suite.service.IssueGrant(context.Background(), testWallet)

	suite.ErrorIs(err, ErrGrantIssuance)
}

func (suite *AccessServiceTestSuite) TestMetadataLookupFailureFailsClosed() {
	suite.metadata.err = errors.New("database timeout")

	_, err := suite.service.IssueGrant(context.Background(), testWallet)

	suite.ErrorIs(err, ErrGrantIssuance)
}

func TestAccessServiceSuite(t *testing.T) {
	suite.Run(t, new(AccessServiceTestSuite))
}
