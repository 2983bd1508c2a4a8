// internal/handlers/access_test.go
package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/suite"

	"github.com/mixtapefm/mixtape-backend/internal/config"
	"github.com/mixtapefm/mixtape-backend/internal/models"
	"github.com/mixtapefm/mixtape-backend/internal/services"
	"github.com/mixtapefm/mixtape-backend/internal/utils"
)

type stubMetadataStore struct {
	metadata *models.MixtapeMetadata
	err      error
}

func (s *stubMetadataStore) GetByTokenID(ctx context.Context, tokenID int64) (*models.MixtapeMetadata, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.metadata, nil
}

type stubPresigner struct{}

func (s *stubPresigner) Configured() bool { return false }

func (s *stubPresigner) PresignGet(key string, expiration time.Duration) (string, error) {
	return "", errors.New("not configured")
}

type AccessHandlerTestSuite struct {
	suite.Suite
	balances *stubBalanceReader
	metadata *stubMetadataStore
	router   *gin.Engine
}

func (suite *AccessHandlerTestSuite) SetupTest() {
	gin.SetMode(gin.TestMode)
	utils.SetPlaybackSecret("test-playback-secret")

	suite.balances = &stubBalanceReader{balance: big.NewInt(1)}
	suite.metadata = &stubMetadataStore{metadata: &models.MixtapeMetadata{
		TokenID:        1,
		Title:          "Midnight Drive",
		AudioObjectKey: "audio/midnight-drive.mp3",
	}}

	grantCfg := config.GrantConfig{
		TTL:           3600,
		PublicBaseURL: "https://api.mixtape.fm",
		MediaBaseURL:  "https://media.mixtape.fm",
	}
	ownershipService := services.NewOwnershipService(suite.balances, &stubUserStore{})
	accessService := services.NewAccessService(suite.metadata, &stubPresigner{},
		config.ChainConfig{TokenID: 1}, grantCfg,
	)
	handler := NewAccessHandler(ownershipService, accessService, suite.metadata, grantCfg)

	suite.router = gin.New()
	suite.router.POST("/v1/access/request", handler.RequestAccess)
	suite.router.GET("/v1/stream", handler.Stream)
}

func (suite *AccessHandlerTestSuite) request(body map[string]interface{}) *httptest.ResponseRecorder {
	jsonData, _ := json.Marshal(body)
	req, _ := http.NewRequest("POST", "/v1/access/request", bytes.NewBuffer(jsonData))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)
	return w
}

func (suite *AccessHandlerTestSuite) TestOwnerIsGrantedAccess() {
	suite.balances.balance = big.NewInt(2)

	w := suite.request(map[string]interface{}{"buyerAddress": testBuyer})

	suite.Equal(http.StatusOK, w.Code)

	var response AccessGrantedResponse
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &response))
	suite.True(response.Authorized)
	suite.Equal(int64(2), response.Balance)
	suite.Contains(response.MediaURL, "/v1/stream?token=")
	suite.Greater(response.ExpiresAt, time.Now().Unix())
}

func (suite *AccessHandlerTestSuite) TestNonOwnerIsDenied() {
	suite.balances.balance = big.NewInt(0)

	w := suite.request(map[string]interface{}{"buyerAddress": testBuyer})

	suite.Equal(http.StatusForbidden, w.Code)

	var response AccessDeniedResponse
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &response))
	suite.False(response.Authorized)
}

func (suite *AccessHandlerTestSuite) TestLedgerFailureIsNotADenial() {
	suite.balances.err = errors.New("rpc unavailable")

	w := suite.request(map[string]interface{}{"buyerAddress": testBuyer})

	suite.Equal(http.StatusServiceUnavailable, w.Code)

	var response AccessDeniedResponse
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &response))
	suite.False(response.Authorized)
	suite.Equal("OWNERSHIP_CHECK_FAILED", response.Code)
}

func (suite *AccessHandlerTestSuite) TestMissingBuyerAddress() {
	w := suite.request(map[string]interface{}{})

	suite.Equal(http.StatusBadRequest, w.Code)

	var response pipelineError
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &response))
	suite.Equal("INVALID_REQUEST", response.Code)
}

func (suite *AccessHandlerTestSuite) TestMissingMediaMetadata() {
	suite.metadata.err = services.ErrMediaNotFound

	w := suite.request(map[string]interface{}{"buyerAddress": testBuyer})

	suite.Equal(http.StatusNotFound, w.Code)

	var response pipelineError
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &response))
	suite.Equal("MEDIA_NOT_FOUND", response.Code)
}

func (suite *AccessHandlerTestSuite) TestGrantFailureFailsClosed() {
	suite.metadata.err = errors.New("database timeout")

	w := suite.request(map[string]interface{}{"buyerAddress": testBuyer})

	suite.Equal(http.StatusBadGateway, w.Code)

	var response pipelineError
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &response))
	suite.Equal("STORAGE_FAILURE", response.Code)
}

func (suite *AccessHandlerTestSuite) stream(token string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest("GET", "/v1/stream?token="+token, nil)
	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)
	return w
}

func (suite *AccessHandlerTestSuite) TestStreamRedirectsToResolvedMedia() {
	token, err := utils.GeneratePlaybackToken(testBuyer, 1, time.Hour)
	suite.Require().NoError(err)

	w := suite.stream(token)

	suite.Equal(http.StatusFound, w.Code)
	suite.Equal("https://media.mixtape.fm/audio/midnight-drive.mp3", w.Header().Get("Location"))
}

func (suite *AccessHandlerTestSuite) TestStreamPassesThroughAbsoluteMediaURL() {
	suite.metadata.metadata.AudioObjectKey = "https://cdn.mixtape.fm/audio/midnight-drive.mp3"
	token, err := utils.GeneratePlaybackToken(testBuyer, 1, time.Hour)
	suite.Require().NoError(err)

	w := suite.stream(token)

	suite.Equal(http.StatusFound, w.Code)
	suite.Equal("https://cdn.mixtape.fm/audio/midnight-drive.mp3", w.Header().Get("Location"))
}

func (suite *AccessHandlerTestSuite) TestStreamWithoutMediaBaseFailsClosed() {
	handler := NewAccessHandler(nil, nil, suite.metadata, config.GrantConfig{TTL: 3600})
	router := gin.New()
	router.GET("/v1/stream", handler.Stream)

	token, err := utils.GeneratePlaybackToken(testBuyer, 1, time.Hour)
	suite.Require().NoError(err)

	req, _ := http.NewRequest("GET", "/v1/stream?token="+token, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	suite.Equal(http.StatusBadGateway, w.Code)

	var response pipelineError
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &response))
	suite.Equal("STORAGE_FAILURE", response.Code)
}

func (suite *AccessHandlerTestSuite) TestStreamRejectsExpiredToken() {
	token, err := utils.GeneratePlaybackToken(testBuyer, 1, -time.Minute)
	suite.Require().NoError(err)

	w := suite.stream(token)

	suite.Equal(http.StatusForbidden, w.Code)

	var response pipelineError
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &response))
	suite.Equal("GRANT_EXPIRED", response.Code)
}

func (suite *AccessHandlerTestSuite) TestStreamRequiresToken() {
	w := suite.stream("")

	suite.Equal(http.StatusBadRequest, w.Code)
}

func TestAccessHandlerSuite(t *testing.T) {
	suite.Run(t, new(AccessHandlerTestSuite))
}
