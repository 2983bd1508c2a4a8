// internal/handlers/access.go
package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/mixtapefm/mixtape-backend/internal/config"
	"github.com/mixtapefm/mixtape-backend/internal/services"
	"github.com/mixtapefm/mixtape-backend/internal/utils"
)

type AccessHandler struct {
	ownershipService *services.OwnershipService
	accessService    *services.AccessService
	metadata         services.MetadataStore
	mediaBaseURL     string
}

func NewAccessHandler(ownershipService *services.OwnershipService, accessService *services.AccessService, metadata services.MetadataStore, grantCfg config.GrantConfig) *AccessHandler {
	return &AccessHandler{
		ownershipService: ownershipService,
		accessService:    accessService,
		metadata:         metadata,
		mediaBaseURL:     strings.TrimRight(grantCfg.MediaBaseURL, "/"),
	}
}

type RequestAccessRequest struct {
	BuyerAddress string `json:"buyerAddress" validate:"required,eth_addr"`
}

type AccessGrantedResponse struct {
	Authorized bool   `json:"authorized"`
	MediaURL   string `json:"mediaUrl"`
	Balance    int64  `json:"balance"`
	ExpiresAt  int64  `json:"expiresAt"`
}

type AccessDeniedResponse struct {
	Authorized bool   `json:"authorized"`
	Message    string `json:"message"`
	Code       string `json:"code,omitempty"`
}

// POST /v1/access/request
func (h *AccessHandler) RequestAccess(c *gin.Context) {
	var req RequestAccessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, pipelineError{
			Error: "Missing required parameter: buyerAddress",
			Code:  "INVALID_REQUEST",
		})
		return
	}

	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(&req)); len(validationErrors) > 0 {
		c.JSON(http.StatusBadRequest, pipelineError{
			Error: validationErrors[0].Message,
			Code:  "INVALID_REQUEST",
		})
		return
	}

	balance, err := h.ownershipService.CheckOwnership(c.Request.Context(), req.BuyerAddress)
	if err != nil {
		// A failed ledger read is not an authorization answer; deny with a
		// distinguishable message so the client can retry.
		logrus.WithError(err).WithField("wallet", req.BuyerAddress).Error("Ownership check failed")
		c.JSON(http.StatusServiceUnavailable, AccessDeniedResponse{
			Authorized: false,
			Message:    "Could not verify ownership right now; please try again",
			Code:       "OWNERSHIP_CHECK_FAILED",
		})
		return
	}

	if balance == 0 {
		c.JSON(http.StatusForbidden, AccessDeniedResponse{
			Authorized: false,
			Message:    "Address does not own the mixtape",
		})
		return
	}

	grant, err := h.accessService.IssueGrant(c.Request.Context(), req.BuyerAddress)
	if err != nil {
		if errors.Is(err, services.ErrMediaNotFound) {
			c.JSON(http.StatusNotFound, pipelineError{
				Error: "Mixtape media not found",
				Code:  "MEDIA_NOT_FOUND",
			})
			return
		}
		// Fails closed: a valid ownership check never grants access when
		// the grant itself could not be issued.
		logrus.WithError(err).Error("Access grant issuance failed")
		c.JSON(http.StatusBadGateway, pipelineError{
			Error: "Failed to generate media access",
			Code:  "STORAGE_FAILURE",
		})
		return
	}

	c.JSON(http.StatusOK, AccessGrantedResponse{
		Authorized: true,
		MediaURL:   grant.MediaURL,
		Balance:    balance,
		ExpiresAt:  grant.ExpiresAt.Unix(),
	})
}

// GET /v1/stream?token=
// Redeems a playback token issued when object storage is not configured.
func (h *AccessHandler) Stream(c *gin.Context) {
	tokenString := c.Query("token")
	if tokenString == "" {
		c.JSON(http.StatusBadRequest, pipelineError{
			Error: "Missing playback token",
			Code:  "INVALID_REQUEST",
		})
		return
	}

	claims, err := utils.ValidatePlaybackToken(tokenString)
	if err != nil {
		c.JSON(http.StatusForbidden, pipelineError{
			Error: "Playback token invalid or expired",
			Code:  "GRANT_EXPIRED",
		})
		return
	}

	metadata, err := h.metadata.GetByTokenID(c.Request.Context(), claims.TokenID)
	if err != nil {
		c.JSON(http.StatusNotFound, pipelineError{
			Error: "Mixtape media not found",
			Code:  "MEDIA_NOT_FOUND",
		})
		return
	}

	target := h.resolveMediaURL(metadata.AudioObjectKey)
	if target == "" {
		logrus.WithField("token_id", claims.TokenID).Error("No media base URL configured for relative audio key")
		c.JSON(http.StatusBadGateway, pipelineError{
			Error: "Media location is not resolvable",
			Code:  "STORAGE_FAILURE",
		})
		return
	}

	c.Redirect(http.StatusFound, target)
}

// resolveMediaURL turns a stored audio key into a fetchable location.
// Absolute URLs pass through; relative keys need a configured media base.
func (h *AccessHandler) resolveMediaURL(key string) string {
	if strings.Contains(key, "://") {
		return key
	}
	if h.mediaBaseURL == "" {
		return ""
	}
	return h.mediaBaseURL + "/" + strings.TrimLeft(key, "/")
}
