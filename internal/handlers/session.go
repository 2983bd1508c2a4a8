// internal/handlers/session.go
package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/mixtapefm/mixtape-backend/internal/services"
	"github.com/mixtapefm/mixtape-backend/internal/utils"
)

type SessionHandler struct {
	userService *services.UserService
}

func NewSessionHandler(userService *services.UserService) *SessionHandler {
	return &SessionHandler{
		userService: userService,
	}
}

type StartSessionRequest struct {
	WalletAddress string `json:"walletAddress" validate:"required,eth_addr"`
}

type UpdateSessionRequest struct {
	DurationSeconds int64 `json:"durationSeconds" validate:"min=0"`
	Ended           bool  `json:"ended"`
}

// POST /v1/sessions
func (h *SessionHandler) StartSession(c *gin.Context) {
	var req StartSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "", err.Error())
		return
	}

	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(&req)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return
	}

	session, err := h.userService.StartSession(c.Request.Context(), req.WalletAddress)
	if err != nil {
		utils.InternalErrorResponse(c, "")
		return
	}

	utils.CreatedResponse(c, gin.H{
		"session": session,
	})
}

// PUT /v1/sessions/:id
func (h *SessionHandler) UpdateSession(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid session id", nil)
		return
	}

	var req UpdateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "", err.Error())
		return
	}

	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(&req)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return
	}

	session, err := h.userService.UpdateSession(c.Request.Context(), sessionID, req.DurationSeconds, req.Ended)
	if err != nil {
		if errors.Is(err, services.ErrSessionNotFound) {
			utils.NotFoundResponse(c, "Listening session not found")
			return
		}
		utils.InternalErrorResponse(c, "")
		return
	}

	utils.SuccessResponse(c, gin.H{
		"session": session,
	})
}
