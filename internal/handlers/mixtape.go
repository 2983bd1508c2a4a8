// internal/handlers/mixtape.go
package handlers

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/mixtapefm/mixtape-backend/internal/services"
	"github.com/mixtapefm/mixtape-backend/internal/utils"
)

type MixtapeHandler struct {
	mixtapeService *services.MixtapeService
}

func NewMixtapeHandler(mixtapeService *services.MixtapeService) *MixtapeHandler {
	return &MixtapeHandler{
		mixtapeService: mixtapeService,
	}
}

// GET /v1/mixtapes/:tokenId
func (h *MixtapeHandler) GetMixtape(c *gin.Context) {
	tokenID, err := strconv.ParseInt(c.Param("tokenId"), 10, 64)
	if err != nil {
		utils.BadRequestResponse(c, "Invalid token id", nil)
		return
	}

	metadata, err := h.mixtapeService.GetByTokenID(c.Request.Context(), tokenID)
	if err != nil {
		if errors.Is(err, services.ErrMediaNotFound) {
			utils.NotFoundResponse(c, "Mixtape not found")
			return
		}
		utils.InternalErrorResponse(c, "")
		return
	}

	utils.SuccessResponse(c, gin.H{
		"mixtape": metadata,
	})
}
