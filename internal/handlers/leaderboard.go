// internal/handlers/leaderboard.go
package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/mixtapefm/mixtape-backend/internal/services"
	"github.com/mixtapefm/mixtape-backend/internal/utils"
)

type LeaderboardHandler struct {
	userService *services.UserService
}

func NewLeaderboardHandler(userService *services.UserService) *LeaderboardHandler {
	return &LeaderboardHandler{
		userService: userService,
	}
}

// GET /v1/leaderboard
func (h *LeaderboardHandler) GetLeaderboard(c *gin.Context) {
	params := utils.GetPaginationParams(c)

	users, total, err := h.userService.GetLeaderboard(c.Request.Context(), params)
	if err != nil {
		utils.InternalErrorResponse(c, "")
		return
	}

	result := utils.CreatePaginationResult(users, total, params)
	utils.PaginatedResponse(c, result)
}
