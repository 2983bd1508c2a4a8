// internal/router/router.go
package router

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/mixtapefm/mixtape-backend/internal/chain"
	"github.com/mixtapefm/mixtape-backend/internal/config"
	"github.com/mixtapefm/mixtape-backend/internal/handlers"
	"github.com/mixtapefm/mixtape-backend/internal/middleware"
	"github.com/mixtapefm/mixtape-backend/internal/repository"
	"github.com/mixtapefm/mixtape-backend/internal/services"
	"github.com/mixtapefm/mixtape-backend/internal/utils"
)

func Initialize(db *gorm.DB, chainClient *chain.Client, minter *chain.Minter, cfg *config.Config) (*gin.Engine, *services.ReconcilerService, error) {
	// Initialize repositories and services
	purchaseRepo := repository.NewPurchaseRepository(db)

	// Misconfigured object storage must not silently degrade every grant to
	// the playback-token fallback.
	storageService, err := services.NewStorageService(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	userService := services.NewUserService(db)
	mixtapeService := services.NewMixtapeService(db)
	verificationService := services.NewVerificationService(chainClient, cfg.Chain)
	settlementService := services.NewSettlementService(purchaseRepo, verificationService, minter, chainClient, userService)
	ownershipService := services.NewOwnershipService(chainClient, userService)
	accessService := services.NewAccessService(mixtapeService, storageService, cfg.Chain, cfg.Grant)
	reconcilerService := services.NewReconcilerService(purchaseRepo, chainClient, chainClient, userService, cfg.Reconciler)

	// Initialize handlers
	purchaseHandler := handlers.NewPurchaseHandler(settlementService)
	accessHandler := handlers.NewAccessHandler(ownershipService, accessService, mixtapeService, cfg.Grant)
	leaderboardHandler := handlers.NewLeaderboardHandler(userService)
	mixtapeHandler := handlers.NewMixtapeHandler(mixtapeService)
	sessionHandler := handlers.NewSessionHandler(userService)

	// Set playback token secret
	utils.SetPlaybackSecret(cfg.Grant.TokenSecret)

	// Initialize Gin router
	r := gin.New()

	// Global middleware
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger())
	r.Use(middleware.CORS())
	r.Use(middleware.GeneralRateLimit())

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"version": "1.0.0",
		})
	})

	// API v1 routes
	v1 := r.Group("/v1")
	{
		// Purchase settlement
		purchase := v1.Group("/purchase")
		purchase.Use(middleware.SettlementRateLimit())
		{
			purchase.POST("/confirm", purchaseHandler.ConfirmPurchase)
		}

		// Ownership-gated media access
		access := v1.Group("/access")
		{
			access.POST("/request", accessHandler.RequestAccess)
		}
		v1.GET("/stream", accessHandler.Stream)

		// Mixtape metadata (public)
		mixtapes := v1.Group("/mixtapes")
		{
			mixtapes.GET("/:tokenId", mixtapeHandler.GetMixtape)
		}

		// Leaderboard and listening sessions
		v1.GET("/leaderboard", leaderboardHandler.GetLeaderboard)

		sessions := v1.Group("/sessions")
		{
			sessions.POST("", sessionHandler.StartSession)
			sessions.PUT("/:id", sessionHandler.UpdateSession)
		}
	}

	return r, reconcilerService, nil
}
