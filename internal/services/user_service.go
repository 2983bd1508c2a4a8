// internal/services/user_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mixtapefm/mixtape-backend/internal/models"
	"github.com/mixtapefm/mixtape-backend/internal/utils"
)

var ErrSessionNotFound = errors.New("listening session not found")

// UserService owns the per-wallet aggregate rows: leaderboard standings,
// cached owned counts and listening time.
type UserService struct {
	db *gorm.DB
}

func NewUserService(db *gorm.DB) *UserService {
	return &UserService{db: db}
}

func (s *UserService) GetOrCreateByWallet(ctx context.Context, walletAddress string) (*models.User, error) {
	walletAddress = strings.ToLower(walletAddress)

	var user models.User
	err := s.db.WithContext(ctx).Where("wallet_address = ?", walletAddress).First(&user).Error
	if err == nil {
		return &user, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to fetch user: %w", err)
	}

	user = models.User{WalletAddress: walletAddress}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		// Concurrent creation for the same wallet: read the winner.
		var existing models.User
		if ferr := s.db.WithContext(ctx).Where("wallet_address = ?", walletAddress).First(&existing).Error; ferr == nil {
			return &existing, nil
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return &user, nil
}

// SetOwnedCount stores the display-only cached balance.
func (s *UserService) SetOwnedCount(ctx context.Context, walletAddress string, count int64) error {
	walletAddress = strings.ToLower(walletAddress)

	if _, err := s.GetOrCreateByWallet(ctx, walletAddress); err != nil {
		return err
	}

	return s.db.WithContext(ctx).Model(&models.User{}).
		Where("wallet_address = ?", walletAddress).
		Updates(map[string]interface{}{
			"mixtapes_owned": count,
			"updated_at":     time.Now(),
		}).Error
}

func (s *UserService) GetLeaderboard(ctx context.Context, params utils.PaginationParams) ([]models.User, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.User{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count users: %w", err)
	}

	allowedSortFields := []string{"total_listening_time", "mixtapes_owned", "created_at"}
	query = utils.ApplySort(query, params, allowedSortFields)
	query = utils.ApplyPagination(query, params)

	var users []models.User
	if err := query.Find(&users).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch leaderboard: %w", err)
	}

	return users, total, nil
}

// StartSession opens a listening session for a wallet.
func (s *UserService) StartSession(ctx context.Context, walletAddress string) (*models.ListeningSession, error) {
	walletAddress = strings.ToLower(walletAddress)

	session := &models.ListeningSession{
		WalletAddress: walletAddress,
		StartedAt:     time.Now(),
	}
	if user, err := s.GetOrCreateByWallet(ctx, walletAddress); err == nil {
		session.UserID = &user.ID
	}

	if err := s.db.WithContext(ctx).Create(session).Error; err != nil {
		return nil, fmt.Errorf("failed to start listening session: %w", err)
	}
	return session, nil
}

// UpdateSession records progress on a session and adds the delta since the
// last update to the wallet's total. Negative deltas are ignored.
func (s *UserService) UpdateSession(ctx context.Context, sessionID uuid.UUID, durationSeconds int64, ended bool) (*models.ListeningSession, error) {
	var session models.ListeningSession
	if err := s.db.WithContext(ctx).First(&session, "id = ?", sessionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to fetch listening session: %w", err)
	}

	delta := durationSeconds - session.DurationSeconds
	if delta < 0 {
		delta = 0
	} else {
		session.DurationSeconds = durationSeconds
	}

	now := time.Now()
	if ended {
		session.EndedAt = &now
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(&session).Error; err != nil {
			return err
		}
		if delta > 0 {
			return tx.Model(&models.User{}).
				Where("wallet_address = ?", session.WalletAddress).
				Update("total_listening_time", gorm.Expr("total_listening_time + ?", delta)).Error
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update listening session: %w", err)
	}

	return &session, nil
}
