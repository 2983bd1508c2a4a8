// internal/services/mixtape_service.go
package services

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/mixtapefm/mixtape-backend/internal/models"
)

type MixtapeService struct {
	db *gorm.DB
}

func NewMixtapeService(db *gorm.DB) *MixtapeService {
	return &MixtapeService{db: db}
}

func (s *MixtapeService) GetByTokenID(ctx context.Context, tokenID int64) (*models.MixtapeMetadata, error) {
	var metadata models.MixtapeMetadata
	err := s.db.WithContext(ctx).Where("token_id = ?", tokenID).First(&metadata).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMediaNotFound
		}
		return nil, fmt.Errorf("failed to fetch mixtape metadata: %w", err)
	}
	return &metadata, nil
}
