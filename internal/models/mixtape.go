// internal/models/mixtape.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// MixtapeMetadata describes one edition of the collectible and where its
// audio object lives. AudioObjectKey is the storage key the access grant is
// issued against, never exposed directly.
type MixtapeMetadata struct {
	BaseModel
	TokenID         int64  `json:"token_id" gorm:"not null;uniqueIndex"`
	Title           string `json:"title" gorm:"size:255;not null"`
	Artist          string `json:"artist" gorm:"size:255;not null"`
	Description     string `json:"description,omitempty" gorm:"type:text"`
	CoverImageURL   string `json:"cover_image_url,omitempty" gorm:"size:512"`
	AudioObjectKey  string `json:"-" gorm:"size:512;not null"`
	DurationSeconds int    `json:"duration_seconds,omitempty"`
	TrackCount      int    `json:"track_count,omitempty"`
}

func (MixtapeMetadata) TableName() string {
	return "mixtape_metadata"
}

type ListeningSession struct {
	BaseModel
	UserID          *uuid.UUID `json:"user_id" gorm:"type:uuid;index"`
	WalletAddress   string     `json:"wallet_address" gorm:"size:42;not null;index"`
	DurationSeconds int64      `json:"duration_seconds" gorm:"not null;default:0"`
	StartedAt       time.Time  `json:"started_at" gorm:"not null"`
	EndedAt         *time.Time `json:"ended_at"`

	// Relationships
	User *User `json:"user,omitempty" gorm:"foreignKey:UserID"`
}
