// internal/models/common.go
package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Base model with common fields
type BaseModel struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// JSONB type for PostgreSQL
type JSONB map[string]interface{}

func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}

	return json.Unmarshal(bytes, j)
}

// Enums
type PurchaseStatus string

const (
	PurchaseStatusPending   PurchaseStatus = "pending"
	PurchaseStatusVerifying PurchaseStatus = "verifying"
	PurchaseStatusMinting   PurchaseStatus = "minting"
	PurchaseStatusMinted    PurchaseStatus = "minted"
	PurchaseStatusFailed    PurchaseStatus = "failed"
)

// Active reports whether the record is mid-settlement and a concurrent
// duplicate request must back off instead of re-entering the machine.
func (s PurchaseStatus) Active() bool {
	return s == PurchaseStatusVerifying || s == PurchaseStatusMinting
}
