// internal/models/purchase.go
package models

import (
	"github.com/google/uuid"
)

// Purchase is the durable settlement record. The payment transaction hash is
// the idempotency key: the unique index on USDCTxHash is the sole mechanism
// preventing a double mint under concurrent requests.
type Purchase struct {
	BaseModel
	UserID        *uuid.UUID     `json:"user_id" gorm:"type:uuid;index"`
	WalletAddress string         `json:"wallet_address" gorm:"size:42;not null;index"`
	AmountUSDC    int64          `json:"amount_usdc" gorm:"not null"` // smallest unit
	USDCTxHash    string         `json:"usdc_tx_hash" gorm:"size:66;not null;uniqueIndex"`
	MintTxHash    string         `json:"mint_tx_hash,omitempty" gorm:"size:66"`
	Quantity      int            `json:"quantity" gorm:"not null;default:1"`
	Status        PurchaseStatus `json:"status" gorm:"type:varchar(20);default:'pending';index"`
	FailureReason string         `json:"failure_reason,omitempty" gorm:"type:text"`

	// Relationships
	User *User `json:"user,omitempty" gorm:"foreignKey:UserID"`
}
