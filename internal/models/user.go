// internal/models/user.go
package models

// User is one row per wallet address. TotalListeningTime and MixtapesOwned
// are display aggregates; MixtapesOwned is a cached copy of the on-chain
// balance and is never consulted for access decisions.
type User struct {
	BaseModel
	WalletAddress      string `json:"wallet_address" gorm:"size:42;not null;uniqueIndex"`
	ENSName            string `json:"ens_name,omitempty" gorm:"size:255"`
	TotalListeningTime int64  `json:"total_listening_time" gorm:"not null;default:0"`
	MixtapesOwned      int64  `json:"mixtapes_owned" gorm:"not null;default:0"`
}
