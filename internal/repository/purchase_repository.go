// internal/repository/purchase_repository.go
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/mixtapefm/mixtape-backend/internal/models"
)

var (
	// ErrStaleTransition means the record was not in an allowed predecessor
	// state: a concurrent request won the race or the transition would move
	// the lifecycle backward.
	ErrStaleTransition = errors.New("purchase status transition rejected")

	ErrPurchaseNotFound = errors.New("purchase record not found")
)

const pqUniqueViolation = "23505"

// StatusUpdate carries the fields written alongside a status transition.
// Zero values are left untouched.
type StatusUpdate struct {
	MintTxHash    string
	AmountUSDC    int64
	FailureReason string
	UserID        *uuid.UUID
}

// allowedPredecessors encodes the settlement lifecycle. A failed record may
// re-enter verifying only through a fresh client request hitting GetOrCreate
// first; nothing retries automatically.
var allowedPredecessors = map[models.PurchaseStatus][]models.PurchaseStatus{
	models.PurchaseStatusVerifying: {models.PurchaseStatusPending, models.PurchaseStatusFailed},
	models.PurchaseStatusMinting:   {models.PurchaseStatusVerifying},
	models.PurchaseStatusMinted:    {models.PurchaseStatusMinting},
	models.PurchaseStatusFailed:    {models.PurchaseStatusPending, models.PurchaseStatusVerifying, models.PurchaseStatusMinting},
}

// PurchaseRepository is the settlement store. GetOrCreate and AdvanceStatus
// are the only two primitives the orchestrator may use; both are atomic at
// the database level so no application locking is needed.
type PurchaseRepository interface {
	// GetOrCreate inserts a pending record for the payment hash if none
	// exists and returns the stored record either way. wasNew reports
	// whether this call created it. Safe under concurrent callers: the
	// unique index on the hash makes one insert win and the rest read.
	GetOrCreate(ctx context.Context, usdcTxHash, walletAddress string) (*models.Purchase, bool, error)

	// AdvanceStatus moves the record forward. Returns ErrStaleTransition
	// when the record is not in an allowed predecessor state.
	AdvanceStatus(ctx context.Context, usdcTxHash string, next models.PurchaseStatus, upd StatusUpdate) error

	GetByTxHash(ctx context.Context, usdcTxHash string) (*models.Purchase, error)

	// FindStuck returns records left in the given status longer than the
	// threshold, for the reconciliation sweep.
	FindStuck(ctx context.Context, status models.PurchaseStatus, olderThan time.Duration) ([]models.Purchase, error)
}

type gormPurchaseRepository struct {
	db *gorm.DB
}

func NewPurchaseRepository(db *gorm.DB) PurchaseRepository {
	return &gormPurchaseRepository{db: db}
}

func (r *gormPurchaseRepository) GetOrCreate(ctx context.Context, usdcTxHash, walletAddress string) (*models.Purchase, bool, error) {
	record := &models.Purchase{
		WalletAddress: walletAddress,
		USDCTxHash:    usdcTxHash,
		Quantity:      1,
		Status:        models.PurchaseStatusPending,
	}

	err := r.db.WithContext(ctx).Create(record).Error
	if err == nil {
		return record, true, nil
	}

	if !isUniqueViolation(err) {
		return nil, false, fmt.Errorf("failed to insert purchase record: %w", err)
	}

	// Lost the insert race or the hash was seen before: read the existing
	// record unchanged.
	existing, err := r.GetByTxHash(ctx, usdcTxHash)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

func (r *gormPurchaseRepository) AdvanceStatus(ctx context.Context, usdcTxHash string, next models.PurchaseStatus, upd StatusUpdate) error {
	preds, ok := allowedPredecessors[next]
	if !ok {
		return fmt.Errorf("%w: %q is not a reachable status", ErrStaleTransition, next)
	}

	updates := map[string]interface{}{
		"status":     next,
		"updated_at": time.Now(),
	}
	if upd.MintTxHash != "" {
		updates["mint_tx_hash"] = upd.MintTxHash
	}
	if upd.AmountUSDC != 0 {
		updates["amount_usdc"] = upd.AmountUSDC
	}
	if upd.FailureReason != "" {
		updates["failure_reason"] = upd.FailureReason
	}
	if upd.UserID != nil {
		updates["user_id"] = *upd.UserID
	}

	result := r.db.WithContext(ctx).Model(&models.Purchase{}).
		Where("usdc_tx_hash = ? AND status IN ?", usdcTxHash, preds).
		Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("failed to update purchase status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrStaleTransition
	}
	return nil
}

func (r *gormPurchaseRepository) GetByTxHash(ctx context.Context, usdcTxHash string) (*models.Purchase, error) {
	var record models.Purchase
	err := r.db.WithContext(ctx).Where("usdc_tx_hash = ?", usdcTxHash).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPurchaseNotFound
		}
		return nil, fmt.Errorf("failed to fetch purchase record: %w", err)
	}
	return &record, nil
}

func (r *gormPurchaseRepository) FindStuck(ctx context.Context, status models.PurchaseStatus, olderThan time.Duration) ([]models.Purchase, error) {
	var records []models.Purchase
	cutoff := time.Now().Add(-olderThan)
	err := r.db.WithContext(ctx).
		Where("status = ? AND updated_at < ?", status, cutoff).
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query stuck purchases: %w", err)
	}
	return records, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == pqUniqueViolation
	}
	return errors.Is(err, gorm.ErrDuplicatedKey)
}
