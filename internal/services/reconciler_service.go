// internal/services/reconciler_service.go
package services

import (
	"context"
	"errors"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/sirupsen/logrus"

	"github.com/mixtapefm/mixtape-backend/internal/chain"
	"github.com/mixtapefm/mixtape-backend/internal/config"
	"github.com/mixtapefm/mixtape-backend/internal/models"
	"github.com/mixtapefm/mixtape-backend/internal/repository"
)

// ReconcilerService sweeps purchases stuck in minting past a threshold and
// settles them from the receipt. Once a mint is submitted its outcome must
// eventually be recorded, even when the submitting request died mid-wait.
type ReconcilerService struct {
	purchases repository.PurchaseRepository
	reader    ReceiptReader
	balances  BalanceReader
	users     UserStore
	interval  time.Duration
	threshold time.Duration
}

func NewReconcilerService(purchases repository.PurchaseRepository, reader ReceiptReader, balances BalanceReader, users UserStore, cfg config.ReconcilerConfig) *ReconcilerService {
	return &ReconcilerService{
		purchases: purchases,
		reader:    reader,
		balances:  balances,
		users:     users,
		interval:  time.Duration(cfg.Interval) * time.Second,
		threshold: time.Duration(cfg.StuckThreshold) * time.Second,
	}
}

// Start runs the sweep loop until the context is cancelled.
func (s *ReconcilerService) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	logrus.WithField("interval", s.interval).Info("Reconciler started")
	for {
		select {
		case <-ctx.Done():
			logrus.Info("Reconciler stopped")
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep performs one reconciliation pass.
func (s *ReconcilerService) Sweep(ctx context.Context) {
	stuck, err := s.purchases.FindStuck(ctx, models.PurchaseStatusMinting, s.threshold)
	if err != nil {
		logrus.WithError(err).Error("Reconciler failed to query stuck purchases")
		return
	}

	for i := range stuck {
		s.reconcile(ctx, &stuck[i])
	}

	interrupted, err := s.purchases.FindStuck(ctx, models.PurchaseStatusVerifying, s.threshold)
	if err != nil {
		logrus.WithError(err).Error("Reconciler failed to query interrupted purchases")
		return
	}

	for i := range interrupted {
		s.releaseInterrupted(ctx, &interrupted[i])
	}
}

// releaseInterrupted fails a record whose verifying request died before
// reaching a terminal state. Without this the record stays active forever and
// every resubmission is rejected as in progress. No mint was submitted yet,
// so failing is safe and a fresh request re-enters the machine.
func (s *ReconcilerService) releaseInterrupted(ctx context.Context, record *models.Purchase) {
	s.advance(ctx, record.USDCTxHash, models.PurchaseStatusFailed, repository.StatusUpdate{
		FailureReason: "verification interrupted before completion",
	})
	logrus.WithField("usdc_tx_hash", record.USDCTxHash).Warn("Released interrupted verification to failed")
}

func (s *ReconcilerService) reconcile(ctx context.Context, record *models.Purchase) {
	log := logrus.WithFields(logrus.Fields{
		"usdc_tx_hash": record.USDCTxHash,
		"mint_tx_hash": record.MintTxHash,
	})

	if record.MintTxHash == "" {
		// Submission was never recorded; nothing on chain to check against.
		s.advance(ctx, record.USDCTxHash, models.PurchaseStatusFailed, repository.StatusUpdate{
			FailureReason: "mint submission lost before hash was recorded",
		})
		log.Warn("Reconciled mintless record to failed")
		return
	}

	receipt, err := s.reader.TransactionReceipt(ctx, common.HexToHash(record.MintTxHash))
	if err != nil {
		if errors.Is(err, chain.ErrNotFound) {
			// Still unmined; check again next pass.
			return
		}
		log.WithError(err).Warn("Reconciler failed to fetch mint receipt")
		return
	}

	if receipt.Status == types.ReceiptStatusSuccessful {
		s.advance(ctx, record.USDCTxHash, models.PurchaseStatusMinted, repository.StatusUpdate{
			MintTxHash: record.MintTxHash,
		})
		s.refreshOwnedCount(ctx, record.WalletAddress)
		log.Info("Reconciled stuck mint to minted")
		return
	}

	s.advance(ctx, record.USDCTxHash, models.PurchaseStatusFailed, repository.StatusUpdate{
		FailureReason: "mint transaction reverted on chain",
	})
	log.Warn("Reconciled stuck mint to failed")
}

func (s *ReconcilerService) advance(ctx context.Context, usdcTxHash string, next models.PurchaseStatus, upd repository.StatusUpdate) {
	if err := s.purchases.AdvanceStatus(ctx, usdcTxHash, next, upd); err != nil {
		if !errors.Is(err, repository.ErrStaleTransition) {
			logrus.WithError(err).WithField("usdc_tx_hash", usdcTxHash).Error("Reconciler failed to update purchase")
		}
	}
}

func (s *ReconcilerService) refreshOwnedCount(ctx context.Context, walletAddress string) {
	balance, err := s.balances.TokenBalance(ctx, common.HexToAddress(walletAddress))
	if err != nil {
		logrus.WithError(err).WithField("wallet", walletAddress).Warn("Reconciler failed to refresh owned count")
		return
	}
	if err := s.users.SetOwnedCount(ctx, walletAddress, balance.Int64()); err != nil {
		logrus.WithError(err).WithField("wallet", walletAddress).Warn("Reconciler failed to store owned count")
	}
}
