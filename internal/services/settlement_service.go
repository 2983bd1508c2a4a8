// internal/services/settlement_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/sirupsen/logrus"

	"github.com/mixtapefm/mixtape-backend/internal/chain"
	"github.com/mixtapefm/mixtape-backend/internal/models"
	"github.com/mixtapefm/mixtape-backend/internal/repository"
)

// PaymentVerifier is implemented by VerificationService.
type PaymentVerifier interface {
	VerifyPayment(ctx context.Context, txHash common.Hash) (*VerifiedPayment, error)
}

// MintSubmitter is implemented by chain.Minter.
type MintSubmitter interface {
	SubmitMint(ctx context.Context, to common.Address, quantity int64) (common.Hash, error)
	WaitForConfirmation(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// BalanceReader reads the live collectible balance for an address.
type BalanceReader interface {
	TokenBalance(ctx context.Context, owner common.Address) (*big.Int, error)
}

// UserStore is the slice of UserService the settlement flow needs.
type UserStore interface {
	GetOrCreateByWallet(ctx context.Context, walletAddress string) (*models.User, error)
	SetOwnedCount(ctx context.Context, walletAddress string, count int64) error
}

type SettlementResult struct {
	MintTxHash    string
	AlreadyMinted bool
}

// SettlementService sequences the purchase-confirmation state machine:
// pending -> verifying -> minting -> minted, with failed reachable from any
// active state. The purchase repository's atomic primitives carry all
// correctness; this service never locks.
type SettlementService struct {
	purchases repository.PurchaseRepository
	verifier  PaymentVerifier
	minter    MintSubmitter
	balances  BalanceReader
	users     UserStore
}

func NewSettlementService(purchases repository.PurchaseRepository, verifier PaymentVerifier, minter MintSubmitter, balances BalanceReader, users UserStore) *SettlementService {
	return &SettlementService{
		purchases: purchases,
		verifier:  verifier,
		minter:    minter,
		balances:  balances,
		users:     users,
	}
}

// ConfirmPurchase settles one claimed payment. Calling it again with the
// same hash after success returns the stored mint hash without touching the
// chain; calling it while another request is mid-settlement returns
// ErrSettlementInProgress.
func (s *SettlementService) ConfirmPurchase(ctx context.Context, walletAddress, usdcTxHash string) (*SettlementResult, error) {
	walletAddress = strings.ToLower(walletAddress)
	usdcTxHash = strings.ToLower(usdcTxHash)

	record, wasNew, err := s.purchases.GetOrCreate(ctx, usdcTxHash, walletAddress)
	if err != nil {
		return nil, err
	}

	if !wasNew {
		if record.Status == models.PurchaseStatusMinted {
			logrus.WithFields(logrus.Fields{
				"usdc_tx_hash": usdcTxHash,
				"mint_tx_hash": record.MintTxHash,
			}).Info("Replay for settled purchase, returning stored mint")
			return &SettlementResult{MintTxHash: record.MintTxHash, AlreadyMinted: true}, nil
		}
		if record.Status.Active() {
			return nil, ErrSettlementInProgress
		}
		// pending or failed: a fresh client resubmission re-enters the
		// machine below.
	}

	if err := s.purchases.AdvanceStatus(ctx, usdcTxHash, models.PurchaseStatusVerifying, repository.StatusUpdate{}); err != nil {
		if errors.Is(err, repository.ErrStaleTransition) {
			return nil, ErrSettlementInProgress
		}
		return nil, err
	}

	verified, err := s.verifier.VerifyPayment(ctx, common.HexToHash(usdcTxHash))
	if err != nil {
		s.markFailed(ctx, usdcTxHash, err)
		return nil, err
	}

	upd := repository.StatusUpdate{AmountUSDC: verified.Amount.Int64()}
	if user, uerr := s.users.GetOrCreateByWallet(ctx, walletAddress); uerr != nil {
		logrus.WithError(uerr).WithField("wallet", walletAddress).Warn("Failed to resolve user for purchase")
	} else {
		upd.UserID = &user.ID
	}

	mintHash, err := s.minter.SubmitMint(ctx, common.HexToAddress(walletAddress), int64(record.Quantity))
	if err != nil {
		s.markFailed(ctx, usdcTxHash, err)
		return nil, fmt.Errorf("%w: %v", ErrMintFailure, err)
	}

	upd.MintTxHash = mintHash.Hex()
	if err := s.purchases.AdvanceStatus(ctx, usdcTxHash, models.PurchaseStatusMinting, upd); err != nil {
		// The mint is already on the wire; losing this write must not lose
		// the hash. Log loudly and keep going so confirmation is recorded.
		logrus.WithError(err).WithFields(logrus.Fields{
			"usdc_tx_hash": usdcTxHash,
			"mint_tx_hash": upd.MintTxHash,
		}).Error("Failed to record submitted mint")
	}

	logrus.WithFields(logrus.Fields{
		"wallet":       walletAddress,
		"mint_tx_hash": upd.MintTxHash,
	}).Info("Mint transaction sent")

	if _, err := s.minter.WaitForConfirmation(ctx, mintHash); err != nil {
		if errors.Is(err, chain.ErrMintReverted) {
			s.markFailed(ctx, usdcTxHash, err)
			return nil, fmt.Errorf("%w: %v", ErrMintFailure, err)
		}
		// Timed out or the poll itself failed: the mint may still confirm.
		// Leave the record in minting so the reconciliation sweep settles
		// it from the receipt.
		return nil, fmt.Errorf("%w: %v", ErrMintFailure, err)
	}

	if err := s.purchases.AdvanceStatus(ctx, usdcTxHash, models.PurchaseStatusMinted, repository.StatusUpdate{MintTxHash: upd.MintTxHash}); err != nil {
		return nil, err
	}

	s.refreshOwnedCount(ctx, walletAddress)

	logrus.WithFields(logrus.Fields{
		"wallet":       walletAddress,
		"usdc_tx_hash": usdcTxHash,
		"mint_tx_hash": upd.MintTxHash,
	}).Info("Mint transaction confirmed")

	return &SettlementResult{MintTxHash: upd.MintTxHash}, nil
}

func (s *SettlementService) markFailed(ctx context.Context, usdcTxHash string, cause error) {
	err := s.purchases.AdvanceStatus(ctx, usdcTxHash, models.PurchaseStatusFailed, repository.StatusUpdate{
		FailureReason: cause.Error(),
	})
	if err != nil {
		logrus.WithError(err).WithField("usdc_tx_hash", usdcTxHash).Error("Failed to mark purchase failed")
	}
}

// refreshOwnedCount re-reads the authoritative balance after a confirmed
// mint. The cached count is display-only; a read failure leaves it untouched
// rather than guessing.
func (s *SettlementService) refreshOwnedCount(ctx context.Context, walletAddress string) {
	balance, err := s.balances.TokenBalance(ctx, common.HexToAddress(walletAddress))
	if err != nil {
		logrus.WithError(err).WithField("wallet", walletAddress).Warn("Failed to refresh owned count after mint")
		return
	}
	if err := s.users.SetOwnedCount(ctx, walletAddress, balance.Int64()); err != nil {
		logrus.WithError(err).WithField("wallet", walletAddress).Warn("Failed to store owned count")
	}
}
