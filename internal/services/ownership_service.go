// internal/services/ownership_service.go
package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
)

// OwnershipService answers "does this address currently hold the
// collectible". Every check re-reads the ledger; the cached per-user count
// exists only for leaderboard display and is never consulted here.
type OwnershipService struct {
	balances BalanceReader
	users    UserStore
}

func NewOwnershipService(balances BalanceReader, users UserStore) *OwnershipService {
	return &OwnershipService{balances: balances, users: users}
}

// CheckOwnership returns the live balance. Zero is a valid answer meaning
// "not authorized"; only a failed ledger read is an error.
func (s *OwnershipService) CheckOwnership(ctx context.Context, walletAddress string) (int64, error) {
	walletAddress = strings.ToLower(walletAddress)

	balance, err := s.balances.TokenBalance(ctx, common.HexToAddress(walletAddress))
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrOwnershipCheck, err)
	}

	count := balance.Int64()
	logrus.WithFields(logrus.Fields{
		"wallet":  walletAddress,
		"balance": count,
	}).Info("Ownership check")

	// Refresh the display cache; failures here never affect the decision.
	if err := s.users.SetOwnedCount(ctx, walletAddress, count); err != nil {
		logrus.WithError(err).WithField("wallet", walletAddress).Warn("Failed to cache owned count")
	}

	return count, nil
}
