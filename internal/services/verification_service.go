// internal/services/verification_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/sirupsen/logrus"

	"github.com/mixtapefm/mixtape-backend/internal/chain"
	"github.com/mixtapefm/mixtape-backend/internal/config"
)

// ReceiptReader is the slice of the chain client the verifier needs.
type ReceiptReader interface {
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// VerifiedPayment is the outcome of a successful verification: who paid and
// how much, decoded from the transfer log.
type VerifiedPayment struct {
	Sender common.Address
	Amount *big.Int
}

const defaultReceiptTimeout = 15 * time.Second

// VerificationService checks a claimed payment hash against ledger ground
// truth. It is pure: no writes, safe to call repeatedly.
type VerificationService struct {
	reader         ReceiptReader
	asset          common.Address
	treasury       common.Address
	expected       *big.Int
	tolerance      *big.Int
	receiptTimeout time.Duration
}

func NewVerificationService(reader ReceiptReader, cfg config.ChainConfig) *VerificationService {
	timeout := time.Duration(cfg.ReceiptTimeout) * time.Second
	if timeout <= 0 {
		timeout = defaultReceiptTimeout
	}

	return &VerificationService{
		reader:         reader,
		asset:          common.HexToAddress(cfg.USDCAddress),
		treasury:       common.HexToAddress(cfg.TreasuryAddress),
		expected:       big.NewInt(cfg.ExpectedAmount),
		tolerance:      big.NewInt(cfg.AmountTolerance),
		receiptTimeout: timeout,
	}
}

func (s *VerificationService) VerifyPayment(ctx context.Context, txHash common.Hash) (*VerifiedPayment, error) {
	// The receipt fetch is a ledger round-trip inside a request handler; it
	// must not hang for the life of the request context.
	rctx, cancel := context.WithTimeout(ctx, s.receiptTimeout)
	defer cancel()

	receipt, err := s.reader.TransactionReceipt(rctx, txHash)
	if err != nil {
		if errors.Is(err, chain.ErrNotFound) {
			return nil, ErrPaymentNotFound
		}
		return nil, fmt.Errorf("failed to fetch payment receipt: %w", err)
	}

	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, ErrPaymentReverted
	}

	from, to, value, found := s.findTransfer(receipt.Logs)
	if !found {
		return nil, ErrTransferNotFound
	}

	if to != s.treasury {
		return nil, fmt.Errorf("%w: expected %s, got %s", ErrWrongRecipient, s.treasury.Hex(), to.Hex())
	}

	diff := new(big.Int).Sub(value, s.expected)
	diff.Abs(diff)
	if diff.Cmp(s.tolerance) > 0 {
		return nil, fmt.Errorf("%w: expected %s, got %s", ErrAmountMismatch, s.expected, value)
	}

	logrus.WithFields(logrus.Fields{
		"tx_hash": txHash.Hex(),
		"from":    from.Hex(),
		"to":      to.Hex(),
		"amount":  value.String(),
	}).Info("USDC transfer verified")

	return &VerifiedPayment{Sender: from, Amount: value}, nil
}

// findTransfer returns the first Transfer log emitted by the asset contract.
func (s *VerificationService) findTransfer(logs []*types.Log) (from, to common.Address, value *big.Int, found bool) {
	for _, l := range logs {
		if l.Address != s.asset {
			continue
		}
		if f, t, v, ok := chain.ParseTransfer(l); ok {
			return f, t, v, true
		}
	}
	return common.Address{}, common.Address{}, nil, false
}
