// internal/services/errors.go
package services

import "errors"

// Verification and settlement errors. Handlers classify these into response
// codes at the boundary; nothing below the handler layer shapes HTTP.
var (
	// ErrPaymentNotFound: the ledger has no confirmed transaction for the
	// hash. Retryable by the client once the transaction confirms.
	ErrPaymentNotFound = errors.New("payment transaction not found or not yet confirmed")

	// ErrPaymentReverted: the transaction exists but its execution failed.
	ErrPaymentReverted = errors.New("payment transaction reverted")

	// ErrTransferNotFound: no transfer log from the expected asset contract
	// in the receipt.
	ErrTransferNotFound = errors.New("no USDC transfer found in transaction")

	// ErrWrongRecipient: the transfer went somewhere other than the treasury.
	ErrWrongRecipient = errors.New("transfer recipient is not the treasury")

	// ErrAmountMismatch: |actual - expected| exceeds the tolerance.
	ErrAmountMismatch = errors.New("transfer amount outside tolerance")

	// ErrSettlementInProgress: another request holds this payment hash in an
	// active state; the caller must not re-verify or re-mint.
	ErrSettlementInProgress = errors.New("settlement already in progress for this transaction")

	// ErrMintFailure wraps any signing, submission or confirmation failure
	// after the payment itself verified. The payment stays valid, so the
	// caller may resubmit later.
	ErrMintFailure = errors.New("mint failed")

	// ErrOwnershipCheck: the ledger read itself failed. Surfaced as a
	// denial with a distinguishable message, never as "not an owner".
	ErrOwnershipCheck = errors.New("ownership check failed")

	// ErrMediaNotFound: no media object registered for the token.
	ErrMediaNotFound = errors.New("mixtape metadata not found")

	// ErrGrantIssuance: grant creation failed after a valid ownership
	// check. Fails closed.
	ErrGrantIssuance = errors.New("failed to issue access grant")
)
