// internal/chain/minter.go
package chain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/mixtapefm/mixtape-backend/internal/config"
)

var (
	ErrMintTimeout  = errors.New("mint confirmation timed out")
	ErrMintReverted = errors.New("mint transaction reverted on chain")
)

const fallbackMintGasLimit = 150000

// Minter submits mint calls signed with the custodial key. The key never
// leaves this struct; callers only see transaction hashes.
type Minter struct {
	client         *Client
	key            *ecdsa.PrivateKey
	from           common.Address
	contract       common.Address
	chainID        *big.Int
	confirmTimeout time.Duration
}

func NewMinter(client *Client, cfg config.ChainConfig) (*Minter, error) {
	keyHex := strings.TrimPrefix(cfg.MinterKey, "0x")
	key, err := crypto.HexToECDSA(keyHex)
	if err != nil {
		return nil, fmt.Errorf("invalid minter private key: %w", err)
	}

	return &Minter{
		client:         client,
		key:            key,
		from:           crypto.PubkeyToAddress(key.PublicKey),
		contract:       common.HexToAddress(cfg.NFTContract),
		chainID:        big.NewInt(cfg.ChainID),
		confirmTimeout: time.Duration(cfg.ConfirmTimeout) * time.Second,
	}, nil
}

// SubmitMint signs and broadcasts mint(to, quantity) and returns the hash
// without waiting for the transaction to be mined.
func (m *Minter) SubmitMint(ctx context.Context, to common.Address, quantity int64) (common.Hash, error) {
	data, err := m.client.nftABI.Pack("mint", to, big.NewInt(quantity))
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to pack mint call: %w", err)
	}

	nonce, err := m.client.eth.PendingNonceAt(ctx, m.from)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to fetch minter nonce: %w", err)
	}

	gasPrice, err := m.client.eth.SuggestGasPrice(ctx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to fetch gas price: %w", err)
	}

	gasLimit, err := m.client.eth.EstimateGas(ctx, ethereum.CallMsg{
		From: m.from,
		To:   &m.contract,
		Data: data,
	})
	if err != nil {
		gasLimit = fallbackMintGasLimit
	}

	tx := types.NewTransaction(nonce, m.contract, big.NewInt(0), gasLimit, gasPrice, data)
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(m.chainID), m.key)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to sign mint transaction: %w", err)
	}

	if err := m.client.eth.SendTransaction(ctx, signed); err != nil {
		return common.Hash{}, fmt.Errorf("failed to broadcast mint transaction: %w", err)
	}

	return signed.Hash(), nil
}

// WaitForConfirmation blocks until the mint transaction is mined, the bounded
// wait elapses (ErrMintTimeout), or execution failed (ErrMintReverted).
func (m *Minter) WaitForConfirmation(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	receipt, err := m.client.WaitForReceipt(ctx, txHash, m.confirmTimeout)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, ErrMintTimeout
		}
		return nil, err
	}

	if receipt.Status != types.ReceiptStatusSuccessful {
		return receipt, ErrMintReverted
	}
	return receipt, nil
}
