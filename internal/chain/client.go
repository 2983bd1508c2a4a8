// internal/chain/client.go
package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/mixtapefm/mixtape-backend/internal/config"
)

// ErrNotFound is returned when the ledger has no record of a transaction.
var ErrNotFound = errors.New("transaction not found on chain")

// TransferTopic is the keccak256 of Transfer(address,address,uint256), the
// first topic of every ERC-20 transfer log.
var TransferTopic = crypto.Keccak256Hash([]byte("Transfer(address,address,uint256)"))

const erc1155ABI = `[
	{
		"inputs": [
			{"internalType": "address", "name": "account", "type": "address"},
			{"internalType": "uint256", "name": "id", "type": "uint256"}
		],
		"name": "balanceOf",
		"outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [
			{"internalType": "address", "name": "to", "type": "address"},
			{"internalType": "uint256", "name": "amount", "type": "uint256"}
		],
		"name": "mint",
		"outputs": [],
		"stateMutability": "nonpayable",
		"type": "function"
	}
]`

// Client is the read-only ledger access layer: receipt fetches and contract
// view calls. It holds no state beyond the RPC connection.
type Client struct {
	eth         *ethclient.Client
	nftABI      abi.ABI
	nftContract common.Address
	tokenID     *big.Int
}

func NewClient(cfg config.ChainConfig) (*Client, error) {
	eth, err := ethclient.Dial(cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to chain RPC: %w", err)
	}

	parsed, err := abi.JSON(strings.NewReader(erc1155ABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse NFT ABI: %w", err)
	}

	return &Client{
		eth:         eth,
		nftABI:      parsed,
		nftContract: common.HexToAddress(cfg.NFTContract),
		tokenID:     big.NewInt(cfg.TokenID),
	}, nil
}

// TransactionReceipt fetches the receipt for a mined transaction. Unmined or
// unknown hashes return ErrNotFound.
func (c *Client) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	receipt, err := c.eth.TransactionReceipt(ctx, txHash)
	if err != nil {
		if errors.Is(err, ethereum.NotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to fetch receipt: %w", err)
	}
	return receipt, nil
}

// TokenBalance reads balanceOf(owner, tokenID) on the collectible contract.
// Every call goes to the ledger; no cached value is authoritative.
func (c *Client) TokenBalance(ctx context.Context, owner common.Address) (*big.Int, error) {
	data, err := c.nftABI.Pack("balanceOf", owner, c.tokenID)
	if err != nil {
		return nil, fmt.Errorf("failed to pack balanceOf call: %w", err)
	}

	result, err := c.eth.CallContract(ctx, ethereum.CallMsg{
		To:   &c.nftContract,
		Data: data,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("balanceOf call failed: %w", err)
	}

	values, err := c.nftABI.Unpack("balanceOf", result)
	if err != nil {
		return nil, fmt.Errorf("failed to decode balanceOf result: %w", err)
	}

	balance, ok := values[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected balanceOf return type %T", values[0])
	}
	return balance, nil
}

// WaitForReceipt polls until the transaction is mined or the timeout expires.
func (c *Client) WaitForReceipt(ctx context.Context, txHash common.Hash, timeout time.Duration) (*types.Receipt, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		receipt, err := c.eth.TransactionReceipt(ctx, txHash)
		if err == nil {
			return receipt, nil
		}
		if !errors.Is(err, ethereum.NotFound) {
			return nil, fmt.Errorf("failed to poll receipt: %w", err)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// ParseTransfer decodes an ERC-20 Transfer log. Returns ok=false when the log
// is not a well-formed transfer event.
func ParseTransfer(log *types.Log) (from, to common.Address, value *big.Int, ok bool) {
	if len(log.Topics) != 3 || log.Topics[0] != TransferTopic {
		return common.Address{}, common.Address{}, nil, false
	}
	if len(log.Data) != 32 {
		return common.Address{}, common.Address{}, nil, false
	}

	from = common.BytesToAddress(log.Topics[1].Bytes())
	to = common.BytesToAddress(log.Topics[2].Bytes())
	value = new(big.Int).SetBytes(log.Data)
	return from, to, value, true
}
