package blockchain

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/core-coin/offramp/pkg/logger"
)

const (
	// ReadTimeout bounds a single RPC read when the caller's context has no deadline.
	ReadTimeout = 10 * time.Second
)

// Client is a JSON-RPC connection to one EVM chain.
type Client struct {
	logger  *logger.Logger
	chainID int64
	apiURL  string

	mu     sync.RWMutex
	client *ethclient.Client
}

// NewClient creates a new Client instance. Call Connect before use.
func NewClient(chainID int64, apiURL string, logger *logger.Logger) *Client {
	return &Client{chainID: chainID, apiURL: apiURL, logger: logger.With("chain_id", chainID)}
}

// Connect dials the RPC endpoint and checks that it serves the expected chain.
func (c *Client) Connect(ctx context.Context) error {
	client, err := ethclient.DialContext(ctx, c.apiURL)
	if err != nil {
		return fmt.Errorf("failed to connect to the RPC server: %w", err)
	}

	ctx, cancel := withReadTimeout(ctx)
	defer cancel()

	remoteID, err := client.ChainID(ctx)
	if err != nil {
		client.Close()
		return fmt.Errorf("failed to get chain id: %w", err)
	}
	if remoteID.Cmp(big.NewInt(c.chainID)) != 0 {
		client.Close()
		return fmt.Errorf("RPC endpoint serves chain %s, expected %d", remoteID, c.chainID)
	}

	c.mu.Lock()
	c.client = client
	c.mu.Unlock()

	c.logger.Info("Connected to RPC endpoint")
	return nil
}

// Eth returns the underlying go-ethereum client.
func (c *Client) Eth() *ethclient.Client {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.client
}

func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.client != nil {
		c.client.Close()
		c.client = nil
	}
}

// NativeBalance returns the native coin balance of owner in wei.
func (c *Client) NativeBalance(ctx context.Context, owner common.Address) (*big.Int, error) {
	client := c.Eth()
	if client == nil {
		return nil, fmt.Errorf("client for chain %d is not connected", c.chainID)
	}

	ctx, cancel := withReadTimeout(ctx)
	defer cancel()

	balance, err := client.BalanceAt(ctx, owner, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get native balance: %w", err)
	}
	return balance, nil
}

// TokenBalance calls balanceOf(owner) on an ERC-20 contract.
func (c *Client) TokenBalance(ctx context.Context, token, owner common.Address) (*big.Int, error) {
	results, err := c.call(ctx, token, "balanceOf", owner)
	if err != nil {
		return nil, fmt.Errorf("failed to get balance: %w", err)
	}
	balance, ok := results[0].(*big.Int)
	if !ok || balance == nil {
		return big.NewInt(0), nil
	}
	return balance, nil
}

// TokenDecimals calls decimals() on an ERC-20 contract.
func (c *Client) TokenDecimals(ctx context.Context, token common.Address) (uint8, error) {
	results, err := c.call(ctx, token, "decimals")
	if err != nil {
		return 0, fmt.Errorf("failed to get decimals for token %s: %w", token.Hex(), err)
	}
	decimals, ok := results[0].(uint8)
	if !ok {
		return 0, fmt.Errorf("unexpected decimals type %T for token %s", results[0], token.Hex())
	}
	return decimals, nil
}

func (c *Client) call(ctx context.Context, token common.Address, method string, params ...interface{}) ([]interface{}, error) {
	client := c.Eth()
	if client == nil {
		return nil, fmt.Errorf("client for chain %d is not connected", c.chainID)
	}

	ctx, cancel := withReadTimeout(ctx)
	defer cancel()

	contract := bind.NewBoundContract(token, erc20ABI, client, client, client)
	results := []interface{}{}
	if err := contract.Call(&bind.CallOpts{Context: ctx}, &results, method, params...); err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("empty result from %s", method)
	}
	return results, nil
}

func withReadTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, ReadTimeout)
}
