package models

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// TokenBalance is a strictly positive balance of one token held by an address.
type TokenBalance struct {
	ChainID          int64           `json:"chain_id"`
	Token            TokenDescriptor `json:"token"`
	RawBalance       *big.Int        `json:"raw_balance"`
	FormattedBalance string          `json:"formatted_balance"`
	USDValue         float64         `json:"usd_value"`
}

// BalanceSnapshot is the result of one aggregation run for an address.
type BalanceSnapshot struct {
	Address   common.Address `json:"address"`
	Balances  []TokenBalance `json:"balances"`
	FetchedAt time.Time      `json:"fetched_at"`
}

// ChainReader reads on-chain balances and token metadata.
type ChainReader interface {
	NativeBalance(ctx context.Context, chainID int64, owner common.Address) (*big.Int, error)
	TokenBalance(ctx context.Context, chainID int64, token, owner common.Address) (*big.Int, error)
	TokenDecimals(ctx context.Context, chainID int64, token common.Address) (uint8, error)
}
