package models

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// WithdrawalInput asks to convert a token holding into an INR bank payout. Exactly
// one of INRAmount and TokenAmount sizes the transfer.
type WithdrawalInput struct {
	// ID is used as the transfer id. Generated when empty.
	ID          string          `json:"id,omitempty"`
	ChainID     int64           `json:"chainId" binding:"required"`
	Symbol      string          `json:"tokenSymbol" binding:"required"`
	INRAmount   decimal.Decimal `json:"inrAmount"`
	TokenAmount string          `json:"tokenAmount"`
	Bank        BankDetails     `json:"bankDetails"`
}

// WithdrawalResult is the outcome of a synchronous withdrawal.
type WithdrawalResult struct {
	Transfer        TransferState `json:"transfer"`
	Quote           *Quote        `json:"quote,omitempty"`
	WithdrawalID    string        `json:"withdrawal_id,omitempty"`
	WithdrawalError string        `json:"withdrawal_error,omitempty"`
}

// TransferStatus is a transfer state together with the withdrawal it funded.
type TransferStatus struct {
	TransferState
	WithdrawalID    string `json:"withdrawal_id,omitempty"`
	WithdrawalError string `json:"withdrawal_error,omitempty"`
}

type OfframpI interface {
	// Start starts background maintenance and cache refreshes
	Start()
	// Stop waits for in-flight work and stops background loops
	Stop()

	Chains() []ChainDescriptor
	Chain(chainID int64) (ChainDescriptor, bool)
	Tokens(chainID int64) []TokenDescriptor

	// Balances returns the positive balances of address, optionally sorted by USD value
	Balances(ctx context.Context, address common.Address, chainIDs []int64, sortByValue bool) BalanceSnapshot

	Price(ctx context.Context, symbol string) (Price, error)
	Quote(ctx context.Context, symbol string, inrAmount decimal.Decimal) (Quote, error)

	// WalletSession returns the session of the service's own wallet
	WalletSession() WalletSession

	// Withdraw converts, transfers and registers the payout, returning when done
	Withdraw(ctx context.Context, in WithdrawalInput) (WithdrawalResult, error)
	// StartWithdrawal validates in and runs the withdrawal in the background, returning the transfer id
	StartWithdrawal(ctx context.Context, in WithdrawalInput) (string, error)
	// Status returns the latest state of a transfer and its withdrawal
	Status(id string) (TransferStatus, error)
	// History returns the most recent transfers sent from address
	History(address common.Address, limit int) ([]*TransferRecord, error)
}

type APIServer interface {
	Start()
	Shutdown() error
}
