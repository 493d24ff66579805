package models

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// WalletSession is the connected-wallet view owned by the caller. The core never mutates it.
type WalletSession struct {
	Address     common.Address `json:"address"`
	ChainID     int64          `json:"chain_id"`
	IsConnected bool           `json:"is_connected"`
}

// NativeTransfer is a plain value transfer.
type NativeTransfer struct {
	To       common.Address
	Value    *big.Int
	GasLimit uint64
}

// ContractCall is a state-changing contract method invocation.
type ContractCall struct {
	Contract common.Address
	ABI      abi.ABI
	Method   string
	Args     []interface{}
}

// WalletProvider is the capability the orchestrator needs from a connected wallet.
// Broadcasts and receipt lookups name their chain; they never follow the wallet's
// currently selected chain.
type WalletProvider interface {
	RequestAccounts(ctx context.Context) ([]common.Address, error)
	ChainID(ctx context.Context) (int64, error)
	SendTransaction(ctx context.Context, chainID int64, tx NativeTransfer) (common.Hash, error)
	SignAndSendContractCall(ctx context.Context, chainID int64, call ContractCall) (common.Hash, error)
	WaitForReceipt(ctx context.Context, chainID int64, txHash common.Hash) (*types.Receipt, error)
	OnAccountsChanged(fn func(accounts []common.Address))
	OnChainChanged(fn func(chainID int64))
}
