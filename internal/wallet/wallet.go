// Package wallet implements a key-backed wallet provider that signs and broadcasts
// transactions itself, for unattended operation from the CLI and the HTTP API.
package wallet

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/core-coin/offramp/internal/blockchain"
	"github.com/core-coin/offramp/internal/models"
	"github.com/core-coin/offramp/pkg/logger"
)

// gasHeadroomPercent is added on top of estimated gas for contract calls.
const gasHeadroomPercent = 20

// ErrDisconnected is returned by every operation after Disconnect.
var ErrDisconnected = errors.New("wallet disconnected")

// Backend is the subset of an Ethereum client the wallet signs and broadcasts through.
type Backend interface {
	ChainID(ctx context.Context) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// BackendResolver returns the backend of a chain.
type BackendResolver func(ctx context.Context, chainID int64) (Backend, error)

// KeyedWallet is a WalletProvider holding its own private key.
type KeyedWallet struct {
	logger       *logger.Logger
	key          *ecdsa.PrivateKey
	address      common.Address
	backends     BackendResolver
	pollInterval time.Duration

	mu              sync.RWMutex
	chainID         int64
	connected       bool
	accountHandlers []func([]common.Address)
	chainHandlers   []func(int64)

	// sendMu serializes nonce allocation.
	sendMu sync.Mutex
}

// ParsePrivateKey parses a hex private key, with or without 0x prefix.
func ParsePrivateKey(hexKey string) (*ecdsa.PrivateKey, error) {
	hexKey = strings.TrimPrefix(strings.TrimSpace(hexKey), "0x")
	key, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	return key, nil
}

// New creates a wallet for key, initially on chainID.
func New(logger *logger.Logger, key *ecdsa.PrivateKey, chainID int64, backends BackendResolver, pollInterval time.Duration) *KeyedWallet {
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	return &KeyedWallet{
		logger:       logger,
		key:          key,
		address:      crypto.PubkeyToAddress(key.PublicKey),
		backends:     backends,
		pollInterval: pollInterval,
		chainID:      chainID,
		connected:    true,
	}
}

// Address returns the wallet address.
func (w *KeyedWallet) Address() common.Address {
	return w.address
}

// Session returns the current connection view of the wallet.
func (w *KeyedWallet) Session() models.WalletSession {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if !w.connected {
		return models.WalletSession{}
	}
	return models.WalletSession{Address: w.address, ChainID: w.chainID, IsConnected: true}
}

func (w *KeyedWallet) RequestAccounts(context.Context) ([]common.Address, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if !w.connected {
		return nil, ErrDisconnected
	}
	return []common.Address{w.address}, nil
}

func (w *KeyedWallet) ChainID(context.Context) (int64, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if !w.connected {
		return 0, ErrDisconnected
	}
	return w.chainID, nil
}

// SwitchChain moves the wallet to chainID after checking the chain's node reports that id.
func (w *KeyedWallet) SwitchChain(ctx context.Context, chainID int64) error {
	backend, err := w.backends(ctx, chainID)
	if err != nil {
		return fmt.Errorf("failed to reach chain %d: %w", chainID, err)
	}
	remote, err := backend.ChainID(ctx)
	if err != nil {
		return fmt.Errorf("failed to get chain id: %w", err)
	}
	if remote.Int64() != chainID {
		return fmt.Errorf("node reports chain %d, expected %d", remote.Int64(), chainID)
	}

	w.mu.Lock()
	changed := w.chainID != chainID
	w.chainID = chainID
	handlers := append([]func(int64){}, w.chainHandlers...)
	w.mu.Unlock()

	if changed {
		w.logger.Info("Wallet switched chain", "chain_id", chainID)
		for _, fn := range handlers {
			fn(chainID)
		}
	}
	return nil
}

// Disconnect detaches the wallet. Account listeners receive an empty account list.
func (w *KeyedWallet) Disconnect() {
	w.mu.Lock()
	w.connected = false
	handlers := append([]func([]common.Address){}, w.accountHandlers...)
	w.mu.Unlock()

	for _, fn := range handlers {
		fn(nil)
	}
}

func (w *KeyedWallet) OnAccountsChanged(fn func(accounts []common.Address)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.accountHandlers = append(w.accountHandlers, fn)
}

func (w *KeyedWallet) OnChainChanged(fn func(chainID int64)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.chainHandlers = append(w.chainHandlers, fn)
}

// SendTransaction signs a plain value transfer for chainID and broadcasts it there.
func (w *KeyedWallet) SendTransaction(ctx context.Context, chainID int64, transfer models.NativeTransfer) (common.Hash, error) {
	gasLimit := transfer.GasLimit
	if gasLimit == 0 {
		gasLimit = blockchain.NativeTransferGas
	}
	return w.signAndSend(ctx, chainID, transfer.To, transfer.Value, nil, gasLimit)
}

// SignAndSendContractCall packs call, estimates its gas on chainID and broadcasts it.
func (w *KeyedWallet) SignAndSendContractCall(ctx context.Context, chainID int64, call models.ContractCall) (common.Hash, error) {
	data, err := call.ABI.Pack(call.Method, call.Args...)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to pack %s call: %w", call.Method, err)
	}
	return w.signAndSend(ctx, chainID, call.Contract, big.NewInt(0), data, 0)
}

func (w *KeyedWallet) signAndSend(ctx context.Context, chainID int64, to common.Address, value *big.Int, data []byte, gasLimit uint64) (common.Hash, error) {
	w.mu.RLock()
	connected := w.connected
	w.mu.RUnlock()
	if !connected {
		return common.Hash{}, ErrDisconnected
	}

	backend, err := w.backends(ctx, chainID)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to reach chain %d: %w", chainID, err)
	}

	w.sendMu.Lock()
	defer w.sendMu.Unlock()

	nonce, err := backend.PendingNonceAt(ctx, w.address)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to get nonce: %w", err)
	}

	gasPrice, err := backend.SuggestGasPrice(ctx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to get gas price: %w", err)
	}

	if gasLimit == 0 {
		estimated, err := backend.EstimateGas(ctx, ethereum.CallMsg{
			From:  w.address,
			To:    &to,
			Value: value,
			Data:  data,
		})
		if err != nil {
			return common.Hash{}, fmt.Errorf("failed to estimate gas: %w", err)
		}
		gasLimit = estimated + estimated*gasHeadroomPercent/100
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &to,
		Value:    value,
		Gas:      gasLimit,
		GasPrice: gasPrice,
		Data:     data,
	})

	signed, err := types.SignTx(tx, types.LatestSignerForChainID(big.NewInt(chainID)), w.key)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to sign transaction: %w", err)
	}

	if err := backend.SendTransaction(ctx, signed); err != nil {
		return common.Hash{}, fmt.Errorf("failed to send transaction: %w", err)
	}

	w.logger.Info("Transaction sent",
		"chain_id", chainID,
		"tx", signed.Hash().Hex(),
		"to", to.Hex(),
		"nonce", nonce,
		"gas", gasLimit,
	)
	return signed.Hash(), nil
}

// WaitForReceipt polls chainID for the receipt of txHash until it is mined or ctx ends.
func (w *KeyedWallet) WaitForReceipt(ctx context.Context, chainID int64, txHash common.Hash) (*types.Receipt, error) {
	backend, err := w.backends(ctx, chainID)
	if err != nil {
		return nil, fmt.Errorf("failed to reach chain %d: %w", chainID, err)
	}

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		receipt, err := backend.TransactionReceipt(ctx, txHash)
		if err == nil {
			return receipt, nil
		}
		if !errors.Is(err, ethereum.NotFound) {
			w.logger.Debug("Receipt lookup failed, retrying", "tx", txHash.Hex(), "error", err)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

var _ models.WalletProvider = (*KeyedWallet)(nil)
