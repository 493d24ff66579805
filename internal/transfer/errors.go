package transfer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/rpc"

	"github.com/core-coin/offramp/internal/models"
)

// userRejectedCode is the EIP-1193 code for a request the user declined.
const userRejectedCode = 4001

// ClassifyProviderError maps an error returned by a wallet provider or RPC node to a
// categorized error with a display message. It returns nil for a nil error.
func ClassifyProviderError(err error) *models.Error {
	if err == nil {
		return nil
	}

	var categorized *models.Error
	if errors.As(err, &categorized) {
		return categorized
	}

	switch {
	case errors.Is(err, context.Canceled):
		return models.NewError(models.ErrorKindCancelled, "Transfer cancelled", err)
	case errors.Is(err, context.DeadlineExceeded):
		return models.NewError(models.ErrorKindProvider, "RPC timeout", err)
	}

	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) && rpcErr.ErrorCode() == userRejectedCode {
		return userRejected(err)
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "user rejected"),
		strings.Contains(msg, "user denied"),
		strings.Contains(msg, "rejected by user"):
		return userRejected(err)
	case strings.Contains(msg, "insufficient funds"):
		return models.NewError(models.ErrorKindInsufficientFunds, "Insufficient balance to cover the amount and gas", err)
	case strings.Contains(msg, "gas required exceeds"),
		strings.Contains(msg, "execution reverted"):
		return models.NewError(models.ErrorKindProvider, "Gas estimation failed", err)
	}

	return models.NewError(models.ErrorKindProvider, fmt.Sprintf("Transaction failed: %s", err.Error()), err)
}

func userRejected(err error) *models.Error {
	return models.NewError(models.ErrorKindUserRejected, "Transaction rejected in wallet", err)
}

func networkMismatch(walletChain, targetChain int64) *models.Error {
	return models.NewError(models.ErrorKindNetworkMismatch,
		fmt.Sprintf("Wallet is on chain %d, switch to chain %d to continue", walletChain, targetChain), nil)
}
