package models

import "github.com/ethereum/go-ethereum/common"

// TokenDescriptor identifies a token on a chain. (Address, ChainID) is unique.
type TokenDescriptor struct {
	// Symbol is the short symbol of the token (e.g., ETH, USDT)
	Symbol string `json:"symbol"`
	// Name is the full name of the token
	Name string `json:"name"`
	// Address is the ERC-20 contract address, or NativeTokenAddress for the native coin
	Address common.Address `json:"address"`
	// Decimals is the number of decimals the token uses
	Decimals uint8 `json:"decimals"`
	// ChainID is the chain the token lives on
	ChainID int64 `json:"chain_id"`
}

// IsNative reports whether the descriptor refers to the chain's native coin.
func (t TokenDescriptor) IsNative() bool {
	return t.Address == NativeTokenAddress
}
