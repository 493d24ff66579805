package models

import "github.com/ethereum/go-ethereum/common"

// NativeTokenAddress is the reserved sentinel used as the contract address of a chain's native coin.
var NativeTokenAddress = common.Address{}

// ChainDescriptor describes a supported chain. Only chains with a valid custody
// address are ever handed out by the registry.
type ChainDescriptor struct {
	// ChainID is the EIP-155 chain id (1 = Ethereum mainnet).
	ChainID int64 `json:"chain_id"`
	// Name is a display name (Ethereum, Polygon, ...).
	Name string `json:"name"`
	// NativeSymbol is the symbol of the native coin (ETH, MATIC, BNB).
	NativeSymbol string `json:"native_symbol"`
	// NativeDecimals is the number of decimals of the native coin.
	NativeDecimals uint8 `json:"native_decimals"`
	// CustodyAddress receives transferred tokens before the INR payout.
	CustodyAddress common.Address `json:"custody_address"`
	// ExplorerTxURLTemplate is prefixed to a transaction hash to build an explorer link.
	ExplorerTxURLTemplate string `json:"explorer_tx_url_template"`
	// RPCURL is the JSON-RPC endpoint used for reads.
	RPCURL string `json:"-"`
}

// ExplorerTxURL returns the block-explorer link for a transaction hash.
func (c ChainDescriptor) ExplorerTxURL(txHash string) string {
	if c.ExplorerTxURLTemplate == "" || txHash == "" {
		return ""
	}
	return c.ExplorerTxURLTemplate + txHash
}

// NativeToken returns the descriptor of the chain's native coin.
func (c ChainDescriptor) NativeToken() TokenDescriptor {
	return TokenDescriptor{
		Symbol:   c.NativeSymbol,
		Name:     c.Name + " " + c.NativeSymbol,
		Address:  NativeTokenAddress,
		Decimals: c.NativeDecimals,
		ChainID:  c.ChainID,
	}
}
