package registry

// DefaultChains lists the chains known out of the box. None of them carries a
// custody address: a chain only becomes supported once the chains file sets one.
func DefaultChains() []ChainConfig {
	return []ChainConfig{
		{
			ChainID:        1,
			Name:           "Ethereum",
			NativeSymbol:   "ETH",
			NativeDecimals: 18,
			ExplorerTxURL:  "https://etherscan.io/tx/",
			RPCURL:         "https://ethereum-rpc.publicnode.com",
			Tokens: []TokenConfig{
				{Symbol: "USDT", Name: "Tether USD", Address: "0xdAC17F958D2ee523a2206206994597C13D831ec7", Decimals: 6},
				{Symbol: "USDC", Name: "USD Coin", Address: "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48", Decimals: 6},
				{Symbol: "DAI", Name: "Dai Stablecoin", Address: "0x6B175474E89094C44Da98b954EedeAC495271d0F", Decimals: 18},
			},
		},
		{
			ChainID:        56,
			Name:           "BNB Smart Chain",
			NativeSymbol:   "BNB",
			NativeDecimals: 18,
			ExplorerTxURL:  "https://bscscan.com/tx/",
			RPCURL:         "https://bsc-dataseed.bnbchain.org",
			Tokens: []TokenConfig{
				{Symbol: "USDT", Name: "Tether USD", Address: "0x55d398326f99059fF775485246999027B3197955", Decimals: 18},
				{Symbol: "USDC", Name: "USD Coin", Address: "0x8AC76a51cc950d9822D68b83fE1Ad97B32Cd580d", Decimals: 18},
			},
		},
		{
			ChainID:        137,
			Name:           "Polygon",
			NativeSymbol:   "POL",
			NativeDecimals: 18,
			ExplorerTxURL:  "https://polygonscan.com/tx/",
			RPCURL:         "https://polygon-rpc.com",
			Tokens: []TokenConfig{
				{Symbol: "USDT", Name: "Tether USD", Address: "0xc2132D05D31c914a87C6611C10748AEb04B58e8F", Decimals: 6},
				{Symbol: "USDC", Name: "USD Coin", Address: "0x3c499c542cEF5E3811e1192ce70d8cC03d5c3359", Decimals: 6},
			},
		},
		{
			ChainID:        11155111,
			Name:           "Sepolia",
			NativeSymbol:   "ETH",
			NativeDecimals: 18,
			ExplorerTxURL:  "https://sepolia.etherscan.io/tx/",
			RPCURL:         "https://ethereum-sepolia-rpc.publicnode.com",
			Tokens: []TokenConfig{
				{Symbol: "USDC", Name: "USD Coin", Address: "0x1c7D4B196Cb0C7B01d743Fbc6116a902379C7238", Decimals: 6},
			},
		},
	}
}
