package pricing

import "github.com/shopspring/decimal"

// staticUSDPrices is the last-resort price table used when the pricing API is
// unreachable. INR values are derived with the configured INR/USD rate.
var staticUSDPrices = map[string]decimal.Decimal{
	"USDT":  decimal.NewFromInt(1),
	"USDC":  decimal.NewFromInt(1),
	"DAI":   decimal.NewFromInt(1),
	"BUSD":  decimal.NewFromInt(1),
	"ETH":   decimal.NewFromInt(3000),
	"WETH":  decimal.NewFromInt(3000),
	"BNB":   decimal.NewFromInt(600),
	"POL":   decimal.RequireFromString("0.5"),
	"MATIC": decimal.RequireFromString("0.5"),
}

// StaticUSDPrice returns the fallback USD price of symbol.
func StaticUSDPrice(symbol string) (decimal.Decimal, bool) {
	p, ok := staticUSDPrices[symbol]
	return p, ok
}
