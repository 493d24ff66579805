package pricing

import "github.com/shopspring/decimal"

// DisplayPrecision is the number of decimal places token amounts are rounded to.
const DisplayPrecision = 6

// Convert turns a fiat amount into a token amount: (fiat / fiatPerUSD) / usdPerToken,
// rounded to DisplayPrecision. ok is false when either rate is zero or negative,
// in which case the amount is not computable.
func Convert(fiatAmount, fiatPerUSD, usdPerToken decimal.Decimal) (decimal.Decimal, bool) {
	if fiatPerUSD.Sign() <= 0 || usdPerToken.Sign() <= 0 {
		return decimal.Decimal{}, false
	}
	return fiatAmount.Div(fiatPerUSD).Div(usdPerToken).Round(DisplayPrecision), true
}
