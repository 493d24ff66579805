package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Price is a USD and INR quote for one token symbol.
type Price struct {
	Symbol      string          `json:"symbol"`
	USD         decimal.Decimal `json:"usd"`
	INR         decimal.Decimal `json:"inr"`
	Source      string          `json:"source"`
	LastUpdated time.Time       `json:"lastUpdated"`
}

// Quote is the token amount worth a given INR amount.
type Quote struct {
	Symbol      string          `json:"symbol"`
	INRAmount   decimal.Decimal `json:"inr_amount"`
	INRPerUSD   decimal.Decimal `json:"inr_per_usd"`
	USDPerToken decimal.Decimal `json:"usd_per_token"`
	TokenAmount decimal.Decimal `json:"token_amount"`
	Source      string          `json:"source"`
}
