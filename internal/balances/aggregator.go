package balances

import (
	"context"
	"math/big"
	"sort"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/core-coin/offramp/internal/metrics"
	"github.com/core-coin/offramp/internal/models"
	"github.com/core-coin/offramp/pkg/logger"
	"github.com/core-coin/offramp/pkg/units"
)

// ChainSource lists the chains and tokens to aggregate over.
type ChainSource interface {
	ChainIDs() []int64
	Tokens(chainID int64) []models.TokenDescriptor
}

// PriceSource prices a token symbol in USD.
type PriceSource interface {
	USDPrice(ctx context.Context, symbol string) (decimal.Decimal, error)
}

// Aggregator reads native and ERC-20 balances across chains in parallel.
type Aggregator struct {
	logger        *logger.Logger
	chains        ChainSource
	reader        models.ChainReader
	prices        PriceSource
	maxConcurrent int
	now           func() time.Time
}

// NewAggregator creates an Aggregator. prices may be nil, in which case every
// balance is valued at 0.
func NewAggregator(
	logger *logger.Logger,
	chains ChainSource,
	reader models.ChainReader,
	prices PriceSource,
	maxConcurrent int,
) *Aggregator {
	if maxConcurrent <= 0 {
		maxConcurrent = 16
	}
	return &Aggregator{
		logger:        logger,
		chains:        chains,
		reader:        reader,
		prices:        prices,
		maxConcurrent: maxConcurrent,
		now:           time.Now,
	}
}

// FetchBalances returns the strictly positive balances of address on chainIDs, or on
// every registered chain when chainIDs is empty. A failed read is logged and omitted;
// it never fails the whole call. Ordering of the result is unspecified.
func (a *Aggregator) FetchBalances(ctx context.Context, address common.Address, chainIDs []int64) models.BalanceSnapshot {
	if len(chainIDs) == 0 {
		chainIDs = a.chains.ChainIDs()
	}

	var (
		mu       sync.Mutex
		balances []models.TokenBalance
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.maxConcurrent)

	for _, chainID := range chainIDs {
		tokens := a.chains.Tokens(chainID)
		if len(tokens) == 0 {
			a.logger.Debug("Skipping unknown chain", "chain_id", chainID)
			continue
		}

		for _, token := range tokens {
			token := token
			g.Go(func() error {
				raw, err := a.read(gctx, address, token)
				if err != nil {
					kind := "token"
					if token.IsNative() {
						kind = "native"
					}
					a.logger.Warn("Balance read failed",
						"chain_id", token.ChainID,
						"symbol", token.Symbol,
						"address", address.Hex(),
						"error", err,
					)
					metrics.RecordBalanceReadFailure(token.ChainID, kind)
					return nil
				}
				if raw == nil || raw.Sign() <= 0 {
					return nil
				}

				mu.Lock()
				balances = append(balances, models.TokenBalance{
					ChainID:          token.ChainID,
					Token:            token,
					RawBalance:       raw,
					FormattedBalance: units.FromBaseUnits(raw, token.Decimals),
				})
				mu.Unlock()
				return nil
			})
		}
	}

	// Reads never return errors, so Wait only synchronizes.
	_ = g.Wait()

	a.value(ctx, balances)

	return models.BalanceSnapshot{
		Address:   address,
		Balances:  balances,
		FetchedAt: a.now(),
	}
}

func (a *Aggregator) read(ctx context.Context, address common.Address, token models.TokenDescriptor) (*big.Int, error) {
	if token.IsNative() {
		return a.reader.NativeBalance(ctx, token.ChainID, address)
	}
	return a.reader.TokenBalance(ctx, token.ChainID, token.Address, address)
}

// value fills USDValue, pricing each symbol once. Price failures value the balance at 0.
func (a *Aggregator) value(ctx context.Context, balances []models.TokenBalance) {
	if a.prices == nil {
		return
	}

	prices := make(map[string]decimal.Decimal)
	for i := range balances {
		symbol := balances[i].Token.Symbol
		price, seen := prices[symbol]
		if !seen {
			p, err := a.prices.USDPrice(ctx, symbol)
			if err != nil {
				a.logger.Debug("No price for token, valuing at 0", "symbol", symbol, "error", err)
				p = decimal.Zero
			}
			prices[symbol] = p
			price = p
		}
		balances[i].USDValue = units.ToDecimal(balances[i].RawBalance, balances[i].Token.Decimals).Mul(price).InexactFloat64()
	}
}

// SortByValue orders balances by USD value, then by formatted balance, descending.
func SortByValue(balances []models.TokenBalance) {
	sort.SliceStable(balances, func(i, j int) bool {
		if balances[i].USDValue != balances[j].USDValue {
			return balances[i].USDValue > balances[j].USDValue
		}
		return units.ToDecimal(balances[i].RawBalance, balances[i].Token.Decimals).
			GreaterThan(units.ToDecimal(balances[j].RawBalance, balances[j].Token.Decimals))
	})
}
