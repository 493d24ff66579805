package pricing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/core-coin/offramp/internal/config"
	"github.com/core-coin/offramp/internal/metrics"
	"github.com/core-coin/offramp/internal/models"
	"github.com/core-coin/offramp/pkg/logger"
)

const (
	SourceStatic = "static"

	// referenceSymbol is the symbol whose quote provides the INR/USD rate.
	referenceSymbol = "USDT"
)

// priceResponse is the body of GET /price/{symbol}
type priceResponse struct {
	Symbol      string          `json:"symbol"`
	USD         decimal.Decimal `json:"usd"`
	INR         decimal.Decimal `json:"inr"`
	Source      string          `json:"source"`
	LastUpdated string          `json:"lastUpdated"`
}

// Client looks up token prices from the pricing API, falling back to a static table
type Client struct {
	logger     *logger.Logger
	baseURL    string
	client     *http.Client
	cache      Cache
	inrPerUSD  decimal.Decimal
	now        func() time.Time
	refreshFor []string

	// Lifecycle management
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewClient creates a pricing client. A nil cache disables caching.
func NewClient(logger *logger.Logger, config *config.Config, cache Cache) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		logger:    logger,
		baseURL:   strings.TrimRight(config.PriceAPIURL, "/"),
		cache:     cache,
		inrPerUSD: decimal.NewFromFloat(config.DefaultINRPerUSD),
		now:       time.Now,
		client: &http.Client{
			Timeout: config.PriceTimeout,
		},
		ctx:    ctx,
		cancel: cancel,
	}
}

// Price returns the price of symbol. Cached prices are served first; API failures and
// non-200 responses fall back to the static table. ErrPriceUnavailable is returned
// when no source knows the symbol.
func (c *Client) Price(ctx context.Context, symbol string) (models.Price, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return models.Price{}, models.NewError(models.ErrorKindValidation, "Token symbol is required", nil)
	}

	if c.cache != nil {
		if price, ok := c.cache.Get(ctx, symbol); ok {
			return price, nil
		}
	}

	if c.baseURL != "" {
		price, err := c.fetchPrice(ctx, symbol)
		if err == nil {
			if c.cache != nil {
				c.cache.Set(ctx, price)
			}
			return price, nil
		}
		c.logger.Warn("Price API lookup failed, using static table", "symbol", symbol, "error", err)
		metrics.RecordPriceFallback(symbol)
	}

	return c.staticPrice(symbol)
}

// USDPrice returns only the USD price of symbol.
func (c *Client) USDPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	price, err := c.Price(ctx, symbol)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return price.USD, nil
}

// FiatPerUSD returns the INR/USD rate implied by the reference stablecoin quote,
// or the configured default when it cannot be derived.
func (c *Client) FiatPerUSD(ctx context.Context) decimal.Decimal {
	price, err := c.Price(ctx, referenceSymbol)
	if err != nil || price.USD.Sign() <= 0 || price.INR.Sign() <= 0 || price.Source == SourceStatic {
		return c.inrPerUSD
	}
	return price.INR.Div(price.USD)
}

// Quote returns the amount of symbol worth inrAmount.
func (c *Client) Quote(ctx context.Context, symbol string, inrAmount decimal.Decimal) (models.Quote, error) {
	if inrAmount.Sign() <= 0 {
		return models.Quote{}, models.NewError(models.ErrorKindValidation, "INR amount must be greater than zero", nil)
	}

	price, err := c.Price(ctx, symbol)
	if err != nil {
		return models.Quote{}, err
	}
	inrPerUSD := c.FiatPerUSD(ctx)

	amount, ok := Convert(inrAmount, inrPerUSD, price.USD)
	if !ok {
		return models.Quote{}, models.NewError(models.ErrorKindValidation, fmt.Sprintf("No usable price for %s", price.Symbol), models.ErrPriceUnavailable)
	}

	return models.Quote{
		Symbol:      price.Symbol,
		INRAmount:   inrAmount,
		INRPerUSD:   inrPerUSD,
		USDPerToken: price.USD,
		TokenAmount: amount,
		Source:      price.Source,
	}, nil
}

func (c *Client) fetchPrice(ctx context.Context, symbol string) (models.Price, error) {
	endpoint := fmt.Sprintf("%s/price/%s", c.baseURL, url.PathEscape(symbol))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return models.Price{}, fmt.Errorf("failed to build price request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return models.Price{}, fmt.Errorf("failed to fetch price: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return models.Price{}, fmt.Errorf("unexpected status code %d: %s", resp.StatusCode, string(body))
	}

	var priceResp priceResponse
	if err := json.NewDecoder(resp.Body).Decode(&priceResp); err != nil {
		return models.Price{}, fmt.Errorf("failed to decode price response: %w", err)
	}
	if priceResp.USD.Sign() <= 0 {
		return models.Price{}, fmt.Errorf("price API returned non-positive usd price for %s", symbol)
	}

	updated := c.now()
	if priceResp.LastUpdated != "" {
		if t, err := time.Parse(time.RFC3339, priceResp.LastUpdated); err == nil {
			updated = t
		}
	}
	inr := priceResp.INR
	if inr.Sign() <= 0 {
		inr = priceResp.USD.Mul(c.inrPerUSD)
	}
	source := priceResp.Source
	if source == "" {
		source = "api"
	}

	return models.Price{
		Symbol:      symbol,
		USD:         priceResp.USD,
		INR:         inr,
		Source:      source,
		LastUpdated: updated,
	}, nil
}

func (c *Client) staticPrice(symbol string) (models.Price, error) {
	usd, ok := StaticUSDPrice(symbol)
	if !ok {
		return models.Price{}, fmt.Errorf("%w: %s", models.ErrPriceUnavailable, symbol)
	}
	return models.Price{
		Symbol:      symbol,
		USD:         usd,
		INR:         usd.Mul(c.inrPerUSD),
		Source:      SourceStatic,
		LastUpdated: c.now(),
	}, nil
}

// StartPeriodicRefresh keeps the cache warm for symbols, refetching every interval.
func (c *Client) StartPeriodicRefresh(symbols []string, interval time.Duration) {
	if c.cache == nil || c.baseURL == "" || len(symbols) == 0 {
		return
	}
	c.refreshFor = symbols

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		c.refresh()
		for {
			select {
			case <-ticker.C:
				c.refresh()
			case <-c.ctx.Done():
				c.logger.Info("Price refresh stopped")
				return
			}
		}
	}()
}

func (c *Client) refresh() {
	for _, symbol := range c.refreshFor {
		symbol = strings.ToUpper(symbol)
		price, err := c.fetchPrice(c.ctx, symbol)
		if err != nil {
			c.logger.Debug("Failed to refresh price", "symbol", symbol, "error", err)
			continue
		}
		c.cache.Set(c.ctx, price)
	}
}

// Stop halts the refresh loop
func (c *Client) Stop() {
	c.cancel()
	c.wg.Wait()
}
