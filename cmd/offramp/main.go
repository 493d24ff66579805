package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/shopspring/decimal"
	"github.com/urfave/cli/v2"

	"github.com/core-coin/offramp/internal/balances"
	"github.com/core-coin/offramp/internal/blockchain"
	"github.com/core-coin/offramp/internal/config"
	"github.com/core-coin/offramp/internal/http_api"
	"github.com/core-coin/offramp/internal/metrics"
	"github.com/core-coin/offramp/internal/models"
	"github.com/core-coin/offramp/internal/notificator"
	"github.com/core-coin/offramp/internal/offramp"
	"github.com/core-coin/offramp/internal/pricing"
	"github.com/core-coin/offramp/internal/registry"
	"github.com/core-coin/offramp/internal/repository"
	"github.com/core-coin/offramp/internal/transfer"
	"github.com/core-coin/offramp/internal/wallet"
	"github.com/core-coin/offramp/internal/withdrawal"
	"github.com/core-coin/offramp/pkg/logger"
	"github.com/core-coin/offramp/pkg/validation"
)

func main() {
	app := &cli.App{
		Name:  "offramp",
		Usage: "Offramp converts token holdings into INR bank payouts",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "postgres-user", Aliases: []string{"u"}, Usage: "Postgres user"},
			&cli.StringFlag{Name: "postgres-password", Aliases: []string{"p"}, Usage: "Postgres password"},
			&cli.StringFlag{Name: "postgres-host", Aliases: []string{"t"}, Usage: "Postgres host"},
			&cli.IntFlag{Name: "postgres-port", Aliases: []string{"P"}, Usage: "Postgres port"},
			&cli.StringFlag{Name: "postgres-db", Aliases: []string{"d"}, Usage: "Postgres database name"},
			&cli.StringFlag{Name: "chains-file", Aliases: []string{"c"}, Usage: "Chains file (yaml, json or toml)"},
			&cli.StringFlag{Name: "price-api-url", Usage: "Pricing API base URL"},
			&cli.StringFlag{Name: "withdrawal-api-url", Usage: "Withdrawal backend base URL"},
			&cli.IntFlag{Name: "api-port", Usage: "HTTP API port"},
			&cli.BoolFlag{Name: "development", Aliases: []string{"D"}, Usage: "Development mode"},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API and background refreshes",
				Action: serve,
			},
			{
				Name:   "chains",
				Usage:  "List supported chains and tokens",
				Action: listChains,
			},
			{
				Name:  "balances",
				Usage: "Show the balances of an address",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "address", Aliases: []string{"a"}, Usage: "Wallet address", Required: true},
					&cli.StringFlag{Name: "chains", Usage: "Comma separated chain ids, all supported chains when empty"},
				},
				Action: showBalances,
			},
			{
				Name:  "quote",
				Usage: "Convert an INR amount into a token amount",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "symbol", Aliases: []string{"s"}, Usage: "Token symbol", Required: true},
					&cli.StringFlag{Name: "inr", Usage: "INR amount", Required: true},
				},
				Action: showQuote,
			},
			{
				Name:  "withdraw",
				Usage: "Transfer tokens to the custody wallet and register an INR payout",
				Flags: []cli.Flag{
					&cli.Int64Flag{Name: "chain", Usage: "Chain id", Required: true},
					&cli.StringFlag{Name: "symbol", Aliases: []string{"s"}, Usage: "Token symbol", Required: true},
					&cli.StringFlag{Name: "inr", Usage: "INR amount to receive"},
					&cli.StringFlag{Name: "amount", Usage: "Token amount to send"},
					&cli.StringFlag{Name: "account-number", Usage: "Bank account number", Required: true},
					&cli.StringFlag{Name: "ifsc", Usage: "IFSC code", Required: true},
					&cli.StringFlag{Name: "holder", Usage: "Account holder name", Required: true},
					&cli.StringFlag{Name: "bank-name", Usage: "Bank name"},
				},
				Action: withdraw,
			},
		},
	}

	err := app.Run(os.Args)
	if err != nil {
		log.Fatal(err)
	}
}

// loadConfig loads configuration from the environment and applies flag overrides.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %v", err)
	}

	// Override with flags if set
	if c.IsSet("postgres-user") {
		cfg.PostgresUser = c.String("postgres-user")
	}
	if c.IsSet("postgres-password") {
		cfg.PostgresPassword = c.String("postgres-password")
	}
	if c.IsSet("postgres-host") {
		cfg.PostgresHost = c.String("postgres-host")
	}
	if c.IsSet("postgres-port") {
		cfg.PostgresPort = c.Int("postgres-port")
	}
	if c.IsSet("postgres-db") {
		cfg.PostgresDB = c.String("postgres-db")
	}
	if c.IsSet("chains-file") {
		cfg.ChainsFile = c.String("chains-file")
	}
	if c.IsSet("price-api-url") {
		cfg.PriceAPIURL = c.String("price-api-url")
	}
	if c.IsSet("withdrawal-api-url") {
		cfg.WithdrawalAPIURL = c.String("withdrawal-api-url")
	}
	if c.IsSet("api-port") {
		cfg.APIPort = c.Int("api-port")
	}
	if c.IsSet("development") {
		cfg.Development = c.Bool("development")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// readStack is everything needed for read-only commands.
type readStack struct {
	cfg        *config.Config
	log        *logger.Logger
	registry   *registry.Registry
	pool       *blockchain.Pool
	prices     *pricing.Client
	aggregator *balances.Aggregator
	closers    []func()
}

func (s *readStack) close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.log.Sync()
}

func newReadStack(c *cli.Context) (*readStack, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}

	// Initialize logger
	log, err := logger.NewLogger(cfg.Development)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %v", err)
	}

	reg, err := registry.Load(cfg.ChainsFile, log)
	if err != nil {
		return nil, err
	}
	if len(reg.ChainIDs()) == 0 {
		log.Warn("No supported chains, set custody addresses in the chains file", "chains_file", cfg.ChainsFile)
	}

	s := &readStack{cfg: cfg, log: log, registry: reg}

	s.pool = blockchain.NewPool(reg, log)
	s.closers = append(s.closers, s.pool.Close)

	var cache pricing.Cache = pricing.NewMemoryCache(cfg.PriceCacheTTL)
	if cfg.RedisAddr != "" {
		redisCache, err := pricing.NewRedisCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.PriceCacheTTL, log)
		if err != nil {
			log.Warn("Redis unavailable, using in-process price cache", "error", err)
		} else {
			cache = redisCache
			s.closers = append(s.closers, func() { _ = redisCache.Close() })
		}
	}
	s.prices = pricing.NewClient(log, cfg, cache)
	s.closers = append(s.closers, s.prices.Stop)

	s.aggregator = balances.NewAggregator(log, reg, s.pool, s.prices, cfg.MaxConcurrentReads)
	return s, nil
}

// buildOfframp wires the full service on top of a read stack.
func buildOfframp(s *readStack) (*offramp.Offramp, error) {
	cfg, log := s.cfg, s.log

	if cfg.WalletPrivateKey == "" {
		return nil, fmt.Errorf("WALLET_PRIVATE_KEY is required")
	}
	key, err := wallet.ParsePrivateKey(cfg.WalletPrivateKey)
	if err != nil {
		return nil, err
	}
	keyed := wallet.New(log, key, cfg.WalletChainID, func(ctx context.Context, chainID int64) (wallet.Backend, error) {
		client, err := s.pool.Backend(ctx, chainID)
		if err != nil {
			return nil, err
		}
		return client, nil
	}, cfg.ReceiptPollInterval)

	var (
		repo   models.Repository
		locker transfer.Locker
	)
	if cfg.HasDatabase() {
		db, err := repository.NewPostgresDB(cfg.PostgresUser, cfg.PostgresPassword, cfg.PostgresDB, cfg.PostgresHost, cfg.PostgresPort, log)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %v", err)
		}
		s.closers = append(s.closers, func() { _ = db.Close() })
		repo = db
		locker = transfer.NewRepositoryLocker(db, cfg.InstanceID, cfg.SessionLockTTL)
	} else {
		log.Warn("No database configured, transfers are kept in memory only")
		repo = repository.NewMemoryDB()
		locker = transfer.NewMemoryLocker()
	}

	// Sender stays a nil interface when the bot is not configured
	var sender notificator.Sender
	if cfg.TelegramBotToken != "" {
		tg, err := notificator.NewTelegramNotificator(log, cfg.TelegramBotToken)
		if err != nil {
			log.Warn("Telegram alerts disabled", "error", err)
		} else {
			sender = tg
			s.closers = append(s.closers, tg.Stop)
		}
	}
	notif := notificator.NewNotificator(log, cfg.TelegramChatID, sender)

	orchestrator := transfer.NewOrchestrator(log, s.registry, keyed, s.pool, locker, transfer.NewTracker(), repo, cfg.ConfirmationTimeout)
	cache := balances.NewCache(log, s.aggregator, cfg.BalanceStaleAfter, cfg.BalanceRefreshInterval)

	return offramp.NewOfframp(
		s.registry,
		cache,
		s.prices,
		orchestrator,
		withdrawal.NewSubmitter(log, cfg),
		keyed,
		repo,
		notif,
		log,
		cfg,
	), nil
}

func serve(c *cli.Context) error {
	s, err := newReadStack(c)
	if err != nil {
		return err
	}
	defer s.close()

	metrics.RegisterMetrics(s.log)

	app, err := buildOfframp(s)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	apiServer := http_api.NewHTTPServer(app, s.cfg.APIPort, s.log)
	go apiServer.Start()
	app.Start()
	s.log.Info("Offramp service started", "wallet", app.WalletSession().Address.Hex(), "chains", len(app.Chains()))

	<-ctx.Done()
	s.log.Info("Shutdown signal received")

	if err := apiServer.Shutdown(); err != nil {
		s.log.Error("Failed to shut down HTTP server", "error", err)
	}
	app.Stop()
	return nil
}

func listChains(c *cli.Context) error {
	s, err := newReadStack(c)
	if err != nil {
		return err
	}
	defer s.close()

	for _, chain := range s.registry.Chains() {
		symbols := make([]string, 0)
		for _, token := range s.registry.Tokens(chain.ChainID) {
			symbols = append(symbols, token.Symbol)
		}
		fmt.Printf("%d\t%s\tcustody=%s\ttokens=%s\n", chain.ChainID, chain.Name, chain.CustodyAddress.Hex(), strings.Join(symbols, ","))
	}
	return nil
}

func showBalances(c *cli.Context) error {
	address, err := validation.ValidateAndNormalizeAddress(c.String("address"))
	if err != nil {
		return err
	}
	chainIDs, err := parseChainIDs(c.String("chains"))
	if err != nil {
		return err
	}

	s, err := newReadStack(c)
	if err != nil {
		return err
	}
	defer s.close()

	snapshot := s.aggregator.FetchBalances(c.Context, address, chainIDs)
	balances.SortByValue(snapshot.Balances)
	for _, b := range snapshot.Balances {
		fmt.Printf("%d\t%s\t%s\t$%.2f\n", b.ChainID, b.Token.Symbol, b.FormattedBalance, b.USDValue)
	}
	return nil
}

func parseChainIDs(raw string) ([]int64, error) {
	if raw == "" {
		return nil, nil
	}
	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid chain id %q", part)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func showQuote(c *cli.Context) error {
	inr, err := decimal.NewFromString(c.String("inr"))
	if err != nil {
		return fmt.Errorf("invalid INR amount: %w", err)
	}

	s, err := newReadStack(c)
	if err != nil {
		return err
	}
	defer s.close()

	quote, err := s.prices.Quote(c.Context, c.String("symbol"), inr)
	if err != nil {
		return err
	}
	return printJSON(quote)
}

func withdraw(c *cli.Context) error {
	in := models.WithdrawalInput{
		ChainID:     c.Int64("chain"),
		Symbol:      c.String("symbol"),
		TokenAmount: c.String("amount"),
		Bank: models.BankDetails{
			AccountNumber:     c.String("account-number"),
			IFSCCode:          c.String("ifsc"),
			AccountHolderName: c.String("holder"),
			BankName:          c.String("bank-name"),
		},
	}
	if c.IsSet("inr") {
		inr, err := decimal.NewFromString(c.String("inr"))
		if err != nil {
			return fmt.Errorf("invalid INR amount: %w", err)
		}
		in.INRAmount = inr
	}

	s, err := newReadStack(c)
	if err != nil {
		return err
	}
	defer s.close()

	app, err := buildOfframp(s)
	if err != nil {
		return err
	}
	defer app.Stop()

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	result, err := app.Withdraw(ctx, in)
	if printErr := printJSON(result); printErr != nil {
		return printErr
	}
	if err != nil {
		return fmt.Errorf("withdrawal failed: %s", models.UserMessage(err))
	}
	return nil
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
