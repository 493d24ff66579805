package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Development bool
	// API configuration
	APIPort int
	// Postgres configuration
	PostgresUser     string
	PostgresPassword string
	PostgresHost     string
	PostgresPort     int
	PostgresDB       string

	// Chain registry configuration
	ChainsFile string

	// Pricing configuration
	PriceAPIURL      string
	PriceTimeout     time.Duration
	PriceCacheTTL    time.Duration
	DefaultINRPerUSD float64

	// Redis configuration (optional shared price cache)
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Withdrawal backend configuration
	WithdrawalAPIURL  string
	WithdrawalTimeout time.Duration

	// Transfer configuration
	ConfirmationTimeout time.Duration
	ReceiptPollInterval time.Duration
	SessionLockTTL      time.Duration
	InstanceID          string

	// Balance configuration
	BalanceRefreshInterval time.Duration
	BalanceStaleAfter      time.Duration
	MaxConcurrentReads     int

	// Wallet configuration
	WalletPrivateKey string
	WalletChainID    int64

	// Notification configuration
	TelegramBotToken string
	TelegramChatID   string
}

// HasDatabase reports whether postgres persistence is configured.
func (c *Config) HasDatabase() bool {
	return c.PostgresDB != "" && c.PostgresHost != ""
}

// LoadConfig loads the configuration from environment variables
func LoadConfig() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	hostname, _ := os.Hostname()

	cfg := &Config{
		Development:      getEnvAsBool("DEVELOPMENT", false),
		PostgresUser:     getEnv("POSTGRES_USER", "postgres"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "password"),
		PostgresHost:     getEnv("POSTGRES_HOST", ""),
		PostgresPort:     getEnvAsInt("POSTGRES_PORT", 5432),
		PostgresDB:       getEnv("POSTGRES_DB", ""),

		ChainsFile: getEnv("CHAINS_FILE", ""),

		PriceAPIURL:      getEnv("PRICE_API_URL", ""),
		PriceTimeout:     getEnvAsDuration("PRICE_TIMEOUT", 8*time.Second),
		PriceCacheTTL:    getEnvAsDuration("PRICE_CACHE_TTL", time.Minute),
		DefaultINRPerUSD: getEnvAsFloat("DEFAULT_INR_PER_USD", 83.25),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),

		WithdrawalAPIURL:  getEnv("WITHDRAWAL_API_URL", ""),
		WithdrawalTimeout: getEnvAsDuration("WITHDRAWAL_TIMEOUT", 10*time.Second),

		ConfirmationTimeout: getEnvAsDuration("CONFIRMATION_TIMEOUT", 3*time.Minute),
		ReceiptPollInterval: getEnvAsDuration("RECEIPT_POLL_INTERVAL", 2*time.Second),
		SessionLockTTL:      getEnvAsDuration("SESSION_LOCK_TTL", 10*time.Minute),
		InstanceID:          getEnv("INSTANCE_ID", hostname),

		BalanceRefreshInterval: getEnvAsDuration("BALANCE_REFRESH_INTERVAL", 30*time.Second),
		BalanceStaleAfter:      getEnvAsDuration("BALANCE_STALE_AFTER", 15*time.Second),
		MaxConcurrentReads:     getEnvAsInt("MAX_CONCURRENT_READS", 16),

		WalletPrivateKey: getEnv("WALLET_PRIVATE_KEY", ""),
		WalletChainID:    getEnvAsInt64("WALLET_CHAIN_ID", 1),

		TelegramBotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramChatID:   getEnv("TELEGRAM_CHAT_ID", ""),

		APIPort: getEnvAsInt("API_PORT", 6532),
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are properly set
func (c *Config) Validate() error {
	if c.APIPort <= 0 || c.APIPort > 65535 {
		return fmt.Errorf("API_PORT must be between 1 and 65535")
	}

	if c.PriceTimeout <= 0 {
		return fmt.Errorf("PRICE_TIMEOUT must be positive")
	}

	if c.WithdrawalTimeout <= 0 {
		return fmt.Errorf("WITHDRAWAL_TIMEOUT must be positive")
	}

	if c.ConfirmationTimeout < 30*time.Second || c.ConfirmationTimeout > 10*time.Minute {
		return fmt.Errorf("CONFIRMATION_TIMEOUT must be between 30s and 10m")
	}

	if c.ReceiptPollInterval <= 0 {
		return fmt.Errorf("RECEIPT_POLL_INTERVAL must be positive")
	}

	if c.BalanceRefreshInterval <= 0 || c.BalanceStaleAfter <= 0 {
		return fmt.Errorf("BALANCE_REFRESH_INTERVAL and BALANCE_STALE_AFTER must be positive")
	}

	if c.MaxConcurrentReads <= 0 {
		return fmt.Errorf("MAX_CONCURRENT_READS must be positive")
	}

	if c.DefaultINRPerUSD <= 0 {
		return fmt.Errorf("DEFAULT_INR_PER_USD must be positive")
	}

	for name, value := range map[string]string{"PRICE_API_URL": c.PriceAPIURL, "WITHDRAWAL_API_URL": c.WithdrawalAPIURL} {
		if value == "" {
			continue
		}
		if _, err := url.ParseRequestURI(value); err != nil {
			return fmt.Errorf("invalid %s: %w", name, err)
		}
	}

	return nil
}

// Helper functions to read environment variables
func getEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(name string, defaultValue int) int {
	if valueStr, exists := os.LookupEnv(name); exists {
		if value, err := strconv.Atoi(valueStr); err == nil {
			return value
		}
	}
	return defaultValue
}

func getEnvAsInt64(name string, defaultValue int64) int64 {
	if valueStr, exists := os.LookupEnv(name); exists {
		if value, err := strconv.ParseInt(valueStr, 10, 64); err == nil {
			return value
		}
	}
	return defaultValue
}

func getEnvAsBool(name string, defaultValue bool) bool {
	if valueStr, exists := os.LookupEnv(name); exists {
		if value, err := strconv.ParseBool(valueStr); err == nil {
			return value
		}
	}
	return defaultValue
}

func getEnvAsFloat(name string, defaultValue float64) float64 {
	if valueStr, exists := os.LookupEnv(name); exists {
		if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
			return value
		}
	}
	return defaultValue
}

func getEnvAsDuration(name string, defaultValue time.Duration) time.Duration {
	if valueStr, exists := os.LookupEnv(name); exists {
		if value, err := time.ParseDuration(valueStr); err == nil {
			return value
		}
	}
	return defaultValue
}
