package config

import (
	"fmt"
	"sync"
	"time"

	"github.com/caarlos0/env"
	"github.com/spf13/pflag"
)

// Config holds all application configuration
type Config struct {
	// Server
	ListenAddr string `env:"LISTEN_ADDR" envDefault:":8080"`

	// Database. Empty means run on the in-memory store only.
	DatabaseURL string `env:"DATABASE_URL"`

	// MemoryFallback keeps the API serving from the in-memory store when the
	// database becomes unreachable
	MemoryFallback bool `env:"MEMORY_FALLBACK" envDefault:"true"`

	// Sessions
	JWTSecret string        `env:"JWT_SECRET"`
	TokenTTL  time.Duration `env:"TOKEN_TTL" envDefault:"24h"`

	// Game settings
	WinProbability      float64 `env:"WIN_PROBABILITY" envDefault:"0.45"`
	MaxPayoutMultiplier float64 `env:"MAX_PAYOUT_MULTIPLIER" envDefault:"5"`
	MinBet              int64   `env:"MIN_BET" envDefault:"1"`

	// Payment settings, amounts in smallest currency unit
	MinDeposit      int64   `env:"MIN_DEPOSIT" envDefault:"10000"`
	MinWithdraw     int64   `env:"MIN_WITHDRAW" envDefault:"10000"`
	BonusThreshold  int64   `env:"BONUS_THRESHOLD" envDefault:"100000"`
	BonusRate       float64 `env:"BONUS_RATE" envDefault:"0.10"`
	StartingBalance int64   `env:"STARTING_BALANCE" envDefault:"0"`

	// Notification sinks, each enabled when its token is set
	TelegramToken  string `env:"TELEGRAM_BOT_TOKEN"`
	TelegramChatID string `env:"TELEGRAM_CHAT_ID"`
	DiscordToken   string `env:"DISCORD_TOKEN"`
	DiscordChannel string `env:"DISCORD_CHANNEL_ID"`

	// Environment: "development", "production" or "test"
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
}

var (
	instance *Config
	once     sync.Once
)

// Get returns the global configuration instance
func Get() *Config {
	once.Do(func() {
		var err error
		instance, err = load()
		if err != nil {
			panic(fmt.Sprintf("failed to load config: %v", err))
		}
	})
	return instance
}

// load reads configuration from environment variables, then lets command
// line flags override the handful an operator changes per invocation
func load() (*Config, error) {
	config := &Config{}
	if err := env.Parse(config); err != nil {
		return nil, err
	}

	listenAddr := pflag.String("listen", config.ListenAddr, "address to listen on")
	databaseURL := pflag.String("database-url", config.DatabaseURL, "postgres connection string")
	logLevel := pflag.String("log-level", config.LogLevel, "log level: debug, info, warn, error")
	pflag.Parse()

	if pflag.CommandLine.Changed("listen") {
		config.ListenAddr = *listenAddr
	}
	if pflag.CommandLine.Changed("database-url") {
		config.DatabaseURL = *databaseURL
	}
	if pflag.CommandLine.Changed("log-level") {
		config.LogLevel = *logLevel
	}

	if err := config.validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func (c *Config) validate() error {
	if c.WinProbability <= 0 || c.WinProbability >= 1 {
		return fmt.Errorf("WIN_PROBABILITY must be between 0 and 1 (exclusive)")
	}
	if c.MaxPayoutMultiplier <= 1 {
		return fmt.Errorf("MAX_PAYOUT_MULTIPLIER must be greater than 1")
	}
	if c.BonusRate < 0 || c.BonusRate >= 1 {
		return fmt.Errorf("BONUS_RATE must be in [0, 1)")
	}
	// The ledger rejects zero-amount rows, so the minimums never go below 1.
	if c.MinBet < 1 {
		c.MinBet = 1
	}
	if c.MinDeposit < 1 {
		c.MinDeposit = 1
	}
	if c.MinWithdraw < 1 {
		c.MinWithdraw = 1
	}
	if c.Environment != "test" && c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	return nil
}
