package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config represents application configuration
type Config struct {
	Market   MarketConfig   `envconfig:"MARKET"`
	Oracle   OracleConfig   `envconfig:"ORACLE"`
	Broker   BrokerConfig   `envconfig:"BROKER"`
	Improve  ImproveConfig  `envconfig:"IMPROVE"`
	Telegram TelegramConfig `envconfig:"TELEGRAM"`
	Redis    RedisConfig    `envconfig:"REDIS"`
	Database DatabaseConfig `envconfig:"DATABASE"`
	Logging  LoggingConfig  `envconfig:"LOGGING"`
}

// MarketConfig represents market data provider parameters
type MarketConfig struct {
	APIKey       string `envconfig:"MARKET_API_KEY" required:"false"`
	BaseURL      string `envconfig:"MARKET_BASE_URL" default:"https://api.polygon.io"`
	LookbackHrs  int    `envconfig:"MARKET_LOOKBACK_HOURS" default:"72"`
	NewsHours    int    `envconfig:"MARKET_NEWS_HOURS" default:"48"`
	NewsPerAsset int    `envconfig:"MARKET_NEWS_PER_ASSET" default:"10"`
}

// OracleConfig represents the strategy oracle provider parameters
type OracleConfig struct {
	APIKey      string  `envconfig:"ORACLE_API_KEY" required:"false"`
	BaseURL     string  `envconfig:"ORACLE_BASE_URL" default:"https://api.perplexity.ai"`
	Model       string  `envconfig:"ORACLE_MODEL" default:"sonar"`
	Temperature float64 `envconfig:"ORACLE_TEMPERATURE" default:"0.3"`
}

// BrokerConfig represents trade execution parameters
type BrokerConfig struct {
	Mode           string  `envconfig:"BROKER_MODE" default:"paper"` // paper or live
	InitialBalance float64 `envconfig:"BROKER_INITIAL_BALANCE" default:"1000.0"`
}

// ImproveConfig represents self-improvement policy parameters
type ImproveConfig struct {
	LookbackDays      int     `envconfig:"IMPROVE_LOOKBACK_DAYS" default:"180"`
	MinSamples        int     `envconfig:"IMPROVE_MIN_SAMPLES" default:"10"`
	CorrThreshold     float64 `envconfig:"IMPROVE_CORR_THRESHOLD" default:"0.04"`
	ReturnThreshold   float64 `envconfig:"IMPROVE_RETURN_THRESHOLD" default:"0.25"`
	LongTermEveryDays int     `envconfig:"IMPROVE_LONG_TERM_EVERY_DAYS" default:"30"`
	EpochDate         string  `envconfig:"IMPROVE_EPOCH_DATE" default:"2024-01-01"`
}

// TelegramConfig represents Telegram notification configuration
type TelegramConfig struct {
	BotToken       string `envconfig:"TELEGRAM_BOT_TOKEN" required:"false"`
	ChatID         int64  `envconfig:"TELEGRAM_CHAT_ID" required:"false"`
	AlertOnTrades  bool   `envconfig:"TELEGRAM_ALERT_ON_TRADES" default:"true"`
	AlertOnUpgrade bool   `envconfig:"TELEGRAM_ALERT_ON_UPGRADE" default:"true"`
	AlertOnErrors  bool   `envconfig:"TELEGRAM_ALERT_ON_ERRORS" default:"true"`
}

// RedisConfig represents the optional cycle-lock backend
type RedisConfig struct {
	Addrs   []string `envconfig:"REDIS_ADDRS" required:"false"`
	LockTTL int      `envconfig:"REDIS_LOCK_TTL_SECONDS" default:"600"`
}

// DatabaseConfig represents database connection parameters
type DatabaseConfig struct {
	Host     string `envconfig:"DB_HOST" default:"localhost"`
	Port     int    `envconfig:"DB_PORT" default:"5432"`
	Name     string `envconfig:"DB_NAME" default:"signals"`
	User     string `envconfig:"DB_USER" required:"true"`
	Password string `envconfig:"DB_PASSWORD" required:"true"`
	SSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level string `envconfig:"LOG_LEVEL" default:"info"`
	File  string `envconfig:"LOG_FILE" required:"false"`
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Validate checks if configuration is valid
func (c *Config) Validate() error {
	if c.Broker.Mode != "paper" && c.Broker.Mode != "live" {
		return fmt.Errorf("broker mode must be paper or live, got %q", c.Broker.Mode)
	}
	if c.Broker.InitialBalance <= 0 {
		return fmt.Errorf("initial_balance must be positive")
	}

	if c.Improve.LookbackDays < c.Improve.MinSamples {
		return fmt.Errorf("lookback_days must be at least min_samples")
	}
	if c.Improve.MinSamples < 2 {
		return fmt.Errorf("min_samples must be at least 2")
	}
	if c.Improve.CorrThreshold < 0 || c.Improve.ReturnThreshold < 0 {
		return fmt.Errorf("improvement thresholds must be non-negative")
	}
	if c.Improve.LongTermEveryDays < 1 {
		return fmt.Errorf("long_term_every_days must be at least 1")
	}

	if c.Market.LookbackHrs < 48 {
		return fmt.Errorf("market lookback must cover at least 48 hours for the volume ratio")
	}

	if _, err := c.Improve.Epoch(); err != nil {
		return err
	}

	return nil
}

// Epoch parses the fixed long-term cadence anchor
func (c *ImproveConfig) Epoch() (time.Time, error) {
	epoch, err := time.Parse("2006-01-02", c.EpochDate)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid epoch_date %q: %w", c.EpochDate, err)
	}
	return epoch.UTC(), nil
}

// GetDSN returns PostgreSQL connection string
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// IsPaperTrading returns true if trades are simulated
func (c *Config) IsPaperTrading() bool {
	return c.Broker.Mode == "paper"
}
