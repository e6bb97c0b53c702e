package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all configuration for the application
type Config struct {
	// Database configuration
	Database DatabaseConfig

	// Redis configuration
	Redis RedisConfig

	// API server configuration
	API APIConfig

	// Indexer configuration
	Indexer IndexerConfig

	// Notification configuration
	Notify NotifyConfig

	// Logging configuration
	Log LogConfig
}

// DatabaseConfig holds PostgreSQL connection settings
type DatabaseConfig struct {
	Host            string        `envconfig:"DB_HOST" default:"localhost"`
	Port            int           `envconfig:"DB_PORT" default:"5432"`
	User            string        `envconfig:"DB_USER" default:"vault"`
	Password        string        `envconfig:"DB_PASSWORD" default:"vault"`
	Name            string        `envconfig:"DB_NAME" default:"vault_indexer"`
	SSLMode         string        `envconfig:"DB_SSL_MODE" default:"disable"`
	MaxOpenConns    int           `envconfig:"DB_MAX_OPEN_CONNS" default:"25"`
	MaxIdleConns    int           `envconfig:"DB_MAX_IDLE_CONNS" default:"5"`
	ConnMaxLifetime time.Duration `envconfig:"DB_CONN_MAX_LIFETIME" default:"5m"`
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Host     string `envconfig:"REDIS_HOST" default:"localhost"`
	Port     int    `envconfig:"REDIS_PORT" default:"6379"`
	Password string `envconfig:"REDIS_PASSWORD" default:""`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
}

// APIConfig holds API server settings
type APIConfig struct {
	Host            string        `envconfig:"API_HOST" default:"0.0.0.0"`
	Port            int           `envconfig:"API_PORT" default:"8081"`
	ReadTimeout     time.Duration `envconfig:"API_READ_TIMEOUT" default:"10s"`
	WriteTimeout    time.Duration `envconfig:"API_WRITE_TIMEOUT" default:"10s"`
	ShutdownTimeout time.Duration `envconfig:"API_SHUTDOWN_TIMEOUT" default:"30s"`
	RateLimitRPS    int           `envconfig:"API_RATE_LIMIT_RPS" default:"100"`
	CacheTTL        time.Duration `envconfig:"API_CACHE_TTL" default:"30s"`
}

// IndexerConfig holds scanner and reconciler settings
type IndexerConfig struct {
	MetricsPort    int           `envconfig:"INDEXER_METRICS_PORT" default:"8080"`
	BatchSize      int64         `envconfig:"INDEXER_BATCH_SIZE" default:"200"`
	PollInterval   time.Duration `envconfig:"INDEXER_POLL_INTERVAL" default:"5s"`
	RequestTimeout time.Duration `envconfig:"INDEXER_REQUEST_TIMEOUT" default:"30s"`

	// Retry policy for transient source failures
	RetryMaxAttempts int           `envconfig:"INDEXER_RETRY_MAX_ATTEMPTS" default:"5"`
	RetryBaseDelay   time.Duration `envconfig:"INDEXER_RETRY_BASE_DELAY" default:"500ms"`
	RetryMaxDelay    time.Duration `envconfig:"INDEXER_RETRY_MAX_DELAY" default:"30s"`

	// Vault contracts to watch (comma-separated chain:contract pairs)
	WatchTargets []string `envconfig:"INDEXER_WATCH_TARGETS" default:"ethereum:0x1111111111111111111111111111111111111111"`

	// Per-chain settings, keyed by chain id
	ChainFamilies      map[string]string `envconfig:"INDEXER_CHAIN_FAMILIES" default:"ethereum:evm,aptos:move,sui:checkpoint"`
	RPCURLs            map[string]string `envconfig:"INDEXER_RPC_URLS" default:"ethereum:http://localhost:8545"`
	ConfirmationDepths map[string]int64  `envconfig:"INDEXER_CONFIRMATION_DEPTHS" default:"ethereum:12,aptos:1,sui:1"`
	StartPositions     map[string]int64  `envconfig:"INDEXER_START_POSITIONS"`

	// Reconciliation retry window for events with no matching order
	MatchMaxAttempts   int           `envconfig:"INDEXER_MATCH_MAX_ATTEMPTS" default:"20"`
	MatchRetryInterval time.Duration `envconfig:"INDEXER_MATCH_RETRY_INTERVAL" default:"30s"`
	MatchBatchSize     int           `envconfig:"INDEXER_MATCH_BATCH_SIZE" default:"100"`
}

// NotifyConfig holds notification dispatcher settings
type NotifyConfig struct {
	WebhookURL     string        `envconfig:"NOTIFY_WEBHOOK_URL" default:"http://localhost:9090/notify"`
	PollInterval   time.Duration `envconfig:"NOTIFY_POLL_INTERVAL" default:"10s"`
	BatchSize      int           `envconfig:"NOTIFY_BATCH_SIZE" default:"50"`
	RequestTimeout time.Duration `envconfig:"NOTIFY_REQUEST_TIMEOUT" default:"10s"`
}

// LogConfig holds logging settings
type LogConfig struct {
	Level  string `envconfig:"LOG_LEVEL" default:"info"`
	Format string `envconfig:"LOG_FORMAT" default:"json"`
}

// WatchTarget identifies one (chain, vault contract) pair to scan
type WatchTarget struct {
	ChainID         string
	ContractAddress string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Targets parses the configured watch targets
func (c *IndexerConfig) Targets() ([]WatchTarget, error) {
	targets := make([]WatchTarget, 0, len(c.WatchTargets))
	for _, raw := range c.WatchTargets {
		chain, contract, ok := strings.Cut(strings.TrimSpace(raw), ":")
		if !ok || chain == "" || contract == "" {
			return nil, fmt.Errorf("invalid watch target %q: expected chain:contract", raw)
		}
		targets = append(targets, WatchTarget{
			ChainID:         chain,
			ContractAddress: strings.ToLower(contract),
		})
	}
	return targets, nil
}

// ConfirmationDepth returns the configured depth for a chain, defaulting to 1
func (c *IndexerConfig) ConfirmationDepth(chainID string) int64 {
	if d, ok := c.ConfirmationDepths[chainID]; ok && d >= 0 {
		return d
	}
	return 1
}

// StartPosition returns the configured starting scan position for a chain
func (c *IndexerConfig) StartPosition(chainID string) int64 {
	return c.StartPositions[chainID]
}
