// Package config provides configuration management for the trust engine.
// It loads configuration from environment variables and .env files.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server         ServerConfig
	Database       DatabaseConfig
	Cache          CacheConfig
	Queue          QueueConfig
	Vendor         VendorConfig
	Backend        BackendConfig
	ProcessControl ProcessControlConfig
	Chain          ChainConfig
	Worker         WorkerConfig
	Logging        LoggingConfig
}

// ServerConfig holds status API server configuration
type ServerConfig struct {
	Host string
	Port string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Postgres   PostgresConfig
	ClickHouse ClickHouseConfig
	Redis      RedisConfig
}

// PostgresConfig holds Postgres configuration
type PostgresConfig struct {
	Host           string
	Port           string
	Database       string
	User           string
	Password       string
	MaxConnections int
}

// ClickHouseConfig holds ClickHouse configuration
type ClickHouseConfig struct {
	Host     string
	Port     string
	Database string
	User     string
	Password string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host           string
	Port           string
	Password       string
	DB             int
	MaxConnections int
}

// CacheConfig holds the TTLs for the two cache tiers
type CacheConfig struct {
	MemoryTTL time.Duration // fast in-process tier
	RedisTTL  time.Duration // durable tier
}

// QueueConfig holds the sell-instruction queue configuration
type QueueConfig struct {
	URL      string
	Queue    string
	Prefetch int
}

// VendorConfig holds the external data vendor configuration
type VendorConfig struct {
	APIKey         string
	DataBaseURL    string
	DexBaseURL     string
	RequestsPerSec float64
}

// BackendConfig holds the trade backend sync configuration
type BackendConfig struct {
	BaseURL  string
	Token    string
	Username string
}

// ProcessControlConfig holds the external process-control endpoint
// configuration
type ProcessControlConfig struct {
	BaseURL string
	APIKey  string
}

// ChainConfig holds the chain RPC configuration used for stake lookups
type ChainConfig struct {
	RPCURL           string
	BaseAssetAddress string
}

// WorkerConfig holds liquidation worker configuration
type WorkerConfig struct {
	ScanInterval time.Duration
	IsSimulation bool
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// LoadConfig loads configuration from a .env file and environment variables.
// The engine does not run in a degraded mode: every external endpoint must be
// configured or loading fails.
func LoadConfig() (*Config, error) {
	// .env file is optional - environment variables can be set directly
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	config := &Config{
		Server: ServerConfig{
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
			Port: getEnv("SERVER_PORT", "8080"),
		},
		Database: DatabaseConfig{
			Postgres: PostgresConfig{
				Host:           getEnv("POSTGRES_HOST", "localhost"),
				Port:           getEnv("POSTGRES_PORT", "5432"),
				Database:       getEnv("POSTGRES_DB", "trust_engine"),
				User:           getEnv("POSTGRES_USER", "trust"),
				Password:       getEnv("POSTGRES_PASSWORD", ""),
				MaxConnections: getEnvAsInt("POSTGRES_MAX_CONNECTIONS", 50),
			},
			ClickHouse: ClickHouseConfig{
				Host:     getEnv("CLICKHOUSE_HOST", "localhost"),
				Port:     getEnv("CLICKHOUSE_PORT", "9000"),
				Database: getEnv("CLICKHOUSE_DB", "trust_engine"),
				User:     getEnv("CLICKHOUSE_USER", "default"),
				Password: getEnv("CLICKHOUSE_PASSWORD", ""),
			},
			Redis: RedisConfig{
				Host:           getEnv("REDIS_HOST", "localhost"),
				Port:           getEnv("REDIS_PORT", "6379"),
				Password:       getEnv("REDIS_PASSWORD", ""),
				DB:             getEnvAsInt("REDIS_DB", 0),
				MaxConnections: getEnvAsInt("REDIS_MAX_CONNECTIONS", 50),
			},
		},
		Cache: CacheConfig{
			MemoryTTL: getEnvAsDuration("CACHE_MEMORY_TTL", 5*time.Minute),
			RedisTTL:  getEnvAsDuration("CACHE_REDIS_TTL", time.Hour),
		},
		Queue: QueueConfig{
			URL:      getEnv("AMQP_URL", ""),
			Queue:    getEnv("SELL_QUEUE_NAME", "sell_instructions"),
			Prefetch: getEnvAsInt("AMQP_PREFETCH", 1),
		},
		Vendor: VendorConfig{
			APIKey:         getEnv("VENDOR_API_KEY", ""),
			DataBaseURL:    getEnv("VENDOR_DATA_URL", "https://public-api.birdeye.so"),
			DexBaseURL:     getEnv("VENDOR_DEX_URL", "https://api.dexscreener.com"),
			RequestsPerSec: getEnvAsFloat("VENDOR_REQUESTS_PER_SEC", 3.0),
		},
		Backend: BackendConfig{
			BaseURL:  getEnv("BACKEND_URL", ""),
			Token:    getEnv("BACKEND_TOKEN", ""),
			Username: getEnv("BACKEND_USERNAME", "trust-engine"),
		},
		ProcessControl: ProcessControlConfig{
			BaseURL: getEnv("PROCESS_CONTROL_URL", ""),
			APIKey:  getEnv("PROCESS_CONTROL_API_KEY", ""),
		},
		Chain: ChainConfig{
			RPCURL:           getEnv("CHAIN_RPC_URL", ""),
			BaseAssetAddress: getEnv("BASE_ASSET_ADDRESS", ""),
		},
		Worker: WorkerConfig{
			ScanInterval: getEnvAsDuration("LIQUIDATION_SCAN_INTERVAL", time.Minute),
			IsSimulation: getEnvAsBool("TRADE_SIMULATION", true),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// validate enforces the required service settings.
func (c *Config) validate() error {
	required := map[string]string{
		"AMQP_URL":                c.Queue.URL,
		"VENDOR_API_KEY":          c.Vendor.APIKey,
		"BACKEND_URL":             c.Backend.BaseURL,
		"BACKEND_TOKEN":           c.Backend.Token,
		"PROCESS_CONTROL_URL":     c.ProcessControl.BaseURL,
		"PROCESS_CONTROL_API_KEY": c.ProcessControl.APIKey,
		"CHAIN_RPC_URL":           c.Chain.RPCURL,
		"BASE_ASSET_ADDRESS":      c.Chain.BaseAssetAddress,
	}
	for name, value := range required {
		if value == "" {
			return fmt.Errorf("required configuration %s is not set", name)
		}
	}
	return nil
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as an integer with a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsFloat gets an environment variable as a float with a default value
func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsBool gets an environment variable as a boolean with a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration gets an environment variable as a duration with a default value
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
