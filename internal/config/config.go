// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Environment string
	Server      ServerConfig
	Database    DatabaseConfig
	Chain       ChainConfig
	Storage     StorageConfig
	Grant       GrantConfig
	Reconciler  ReconcilerConfig
}

type ServerConfig struct {
	Port         string
	Host         string
	ReadTimeout  int
	WriteTimeout int
	IdleTimeout  int
}

type DatabaseConfig struct {
	Host         string
	Port         string
	User         string
	Password     string
	Database     string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  int
	LogLevel     string
}

type ChainConfig struct {
	RPCURL          string
	ChainID         int64
	USDCAddress     string
	TreasuryAddress string
	NFTContract     string
	TokenID         int64
	MinterKey       string
	ExpectedAmount  int64 // smallest USDC unit (6 decimals)
	AmountTolerance int64
	ReceiptTimeout  int // seconds
	ConfirmTimeout  int // seconds
}

type StorageConfig struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	S3Bucket        string
}

type GrantConfig struct {
	TTL           int // seconds
	TokenSecret   string
	PublicBaseURL string
	MediaBaseURL  string
}

type ReconcilerConfig struct {
	Enabled        bool
	Interval       int // seconds
	StuckThreshold int // seconds
}

func Load() (*Config, error) {
	// Load .env file if it exists
	godotenv.Load()

	config := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Port:         getEnv("SERVER_PORT", "8080"),
			Host:         getEnv("SERVER_HOST", "localhost"),
			ReadTimeout:  getEnvAsInt("SERVER_READ_TIMEOUT", 15),
			WriteTimeout: getEnvAsInt("SERVER_WRITE_TIMEOUT", 15),
			IdleTimeout:  getEnvAsInt("SERVER_IDLE_TIMEOUT", 60),
		},
		Database: DatabaseConfig{
			Host:         getEnv("DB_HOST", "localhost"),
			Port:         getEnv("DB_PORT", "5432"),
			User:         getEnv("DB_USER", "postgres"),
			Password:     getEnv("DB_PASSWORD", ""),
			Database:     getEnv("DB_NAME", "mixtape"),
			SSLMode:      getEnv("DB_SSL_MODE", "disable"),
			MaxOpenConns: getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvAsInt("DB_MAX_IDLE_CONNS", 25),
			MaxLifetime:  getEnvAsInt("DB_MAX_LIFETIME", 300),
			LogLevel:     getEnv("DB_LOG_LEVEL", "silent"),
		},
		Chain: ChainConfig{
			RPCURL:          getEnv("CHAIN_RPC_URL", "https://mainnet.base.org"),
			ChainID:         int64(getEnvAsInt("CHAIN_ID", 8453)),
			USDCAddress:     getEnv("USDC_ADDRESS", "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913"),
			TreasuryAddress: getEnv("TREASURY_ADDRESS", ""),
			NFTContract:     getEnv("NFT_CONTRACT_ADDRESS", ""),
			TokenID:         int64(getEnvAsInt("MIXTAPE_TOKEN_ID", 1)),
			MinterKey:       getEnv("MINTER_PRIVATE_KEY", ""),
			ExpectedAmount:  int64(getEnvAsInt("EXPECTED_AMOUNT_USDC_UNITS", 4200000)), // 4.20 USDC
			AmountTolerance: int64(getEnvAsInt("AMOUNT_TOLERANCE_USDC_UNITS", 1000)),   // 0.001 USDC
			ReceiptTimeout:  getEnvAsInt("RECEIPT_TIMEOUT", 15),
			ConfirmTimeout:  getEnvAsInt("MINT_CONFIRM_TIMEOUT", 120),
		},
		Storage: StorageConfig{
			Region:          getEnv("AWS_REGION", "us-east-1"),
			AccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
			S3Bucket:        getEnv("AWS_S3_BUCKET", "mixtape-audio"),
		},
		Grant: GrantConfig{
			TTL:           getEnvAsInt("GRANT_TTL", 3600),
			TokenSecret:   getEnv("GRANT_TOKEN_SECRET", "playback-secret-change-in-production"),
			PublicBaseURL: getEnv("PUBLIC_BASE_URL", "http://localhost:8080"),
			MediaBaseURL:  getEnv("MEDIA_BASE_URL", ""),
		},
		Reconciler: ReconcilerConfig{
			Enabled:        getEnvAsBool("RECONCILER_ENABLED", true),
			Interval:       getEnvAsInt("RECONCILER_INTERVAL", 60),
			StuckThreshold: getEnvAsInt("RECONCILER_STUCK_THRESHOLD", 300),
		},
	}

	return config, config.Validate()
}

func (c *Config) Validate() error {
	if c.Environment == "production" {
		if c.Chain.TreasuryAddress == "" {
			return fmt.Errorf("treasury address is required in production")
		}
		if c.Chain.NFTContract == "" {
			return fmt.Errorf("NFT contract address is required in production")
		}
		if c.Chain.MinterKey == "" {
			return fmt.Errorf("minter private key is required in production")
		}
		if c.Grant.TokenSecret == "playback-secret-change-in-production" {
			return fmt.Errorf("grant token secret must be changed in production")
		}
		if c.Database.Password == "" {
			return fmt.Errorf("database password is required in production")
		}
	}

	if c.Chain.AmountTolerance < 0 {
		return fmt.Errorf("amount tolerance must be non-negative")
	}

	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(strings.ToLower(value)); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
