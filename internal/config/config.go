package config

import (
	"errors"
	"math/big"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration values
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Chain    ChainConfig
	Payment  PaymentConfig
	ImageGen ImageGenConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port           string
	Env            string
	AdminAddresses []string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// URL returns the database connection URL
func (c DatabaseConfig) URL() string {
	return "postgres://" + c.User + ":" + c.Password + "@" + c.Host + ":" + strconv.Itoa(c.Port) + "/" + c.DBName + "?sslmode=" + c.SSLMode + "&prepare_threshold=0"
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	URL      string
	PASSWORD string
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret        string
	AccessExpiry  time.Duration
	RefreshExpiry time.Duration
	NonceTTL      time.Duration
}

// ChainConfig holds chain oracle settings
type ChainConfig struct {
	RPCURL             string
	MinConfirmations   uint64
	ReceiptPollEvery   time.Duration
	ReceiptWaitTimeout time.Duration
}

// PaymentConfig holds the payment contract parameters. It is an explicit
// value injected into the admission service at construction time; nothing
// downstream reads payment settings from the environment.
type PaymentConfig struct {
	Address   string
	AmountETH string
}

// AmountWei converts the configured decimal ETH amount to wei
func (c PaymentConfig) AmountWei() (*big.Int, error) {
	return EthToWei(c.AmountETH)
}

// ImageGenConfig holds image generation API settings
type ImageGenConfig struct {
	BaseURL string
	APIKey  string
	Model   string
}

// Load loads configuration from environment variables
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:           getEnv("SERVER_PORT", "8080"),
			Env:            getEnv("SERVER_ENV", "development"),
			AdminAddresses: splitList(getEnv("ADMIN_ADDRESSES", "")),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "stylize"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			URL:      getEnv("REDIS_URL", "redis://localhost:6379"),
			PASSWORD: getEnv("REDIS_PASSWORD", ""),
		},
		JWT: JWTConfig{
			Secret:        getEnv("JWT_SECRET", "change-this-in-production"),
			AccessExpiry:  getEnvAsDuration("JWT_ACCESS_EXPIRY", 15*time.Minute),
			RefreshExpiry: getEnvAsDuration("JWT_REFRESH_EXPIRY", 7*24*time.Hour),
			NonceTTL:      getEnvAsDuration("AUTH_NONCE_TTL", 60*time.Second),
		},
		Chain: ChainConfig{
			RPCURL:             getEnv("BASE_RPC_URL", "https://mainnet.base.org"),
			MinConfirmations:   uint64(getEnvAsInt("PAYMENT_MIN_CONFIRMATIONS", 1)),
			ReceiptPollEvery:   getEnvAsDuration("RECEIPT_POLL_INTERVAL", 2*time.Second),
			ReceiptWaitTimeout: getEnvAsDuration("RECEIPT_WAIT_TIMEOUT", 60*time.Second),
		},
		Payment: PaymentConfig{
			Address:   getEnv("PAYMENT_ADDRESS", ""),
			AmountETH: getEnv("PAYMENT_AMOUNT", "0.00001"),
		},
		ImageGen: ImageGenConfig{
			BaseURL: getEnv("IMAGEGEN_BASE_URL", ""),
			APIKey:  getEnv("OPENAI_API_KEY", ""),
			Model:   getEnv("IMAGEGEN_MODEL", "gpt-image-1"),
		},
	}
}

// EthToWei converts a decimal ETH string (e.g. "0.00001") to wei with no
// floating-point rounding.
func EthToWei(amount string) (*big.Int, error) {
	rat, ok := new(big.Rat).SetString(amount)
	if !ok || rat.Sign() < 0 {
		return nil, errors.New("invalid ETH amount: " + amount)
	}

	weiPerEth := new(big.Rat).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))
	rat.Mul(rat, weiPerEth)
	if !rat.IsInt() {
		return nil, errors.New("ETH amount has sub-wei precision: " + amount)
	}
	return rat.Num(), nil
}

func splitList(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	var out []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, strings.ToLower(trimmed))
		}
	}
	return out
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
