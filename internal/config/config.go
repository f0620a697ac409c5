package config

import (
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds the application configuration.
type Config struct {
	Port            string
	BakongToken     string
	BakongAPIURL    string
	BankAccount     string
	MerchantName    string
	MerchantCity    string
	StoreLabel      string
	Phone           string
	Terminal        string
	DefaultCurrency string
	SaleTTLSeconds  int64
}

// New creates a new configuration from environment variables, loading a
// .env file first if one exists.
func New() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, using environment and defaults")
	}

	return &Config{
		Port:            getEnv("PORT", "8081"),
		BakongToken:     getEnv("BAKONG_TOKEN", ""),
		BakongAPIURL:    getEnv("BAKONG_API_URL", "https://api-bakong.nbc.gov.kh"),
		BankAccount:     getEnv("BANK_ACCOUNT", "yourname@aba"),
		MerchantName:    getEnv("MERCHANT_NAME", "My Shop"),
		MerchantCity:    getEnv("MERCHANT_CITY", "Phnom Penh"),
		StoreLabel:      getEnv("STORE_LABEL", "Shop"),
		Phone:           getEnv("PHONE", ""),
		Terminal:        getEnv("TERMINAL", "POS-01"),
		DefaultCurrency: getEnv("CURRENCY", "USD"),
		SaleTTLSeconds:  getEnvInt64("SALE_TTL_SECONDS", 300),
	}
}

// PaymentCheckEnabled reports whether a Bakong token is configured. The
// token is only needed to verify payments, not to issue QR codes.
func (c *Config) PaymentCheckEnabled() bool {
	return c.BakongToken != ""
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvInt64(key string, defaultValue int64) int64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue
	}
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		log.Printf("Warning: invalid %s=%q, using default %d", key, raw, defaultValue)
		return defaultValue
	}
	return value
}
