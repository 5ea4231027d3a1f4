// Package config handles loading and validating configuration from environment variables.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all tunables for the deal scanner.
type Config struct {
	// Upstream API
	EbayClientID     string
	EbayClientSecret string
	TokenURL         string
	SearchURL        string
	OAuthScope       string

	// Executor limits
	CallBudget     int
	CallSpacing    time.Duration
	MaxAttempts    int
	BackoffBase    time.Duration
	BackoffCap     time.Duration
	RequestTimeout time.Duration

	// Scan
	Queries           []string
	PerQueryLimit     int
	TargetCurrency    string
	MaxTotalCost      float64
	BlockedTitleWords []string

	// Valuation
	CompSearchLimit   int
	CompMinSamples    int
	CompTrimFraction  float64
	CompPercentile    float64
	FeeRate           float64
	FixedFee          float64
	MinProfit         float64
	CheapPriceCeiling float64
	CheapMinProfit    float64

	// Storage
	PostgresDSN   string
	ClickhouseDSN string

	// Server
	ScanInterval time.Duration
	HTTPAddr     string
	MetricsAddr  string
}

// Load reads configuration from environment variables with fallback to .env file.
// Priority order: environment variables > .env file > defaults.
func Load() (*Config, error) {
	// Attempt to load .env file (ignore error if not found)
	_ = godotenv.Load()

	cfg := &Config{
		EbayClientID:     getEnv("EBAY_CLIENT_ID", ""),
		EbayClientSecret: getEnv("EBAY_CLIENT_SECRET", ""),
		TokenURL:         getEnv("EBAY_TOKEN_URL", "https://api.ebay.com/identity/v1/oauth2/token"),
		SearchURL:        getEnv("EBAY_SEARCH_URL", "https://api.ebay.com/buy/browse/v1/item_summary/search"),
		OAuthScope:       getEnv("EBAY_OAUTH_SCOPE", "https://api.ebay.com/oauth/api_scope"),

		CallBudget:     getEnvInt("SCAN_CALL_BUDGET", 60),
		CallSpacing:    time.Duration(getEnvInt("SCAN_CALL_SPACING_MS", 2000)) * time.Millisecond,
		MaxAttempts:    getEnvInt("SCAN_MAX_ATTEMPTS", 4),
		BackoffBase:    time.Duration(getEnvInt("SCAN_BACKOFF_BASE_MS", 1000)) * time.Millisecond,
		BackoffCap:     time.Duration(getEnvInt("SCAN_BACKOFF_CAP_MS", 30000)) * time.Millisecond,
		RequestTimeout: time.Duration(getEnvInt("SCAN_REQUEST_TIMEOUT_SECONDS", 30)) * time.Second,

		Queries:           getEnvList("SCAN_QUERIES", "psa 10 football auto /10,psa 10 football auto /25,psa 10 football 1/1"),
		PerQueryLimit:     getEnvInt("SCAN_PER_QUERY_LIMIT", 25),
		TargetCurrency:    getEnv("SCAN_CURRENCY", "USD"),
		MaxTotalCost:      getEnvFloat("SCAN_MAX_TOTAL_COST", 5000),
		BlockedTitleWords: getEnvList("SCAN_BLOCKED_TITLE_WORDS", "lot,lots,bundle,bulk,break,repack,mystery"),

		CompSearchLimit:   getEnvInt("COMP_SEARCH_LIMIT", 50),
		CompMinSamples:    getEnvInt("COMP_MIN_SAMPLES", 5),
		CompTrimFraction:  getEnvFloat("COMP_TRIM_FRACTION", 0.20),
		CompPercentile:    getEnvFloat("COMP_PERCENTILE", 0.50),
		FeeRate:           getEnvFloat("FEE_RATE", 0.15),
		FixedFee:          getEnvFloat("FIXED_FEE", 0.30),
		MinProfit:         getEnvFloat("MIN_PROFIT", 25),
		CheapPriceCeiling: getEnvFloat("CHEAP_PRICE_CEILING", 50),
		CheapMinProfit:    getEnvFloat("CHEAP_MIN_PROFIT", 10),

		PostgresDSN:   getEnv("DATABASE_URL", ""),
		ClickhouseDSN: getEnv("CLICKHOUSE_DSN", ""),

		ScanInterval: time.Duration(getEnvInt("SCAN_INTERVAL_MINUTES", 30)) * time.Minute,
		HTTPAddr:     getEnv("HTTP_ADDR", ":8080"),
		MetricsAddr:  getEnv("METRICS_ADDR", ":9090"),
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

// getEnvList parses a comma-separated value, trimming whitespace and
// dropping empty entries.
func getEnvList(key, fallback string) []string {
	raw := getEnv(key, fallback)
	var out []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
