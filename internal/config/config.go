// Package config provides configuration management for the alert pipeline.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	apperrors "fii-alerts/internal/errors"
)

// Config holds all application configuration.
type Config struct {
	Database    DatabaseConfig `mapstructure:"database"`
	Pipeline    PipelineConfig `mapstructure:"pipeline"`
	Sources     SourcesConfig  `mapstructure:"sources"`
	Summary     SummaryConfig  `mapstructure:"summary"`
	Credentials Credentials    `mapstructure:"-"` // Loaded separately
}

// DatabaseConfig holds database configuration.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// PipelineConfig holds pipeline behavior configuration.
type PipelineConfig struct {
	RetentionDays    int     `mapstructure:"retention_days"`
	MessagesPerSec   float64 `mapstructure:"messages_per_sec"`
	DispatchBurst    int     `mapstructure:"dispatch_burst"`
	PriceThreshold   float64 `mapstructure:"price_threshold"`   // percent move that triggers an alert
	BitcoinThreshold float64 `mapstructure:"bitcoin_threshold"` // percent move for the BTC watcher
	BitcoinInterval  string  `mapstructure:"bitcoin_interval"`  // e.g. "5m"
}

// SourcesConfig holds upstream source configuration.
type SourcesConfig struct {
	HTTPTimeout     string `mapstructure:"http_timeout"` // e.g. "20s"
	MaxRedirectHops int    `mapstructure:"max_redirect_hops"`
	UserAgent       string `mapstructure:"user_agent"`
	FnetBaseURL     string `mapstructure:"fnet_base_url"`
	Investidor10URL string `mapstructure:"investidor10_url"`
	BrapiBaseURL    string `mapstructure:"brapi_base_url"`
	CoinGeckoURL    string `mapstructure:"coingecko_url"`
	ListingTTL      string `mapstructure:"listing_ttl"` // ticker listing cache TTL
}

// SummaryConfig holds document summarization configuration.
type SummaryConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	Provider    string  `mapstructure:"provider"` // "gemini" or "groq"
	Model       string  `mapstructure:"model"`
	MaxTokens   int     `mapstructure:"max_tokens"`
	Temperature float64 `mapstructure:"temperature"`
	Timeout     string  `mapstructure:"timeout"`
}

// Credentials holds API credentials.
type Credentials struct {
	Gateway GatewayCredentials `mapstructure:"gateway"`
	Gemini  GeminiCredentials  `mapstructure:"gemini"`
	Groq    GroqCredentials    `mapstructure:"groq"`
	Brapi   BrapiCredentials   `mapstructure:"brapi"`
}

// GatewayCredentials holds WhatsApp gateway credentials.
type GatewayCredentials struct {
	BaseURL  string `mapstructure:"base_url"`
	Token    string `mapstructure:"token"`
	Instance string `mapstructure:"instance"`
}

// GeminiCredentials holds Gemini API credentials.
type GeminiCredentials struct {
	APIKey string `mapstructure:"api_key"`
}

// GroqCredentials holds Groq API credentials.
type GroqCredentials struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
}

// BrapiCredentials holds BRAPI quote API credentials.
type BrapiCredentials struct {
	Token string `mapstructure:"token"`
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/fii-alerts"
	}
	return filepath.Join(home, ".config", "fii-alerts")
}

// Load loads configuration from the specified directory.
// If configDir is empty, uses the default config directory.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	cfg := &Config{}

	if err := loadConfigFile(configDir, "config", cfg); err != nil {
		return nil, fmt.Errorf("loading config.toml: %w", err)
	}

	if err := loadCredentials(configDir, &cfg.Credentials); err != nil {
		return nil, fmt.Errorf("loading credentials.toml: %w", err)
	}

	applyDefaults(cfg)
	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func loadConfigFile(configDir, name string, target interface{}) error {
	v := viper.New()
	v.SetConfigName(name)
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return createTemplateConfig(configDir)
		}
		return err
	}

	return v.Unmarshal(target)
}

func loadCredentials(configDir string, creds *Credentials) error {
	v := viper.New()
	v.SetConfigName("credentials")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return createTemplateCredentials(configDir)
		}
		return err
	}

	return v.Unmarshal(creds)
}

func applyDefaults(cfg *Config) {
	if cfg.Database.Path == "" {
		cfg.Database.Path = filepath.Join(DefaultConfigDir(), "fii-alerts.db")
	}
	if cfg.Pipeline.RetentionDays == 0 {
		cfg.Pipeline.RetentionDays = 90
	}
	if cfg.Pipeline.MessagesPerSec == 0 {
		cfg.Pipeline.MessagesPerSec = 1.0 / 1.5
	}
	if cfg.Pipeline.DispatchBurst == 0 {
		cfg.Pipeline.DispatchBurst = 1
	}
	if cfg.Pipeline.PriceThreshold == 0 {
		cfg.Pipeline.PriceThreshold = 3.0
	}
	if cfg.Pipeline.BitcoinThreshold == 0 {
		cfg.Pipeline.BitcoinThreshold = 5.0
	}
	if cfg.Pipeline.BitcoinInterval == "" {
		cfg.Pipeline.BitcoinInterval = "5m"
	}
	if cfg.Sources.HTTPTimeout == "" {
		cfg.Sources.HTTPTimeout = "20s"
	}
	if cfg.Sources.MaxRedirectHops == 0 {
		cfg.Sources.MaxRedirectHops = 3
	}
	if cfg.Sources.UserAgent == "" {
		cfg.Sources.UserAgent = "Mozilla/5.0 (compatible; fii-alerts/1.0)"
	}
	if cfg.Sources.FnetBaseURL == "" {
		cfg.Sources.FnetBaseURL = "https://fnet.bmfbovespa.com.br/fnet/publico"
	}
	if cfg.Sources.Investidor10URL == "" {
		cfg.Sources.Investidor10URL = "https://investidor10.com.br/fiis/dividendos"
	}
	if cfg.Sources.BrapiBaseURL == "" {
		cfg.Sources.BrapiBaseURL = "https://brapi.dev/api"
	}
	if cfg.Sources.CoinGeckoURL == "" {
		cfg.Sources.CoinGeckoURL = "https://api.coingecko.com/api/v3/simple/price?ids=bitcoin&vs_currencies=brl&include_24hr_change=true"
	}
	if cfg.Sources.ListingTTL == "" {
		cfg.Sources.ListingTTL = "12h"
	}
	if cfg.Summary.Provider == "" {
		cfg.Summary.Provider = "gemini"
	}
	if cfg.Summary.Model == "" {
		cfg.Summary.Model = "gemini-2.0-flash"
	}
	if cfg.Summary.MaxTokens == 0 {
		cfg.Summary.MaxTokens = 400
	}
	if cfg.Summary.Temperature == 0 {
		cfg.Summary.Temperature = 0.3
	}
	if cfg.Summary.Timeout == "" {
		cfg.Summary.Timeout = "30s"
	}
	if cfg.Credentials.Groq.BaseURL == "" {
		cfg.Credentials.Groq.BaseURL = "https://api.groq.com/openai/v1"
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("FII_ALERTS_DB"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("GATEWAY_BASE_URL"); v != "" {
		cfg.Credentials.Gateway.BaseURL = v
	}
	if v := os.Getenv("GATEWAY_TOKEN"); v != "" {
		cfg.Credentials.Gateway.Token = v
	}
	if v := os.Getenv("GATEWAY_INSTANCE"); v != "" {
		cfg.Credentials.Gateway.Instance = v
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		cfg.Credentials.Gemini.APIKey = v
	}
	if v := os.Getenv("GROQ_API_KEY"); v != "" {
		cfg.Credentials.Groq.APIKey = v
	}
	if v := os.Getenv("BRAPI_TOKEN"); v != "" {
		cfg.Credentials.Brapi.Token = v
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Pipeline.RetentionDays < 1 {
		return apperrors.NewValidationError("pipeline.retention_days", c.Pipeline.RetentionDays, "must be at least 1")
	}
	if c.Pipeline.MessagesPerSec <= 0 {
		return apperrors.NewValidationError("pipeline.messages_per_sec", c.Pipeline.MessagesPerSec, "must be positive")
	}
	if c.Pipeline.PriceThreshold < 0 {
		return apperrors.NewValidationError("pipeline.price_threshold", c.Pipeline.PriceThreshold, "must be non-negative")
	}
	if _, err := time.ParseDuration(c.Sources.HTTPTimeout); err != nil {
		return apperrors.NewValidationError("sources.http_timeout", c.Sources.HTTPTimeout, "must be a duration like \"20s\"")
	}
	if _, err := time.ParseDuration(c.Sources.ListingTTL); err != nil {
		return apperrors.NewValidationError("sources.listing_ttl", c.Sources.ListingTTL, "must be a duration like \"12h\"")
	}
	if _, err := time.ParseDuration(c.Pipeline.BitcoinInterval); err != nil {
		return apperrors.NewValidationError("pipeline.bitcoin_interval", c.Pipeline.BitcoinInterval, "must be a duration like \"5m\"")
	}
	if _, err := time.ParseDuration(c.Summary.Timeout); err != nil {
		return apperrors.NewValidationError("summary.timeout", c.Summary.Timeout, "must be a duration like \"30s\"")
	}
	if c.Summary.Provider != "gemini" && c.Summary.Provider != "groq" {
		return apperrors.NewValidationError("summary.provider", c.Summary.Provider, "must be \"gemini\" or \"groq\"")
	}
	return nil
}

// HTTPTimeout returns the parsed upstream HTTP timeout.
func (c *Config) HTTPTimeout() time.Duration {
	d, err := time.ParseDuration(c.Sources.HTTPTimeout)
	if err != nil {
		return 20 * time.Second
	}
	return d
}

// ListingTTL returns the parsed ticker listing cache TTL.
func (c *Config) ListingTTL() time.Duration {
	d, err := time.ParseDuration(c.Sources.ListingTTL)
	if err != nil {
		return 12 * time.Hour
	}
	return d
}

// SummaryTimeout returns the parsed summarization call timeout.
func (c *Config) SummaryTimeout() time.Duration {
	d, err := time.ParseDuration(c.Summary.Timeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// BitcoinInterval returns the parsed BTC watcher interval.
func (c *Config) BitcoinInterval() time.Duration {
	d, err := time.ParseDuration(c.Pipeline.BitcoinInterval)
	if err != nil {
		return 5 * time.Minute
	}
	return d
}
