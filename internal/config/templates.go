package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const configTemplate = `# FII Alerts Configuration

[database]
# SQLite database path (default: <config dir>/fii-alerts.db)
path = ""

[pipeline]
# Ledger retention horizon in days
retention_days = 90
# Messages per second through the WhatsApp gateway (~1 message / 1.5s)
messages_per_sec = 0.66
# Token bucket burst size
dispatch_burst = 1
# Percent price move that triggers a price alert
price_threshold = 3.0
# Percent move for the Bitcoin watcher
bitcoin_threshold = 5.0
# Bitcoin watcher polling interval
bitcoin_interval = "5m"

[sources]
# Upstream request timeout
http_timeout = "20s"
# Maximum redirect hops (HTTP and meta-refresh) the pollers follow
max_redirect_hops = 3
# User-Agent sent to upstreams
user_agent = "Mozilla/5.0 (compatible; fii-alerts/1.0)"
# Ticker listing cache TTL
listing_ttl = "12h"

[summary]
# Summarize long documents before composing messages
enabled = true
# Provider: "gemini" or "groq"
provider = "gemini"
model = "gemini-2.0-flash"
max_tokens = 400
temperature = 0.3
timeout = "30s"
`

const credentialsTemplate = `# FII Alerts Credentials
# All values can also be set via environment variables:
# GATEWAY_BASE_URL, GATEWAY_TOKEN, GATEWAY_INSTANCE,
# GEMINI_API_KEY, GROQ_API_KEY, BRAPI_TOKEN

[gateway]
base_url = ""
token = ""
instance = ""

[gemini]
api_key = ""

[groq]
api_key = ""

[brapi]
token = ""
`

func createTemplateConfig(configDir string) error {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	path := filepath.Join(configDir, "config.toml")
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	return os.WriteFile(path, []byte(configTemplate), 0644)
}

func createTemplateCredentials(configDir string) error {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	path := filepath.Join(configDir, "credentials.toml")
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	// Credentials are secrets, keep the file private.
	return os.WriteFile(path, []byte(credentialsTemplate), 0600)
}
