package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	Upstream UpstreamConfig
	Store    StoreConfig
	Polling  PollingConfig
	WhatsApp WhatsAppConfig
	Security SecurityConfig
	LogLevel string
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port string
	Host string
}

// UpstreamConfig holds the SMS activation provider configuration
type UpstreamConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// MemoryStore as STORE_DB_PATH keeps activation timers in memory only
const MemoryStore = ":memory:"

// StoreConfig holds local persistence configuration
type StoreConfig struct {
	DBPath string
}

// PollingConfig holds the periodic tick configuration
type PollingConfig struct {
	StatusInterval  time.Duration
	BalanceInterval time.Duration
}

// WhatsAppConfig holds WhatsApp notifier configuration
type WhatsAppConfig struct {
	Enabled   bool
	DBPath    string
	NotifyJID string
	QRFile    string
}

// SecurityConfig holds security configuration
type SecurityConfig struct {
	APIKey string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if exists (ignore error if not found)
	_ = godotenv.Load()

	config := &Config{
		Server: ServerConfig{
			Port: getEnv("PORT", "8080"),
			Host: getEnv("HOST", "0.0.0.0"),
		},
		Upstream: UpstreamConfig{
			BaseURL: getEnv("SMS_API_URL", "https://api.sms-activate.ae/stubs/handler_api.php"),
			APIKey:  getEnv("SMS_API_KEY", ""),
			Timeout: parseDuration(getEnv("SMS_API_TIMEOUT", "15s"), 15*time.Second),
		},
		Store: StoreConfig{
			DBPath: getEnv("STORE_DB_PATH", "./db/activations.db"),
		},
		Polling: PollingConfig{
			StatusInterval:  parseDuration(getEnv("POLL_STATUS_INTERVAL", "1s"), time.Second),
			BalanceInterval: parseDuration(getEnv("POLL_BALANCE_INTERVAL", "30s"), 30*time.Second),
		},
		WhatsApp: WhatsAppConfig{
			Enabled:   parseBool(getEnv("WA_ENABLED", "false"), false),
			DBPath:    getEnv("WA_DB_PATH", "./db/whatsmeow.db"),
			NotifyJID: getEnv("WA_NOTIFY_JID", ""),
			QRFile:    getEnv("WA_QR_FILE", "whatsapp-qrcode.png"),
		},
		Security: SecurityConfig{
			APIKey: getEnv("API_KEY", ""),
		},
		LogLevel: getEnv("LOG_LEVEL", "INFO"),
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks required fields and value ranges.
// A missing SMS_API_KEY is not a config error: it surfaces as an auth error on the first call.
func (c *Config) Validate() error {
	if c.Upstream.BaseURL == "" {
		return fmt.Errorf("SMS_API_URL is required")
	}
	if c.Polling.StatusInterval <= 0 {
		return fmt.Errorf("POLL_STATUS_INTERVAL must be positive")
	}
	if c.Polling.BalanceInterval <= 0 {
		return fmt.Errorf("POLL_BALANCE_INTERVAL must be positive")
	}
	if c.WhatsApp.Enabled && c.WhatsApp.NotifyJID == "" {
		return fmt.Errorf("WA_NOTIFY_JID is required when WA_ENABLED is true")
	}
	return nil
}

// getEnv gets environment variable with default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// parseInt parses string to int with default value
func parseInt(value string, defaultValue int) int {
	if value == "" {
		return defaultValue
	}
	intValue, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return intValue
}

// parseBool parses string to bool with default value
func parseBool(value string, defaultValue bool) bool {
	if value == "" {
		return defaultValue
	}
	boolValue, err := strconv.ParseBool(strings.TrimSpace(value))
	if err != nil {
		return defaultValue
	}
	return boolValue
}

// parseDuration parses string to time.Duration with default value.
// Bare integers are read as seconds.
func parseDuration(value string, defaultValue time.Duration) time.Duration {
	if value == "" {
		return defaultValue
	}
	duration, err := time.ParseDuration(value)
	if err != nil {
		if seconds := parseInt(value, -1); seconds > 0 {
			return time.Duration(seconds) * time.Second
		}
		return defaultValue
	}
	return duration
}
