package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all service configuration
type Config struct {
	Port     string
	AppURL   string
	LogLevel string
	Mongo    MongoConfig
	Redis    RedisConfig
	Shopify  ShopifyConfig
	Sync     SyncConfig

	// EncryptionKey seals channel credentials at rest
	EncryptionKey string

	ShipStationBaseURL string
	MetricsNamespace   string
}

// MongoConfig holds MongoDB connection settings
type MongoConfig struct {
	URI      string
	Database string
}

// RedisConfig holds Redis connection settings. An empty Addr selects the in-process stores.
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// ShopifyConfig holds the app credentials used for every shop
type ShopifyConfig struct {
	APIKey            string
	APISecret         string
	APIVersion        string
	Scopes            []string
	RequestsPerSecond float64
	Retries           int
}

// SyncConfig holds sync pipeline tuning
type SyncConfig struct {
	PageSize      int
	RunLockTTL    time.Duration
	OAuthStateTTL time.Duration
	WebhookDedup  time.Duration
}

// LoadDotEnv loads a .env file from the working directory. A missing file is not an error.
func LoadDotEnv() (bool, error) {
	if err := godotenv.Load(); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("failed to load .env: %w", err)
	}
	return true, nil
}

// Load resolves configuration from the environment and built-in defaults
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()
	return fromViper(v)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", "8080")
	v.SetDefault("APP_URL", "http://localhost:8080")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("MONGODB_URI", "mongodb://localhost:27017")
	v.SetDefault("MONGODB_DATABASE", "channel_sync")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_KEY_PREFIX", "channelsync:")
	v.SetDefault("SHOPIFY_API_VERSION", "2024-10")
	v.SetDefault("SHOPIFY_SCOPES", "read_orders,read_products,read_inventory")
	v.SetDefault("SHOPIFY_REQUESTS_PER_SECOND", 2.0)
	v.SetDefault("SHOPIFY_RETRIES", 3)
	v.SetDefault("SYNC_PAGE_SIZE", 50)
	v.SetDefault("SYNC_RUN_LOCK_TTL", "30m")
	v.SetDefault("OAUTH_STATE_TTL", "10m")
	v.SetDefault("WEBHOOK_DEDUP_TTL", "24h")
	v.SetDefault("SHIPSTATION_BASE_URL", "https://ssapi.shipstation.com")
	v.SetDefault("METRICS_NAMESPACE", "channel_sync")
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Port:     v.GetString("PORT"),
		AppURL:   strings.TrimRight(v.GetString("APP_URL"), "/"),
		LogLevel: v.GetString("LOG_LEVEL"),
		Mongo: MongoConfig{
			URI:      v.GetString("MONGODB_URI"),
			Database: v.GetString("MONGODB_DATABASE"),
		},
		Redis: RedisConfig{
			Addr:      v.GetString("REDIS_ADDR"),
			Password:  v.GetString("REDIS_PASSWORD"),
			DB:        v.GetInt("REDIS_DB"),
			KeyPrefix: v.GetString("REDIS_KEY_PREFIX"),
		},
		Shopify: ShopifyConfig{
			APIKey:            v.GetString("SHOPIFY_API_KEY"),
			APISecret:         v.GetString("SHOPIFY_API_SECRET"),
			APIVersion:        v.GetString("SHOPIFY_API_VERSION"),
			Scopes:            splitList(v.GetString("SHOPIFY_SCOPES")),
			RequestsPerSecond: v.GetFloat64("SHOPIFY_REQUESTS_PER_SECOND"),
			Retries:           v.GetInt("SHOPIFY_RETRIES"),
		},
		Sync: SyncConfig{
			PageSize:      v.GetInt("SYNC_PAGE_SIZE"),
			RunLockTTL:    v.GetDuration("SYNC_RUN_LOCK_TTL"),
			OAuthStateTTL: v.GetDuration("OAUTH_STATE_TTL"),
			WebhookDedup:  v.GetDuration("WEBHOOK_DEDUP_TTL"),
		},
		EncryptionKey:      v.GetString("ENCRYPTION_KEY"),
		ShipStationBaseURL: v.GetString("SHIPSTATION_BASE_URL"),
		MetricsNamespace:   v.GetString("METRICS_NAMESPACE"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports the first missing or out-of-range setting by its key
func (c *Config) Validate() error {
	switch {
	case c.EncryptionKey == "":
		return fmt.Errorf("ENCRYPTION_KEY is required")
	case len(c.EncryptionKey) < 32:
		return fmt.Errorf("ENCRYPTION_KEY must be at least 32 bytes")
	case c.Shopify.APIKey == "":
		return fmt.Errorf("SHOPIFY_API_KEY is required")
	case c.Shopify.APISecret == "":
		return fmt.Errorf("SHOPIFY_API_SECRET is required")
	case c.Mongo.Database == "":
		return fmt.Errorf("MONGODB_DATABASE is required")
	case c.Sync.PageSize <= 0 || c.Sync.PageSize > 250:
		return fmt.Errorf("SYNC_PAGE_SIZE must be between 1 and 250")
	case c.Sync.RunLockTTL <= 0:
		return fmt.Errorf("SYNC_RUN_LOCK_TTL must be positive")
	case c.Sync.OAuthStateTTL <= 0:
		return fmt.Errorf("OAUTH_STATE_TTL must be positive")
	}
	return nil
}

// OAuthRedirectURI is the callback registered with the platform
func (c *Config) OAuthRedirectURI() string {
	return c.AppURL + "/auth/callback"
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
