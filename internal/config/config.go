// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Payload source kinds
const (
	SourceFile = "file"
	SourceHTTP = "http"
	SourceS3   = "s3"
)

// Config holds application configuration
type Config struct {
	DataDir             string // Base directory for the history database (always absolute)
	Port                int
	LogLevel            string
	DevMode             bool
	AnnualizationFactor int
	PublishToken        string // Empty disables POST /api/publish
	SessionTTL          time.Duration
	HistoryKeep         int      // Snapshots kept by the prune job, 0 keeps everything
	CORSOrigins         []string // Also used as websocket origin patterns
	Payload             PayloadConfig
	Publish             PublishConfig
	Limits              LimitsConfig
}

// PayloadConfig selects where the payload is fetched from
type PayloadConfig struct {
	Source          string // file, http or s3
	Path            string // file source
	ManifestURL     string // http source
	Bucket          string // s3 source and publisher
	Key             string
	Endpoint        string // S3-compatible endpoint, e.g. Cloudflare R2
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	RefreshSchedule string // cron spec
	FetchTimeout    time.Duration
}

// PublishConfig configures uploads made by POST /api/publish
type PublishConfig struct {
	Enabled       bool
	PublicBaseURL string // Base of the URLs written to the manifest
}

// LimitsConfig holds the view sizes
type LimitsConfig struct {
	TopRiskAssets   int
	TopPairs        int
	TopDeltas       int
	TopContributors int
	EditorRows      int
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg, err := FromEnv()
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	return cfg, nil
}

// FromEnv builds and validates a Config from the current environment without
// touching the filesystem.
func FromEnv() (*Config, error) {
	absDataDir, err := filepath.Abs(getEnv("PRISK_DATA_DIR", "./data"))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}

	cfg := &Config{
		DataDir:             absDataDir,
		Port:                getEnvAsInt("PRISK_PORT", 8080),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		DevMode:             getEnvAsBool("DEV_MODE", false),
		AnnualizationFactor: getEnvAsInt("ANNUALIZATION_FACTOR", 252),
		PublishToken:        getEnv("PUBLISH_TOKEN", ""),
		SessionTTL:          getEnvAsDuration("SESSION_TTL", 2*time.Hour),
		HistoryKeep:         getEnvAsInt("HISTORY_KEEP", 500),
		CORSOrigins:         getEnvAsList("CORS_ORIGINS", []string{"*"}),
		Payload: PayloadConfig{
			Source:          strings.ToLower(getEnv("PAYLOAD_SOURCE", SourceFile)),
			Path:            getEnv("PAYLOAD_PATH", "./data/latest.json"),
			ManifestURL:     getEnv("PAYLOAD_MANIFEST_URL", ""),
			Bucket:          getEnv("R2_BUCKET", ""),
			Key:             getEnv("PAYLOAD_KEY", "risk/latest.json"),
			Endpoint:        getEnv("R2_ENDPOINT", ""),
			Region:          getEnv("R2_REGION", "auto"),
			AccessKeyID:     getEnv("R2_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("R2_SECRET_ACCESS_KEY", ""),
			RefreshSchedule: getEnv("PAYLOAD_REFRESH_SCHEDULE", "@every 15m"),
			FetchTimeout:    getEnvAsDuration("PAYLOAD_FETCH_TIMEOUT", 30*time.Second),
		},
		Publish: PublishConfig{
			Enabled:       getEnvAsBool("PUBLISH_TO_R2", false),
			PublicBaseURL: getEnv("R2_PUBLIC_BASE_URL", ""),
		},
		Limits: LimitsConfig{
			TopRiskAssets:   getEnvAsInt("TOP_RISK_ASSETS", 15),
			TopPairs:        getEnvAsInt("TOP_PAIRS", 12),
			TopDeltas:       getEnvAsInt("TOP_DELTAS", 20),
			TopContributors: getEnvAsInt("TOP_CONTRIBUTORS", 10),
			EditorRows:      getEnvAsInt("EDITOR_ROWS", 12),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if c.AnnualizationFactor <= 0 {
		return fmt.Errorf("annualization factor must be positive, got %d", c.AnnualizationFactor)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}

	switch c.Payload.Source {
	case SourceFile:
		if c.Payload.Path == "" {
			return fmt.Errorf("PAYLOAD_PATH is required for the file source")
		}
	case SourceHTTP:
		if c.Payload.ManifestURL == "" {
			return fmt.Errorf("PAYLOAD_MANIFEST_URL is required for the http source")
		}
	case SourceS3:
		if c.Payload.Bucket == "" {
			return fmt.Errorf("R2_BUCKET is required for the s3 source")
		}
	default:
		return fmt.Errorf("unknown payload source %q (want file, http or s3)", c.Payload.Source)
	}

	if c.Publish.Enabled && c.Payload.Bucket == "" {
		return fmt.Errorf("R2_BUCKET is required when PUBLISH_TO_R2 is set")
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("session TTL must be positive, got %s", c.SessionTTL)
	}

	return nil
}

// NeedsS3 reports whether an S3 client must be built.
func (c *Config) NeedsS3() bool {
	return c.Payload.Source == SourceS3 || c.Publish.Enabled
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
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
