// Package config provides configuration management functionality.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
)

// Config holds application configuration
type Config struct {
	DataDir  string // Base directory for all databases (always absolute)
	Port     int
	LogLevel string
	DevMode  bool

	JWTSecret         string
	AccessTokenExpiry time.Duration

	IndexerURL      string // The Graph endpoint used for wallet sync
	IndexerPageSize int
	SyncSchedule    string // cron spec, empty disables scheduled sync

	ReportCacheTTL          time.Duration
	ReportSnapshotRetention time.Duration
	ReportWorkers           int

	RateLimitPerSecond float64
	RateLimitBurst     int

	Backup *BackupConfig
}

// BackupConfig holds object-storage backup configuration
type BackupConfig struct {
	Enabled         bool
	Endpoint        string // S3-compatible endpoint, empty means AWS
	Region          string
	Bucket          string
	Prefix          string
	AccessKeyID     string
	SecretAccessKey string
	Schedule        string // cron spec
	Retention       int    // number of archives kept
}

const minJWTSecretLength = 32

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("COINTAX_DATA_DIR", "./data")
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:  absDataDir,
		Port:     getEnvAsInt("PORT", 8080),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		DevMode:  getEnvAsBool("DEV_MODE", false),

		JWTSecret:         getEnv("JWT_SECRET", ""),
		AccessTokenExpiry: getEnvAsDuration("ACCESS_TOKEN_EXPIRY", 24*time.Hour),

		IndexerURL:      getEnv("GRAPH_API_URL", "https://api.thegraph.com/subgraphs/name/arbitrum/arbitrum-one-transactions"),
		IndexerPageSize: getEnvAsInt("GRAPH_PAGE_SIZE", 100),
		SyncSchedule:    getEnv("SYNC_SCHEDULE", "0 */6 * * *"),

		ReportCacheTTL:          getEnvAsDuration("REPORT_CACHE_TTL", 15*time.Minute),
		ReportSnapshotRetention: getEnvAsDuration("REPORT_SNAPSHOT_RETENTION", 30*24*time.Hour),
		ReportWorkers:           getEnvAsInt("REPORT_WORKERS", 4),

		RateLimitPerSecond: getEnvAsFloat("RATE_LIMIT_PER_SECOND", 10),
		RateLimitBurst:     getEnvAsInt("RATE_LIMIT_BURST", 30),

		Backup: loadBackupConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func loadBackupConfig() *BackupConfig {
	return &BackupConfig{
		Enabled:         getEnvAsBool("BACKUP_ENABLED", false),
		Endpoint:        getEnv("BACKUP_ENDPOINT", ""),
		Region:          getEnv("BACKUP_REGION", "auto"),
		Bucket:          getEnv("BACKUP_BUCKET", ""),
		Prefix:          getEnv("BACKUP_PREFIX", "cointax"),
		AccessKeyID:     getEnv("BACKUP_ACCESS_KEY_ID", ""),
		SecretAccessKey: getEnv("BACKUP_SECRET_ACCESS_KEY", ""),
		Schedule:        getEnv("BACKUP_SCHEDULE", "30 3 * * *"),
		Retention:       getEnvAsInt("BACKUP_RETENTION", 7),
	}
}

// Validate checks that the configuration is usable
func (c *Config) Validate() error {
	var errs []error

	if len(c.JWTSecret) < minJWTSecretLength {
		errs = append(errs, fmt.Errorf("JWT_SECRET must be at least %d bytes", minJWTSecretLength))
	}
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT out of range: %d", c.Port))
	}
	if c.IndexerPageSize <= 0 {
		errs = append(errs, errors.New("GRAPH_PAGE_SIZE must be positive"))
	}
	if c.ReportWorkers <= 0 {
		errs = append(errs, errors.New("REPORT_WORKERS must be positive"))
	}
	if c.RateLimitPerSecond <= 0 || c.RateLimitBurst <= 0 {
		errs = append(errs, errors.New("rate limit values must be positive"))
	}
	if c.SyncSchedule != "" {
		if _, err := cron.ParseStandard(c.SyncSchedule); err != nil {
			errs = append(errs, fmt.Errorf("invalid SYNC_SCHEDULE %q: %w", c.SyncSchedule, err))
		}
	}

	if c.Backup != nil && c.Backup.Enabled {
		if c.Backup.Bucket == "" {
			errs = append(errs, errors.New("BACKUP_BUCKET is required when backups are enabled"))
		}
		if c.Backup.AccessKeyID == "" || c.Backup.SecretAccessKey == "" {
			errs = append(errs, errors.New("backup credentials are required when backups are enabled"))
		}
		if c.Backup.Retention <= 0 {
			errs = append(errs, errors.New("BACKUP_RETENTION must be positive"))
		}
		if _, err := cron.ParseStandard(c.Backup.Schedule); err != nil {
			errs = append(errs, fmt.Errorf("invalid BACKUP_SCHEDULE %q: %w", c.Backup.Schedule, err))
		}
	}

	return errors.Join(errs...)
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
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

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
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
