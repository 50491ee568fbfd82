package config

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestLoad_Defaults(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")
	t.Setenv("COINTAX_DATA_DIR", dir)
	t.Setenv("JWT_SECRET", testSecret)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, dir, cfg.DataDir)
	assert.DirExists(t, dir)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 24*time.Hour, cfg.AccessTokenExpiry)
	assert.Equal(t, 100, cfg.IndexerPageSize)
	assert.Equal(t, 15*time.Minute, cfg.ReportCacheTTL)
	assert.Equal(t, 4, cfg.ReportWorkers)
	require.NotNil(t, cfg.Backup)
	assert.False(t, cfg.Backup.Enabled)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("COINTAX_DATA_DIR", t.TempDir())
	t.Setenv("JWT_SECRET", testSecret)
	t.Setenv("PORT", "9001")
	t.Setenv("DEV_MODE", "true")
	t.Setenv("REPORT_CACHE_TTL", "2m")
	t.Setenv("RATE_LIMIT_PER_SECOND", "2.5")
	t.Setenv("SYNC_SCHEDULE", "*/15 * * * *")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9001, cfg.Port)
	assert.True(t, cfg.DevMode)
	assert.Equal(t, 2*time.Minute, cfg.ReportCacheTTL)
	assert.Equal(t, 2.5, cfg.RateLimitPerSecond)
	assert.Equal(t, "*/15 * * * *", cfg.SyncSchedule)
}

func TestLoad_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("COINTAX_DATA_DIR", t.TempDir())
	t.Setenv("JWT_SECRET", testSecret)
	t.Setenv("PORT", "not-a-number")
	t.Setenv("ACCESS_TOKEN_EXPIRY", "forever")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, 24*time.Hour, cfg.AccessTokenExpiry)
}

func TestLoad_RequiresJWTSecret(t *testing.T) {
	t.Setenv("COINTAX_DATA_DIR", t.TempDir())
	t.Setenv("JWT_SECRET", "short")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")
}

func validConfig() *Config {
	return &Config{
		DataDir:            "/tmp",
		Port:               8080,
		JWTSecret:          testSecret,
		IndexerPageSize:    100,
		ReportWorkers:      2,
		RateLimitPerSecond: 5,
		RateLimitBurst:     10,
		SyncSchedule:       "0 * * * *",
		Backup:             &BackupConfig{},
	}
}

func TestValidate(t *testing.T) {
	testCases := []struct {
		name     string
		mutate   func(c *Config)
		errorMsg string
	}{
		{
			name:   "valid",
			mutate: func(c *Config) {},
		},
		{
			name:   "empty sync schedule disables sync",
			mutate: func(c *Config) { c.SyncSchedule = "" },
		},
		{
			name:     "bad sync schedule",
			mutate:   func(c *Config) { c.SyncSchedule = "every now and then" },
			errorMsg: "SYNC_SCHEDULE",
		},
		{
			name:     "zero workers",
			mutate:   func(c *Config) { c.ReportWorkers = 0 },
			errorMsg: "REPORT_WORKERS",
		},
		{
			name:     "port out of range",
			mutate:   func(c *Config) { c.Port = 70000 },
			errorMsg: "PORT",
		},
		{
			name: "backup without bucket",
			mutate: func(c *Config) {
				c.Backup = &BackupConfig{
					Enabled:         true,
					AccessKeyID:     "key",
					SecretAccessKey: "secret",
					Schedule:        "0 3 * * *",
					Retention:       3,
				}
			},
			errorMsg: "BACKUP_BUCKET",
		},
		{
			name: "complete backup",
			mutate: func(c *Config) {
				c.Backup = &BackupConfig{
					Enabled:         true,
					Bucket:          "backups",
					AccessKeyID:     "key",
					SecretAccessKey: "secret",
					Schedule:        "0 3 * * *",
					Retention:       3,
				}
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(cfg)

			err := cfg.Validate()
			if tc.errorMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, strings.Contains(err.Error(), tc.errorMsg), err.Error())
		})
	}
}
