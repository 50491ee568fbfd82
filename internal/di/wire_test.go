package di

import (
	"testing"
	"time"

	"github.com/aristath/cointax/internal/config"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	return &config.Config{
		DataDir:                 t.TempDir(),
		JWTSecret:               "0123456789abcdef0123456789abcdef",
		AccessTokenExpiry:       time.Hour,
		IndexerURL:              "http://127.0.0.1:1/graphql",
		IndexerPageSize:         50,
		SyncSchedule:            "0 */6 * * *",
		ReportCacheTTL:          time.Minute,
		ReportSnapshotRetention: 24 * time.Hour,
		ReportWorkers:           2,
		Backup:                  &config.BackupConfig{},
	}
}

func TestWire(t *testing.T) {
	container, jobs, err := Wire(testConfig(t), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Close() })

	assert.NotNil(t, container.LedgerDB)
	assert.NotNil(t, container.AccountsDB)
	assert.NotNil(t, container.CacheDB)
	assert.NotNil(t, container.WalletRepo)
	assert.NotNil(t, container.TransactionRepo)
	assert.NotNil(t, container.UserRepo)
	assert.NotNil(t, container.SnapshotRepo)
	assert.NotNil(t, container.SyncService)
	assert.NotNil(t, container.ReportService)
	assert.NotNil(t, container.AuthService)
	assert.NotNil(t, container.Scheduler)
	assert.Nil(t, container.BackupService)

	assert.NotNil(t, jobs.SyncWallets)
	assert.NotNil(t, jobs.SnapshotCleanup)
	assert.NotNil(t, jobs.CheckDatabases)
	assert.Nil(t, jobs.Backup)
	assert.Len(t, jobs.All(), 3)

	assert.Len(t, container.Databases(), 3)
	assert.NoError(t, jobs.CheckDatabases.Run())
}

func TestWire_SyncDisabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.SyncSchedule = ""

	container, jobs, err := Wire(cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Close() })

	assert.Nil(t, jobs.SyncWallets)
	assert.Len(t, jobs.All(), 2)
}

func TestWire_BackupEnabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.Backup = &config.BackupConfig{
		Enabled:         true,
		Endpoint:        "http://127.0.0.1:9000",
		Region:          "auto",
		Bucket:          "backups",
		Prefix:          "cointax",
		AccessKeyID:     "key",
		SecretAccessKey: "secret",
		Schedule:        "30 3 * * *",
		Retention:       3,
	}

	container, jobs, err := Wire(cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Close() })

	assert.NotNil(t, container.BackupService)
	assert.NotNil(t, jobs.Backup)
}

func TestInitializeDatabases_BadDataDir(t *testing.T) {
	cfg := testConfig(t)
	cfg.DataDir = "/dev/null/cointax"

	_, err := InitializeDatabases(cfg, zerolog.Nop())
	assert.Error(t, err)
}
