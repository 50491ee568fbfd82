package di

import (
	"context"
	"fmt"

	"github.com/aristath/cointax/internal/clients/indexer"
	"github.com/aristath/cointax/internal/config"
	"github.com/aristath/cointax/internal/modules/auth"
	"github.com/aristath/cointax/internal/modules/taxreport"
	"github.com/aristath/cointax/internal/modules/transactions"
	"github.com/aristath/cointax/internal/reliability"
	"github.com/rs/zerolog"
)

// InitializeServices creates the clients and services
func InitializeServices(container *Container, cfg *config.Config, log zerolog.Logger) error {
	container.IndexerClient = indexer.NewClient(cfg.IndexerURL, log)

	container.ReportService = taxreport.NewService(
		container.WalletRepo,
		container.TransactionRepo,
		container.SnapshotRepo,
		cfg.ReportCacheTTL,
		cfg.ReportWorkers,
		log,
	)

	container.SyncService = transactions.NewSyncService(
		container.TransactionRepo,
		container.WalletRepo,
		container.IndexerClient,
		cfg.IndexerPageSize,
		log,
	)
	container.SyncService.SetReportInvalidator(container.ReportService)

	container.AuthService = auth.NewService(container.UserRepo, cfg.JWTSecret, cfg.AccessTokenExpiry, log)

	if cfg.Backup != nil && cfg.Backup.Enabled {
		store, err := reliability.NewS3Store(context.Background(), cfg.Backup, log)
		if err != nil {
			return fmt.Errorf("failed to create backup store: %w", err)
		}

		databases := make(map[string]reliability.Snapshotter)
		for name, db := range container.Databases() {
			databases[name] = db
		}
		container.BackupService = reliability.NewBackupService(
			databases,
			store,
			cfg.Backup.Prefix,
			cfg.Backup.Retention,
			cfg.DataDir,
			log,
		)
	}

	return nil
}
