package scheduler

import (
	"context"
	"time"

	"github.com/aristath/cointax/internal/modules/transactions"
	"github.com/rs/zerolog"
)

// WalletSyncer pulls new history for every wallet
type WalletSyncer interface {
	SyncAll(ctx context.Context) (map[string]transactions.SyncResult, error)
}

// SyncWalletsJob pulls new on-chain history for all wallets
type SyncWalletsJob struct {
	log     zerolog.Logger
	syncer  WalletSyncer
	timeout time.Duration
}

// NewSyncWalletsJob creates a new SyncWalletsJob. timeout bounds one run.
func NewSyncWalletsJob(syncer WalletSyncer, timeout time.Duration) *SyncWalletsJob {
	return &SyncWalletsJob{
		log:     zerolog.Nop(),
		syncer:  syncer,
		timeout: timeout,
	}
}

// SetLogger sets the logger for the job
func (j *SyncWalletsJob) SetLogger(log zerolog.Logger) {
	j.log = log
}

// Name returns the job name
func (j *SyncWalletsJob) Name() string {
	return "sync_wallets"
}

// Run executes the wallet sync job
func (j *SyncWalletsJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	results, err := j.syncer.SyncAll(ctx)

	added := 0
	for _, result := range results {
		added += result.Added
	}
	j.log.Info().
		Int("wallets", len(results)).
		Int("added", added).
		Msg("Wallet sync completed")

	return err
}
