// Package di provides dependency injection type definitions.
//
// The Container holds every long-lived dependency of the application and
// is the single source of truth for service instances.
package di

import (
	"errors"

	"github.com/aristath/cointax/internal/clients/indexer"
	"github.com/aristath/cointax/internal/database"
	"github.com/aristath/cointax/internal/modules/auth"
	"github.com/aristath/cointax/internal/modules/taxreport"
	"github.com/aristath/cointax/internal/modules/transactions"
	"github.com/aristath/cointax/internal/modules/wallets"
	"github.com/aristath/cointax/internal/reliability"
	"github.com/aristath/cointax/internal/scheduler"
)

// Container holds all dependencies for the application
type Container struct {
	// Databases
	LedgerDB   *database.DB // wallets and transactions
	AccountsDB *database.DB // users
	CacheDB    *database.DB // report snapshots

	// Clients
	IndexerClient *indexer.Client

	// Repositories
	WalletRepo      *wallets.Repository
	TransactionRepo *transactions.Repository
	UserRepo        *auth.Repository
	SnapshotRepo    *taxreport.SnapshotRepository

	// Services
	SyncService   *transactions.SyncService
	ReportService *taxreport.Service
	AuthService   *auth.Service
	BackupService *reliability.BackupService // nil when backups are disabled

	Scheduler *scheduler.Scheduler
}

// JobInstances holds the registered background jobs
type JobInstances struct {
	SyncWallets     scheduler.Job // nil when SYNC_SCHEDULE is empty
	SnapshotCleanup scheduler.Job
	CheckDatabases  scheduler.Job
	Backup          scheduler.Job // nil when backups are disabled
}

// All returns the registered jobs
func (j *JobInstances) All() []scheduler.Job {
	var jobs []scheduler.Job
	for _, job := range []scheduler.Job{j.SyncWallets, j.SnapshotCleanup, j.CheckDatabases, j.Backup} {
		if job != nil {
			jobs = append(jobs, job)
		}
	}
	return jobs
}

// Databases returns the open databases keyed by name
func (c *Container) Databases() map[string]*database.DB {
	databases := make(map[string]*database.DB, 3)
	for _, db := range []*database.DB{c.LedgerDB, c.AccountsDB, c.CacheDB} {
		if db != nil {
			databases[db.Name()] = db
		}
	}
	return databases
}

// Close closes every open database
func (c *Container) Close() error {
	var errs []error
	for _, db := range c.Databases() {
		if err := db.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
