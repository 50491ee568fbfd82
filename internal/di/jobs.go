package di

import (
	"fmt"
	"time"

	"github.com/aristath/cointax/internal/config"
	"github.com/aristath/cointax/internal/scheduler"
	"github.com/rs/zerolog"
)

const (
	snapshotCleanupSchedule = "@hourly"
	checkDatabasesSchedule  = "0 4 * * *"
	syncTimeout             = 30 * time.Minute
	backupTimeout           = time.Hour
)

// RegisterJobs creates the background jobs and registers them with a new
// scheduler stored on the container. The scheduler is not started.
func RegisterJobs(container *Container, cfg *config.Config, log zerolog.Logger) (*JobInstances, error) {
	sched := scheduler.New(log)
	container.Scheduler = sched
	jobs := &JobInstances{}

	jobLog := func(name string) zerolog.Logger {
		return log.With().Str("job", name).Logger()
	}

	if cfg.SyncSchedule != "" {
		job := scheduler.NewSyncWalletsJob(container.SyncService, syncTimeout)
		job.SetLogger(jobLog(job.Name()))
		if err := sched.AddJob(cfg.SyncSchedule, job); err != nil {
			return nil, fmt.Errorf("failed to register sync_wallets job: %w", err)
		}
		jobs.SyncWallets = job
	}

	cleanup := scheduler.NewSnapshotCleanupJob(container.ReportService, cfg.ReportSnapshotRetention)
	cleanup.SetLogger(jobLog(cleanup.Name()))
	if err := sched.AddJob(snapshotCleanupSchedule, cleanup); err != nil {
		return nil, fmt.Errorf("failed to register snapshot_cleanup job: %w", err)
	}
	jobs.SnapshotCleanup = cleanup

	check := scheduler.NewCheckDatabasesJob(container.Databases())
	check.SetLogger(jobLog(check.Name()))
	if err := sched.AddJob(checkDatabasesSchedule, check); err != nil {
		return nil, fmt.Errorf("failed to register check_databases job: %w", err)
	}
	jobs.CheckDatabases = check

	if container.BackupService != nil {
		job := scheduler.NewBackupJob(container.BackupService, backupTimeout)
		job.SetLogger(jobLog(job.Name()))
		if err := sched.AddJob(cfg.Backup.Schedule, job); err != nil {
			return nil, fmt.Errorf("failed to register backup job: %w", err)
		}
		jobs.Backup = job
	}

	return jobs, nil
}
