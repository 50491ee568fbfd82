package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Backupper creates an off-site backup of all databases
type Backupper interface {
	CreateAndUpload(ctx context.Context) (string, error)
}

// BackupJob uploads a database backup
type BackupJob struct {
	log     zerolog.Logger
	backup  Backupper
	timeout time.Duration
}

// NewBackupJob creates a new BackupJob
func NewBackupJob(backup Backupper, timeout time.Duration) *BackupJob {
	return &BackupJob{
		log:     zerolog.Nop(),
		backup:  backup,
		timeout: timeout,
	}
}

// SetLogger sets the logger for the job
func (j *BackupJob) SetLogger(log zerolog.Logger) {
	j.log = log
}

// Name returns the job name
func (j *BackupJob) Name() string {
	return "backup"
}

// Run executes the backup job
func (j *BackupJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	key, err := j.backup.CreateAndUpload(ctx)
	if err != nil {
		return err
	}
	j.log.Info().Str("key", key).Msg("Backup uploaded")
	return nil
}
