package scheduler

import (
	"time"

	"github.com/rs/zerolog"
)

// SnapshotPruner deletes stored reports older than a cutoff
type SnapshotPruner interface {
	PruneSnapshots(cutoff time.Time) (int64, error)
}

// SnapshotCleanupJob removes report snapshots past the retention period
type SnapshotCleanupJob struct {
	log       zerolog.Logger
	pruner    SnapshotPruner
	retention time.Duration
	now       func() time.Time
}

// NewSnapshotCleanupJob creates a new SnapshotCleanupJob
func NewSnapshotCleanupJob(pruner SnapshotPruner, retention time.Duration) *SnapshotCleanupJob {
	return &SnapshotCleanupJob{
		log:       zerolog.Nop(),
		pruner:    pruner,
		retention: retention,
		now:       time.Now,
	}
}

// SetLogger sets the logger for the job
func (j *SnapshotCleanupJob) SetLogger(log zerolog.Logger) {
	j.log = log
}

// Name returns the job name
func (j *SnapshotCleanupJob) Name() string {
	return "snapshot_cleanup"
}

// Run executes the snapshot cleanup job
func (j *SnapshotCleanupJob) Run() error {
	removed, err := j.pruner.PruneSnapshots(j.now().Add(-j.retention))
	if err != nil {
		return err
	}
	j.log.Debug().Int64("removed", removed).Msg("Snapshot cleanup completed")
	return nil
}
