package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// BackupRunner triggers one backup cycle.
type BackupRunner interface {
	Backup(ctx context.Context) error
}

// BackupJob runs the scheduled database backup.
type BackupJob struct {
	backup  BackupRunner
	timeout time.Duration
	log     zerolog.Logger
}

// NewBackupJob creates the scheduled backup job
func NewBackupJob(backup BackupRunner, log zerolog.Logger) *BackupJob {
	return &BackupJob{
		backup:  backup,
		timeout: 15 * time.Minute,
		log:     log.With().Str("job", "backup").Logger(),
	}
}

// Name implements Job
func (j *BackupJob) Name() string {
	return "database_backup"
}

// Run implements Job
func (j *BackupJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()
	return j.backup.Backup(ctx)
}
