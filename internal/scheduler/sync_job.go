package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/Cloud956/wheel-tracker/internal/services"
)

// OwnerLister enumerates the owners that have sync credentials configured.
type OwnerLister interface {
	ListOwners() ([]string, error)
}

// SyncRunner triggers one sync.
type SyncRunner interface {
	Run(ctx context.Context, owner string) (*services.SyncReport, error)
}

// SyncJob runs a scheduled sync for every configured owner. An owner whose
// sync is already running (e.g. triggered manually) is skipped quietly.
type SyncJob struct {
	sync    SyncRunner
	owners  OwnerLister
	timeout time.Duration
	log     zerolog.Logger
}

// NewSyncJob creates the scheduled sync job
func NewSyncJob(sync SyncRunner, owners OwnerLister, log zerolog.Logger) *SyncJob {
	return &SyncJob{
		sync:    sync,
		owners:  owners,
		timeout: 10 * time.Minute,
		log:     log.With().Str("job", "sync").Logger(),
	}
}

// Name implements Job
func (j *SyncJob) Name() string {
	return "scheduled_sync"
}

// Run implements Job
func (j *SyncJob) Run() error {
	owners, err := j.owners.ListOwners()
	if err != nil {
		return fmt.Errorf("failed to list owners: %w", err)
	}
	if len(owners) == 0 {
		j.log.Debug().Msg("No owners configured, nothing to sync")
		return nil
	}

	var failed int
	for _, owner := range owners {
		ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
		_, err := j.sync.Run(ctx, owner)
		cancel()

		if errors.Is(err, services.ErrSyncInProgress) {
			j.log.Debug().Str("owner", owner).Msg("Sync already running, skipping")
			continue
		}
		if err != nil {
			j.log.Error().Str("owner", owner).Err(err).Msg("Scheduled sync failed")
			failed++
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d owner syncs failed", failed, len(owners))
	}
	return nil
}
