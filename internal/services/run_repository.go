package services

import (
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"
)

// RunRepository caches the last sync report per owner in the cache database.
// Reports are msgpack-encoded blobs: they are write-once-read-rarely and the
// schema-free encoding keeps report evolution out of the SQL layer.
type RunRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRunRepository creates a new sync-run repository
func NewRunRepository(db *sql.DB, log zerolog.Logger) *RunRepository {
	return &RunRepository{
		db:  db,
		log: log.With().Str("repo", "sync_runs").Logger(),
	}
}

// Save stores the report, replacing the owner's previous one.
func (r *RunRepository) Save(report *SyncReport) error {
	blob, err := msgpack.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to encode sync report: %w", err)
	}

	_, err = r.db.Exec(`
		INSERT INTO sync_runs (owner, report, finished_at)
		VALUES (?, ?, ?)
		ON CONFLICT(owner) DO UPDATE SET
			report = excluded.report,
			finished_at = excluded.finished_at`,
		report.Owner, blob, report.FinishedAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to store sync report: %w", err)
	}
	return nil
}

// Get returns the owner's last report, or nil when no sync has run yet.
func (r *RunRepository) Get(owner string) (*SyncReport, error) {
	var blob []byte
	err := r.db.QueryRow(`SELECT report FROM sync_runs WHERE owner = ?`, owner).Scan(&blob)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load sync report: %w", err)
	}

	var report SyncReport
	if err := msgpack.Unmarshal(blob, &report); err != nil {
		return nil, fmt.Errorf("failed to decode sync report: %w", err)
	}
	return &report, nil
}
