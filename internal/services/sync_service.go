// Package services hosts the sync pipeline that ties the broker client,
// repositories and wheel engine together.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Cloud956/wheel-tracker/internal/domain"
	"github.com/Cloud956/wheel-tracker/internal/events"
	"github.com/Cloud956/wheel-tracker/internal/modules/wheels"
)

var (
	// ErrSyncInProgress is returned when a sync is already running for the
	// owner. The engine is not safe to run concurrently over one owner's
	// wheel collection, so overlapping requests are rejected, not queued.
	ErrSyncInProgress = errors.New("sync already in progress for this owner")

	// ErrNoCredentials is returned when neither the settings database nor
	// the environment provides Flex credentials for the owner.
	ErrNoCredentials = errors.New("no flex credentials configured for this owner")
)

// SyncReport summarizes one sync run. It is cached per owner and served by
// the API for audit display.
type SyncReport struct {
	Owner           string                  `json:"owner" msgpack:"owner"`
	StartedAt       time.Time               `json:"started_at" msgpack:"started_at"`
	FinishedAt      time.Time               `json:"finished_at" msgpack:"finished_at"`
	TradesFetched   int                     `json:"trades_fetched" msgpack:"trades_fetched"`
	TradesStored    int                     `json:"trades_stored" msgpack:"trades_stored"`
	TradesExcluded  int                     `json:"trades_excluded" msgpack:"trades_excluded"`
	WheelCount      int                     `json:"wheel_count" msgpack:"wheel_count"`
	OpenWheels      int                     `json:"open_wheels" msgpack:"open_wheels"`
	Positions       int                     `json:"positions" msgpack:"positions"`
	Classifications []wheels.Classification `json:"classifications" msgpack:"classifications"`
	Unmatched       []wheels.UnmatchedTrade `json:"unmatched" msgpack:"unmatched"`
	Invalid         []wheels.InvalidTrade   `json:"invalid" msgpack:"invalid"`
}

// SyncConfig carries the environment-level fallbacks used when an owner has
// no settings row.
type SyncConfig struct {
	FallbackToken   string
	FallbackQueryID string
	ExcludeSymbols  []string
}

// SyncService runs the fetch → store → classify → persist pipeline. One run
// per owner at a time; overlapping requests get ErrSyncInProgress.
type SyncService struct {
	fetcher    StatementFetcher
	executions ExecutionStore
	wheelStore WheelStore
	positions  PositionStore
	settings   SettingsProvider
	runs       RunStore
	bus        EventPublisher
	engine     *wheels.Engine
	cfg        SyncConfig
	log        zerolog.Logger

	mu      sync.Mutex
	running map[string]bool
}

// NewSyncService creates the sync service
func NewSyncService(
	fetcher StatementFetcher,
	executions ExecutionStore,
	wheelStore WheelStore,
	positions PositionStore,
	settingsProvider SettingsProvider,
	runs RunStore,
	bus EventPublisher,
	engine *wheels.Engine,
	cfg SyncConfig,
	log zerolog.Logger,
) *SyncService {
	return &SyncService{
		fetcher:    fetcher,
		executions: executions,
		wheelStore: wheelStore,
		positions:  positions,
		settings:   settingsProvider,
		runs:       runs,
		bus:        bus,
		engine:     engine,
		cfg:        cfg,
		log:        log.With().Str("service", "sync").Logger(),
		running:    make(map[string]bool),
	}
}

// Run executes one full sync for the owner and returns the report.
func (s *SyncService) Run(ctx context.Context, owner string) (*SyncReport, error) {
	if !s.acquire(owner) {
		return nil, ErrSyncInProgress
	}
	defer s.release(owner)

	s.bus.Publish(events.Event{Type: events.TypeSyncStarted, Owner: owner})

	report, err := s.run(ctx, owner)
	if err != nil {
		s.bus.Publish(events.Event{Type: events.TypeSyncFailed, Owner: owner, Payload: err.Error()})
		return nil, err
	}

	s.bus.Publish(events.Event{Type: events.TypeSyncCompleted, Owner: owner, Payload: report})
	return report, nil
}

func (s *SyncService) run(ctx context.Context, owner string) (*SyncReport, error) {
	report := &SyncReport{Owner: owner, StartedAt: time.Now().UTC()}

	token, queryID, exclude, err := s.resolveCredentials(owner)
	if err != nil {
		return nil, err
	}

	stmt, err := s.fetcher.FetchStatement(ctx, token, queryID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch broker statement: %w", err)
	}
	report.TradesFetched = len(stmt.Trades)

	kept := filterExcluded(stmt.Trades, exclude)
	report.TradesExcluded = len(stmt.Trades) - len(kept)

	stored, err := s.executions.SaveAll(owner, kept)
	if err != nil {
		return nil, fmt.Errorf("failed to store executions: %w", err)
	}
	report.TradesStored = stored

	// The engine always runs over the full history so overlapping fetches
	// converge on the same wheel collection.
	history, err := s.executions.GetAllByOwner(owner)
	if err != nil {
		return nil, fmt.Errorf("failed to load execution history: %w", err)
	}

	byID := make(map[string]domain.Trade, len(history))
	for _, t := range history {
		byID[t.ID] = t
	}

	existing, err := s.wheelStore.GetByOwner(owner, byID)
	if err != nil {
		return nil, fmt.Errorf("failed to load wheels: %w", err)
	}

	result := s.engine.Run(owner, history, existing)

	if err := s.wheelStore.SaveAll(owner, result.Wheels); err != nil {
		return nil, fmt.Errorf("failed to persist wheels: %w", err)
	}

	if err := s.positions.ReplaceSnapshot(owner, stmt.Positions); err != nil {
		return nil, fmt.Errorf("failed to replace position snapshot: %w", err)
	}

	report.WheelCount = len(result.Wheels)
	for _, w := range result.Wheels {
		if w.IsOpen {
			report.OpenWheels++
		}
	}
	report.Positions = len(stmt.Positions)
	report.Classifications = result.Classifications
	report.Unmatched = result.Unmatched
	report.Invalid = result.Invalid
	report.FinishedAt = time.Now().UTC()

	if err := s.runs.Save(report); err != nil {
		// The sync itself succeeded; a stale report cache is tolerable.
		s.log.Warn().Err(err).Str("owner", owner).Msg("Failed to cache sync report")
	}

	s.log.Info().
		Str("owner", owner).
		Int("fetched", report.TradesFetched).
		Int("stored", report.TradesStored).
		Int("wheels", report.WheelCount).
		Int("unmatched", len(report.Unmatched)).
		Dur("took", report.FinishedAt.Sub(report.StartedAt)).
		Msg("Sync complete")

	return report, nil
}

// LastReport returns the cached report from the owner's most recent sync.
func (s *SyncService) LastReport(owner string) (*SyncReport, error) {
	return s.runs.Get(owner)
}

// resolveCredentials prefers the owner's settings row and falls back to the
// environment-level credentials.
func (s *SyncService) resolveCredentials(owner string) (token, queryID string, exclude []string, err error) {
	token = s.cfg.FallbackToken
	queryID = s.cfg.FallbackQueryID
	exclude = append(exclude, s.cfg.ExcludeSymbols...)

	acct, err := s.settings.Get(owner)
	if err != nil {
		return "", "", nil, fmt.Errorf("failed to load account settings: %w", err)
	}
	if acct != nil {
		if acct.FlexToken != "" {
			token = acct.FlexToken
		}
		if acct.FlexQueryID != "" {
			queryID = acct.FlexQueryID
		}
		exclude = append(exclude, acct.ExcludeSymbols...)
	}

	if token == "" || queryID == "" {
		return "", "", nil, ErrNoCredentials
	}
	return token, queryID, exclude, nil
}

func filterExcluded(trades []domain.Trade, exclude []string) []domain.Trade {
	if len(exclude) == 0 {
		return trades
	}
	skip := make(map[string]bool, len(exclude))
	for _, sym := range exclude {
		skip[strings.ToUpper(sym)] = true
	}
	kept := make([]domain.Trade, 0, len(trades))
	for _, t := range trades {
		if skip[strings.ToUpper(t.Symbol)] {
			continue
		}
		kept = append(kept, t)
	}
	return kept
}

func (s *SyncService) acquire(owner string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running[owner] {
		return false
	}
	s.running[owner] = true
	return true
}

func (s *SyncService) release(owner string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.running, owner)
}
