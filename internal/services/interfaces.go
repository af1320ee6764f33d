package services

import (
	"context"

	"github.com/Cloud956/wheel-tracker/internal/clients/flex"
	"github.com/Cloud956/wheel-tracker/internal/domain"
	"github.com/Cloud956/wheel-tracker/internal/events"
	"github.com/Cloud956/wheel-tracker/internal/modules/settings"
	"github.com/Cloud956/wheel-tracker/internal/modules/wheels"
)

// Narrow interfaces over the concrete collaborators so the sync service can
// be tested with hand-rolled mocks.

// StatementFetcher retrieves a broker statement.
type StatementFetcher interface {
	FetchStatement(ctx context.Context, token, queryID string) (*flex.Statement, error)
}

// ExecutionStore persists and reads the raw execution trail.
type ExecutionStore interface {
	SaveAll(owner string, trades []domain.Trade) (int, error)
	GetAllByOwner(owner string) ([]domain.Trade, error)
}

// WheelStore persists and rehydrates wheel aggregates.
type WheelStore interface {
	SaveAll(owner string, ws []*wheels.Wheel) error
	GetByOwner(owner string, tradesByID map[string]domain.Trade) ([]*wheels.Wheel, error)
}

// PositionStore replaces the open-position snapshot.
type PositionStore interface {
	ReplaceSnapshot(owner string, positions []domain.Position) error
}

// SettingsProvider reads per-owner account settings.
type SettingsProvider interface {
	Get(owner string) (*settings.AccountSettings, error)
}

// RunStore persists the last sync report per owner.
type RunStore interface {
	Save(report *SyncReport) error
	Get(owner string) (*SyncReport, error)
}

// EventPublisher emits progress events.
type EventPublisher interface {
	Publish(e events.Event)
}
