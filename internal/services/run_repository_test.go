package services

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Cloud956/wheel-tracker/internal/database"
	"github.com/Cloud956/wheel-tracker/internal/modules/wheels"
)

func setupRunRepo(t *testing.T) *RunRepository {
	t.Helper()
	db, err := database.New(database.Config{
		Path:    filepath.Join(t.TempDir(), "cache.db"),
		Profile: database.ProfileCache,
		Name:    "cache",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.Migrate())
	return NewRunRepository(db.Conn(), zerolog.Nop())
}

func TestRunRepositoryRoundTrip(t *testing.T) {
	repo := setupRunRepo(t)

	report := &SyncReport{
		Owner:         "alice",
		StartedAt:     time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
		FinishedAt:    time.Date(2024, 3, 1, 10, 0, 30, 0, time.UTC),
		TradesFetched: 12,
		TradesStored:  3,
		WheelCount:    2,
		OpenWheels:    1,
		Classifications: []wheels.Classification{
			{TradeID: "t1", Symbol: "AAPL", Category: wheels.CategoryOpen},
		},
		Unmatched: []wheels.UnmatchedTrade{
			{TradeID: "t9", Symbol: "MSFT", Category: wheels.CategoryClosePut, Reason: "no open wheel in required phase with matching strike"},
		},
	}
	require.NoError(t, repo.Save(report))

	loaded, err := repo.Get("alice")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, report.TradesFetched, loaded.TradesFetched)
	assert.Equal(t, report.Classifications, loaded.Classifications)
	assert.Equal(t, report.Unmatched, loaded.Unmatched)
	assert.True(t, report.FinishedAt.Equal(loaded.FinishedAt))
}

func TestRunRepositoryReplacesPreviousReport(t *testing.T) {
	repo := setupRunRepo(t)

	require.NoError(t, repo.Save(&SyncReport{Owner: "alice", TradesFetched: 1, FinishedAt: time.Now()}))
	require.NoError(t, repo.Save(&SyncReport{Owner: "alice", TradesFetched: 2, FinishedAt: time.Now()}))

	loaded, err := repo.Get("alice")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, 2, loaded.TradesFetched)
}

func TestRunRepositoryReturnsNilWhenEmpty(t *testing.T) {
	repo := setupRunRepo(t)

	loaded, err := repo.Get("nobody")
	require.NoError(t, err)
	assert.Nil(t, loaded)
}
