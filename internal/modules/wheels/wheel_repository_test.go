package wheels

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Cloud956/wheel-tracker/internal/database"
	"github.com/Cloud956/wheel-tracker/internal/domain"
)

func setupLedgerDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.New(database.Config{
		Path:    filepath.Join(t.TempDir(), "ledger.db"),
		Profile: database.ProfileLedger,
		Name:    "ledger",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.Migrate())
	return db
}

func TestRepositorySaveAndLoadRoundTrip(t *testing.T) {
	db := setupLedgerDB(t)
	repo := NewRepository(db.Conn(), zerolog.Nop())

	trades := []domain.Trade{
		optionTrade("sell", "AAPL", domain.RightPut, 150, -1, 2.00, -0.65, testBase),
		optionTrade("assigned", "AAPL", domain.RightPut, 150, 1, 0.00, 0, testBase.Add(24*time.Hour)),
		stockTrade("shares", "AAPL", 100, 150.00, testBase.Add(24*time.Hour+5*time.Minute)),
		optionTrade("call_sell", "AAPL", domain.RightCall, 160, -1, 1.50, -0.65, testBase.Add(48*time.Hour)),
	}
	result := testEngine().Run("alice", trades, nil)
	require.Len(t, result.Wheels, 1)
	original := result.Wheels[0]

	require.NoError(t, repo.SaveAll("alice", result.Wheels))

	tradesByID := make(map[string]domain.Trade, len(trades))
	for _, tr := range trades {
		tradesByID[tr.ID] = tr
	}

	loaded, err := repo.GetByOwner("alice", tradesByID)
	require.NoError(t, err)
	require.Len(t, loaded, 1)

	w := loaded[0]
	assert.Equal(t, original.ID, w.ID)
	assert.Equal(t, original.Symbol, w.Symbol)
	assert.Equal(t, PhaseCoveredCall, w.Phase)
	assert.True(t, w.IsOpen)
	require.NotNil(t, w.CurrentSoldCall)
	assert.Equal(t, "call_sell", w.CurrentSoldCall.ID)
	require.Len(t, w.Trades, 3)
	assert.Equal(t, CategoryOpen, w.Trades[0].Category)
	assert.Equal(t, CategoryPutAssigned, w.Trades[1].Category)
	assert.Equal(t, "shares", w.Trades[1].RelatedID)
	assert.InDelta(t, original.TotalPnL, w.TotalPnL, 1e-9)
}

func TestRepositorySaveAllIsUpsert(t *testing.T) {
	db := setupLedgerDB(t)
	repo := NewRepository(db.Conn(), zerolog.Nop())

	trades := []domain.Trade{
		optionTrade("sell", "AAPL", domain.RightPut, 150, -1, 2.00, -0.65, testBase),
	}
	result := testEngine().Run("alice", trades, nil)
	require.NoError(t, repo.SaveAll("alice", result.Wheels))

	// Advance the same wheel and save again: still one row, updated state.
	trades = append(trades,
		optionTrade("buy", "AAPL", domain.RightPut, 150, 1, 0.10, -0.65, testBase.Add(48*time.Hour)))
	tradesByID := map[string]domain.Trade{trades[0].ID: trades[0], trades[1].ID: trades[1]}

	result = testEngine().Run("alice", trades, result.Wheels)
	require.NoError(t, repo.SaveAll("alice", result.Wheels))

	loaded, err := repo.GetByOwner("alice", tradesByID)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.False(t, loaded[0].IsOpen)
	assert.NotNil(t, loaded[0].EndDate)
	assert.Len(t, loaded[0].Trades, 2)
}

func TestRepositoryDropsTradeMissingFromHistory(t *testing.T) {
	db := setupLedgerDB(t)
	repo := NewRepository(db.Conn(), zerolog.Nop())

	trades := []domain.Trade{
		optionTrade("sell", "AAPL", domain.RightPut, 150, -1, 2.00, -0.65, testBase),
	}
	result := testEngine().Run("alice", trades, nil)
	require.NoError(t, repo.SaveAll("alice", result.Wheels))

	loaded, err := repo.GetByOwner("alice", map[string]domain.Trade{})
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Empty(t, loaded[0].Trades)
}

func TestRepositoryScopesByOwner(t *testing.T) {
	db := setupLedgerDB(t)
	repo := NewRepository(db.Conn(), zerolog.Nop())

	trades := []domain.Trade{
		optionTrade("sell", "AAPL", domain.RightPut, 150, -1, 2.00, -0.65, testBase),
	}
	result := testEngine().Run("alice", trades, nil)
	require.NoError(t, repo.SaveAll("alice", result.Wheels))

	loaded, err := repo.GetByOwner("bob", map[string]domain.Trade{})
	require.NoError(t, err)
	assert.Empty(t, loaded)
}
