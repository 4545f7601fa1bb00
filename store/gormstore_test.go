package store

import (
	"context"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"fantasy-league/models"
)

func testGormStore(t *testing.T) *GormStore {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	st := NewGormStore(db)
	require.NoError(t, st.AutoMigrate())
	return st
}

// Closing a position and buying the same symbol again must work: the deleted
// holding row may not linger in the unique (portfolio, symbol) index.
func TestGormReopenPositionAfterClose(t *testing.T) {
	ctx := context.Background()
	st := testGormStore(t)

	p := &models.Portfolio{UserID: 1, LeagueID: 1, CashBalance: 1000}
	require.NoError(t, st.CreatePortfolio(ctx, p))

	h := &models.Holding{PortfolioID: p.ID, Symbol: "AAPL", Quantity: 10, AveragePrice: 50}
	require.NoError(t, st.SaveHolding(ctx, h))
	require.NoError(t, st.DeleteHolding(ctx, h.ID))

	reopened := &models.Holding{PortfolioID: p.ID, Symbol: "AAPL", Quantity: 3, AveragePrice: 60}
	require.NoError(t, st.SaveHolding(ctx, reopened))

	got, err := st.Holding(ctx, p.ID, "AAPL")
	require.NoError(t, err)
	assert.Equal(t, 3, got.Quantity)
	assert.InDelta(t, 60, got.AveragePrice, 1e-9)
}

// Leaving a league and rejoining recreates the membership and portfolio pair;
// the old rows may not shadow the composite unique indexes.
func TestGormRejoinAfterLeave(t *testing.T) {
	ctx := context.Background()
	st := testGormStore(t)

	m := &models.Membership{UserID: 1, LeagueID: 1}
	require.NoError(t, st.CreateMembership(ctx, m))
	p := &models.Portfolio{UserID: 1, LeagueID: 1, CashBalance: 1000}
	require.NoError(t, st.CreatePortfolio(ctx, p))

	require.NoError(t, st.DeletePortfolio(ctx, p.ID))
	require.NoError(t, st.DeleteMembership(ctx, m.ID))

	require.NoError(t, st.CreateMembership(ctx, &models.Membership{UserID: 1, LeagueID: 1}))
	require.NoError(t, st.CreatePortfolio(ctx, &models.Portfolio{UserID: 1, LeagueID: 1, CashBalance: 1000}))

	fresh, err := st.Portfolio(ctx, 1, 1)
	require.NoError(t, err)
	assert.InDelta(t, 1000, fresh.CashBalance, 1e-9)
}

func TestGormDeleteLeagueCascadesAndFreesCode(t *testing.T) {
	ctx := context.Background()
	st := testGormStore(t)

	l := &models.League{Name: "league", InvitationCode: "ABC123", VirtualBudget: 1000, AdminID: 1}
	require.NoError(t, st.CreateLeague(ctx, l))
	require.NoError(t, st.CreateMembership(ctx, &models.Membership{UserID: 1, LeagueID: l.ID}))
	p := &models.Portfolio{UserID: 1, LeagueID: l.ID, CashBalance: 1000}
	require.NoError(t, st.CreatePortfolio(ctx, p))
	require.NoError(t, st.SaveHolding(ctx, &models.Holding{PortfolioID: p.ID, Symbol: "AAPL", Quantity: 1, AveragePrice: 10}))
	require.NoError(t, st.CreateTransaction(ctx, &models.Transaction{PortfolioID: p.ID, Symbol: "AAPL", Type: models.TradeBuy}))

	require.NoError(t, st.DeleteLeague(ctx, l.ID))

	_, err := st.LeagueByID(ctx, l.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = st.Membership(ctx, 1, l.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = st.Portfolio(ctx, 1, l.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	// The invitation code is free for a new league.
	require.NoError(t, st.CreateLeague(ctx, &models.League{
		Name: "successor", InvitationCode: "ABC123", VirtualBudget: 500, AdminID: 2,
	}))
}

// A write racing past an existence check surfaces as ErrConflict, not an
// opaque driver error.
func TestGormDuplicateKeyIsConflict(t *testing.T) {
	ctx := context.Background()
	st := testGormStore(t)

	require.NoError(t, st.CreateMembership(ctx, &models.Membership{UserID: 1, LeagueID: 1}))
	err := st.CreateMembership(ctx, &models.Membership{UserID: 1, LeagueID: 1})
	assert.ErrorIs(t, err, ErrConflict)

	require.NoError(t, st.CreatePortfolio(ctx, &models.Portfolio{UserID: 1, LeagueID: 1}))
	err = st.CreatePortfolio(ctx, &models.Portfolio{UserID: 1, LeagueID: 1})
	assert.ErrorIs(t, err, ErrConflict)
}

func TestGormWithTransactionRollsBack(t *testing.T) {
	ctx := context.Background()
	st := testGormStore(t)

	p := &models.Portfolio{UserID: 1, LeagueID: 1, CashBalance: 1000}
	require.NoError(t, st.CreatePortfolio(ctx, p))

	err := st.WithTransaction(ctx, func(tx Store) error {
		loaded, err := tx.Portfolio(ctx, 1, 1)
		if err != nil {
			return err
		}
		loaded.CashBalance = 0
		if err := tx.SavePortfolio(ctx, loaded); err != nil {
			return err
		}
		// A duplicate membership aborts the whole transaction.
		if err := tx.CreateMembership(ctx, &models.Membership{UserID: 9, LeagueID: 9}); err != nil {
			return err
		}
		return tx.CreateMembership(ctx, &models.Membership{UserID: 9, LeagueID: 9})
	})
	require.ErrorIs(t, err, ErrConflict)

	after, err := st.Portfolio(ctx, 1, 1)
	require.NoError(t, err)
	assert.InDelta(t, 1000, after.CashBalance, 1e-9, "failed commit must leave state untouched")
	_, err = st.Membership(ctx, 9, 9)
	assert.ErrorIs(t, err, ErrNotFound)
}
