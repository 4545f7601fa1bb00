package leaderboard

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fantasy-league/league"
	"fantasy-league/models"
	"fantasy-league/quotes"
	"fantasy-league/store"
	"fantasy-league/valuation"
)

type stubFetcher struct {
	prices map[string]float64
}

func (f stubFetcher) Fetch(ctx context.Context, symbol string) (quotes.Quote, error) {
	price, ok := f.prices[symbol]
	if !ok {
		return quotes.Quote{}, fmt.Errorf("%s: %w", symbol, quotes.ErrQuoteUnavailable)
	}
	return quotes.Quote{Symbol: symbol, Name: symbol, Price: price}, nil
}

func setup(t *testing.T, prices map[string]float64) (*Aggregator, *league.Engine, *store.MemStore) {
	t.Helper()
	st := store.NewMemStore()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	val := valuation.NewService(st, stubFetcher{prices: prices}, log)
	return NewAggregator(st, val, log), league.NewEngine(st, log), st
}

func TestRankOrdersByTotalValueDescending(t *testing.T) {
	ctx := context.Background()
	agg, engine, st := setup(t, map[string]float64{"AAPL": 100})

	l, err := engine.Create(ctx, 1, "league", "", 10000)
	require.NoError(t, err)
	_, err = engine.Join(ctx, 2, l.ID)
	require.NoError(t, err)
	_, err = engine.Join(ctx, 3, l.ID)
	require.NoError(t, err)

	// User 2 holds stock now worth more than its cost; user 3 sits on less
	// cash after an implicit loss.
	p2, err := st.Portfolio(ctx, 2, l.ID)
	require.NoError(t, err)
	p2.CashBalance = 9000
	require.NoError(t, st.SavePortfolio(ctx, p2))
	h := holding(p2.ID, "AAPL", 20, 50)
	require.NoError(t, st.SaveHolding(ctx, &h))

	p3, err := st.Portfolio(ctx, 3, l.ID)
	require.NoError(t, err)
	p3.CashBalance = 8000
	require.NoError(t, st.SavePortfolio(ctx, p3))

	entries, err := agg.Rank(ctx, l.ID)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	// user 2: 9000 + 20*100 = 11000; user 1: 10000; user 3: 8000
	assert.Equal(t, uint(2), entries[0].UserID)
	assert.InDelta(t, 11000, entries[0].TotalValue, 1e-9)
	assert.Equal(t, 1, entries[0].Rank)
	assert.InDelta(t, 1000, entries[0].GainLoss, 1e-9)
	assert.InDelta(t, 10, entries[0].GainLossPercent, 1e-9)

	assert.Equal(t, uint(1), entries[1].UserID)
	assert.Equal(t, 2, entries[1].Rank)

	assert.Equal(t, uint(3), entries[2].UserID)
	assert.Equal(t, 3, entries[2].Rank)
	assert.InDelta(t, -2000, entries[2].GainLoss, 1e-9)
}

func TestRankTieBreaksByJoinOrder(t *testing.T) {
	ctx := context.Background()
	agg, engine, _ := setup(t, nil)

	l, err := engine.Create(ctx, 5, "league", "", 10000)
	require.NoError(t, err)
	_, err = engine.Join(ctx, 6, l.ID)
	require.NoError(t, err)
	_, err = engine.Join(ctx, 7, l.ID)
	require.NoError(t, err)

	entries, err := agg.Rank(ctx, l.ID)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	// All three are untouched at the starting budget; join order decides.
	assert.Equal(t, []uint{5, 6, 7}, []uint{entries[0].UserID, entries[1].UserID, entries[2].UserID})
}

func TestRankUnknownLeague(t *testing.T) {
	agg, _, _ := setup(t, nil)
	_, err := agg.Rank(context.Background(), 404)
	assert.ErrorIs(t, err, league.ErrLeagueNotFound)
}

func holding(portfolioID uint, symbol string, qty int, avg float64) models.Holding {
	return models.Holding{
		PortfolioID:  portfolioID,
		Symbol:       symbol,
		Quantity:     qty,
		AveragePrice: avg,
	}
}
