package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fantasy-league/leaderboard"
	"fantasy-league/ledger"
	"fantasy-league/league"
	"fantasy-league/quotes"
	"fantasy-league/store"
	"fantasy-league/valuation"
)

type stubFetcher struct {
	prices map[string]float64
}

func (f stubFetcher) Fetch(ctx context.Context, symbol string) (quotes.Quote, error) {
	symbol = quotes.Normalize(symbol)
	price, ok := f.prices[symbol]
	if !ok {
		return quotes.Quote{}, fmt.Errorf("%s: %w", symbol, quotes.ErrQuoteUnavailable)
	}
	return quotes.Quote{Symbol: symbol, Name: symbol, Price: price}, nil
}

// stubAuth stands in for the JWT middleware: the test passes the user id in
// the X-User-ID header.
func stubAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.ParseUint(c.GetHeader("X-User-ID"), 10, 64)
		if err != nil {
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		c.Set("user_id", uint(id))
		c.Next()
	}
}

func testRouter(t *testing.T, prices map[string]float64) (*gin.Engine, *store.MemStore) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	st := store.NewMemStore()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	fetcher := stubFetcher{prices: prices}
	valuationSvc := valuation.NewService(st, fetcher, log)

	h := &Handler{
		Store:       st,
		Ledger:      ledger.NewService(st, fetcher, log),
		Valuation:   valuationSvc,
		Leagues:     league.NewEngine(st, log),
		Leaderboard: leaderboard.NewAggregator(st, valuationSvc, log),
		Quotes:      fetcher,
		Log:         log,
	}

	router := gin.New()
	auth := router.Group("/")
	auth.Use(stubAuth())
	{
		auth.POST("/leagues", h.CreateLeague)
		auth.GET("/leagues/:id", h.GetLeague)
		auth.POST("/leagues/:id/join", h.JoinLeague)
		auth.POST("/join", h.JoinLeagueByCode)
		auth.POST("/leagues/:id/leave", h.LeaveLeague)
		auth.POST("/leagues/:id/buy", h.Buy)
		auth.POST("/leagues/:id/sell", h.Sell)
		auth.GET("/leagues/:id/portfolio", h.GetPortfolio)
		auth.GET("/leagues/:id/leaderboard", h.GetLeaderboard)
	}
	return router, st
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, userID uint, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", strconv.FormatUint(uint64(userID), 10))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func createLeague(t *testing.T, router *gin.Engine, userID uint, budget float64) uint {
	t.Helper()
	w := doJSON(t, router, http.MethodPost, "/leagues", userID, gin.H{
		"name": "test league", "virtual_budget": budget,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var resp struct {
		ID uint `json:"ID"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotZero(t, resp.ID)
	return resp.ID
}

func TestBuyHappyPath(t *testing.T) {
	router, _ := testRouter(t, map[string]float64{"AAPL": 50})
	leagueID := createLeague(t, router, 1, 100000)

	w := doJSON(t, router, http.MethodPost, fmt.Sprintf("/leagues/%d/buy", leagueID), 1,
		gin.H{"symbol": "aapl", "quantity": 10})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var result ledger.TradeResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.InDelta(t, 99500, result.CashBalance, 1e-9)
	assert.Equal(t, "AAPL", result.Transaction.Symbol)
}

func TestBuyQuoteUnavailableIs503(t *testing.T) {
	router, _ := testRouter(t, nil)
	leagueID := createLeague(t, router, 1, 100000)

	w := doJSON(t, router, http.MethodPost, fmt.Sprintf("/leagues/%d/buy", leagueID), 1,
		gin.H{"symbol": "AAPL", "quantity": 10})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestBuyInsufficientFundsIs422(t *testing.T) {
	router, _ := testRouter(t, map[string]float64{"AAPL": 50})
	leagueID := createLeague(t, router, 1, 100)

	w := doJSON(t, router, http.MethodPost, fmt.Sprintf("/leagues/%d/buy", leagueID), 1,
		gin.H{"symbol": "AAPL", "quantity": 10})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestSellWithoutHoldingIs404(t *testing.T) {
	router, _ := testRouter(t, map[string]float64{"AAPL": 50})
	leagueID := createLeague(t, router, 1, 1000)

	w := doJSON(t, router, http.MethodPost, fmt.Sprintf("/leagues/%d/sell", leagueID), 1,
		gin.H{"symbol": "AAPL", "quantity": 1})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestJoinByInvalidCodeIs404(t *testing.T) {
	router, _ := testRouter(t, nil)
	w := doJSON(t, router, http.MethodPost, "/join", 2, gin.H{"code": "NOPE42"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDuplicateJoinIs409(t *testing.T) {
	router, _ := testRouter(t, nil)
	leagueID := createLeague(t, router, 1, 1000)

	w := doJSON(t, router, http.MethodPost, fmt.Sprintf("/leagues/%d/join", leagueID), 2, nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = doJSON(t, router, http.MethodPost, fmt.Sprintf("/leagues/%d/join", leagueID), 2, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestLeaveRendersBothOutcomes(t *testing.T) {
	router, _ := testRouter(t, nil)
	leagueID := createLeague(t, router, 1, 1000)

	w := doJSON(t, router, http.MethodPost, fmt.Sprintf("/leagues/%d/join", leagueID), 2, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, router, http.MethodPost, fmt.Sprintf("/leagues/%d/leave", leagueID), 2, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"result": "left"}`, w.Body.String())

	// The admin is the sole member now; leaving deletes the league.
	w = doJSON(t, router, http.MethodPost, fmt.Sprintf("/leagues/%d/leave", leagueID), 1, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"result": "league deleted"}`, w.Body.String())

	w = doJSON(t, router, http.MethodGet, fmt.Sprintf("/leagues/%d", leagueID), 1, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPortfolioValuationEndpoint(t *testing.T) {
	router, _ := testRouter(t, map[string]float64{"AAPL": 60})
	leagueID := createLeague(t, router, 1, 100000)

	w := doJSON(t, router, http.MethodPost, fmt.Sprintf("/leagues/%d/buy", leagueID), 1,
		gin.H{"symbol": "AAPL", "quantity": 10})
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(t, router, http.MethodGet, fmt.Sprintf("/leagues/%d/portfolio", leagueID), 1, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var result valuation.Result
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.InDelta(t, 100000, result.TotalValue, 1e-9)
	require.Len(t, result.Holdings, 1)
	assert.True(t, result.Holdings[0].Priced)
}

func TestStoreConflictIsRetriable409(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	h := &Handler{Log: slog.New(slog.NewTextHandler(io.Discard, nil))}

	h.writeError(c, fmt.Errorf("create membership: %w", store.ErrConflict))

	assert.Equal(t, http.StatusConflict, w.Code)
	var body struct {
		Error     string `json:"error"`
		Retriable bool   `json:"retriable"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body.Retriable, "commit conflicts left no partial writes and must invite a retry")
	assert.NotContains(t, body.Error, "Internal server error")
}

func TestLeaderboardRequiresMembership(t *testing.T) {
	router, _ := testRouter(t, nil)
	leagueID := createLeague(t, router, 1, 1000)

	w := doJSON(t, router, http.MethodGet, fmt.Sprintf("/leagues/%d/leaderboard", leagueID), 9, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = doJSON(t, router, http.MethodGet, fmt.Sprintf("/leagues/%d/leaderboard", leagueID), 1, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var entries []leaderboard.Entry
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, uint(1), entries[0].UserID)
}
