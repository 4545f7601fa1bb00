// Package handlers wires the HTTP surface to the core services. Handlers
// bind and validate input, delegate to a service, and translate sentinel
// errors into status codes; no business rule lives here.
package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"

	"fantasy-league/leaderboard"
	"fantasy-league/ledger"
	"fantasy-league/league"
	"fantasy-league/quotes"
	"fantasy-league/store"
	"fantasy-league/valuation"
)

type Handler struct {
	Store       store.Store
	Ledger      *ledger.Service
	Valuation   *valuation.Service
	Leagues     *league.Engine
	Leaderboard *leaderboard.Aggregator
	Quotes      quotes.Fetcher
	Rdb         *redis.Client
	JWTSecret   string
	Log         *slog.Logger
}

func userID(c *gin.Context) uint {
	return c.MustGet("user_id").(uint)
}

func leagueParam(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid league id"})
		return 0, false
	}
	return uint(id), true
}

// writeError maps every classified failure to a specific status and message.
// Anything unclassified is logged and hidden behind a generic 500.
func (h *Handler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ledger.ErrInvalidQuantity),
		errors.Is(err, ledger.ErrInvalidPrice),
		errors.Is(err, league.ErrInvalidLeague):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, ledger.ErrInsufficientFunds),
		errors.Is(err, ledger.ErrInsufficientShares):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.Is(err, ledger.ErrNoSuchHolding),
		errors.Is(err, ledger.ErrPortfolioNotFound),
		errors.Is(err, league.ErrLeagueNotFound),
		errors.Is(err, league.ErrInvalidCode),
		errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, league.ErrAlreadyMember):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, league.ErrNotAMember),
		errors.Is(err, league.ErrNotAdmin):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, store.ErrConflict):
		// The commit lost a race; nothing was written and a retry is safe.
		c.JSON(http.StatusConflict, gin.H{
			"error":     "Conflicting concurrent update, please retry",
			"retriable": true,
		})
	case errors.Is(err, quotes.ErrQuoteUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Quote unavailable, try again later"})
	default:
		h.Log.Error("unhandled error", "path", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
