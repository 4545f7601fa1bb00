package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"fantasy-league/league"
	"fantasy-league/store"
)

func (h *Handler) GetPortfolio(c *gin.Context) {
	leagueID, ok := leagueParam(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	l, err := h.Store.LeagueByID(ctx, leagueID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			h.writeError(c, league.ErrLeagueNotFound)
			return
		}
		h.writeError(c, err)
		return
	}

	p, err := h.Store.Portfolio(ctx, userID(c), leagueID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			h.writeError(c, league.ErrNotAMember)
			return
		}
		h.writeError(c, err)
		return
	}

	result, err := h.Valuation.Value(ctx, p, l.VirtualBudget)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) GetLeaderboard(c *gin.Context) {
	leagueID, ok := leagueParam(c)
	if !ok {
		return
	}

	// Only members see the standings.
	if _, err := h.Store.Membership(c.Request.Context(), userID(c), leagueID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			h.writeError(c, league.ErrNotAMember)
			return
		}
		h.writeError(c, err)
		return
	}

	entries, err := h.Leaderboard.Rank(c.Request.Context(), leagueID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, entries)
}
