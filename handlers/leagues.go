package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"fantasy-league/league"
)

type CreateLeagueInput struct {
	Name          string  `json:"name" binding:"required"`
	Description   string  `json:"description"`
	VirtualBudget float64 `json:"virtual_budget" binding:"required,gt=0"`
}

func (h *Handler) CreateLeague(c *gin.Context) {
	var input CreateLeagueInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	l, err := h.Leagues.Create(c.Request.Context(), userID(c), input.Name, input.Description, input.VirtualBudget)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, l)
}

func (h *Handler) ListLeagues(c *gin.Context) {
	leagues, err := h.Leagues.ListForUser(c.Request.Context(), userID(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, leagues)
}

func (h *Handler) GetLeague(c *gin.Context) {
	leagueID, ok := leagueParam(c)
	if !ok {
		return
	}

	l, members, err := h.Leagues.Get(c.Request.Context(), userID(c), leagueID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"league":       l,
		"members":      members,
		"member_count": len(members),
	})
}

type UpdateLeagueInput struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

func (h *Handler) UpdateLeague(c *gin.Context) {
	leagueID, ok := leagueParam(c)
	if !ok {
		return
	}
	var input UpdateLeagueInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	l, err := h.Leagues.UpdateSettings(c.Request.Context(), userID(c), leagueID, input.Name, input.Description)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, l)
}

func (h *Handler) JoinLeague(c *gin.Context) {
	leagueID, ok := leagueParam(c)
	if !ok {
		return
	}

	l, err := h.Leagues.Join(c.Request.Context(), userID(c), leagueID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Joined league", "league": l})
}

type JoinByCodeInput struct {
	Code string `json:"code" binding:"required"`
}

func (h *Handler) JoinLeagueByCode(c *gin.Context) {
	var input JoinByCodeInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	l, err := h.Leagues.JoinByCode(c.Request.Context(), userID(c), input.Code)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Joined league", "league": l})
}

func (h *Handler) LeaveLeague(c *gin.Context) {
	leagueID, ok := leagueParam(c)
	if !ok {
		return
	}

	outcome, err := h.Leagues.Leave(c.Request.Context(), userID(c), leagueID)
	if err != nil {
		h.writeError(c, err)
		return
	}

	// The two outcomes render differently: the league may be gone entirely.
	if outcome == league.LeagueDeleted {
		c.JSON(http.StatusOK, gin.H{"result": "league deleted"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"result": "left"})
}
