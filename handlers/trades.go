package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type TradeInput struct {
	Symbol   string `json:"symbol" binding:"required"`
	Quantity int    `json:"quantity" binding:"required,min=1"`
}

func (h *Handler) Buy(c *gin.Context) {
	leagueID, ok := leagueParam(c)
	if !ok {
		return
	}
	var input TradeInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.Ledger.Buy(c.Request.Context(), userID(c), leagueID, input.Symbol, input.Quantity)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (h *Handler) Sell(c *gin.Context) {
	leagueID, ok := leagueParam(c)
	if !ok {
		return
	}
	var input TradeInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.Ledger.Sell(c.Request.Context(), userID(c), leagueID, input.Symbol, input.Quantity)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (h *Handler) ListTransactions(c *gin.Context) {
	leagueID, ok := leagueParam(c)
	if !ok {
		return
	}

	txns, err := h.Ledger.Transactions(c.Request.Context(), userID(c), leagueID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, txns)
}
