package models

import (
	"time"

	"gorm.io/gorm"
)

// Trade types recorded on a Transaction.
const (
	TradeBuy  = "BUY"
	TradeSell = "SELL"
)

type User struct {
	gorm.Model
	Email         string `gorm:"uniqueIndex" json:"email"`
	Password      string `json:"-"`
	EmailVerified bool   `json:"email_verified"`
}

// League is a competitive group with a shared starting budget. AdminID must
// always reference a current member; the membership engine enforces this on
// every leave.
type League struct {
	gorm.Model
	Name           string  `json:"name"`
	Description    string  `json:"description"`
	InvitationCode string  `gorm:"uniqueIndex" json:"invitation_code"`
	VirtualBudget  float64 `json:"virtual_budget"`
	AdminID        uint    `gorm:"index" json:"admin_id"`
}

// Membership links a user to a league. Exactly one row per (user, league)
// pair, created and destroyed together with the matching Portfolio.
type Membership struct {
	gorm.Model
	UserID   uint      `gorm:"uniqueIndex:idx_membership_user_league" json:"user_id"`
	LeagueID uint      `gorm:"uniqueIndex:idx_membership_user_league" json:"league_id"`
	JoinedAt time.Time `json:"joined_at"`
}

// Portfolio holds one user's cash and positions within one league.
// TotalValue is a best-effort cache written by the valuation service; it is
// always recomputable from holdings and live quotes.
type Portfolio struct {
	gorm.Model
	UserID      uint    `gorm:"uniqueIndex:idx_portfolio_user_league" json:"user_id"`
	LeagueID    uint    `gorm:"uniqueIndex:idx_portfolio_user_league" json:"league_id"`
	CashBalance float64 `json:"cash_balance"`
	TotalValue  float64 `json:"total_value"`
}

// Holding is a nonzero position in one symbol. Quantity is always > 0: a sell
// that empties a position deletes the row instead of leaving it at zero.
type Holding struct {
	gorm.Model
	PortfolioID  uint    `gorm:"uniqueIndex:idx_holding_portfolio_symbol" json:"portfolio_id"`
	Symbol       string  `gorm:"uniqueIndex:idx_holding_portfolio_symbol" json:"symbol"`
	Quantity     int     `json:"quantity"`
	AveragePrice float64 `json:"average_price"`
}

// Transaction is the append-only audit trail of one trade. Rows are never
// updated or deleted while their portfolio exists.
type Transaction struct {
	gorm.Model
	PortfolioID uint      `gorm:"index" json:"portfolio_id"`
	Symbol      string    `json:"symbol"`
	Type        string    `json:"type"`
	Quantity    int       `json:"quantity"`
	Price       float64   `json:"price"`
	TotalAmount float64   `json:"total_amount"`
	Timestamp   time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"timestamp"`
}
