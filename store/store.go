package store

import (
	"context"
	"errors"

	"fantasy-league/models"
)

// ErrNotFound is returned by every lookup that matches no row.
var ErrNotFound = errors.New("record not found")

// ErrConflict is returned when a write loses a race against a concurrent
// one and hits a uniqueness rule, e.g. two simultaneous joins of the same
// league. Nothing was committed; the caller can safely retry.
var ErrConflict = errors.New("conflicting record")

// Store is the single gateway to persisted state. All multi-entity mutations
// in the ledger and membership engines run inside WithTransaction so they
// commit or roll back as one unit; no component mutates entities around it.
type Store interface {
	// WithTransaction runs fn against a transactional view of the store.
	// If fn returns an error nothing fn wrote is kept.
	WithTransaction(ctx context.Context, fn func(Store) error) error

	CreateUser(ctx context.Context, u *models.User) error
	UserByID(ctx context.Context, id uint) (*models.User, error)
	UserByEmail(ctx context.Context, email string) (*models.User, error)
	SaveUser(ctx context.Context, u *models.User) error

	CreateLeague(ctx context.Context, l *models.League) error
	LeagueByID(ctx context.Context, id uint) (*models.League, error)
	// LeagueByCode looks a league up by invitation code, case-insensitively.
	LeagueByCode(ctx context.Context, code string) (*models.League, error)
	SaveLeague(ctx context.Context, l *models.League) error
	// DeleteLeague removes the league and everything under it: memberships,
	// portfolios, holdings and transactions.
	DeleteLeague(ctx context.Context, id uint) error

	CreateMembership(ctx context.Context, m *models.Membership) error
	Membership(ctx context.Context, userID, leagueID uint) (*models.Membership, error)
	// MembershipsByLeague returns members ordered by join time, earliest first.
	MembershipsByLeague(ctx context.Context, leagueID uint) ([]models.Membership, error)
	MembershipsByUser(ctx context.Context, userID uint) ([]models.Membership, error)
	DeleteMembership(ctx context.Context, id uint) error

	CreatePortfolio(ctx context.Context, p *models.Portfolio) error
	Portfolio(ctx context.Context, userID, leagueID uint) (*models.Portfolio, error)
	SavePortfolio(ctx context.Context, p *models.Portfolio) error
	// DeletePortfolio removes the portfolio with its holdings and transactions.
	DeletePortfolio(ctx context.Context, id uint) error

	Holding(ctx context.Context, portfolioID uint, symbol string) (*models.Holding, error)
	HoldingsByPortfolio(ctx context.Context, portfolioID uint) ([]models.Holding, error)
	SaveHolding(ctx context.Context, h *models.Holding) error
	DeleteHolding(ctx context.Context, id uint) error

	CreateTransaction(ctx context.Context, t *models.Transaction) error
	TransactionsByPortfolio(ctx context.Context, portfolioID uint) ([]models.Transaction, error)
}
