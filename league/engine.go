// Package league manages the join/leave lifecycle of league memberships and
// the ownership invariants that come with it: every league always has at
// least one member, and its admin is always one of them.
package league

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"fantasy-league/models"
	"fantasy-league/store"
)

var (
	ErrAlreadyMember  = errors.New("already a member of this league")
	ErrNotAMember     = errors.New("not a member of this league")
	ErrLeagueNotFound = errors.New("league not found")
	ErrInvalidCode    = errors.New("invalid invitation code")
	ErrNotAdmin       = errors.New("only the league admin may do this")
	ErrInvalidLeague  = errors.New("league needs a name and a positive budget")
)

// LeaveOutcome distinguishes the two successful Leave results the caller must
// render differently.
type LeaveOutcome int

const (
	// LeftLeague: the member departed, the league lives on.
	LeftLeague LeaveOutcome = iota
	// LeagueDeleted: the sole member departed and the league is gone.
	LeagueDeleted
)

const (
	codeLength = 6
	// No 0/O/1/I/L, codes get read aloud and retyped.
	codeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"
	codeAttempts = 5
)

type Engine struct {
	store store.Store
	log   *slog.Logger
}

func NewEngine(st store.Store, log *slog.Logger) *Engine {
	return &Engine{store: st, log: log}
}

// Create makes a new league with the caller as admin and first member, and
// seeds their portfolio with the full virtual budget. League, membership and
// portfolio commit together.
func (e *Engine) Create(ctx context.Context, userID uint, name, description string, virtualBudget float64) (*models.League, error) {
	name = strings.TrimSpace(name)
	if name == "" || virtualBudget <= 0 {
		return nil, ErrInvalidLeague
	}

	var created *models.League
	err := e.store.WithTransaction(ctx, func(tx store.Store) error {
		code, err := e.freshCode(ctx, tx)
		if err != nil {
			return err
		}

		l := &models.League{
			Name:           name,
			Description:    strings.TrimSpace(description),
			InvitationCode: code,
			VirtualBudget:  virtualBudget,
			AdminID:        userID,
		}
		if err := tx.CreateLeague(ctx, l); err != nil {
			return err
		}
		if err := enroll(ctx, tx, userID, l); err != nil {
			return err
		}
		created = l
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.log.Info("league created", "league_id", created.ID, "admin_id", userID, "budget", virtualBudget)
	return created, nil
}

// Join adds the user to the league, creating the membership and the
// budget-seeded portfolio as one unit.
func (e *Engine) Join(ctx context.Context, userID, leagueID uint) (*models.League, error) {
	var joined *models.League
	err := e.store.WithTransaction(ctx, func(tx store.Store) error {
		l, err := tx.LeagueByID(ctx, leagueID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrLeagueNotFound
			}
			return err
		}
		if _, err := tx.Membership(ctx, userID, leagueID); err == nil {
			return ErrAlreadyMember
		} else if !errors.Is(err, store.ErrNotFound) {
			return err
		}
		if err := enroll(ctx, tx, userID, l); err != nil {
			return err
		}
		joined = l
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.log.Info("user joined league", "user_id", userID, "league_id", leagueID)
	return joined, nil
}

// JoinByCode resolves the invitation code case-insensitively and joins.
func (e *Engine) JoinByCode(ctx context.Context, userID uint, code string) (*models.League, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, ErrInvalidCode
	}
	l, err := e.store.LeagueByCode(ctx, code)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidCode
		}
		return nil, err
	}
	return e.Join(ctx, userID, l.ID)
}

// Leave removes the user from the league. If the departing user is the admin
// and others remain, ownership passes to the earliest-joined remaining
// member. If they are the last member the league is deleted outright with
// everything under it. All branches commit as one transaction.
func (e *Engine) Leave(ctx context.Context, userID, leagueID uint) (LeaveOutcome, error) {
	outcome := LeftLeague
	err := e.store.WithTransaction(ctx, func(tx store.Store) error {
		l, err := tx.LeagueByID(ctx, leagueID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrLeagueNotFound
			}
			return err
		}

		membership, err := tx.Membership(ctx, userID, leagueID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrNotAMember
			}
			return err
		}

		members, err := tx.MembershipsByLeague(ctx, leagueID)
		if err != nil {
			return err
		}

		if l.AdminID == userID {
			if len(members) == 1 {
				// Last member out deletes the league; it must never
				// survive ownerless.
				outcome = LeagueDeleted
				return tx.DeleteLeague(ctx, leagueID)
			}
			successor, ok := earliestOther(members, userID)
			if !ok {
				return fmt.Errorf("league %d has no successor for admin %d", leagueID, userID)
			}
			l.AdminID = successor
			if err := tx.SaveLeague(ctx, l); err != nil {
				return err
			}
		}

		p, err := tx.Portfolio(ctx, userID, leagueID)
		if err != nil {
			return err
		}
		if err := tx.DeletePortfolio(ctx, p.ID); err != nil {
			return err
		}
		return tx.DeleteMembership(ctx, membership.ID)
	})
	if err != nil {
		return LeftLeague, err
	}

	e.log.Info("user left league",
		"user_id", userID, "league_id", leagueID, "league_deleted", outcome == LeagueDeleted)
	return outcome, nil
}

// UpdateSettings lets the admin rename the league or change its description.
// The virtual budget is immutable once portfolios have been seeded from it.
func (e *Engine) UpdateSettings(ctx context.Context, userID, leagueID uint, name, description string) (*models.League, error) {
	l, err := e.store.LeagueByID(ctx, leagueID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrLeagueNotFound
		}
		return nil, err
	}
	if l.AdminID != userID {
		return nil, ErrNotAdmin
	}

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrInvalidLeague
	}
	l.Name = name
	l.Description = strings.TrimSpace(description)
	if err := e.store.SaveLeague(ctx, l); err != nil {
		return nil, err
	}
	return l, nil
}

// Get returns the league if the caller is a member of it.
func (e *Engine) Get(ctx context.Context, userID, leagueID uint) (*models.League, []models.Membership, error) {
	l, err := e.store.LeagueByID(ctx, leagueID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil, ErrLeagueNotFound
		}
		return nil, nil, err
	}
	if _, err := e.store.Membership(ctx, userID, leagueID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil, ErrNotAMember
		}
		return nil, nil, err
	}
	members, err := e.store.MembershipsByLeague(ctx, leagueID)
	if err != nil {
		return nil, nil, err
	}
	return l, members, nil
}

// ListForUser returns every league the user belongs to.
func (e *Engine) ListForUser(ctx context.Context, userID uint) ([]models.League, error) {
	memberships, err := e.store.MembershipsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	leagues := make([]models.League, 0, len(memberships))
	for _, m := range memberships {
		l, err := e.store.LeagueByID(ctx, m.LeagueID)
		if err != nil {
			return nil, err
		}
		leagues = append(leagues, *l)
	}
	return leagues, nil
}

// enroll creates the membership and the portfolio together; they exist and
// disappear as a pair.
func enroll(ctx context.Context, tx store.Store, userID uint, l *models.League) error {
	m := &models.Membership{
		UserID:   userID,
		LeagueID: l.ID,
		JoinedAt: time.Now(),
	}
	if err := tx.CreateMembership(ctx, m); err != nil {
		return err
	}
	p := &models.Portfolio{
		UserID:      userID,
		LeagueID:    l.ID,
		CashBalance: l.VirtualBudget,
		TotalValue:  l.VirtualBudget,
	}
	return tx.CreatePortfolio(ctx, p)
}

// earliestOther picks the successor admin: the earliest-joined member that
// is not the departing user. members arrive ordered by join time.
func earliestOther(members []models.Membership, departing uint) (uint, bool) {
	for _, m := range members {
		if m.UserID != departing {
			return m.UserID, true
		}
	}
	return 0, false
}

// freshCode generates an invitation code and retries on the unlikely
// collision with an existing league.
func (e *Engine) freshCode(ctx context.Context, tx store.Store) (string, error) {
	for i := 0; i < codeAttempts; i++ {
		code, err := randomCode()
		if err != nil {
			return "", err
		}
		_, err = tx.LeagueByCode(ctx, code)
		if errors.Is(err, store.ErrNotFound) {
			return code, nil
		}
		if err != nil {
			return "", err
		}
	}
	return "", fmt.Errorf("could not generate a unique invitation code after %d attempts", codeAttempts)
}

func randomCode() (string, error) {
	buf := make([]byte, codeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	for i, b := range buf {
		buf[i] = codeAlphabet[int(b)%len(codeAlphabet)]
	}
	return string(buf), nil
}
