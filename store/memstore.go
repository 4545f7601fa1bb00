package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"fantasy-league/models"
)

// MemStore is an in-memory Store used by service tests. WithTransaction
// snapshots all tables and restores them when fn fails, mirroring the
// all-or-nothing behavior of the gorm implementation.
type MemStore struct {
	mu     sync.Mutex
	nextID uint

	users        map[uint]models.User
	leagues      map[uint]models.League
	memberships  map[uint]models.Membership
	portfolios   map[uint]models.Portfolio
	holdings     map[uint]models.Holding
	transactions map[uint]models.Transaction
}

func NewMemStore() *MemStore {
	return &MemStore{
		users:        make(map[uint]models.User),
		leagues:      make(map[uint]models.League),
		memberships:  make(map[uint]models.Membership),
		portfolios:   make(map[uint]models.Portfolio),
		holdings:     make(map[uint]models.Holding),
		transactions: make(map[uint]models.Transaction),
	}
}

type memSnapshot struct {
	nextID       uint
	users        map[uint]models.User
	leagues      map[uint]models.League
	memberships  map[uint]models.Membership
	portfolios   map[uint]models.Portfolio
	holdings     map[uint]models.Holding
	transactions map[uint]models.Transaction
}

func copyTable[T any](src map[uint]T) map[uint]T {
	dst := make(map[uint]T, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

func (s *MemStore) snapshot() memSnapshot {
	return memSnapshot{
		nextID:       s.nextID,
		users:        copyTable(s.users),
		leagues:      copyTable(s.leagues),
		memberships:  copyTable(s.memberships),
		portfolios:   copyTable(s.portfolios),
		holdings:     copyTable(s.holdings),
		transactions: copyTable(s.transactions),
	}
}

func (s *MemStore) restore(snap memSnapshot) {
	s.nextID = snap.nextID
	s.users = snap.users
	s.leagues = snap.leagues
	s.memberships = snap.memberships
	s.portfolios = snap.portfolios
	s.holdings = snap.holdings
	s.transactions = snap.transactions
}

func (s *MemStore) WithTransaction(ctx context.Context, fn func(Store) error) error {
	s.mu.Lock()
	snap := s.snapshot()
	s.mu.Unlock()

	if err := fn(s); err != nil {
		s.mu.Lock()
		s.restore(snap)
		s.mu.Unlock()
		return err
	}
	return nil
}

func (s *MemStore) allocID() uint {
	s.nextID++
	return s.nextID
}

func (s *MemStore) CreateUser(ctx context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if existing.Email == u.Email {
			return ErrConflict
		}
	}
	u.ID = s.allocID()
	u.CreatedAt = time.Now()
	s.users[u.ID] = *u
	return nil
}

func (s *MemStore) UserByID(ctx context.Context, id uint) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

func (s *MemStore) UserByEmail(ctx context.Context, email string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			found := u
			return &found, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemStore) SaveUser(ctx context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[u.ID]; !ok {
		return ErrNotFound
	}
	s.users[u.ID] = *u
	return nil
}

func (s *MemStore) CreateLeague(ctx context.Context, l *models.League) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.leagues {
		if strings.EqualFold(existing.InvitationCode, l.InvitationCode) {
			return ErrConflict
		}
	}
	l.ID = s.allocID()
	l.CreatedAt = time.Now()
	s.leagues[l.ID] = *l
	return nil
}

func (s *MemStore) LeagueByID(ctx context.Context, id uint) (*models.League, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.leagues[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &l, nil
}

func (s *MemStore) LeagueByCode(ctx context.Context, code string) (*models.League, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, l := range s.leagues {
		if strings.EqualFold(l.InvitationCode, code) {
			found := l
			return &found, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemStore) SaveLeague(ctx context.Context, l *models.League) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.leagues[l.ID]; !ok {
		return ErrNotFound
	}
	s.leagues[l.ID] = *l
	return nil
}

func (s *MemStore) DeleteLeague(ctx context.Context, id uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.leagues[id]; !ok {
		return ErrNotFound
	}
	for pid, p := range s.portfolios {
		if p.LeagueID != id {
			continue
		}
		s.dropPortfolioChildren(pid)
		delete(s.portfolios, pid)
	}
	for mid, m := range s.memberships {
		if m.LeagueID == id {
			delete(s.memberships, mid)
		}
	}
	delete(s.leagues, id)
	return nil
}

func (s *MemStore) dropPortfolioChildren(portfolioID uint) {
	for hid, h := range s.holdings {
		if h.PortfolioID == portfolioID {
			delete(s.holdings, hid)
		}
	}
	for tid, t := range s.transactions {
		if t.PortfolioID == portfolioID {
			delete(s.transactions, tid)
		}
	}
}

func (s *MemStore) CreateMembership(ctx context.Context, m *models.Membership) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.memberships {
		if existing.UserID == m.UserID && existing.LeagueID == m.LeagueID {
			return ErrConflict
		}
	}
	m.ID = s.allocID()
	m.CreatedAt = time.Now()
	s.memberships[m.ID] = *m
	return nil
}

func (s *MemStore) Membership(ctx context.Context, userID, leagueID uint) (*models.Membership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.memberships {
		if m.UserID == userID && m.LeagueID == leagueID {
			found := m
			return &found, nil
		}
	}
	return nil, ErrNotFound
}

func sortMemberships(ms []models.Membership) {
	sort.Slice(ms, func(i, j int) bool {
		if !ms[i].JoinedAt.Equal(ms[j].JoinedAt) {
			return ms[i].JoinedAt.Before(ms[j].JoinedAt)
		}
		return ms[i].ID < ms[j].ID
	})
}

func (s *MemStore) MembershipsByLeague(ctx context.Context, leagueID uint) ([]models.Membership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ms []models.Membership
	for _, m := range s.memberships {
		if m.LeagueID == leagueID {
			ms = append(ms, m)
		}
	}
	sortMemberships(ms)
	return ms, nil
}

func (s *MemStore) MembershipsByUser(ctx context.Context, userID uint) ([]models.Membership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ms []models.Membership
	for _, m := range s.memberships {
		if m.UserID == userID {
			ms = append(ms, m)
		}
	}
	sortMemberships(ms)
	return ms, nil
}

func (s *MemStore) DeleteMembership(ctx context.Context, id uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.memberships[id]; !ok {
		return ErrNotFound
	}
	delete(s.memberships, id)
	return nil
}

func (s *MemStore) CreatePortfolio(ctx context.Context, p *models.Portfolio) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.portfolios {
		if existing.UserID == p.UserID && existing.LeagueID == p.LeagueID {
			return ErrConflict
		}
	}
	p.ID = s.allocID()
	p.CreatedAt = time.Now()
	s.portfolios[p.ID] = *p
	return nil
}

func (s *MemStore) Portfolio(ctx context.Context, userID, leagueID uint) (*models.Portfolio, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.portfolios {
		if p.UserID == userID && p.LeagueID == leagueID {
			found := p
			return &found, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemStore) SavePortfolio(ctx context.Context, p *models.Portfolio) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.portfolios[p.ID]; !ok {
		return ErrNotFound
	}
	s.portfolios[p.ID] = *p
	return nil
}

func (s *MemStore) DeletePortfolio(ctx context.Context, id uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.portfolios[id]; !ok {
		return ErrNotFound
	}
	s.dropPortfolioChildren(id)
	delete(s.portfolios, id)
	return nil
}

func (s *MemStore) Holding(ctx context.Context, portfolioID uint, symbol string) (*models.Holding, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, h := range s.holdings {
		if h.PortfolioID == portfolioID && h.Symbol == symbol {
			found := h
			return &found, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemStore) HoldingsByPortfolio(ctx context.Context, portfolioID uint) ([]models.Holding, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var hs []models.Holding
	for _, h := range s.holdings {
		if h.PortfolioID == portfolioID {
			hs = append(hs, h)
		}
	}
	sort.Slice(hs, func(i, j int) bool { return hs[i].Symbol < hs[j].Symbol })
	return hs, nil
}

func (s *MemStore) SaveHolding(ctx context.Context, h *models.Holding) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if h.ID == 0 {
		for _, existing := range s.holdings {
			if existing.PortfolioID == h.PortfolioID && existing.Symbol == h.Symbol {
				return ErrConflict
			}
		}
		h.ID = s.allocID()
		h.CreatedAt = time.Now()
	}
	s.holdings[h.ID] = *h
	return nil
}

func (s *MemStore) DeleteHolding(ctx context.Context, id uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.holdings[id]; !ok {
		return ErrNotFound
	}
	delete(s.holdings, id)
	return nil
}

func (s *MemStore) CreateTransaction(ctx context.Context, t *models.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t.ID = s.allocID()
	t.CreatedAt = time.Now()
	s.transactions[t.ID] = *t
	return nil
}

func (s *MemStore) TransactionsByPortfolio(ctx context.Context, portfolioID uint) ([]models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ts []models.Transaction
	for _, t := range s.transactions {
		if t.PortfolioID == portfolioID {
			ts = append(ts, t)
		}
	}
	sort.Slice(ts, func(i, j int) bool {
		if !ts[i].Timestamp.Equal(ts[j].Timestamp) {
			return ts[i].Timestamp.Before(ts[j].Timestamp)
		}
		return ts[i].ID < ts[j].ID
	})
	return ts, nil
}
