package store

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"fantasy-league/models"
)

// GormStore is the postgres-backed Store. WithTransaction maps onto gorm's
// transaction callback, which is also the serialization boundary for
// concurrent operations on the same portfolio.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// AutoMigrate creates or updates the schema for every persisted entity.
func (s *GormStore) AutoMigrate() error {
	return s.db.AutoMigrate(
		&models.User{},
		&models.League{},
		&models.Membership{},
		&models.Portfolio{},
		&models.Holding{},
		&models.Transaction{},
	)
}

func (s *GormStore) WithTransaction(ctx context.Context, fn func(Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormStore{db: tx})
	})
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

// conflict maps duplicate-key violations (two concurrent writers racing past
// the same existence check) onto ErrConflict so callers can retry. Requires
// TranslateError on the gorm config.
func conflict(err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrConflict
	}
	return err
}

func (s *GormStore) CreateUser(ctx context.Context, u *models.User) error {
	return conflict(s.db.WithContext(ctx).Create(u).Error)
}

func (s *GormStore) UserByID(ctx context.Context, id uint) (*models.User, error) {
	var u models.User
	if err := s.db.WithContext(ctx).First(&u, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

func (s *GormStore) UserByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&u).Error; err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

func (s *GormStore) SaveUser(ctx context.Context, u *models.User) error {
	return s.db.WithContext(ctx).Save(u).Error
}

func (s *GormStore) CreateLeague(ctx context.Context, l *models.League) error {
	return conflict(s.db.WithContext(ctx).Create(l).Error)
}

func (s *GormStore) LeagueByID(ctx context.Context, id uint) (*models.League, error) {
	var l models.League
	if err := s.db.WithContext(ctx).First(&l, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &l, nil
}

func (s *GormStore) LeagueByCode(ctx context.Context, code string) (*models.League, error) {
	var l models.League
	err := s.db.WithContext(ctx).
		Where("UPPER(invitation_code) = ?", strings.ToUpper(code)).
		First(&l).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &l, nil
}

func (s *GormStore) SaveLeague(ctx context.Context, l *models.League) error {
	return s.db.WithContext(ctx).Save(l).Error
}

// Deletes are unscoped: a soft-deleted row would still occupy the composite
// unique indexes and block the user from rejoining a league or reopening a
// closed position. The Transaction audit trail is the history; destroyed
// entities are destroyed, not archived.
func (s *GormStore) DeleteLeague(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var portfolioIDs []uint
		if err := tx.Model(&models.Portfolio{}).
			Where("league_id = ?", id).
			Pluck("id", &portfolioIDs).Error; err != nil {
			return err
		}
		if len(portfolioIDs) > 0 {
			if err := tx.Unscoped().Where("portfolio_id IN ?", portfolioIDs).
				Delete(&models.Holding{}).Error; err != nil {
				return err
			}
			if err := tx.Unscoped().Where("portfolio_id IN ?", portfolioIDs).
				Delete(&models.Transaction{}).Error; err != nil {
				return err
			}
		}
		if err := tx.Unscoped().Where("league_id = ?", id).Delete(&models.Portfolio{}).Error; err != nil {
			return err
		}
		if err := tx.Unscoped().Where("league_id = ?", id).Delete(&models.Membership{}).Error; err != nil {
			return err
		}
		return tx.Unscoped().Delete(&models.League{}, id).Error
	})
}

func (s *GormStore) CreateMembership(ctx context.Context, m *models.Membership) error {
	return conflict(s.db.WithContext(ctx).Create(m).Error)
}

func (s *GormStore) Membership(ctx context.Context, userID, leagueID uint) (*models.Membership, error) {
	var m models.Membership
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND league_id = ?", userID, leagueID).
		First(&m).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &m, nil
}

func (s *GormStore) MembershipsByLeague(ctx context.Context, leagueID uint) ([]models.Membership, error) {
	var ms []models.Membership
	err := s.db.WithContext(ctx).
		Where("league_id = ?", leagueID).
		Order("joined_at ASC, id ASC").
		Find(&ms).Error
	return ms, err
}

func (s *GormStore) MembershipsByUser(ctx context.Context, userID uint) ([]models.Membership, error) {
	var ms []models.Membership
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("joined_at ASC, id ASC").
		Find(&ms).Error
	return ms, err
}

func (s *GormStore) DeleteMembership(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Unscoped().Delete(&models.Membership{}, id).Error
}

func (s *GormStore) CreatePortfolio(ctx context.Context, p *models.Portfolio) error {
	return conflict(s.db.WithContext(ctx).Create(p).Error)
}

func (s *GormStore) Portfolio(ctx context.Context, userID, leagueID uint) (*models.Portfolio, error) {
	var p models.Portfolio
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND league_id = ?", userID, leagueID).
		First(&p).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

func (s *GormStore) SavePortfolio(ctx context.Context, p *models.Portfolio) error {
	return s.db.WithContext(ctx).Save(p).Error
}

func (s *GormStore) DeletePortfolio(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Unscoped().Where("portfolio_id = ?", id).Delete(&models.Holding{}).Error; err != nil {
			return err
		}
		if err := tx.Unscoped().Where("portfolio_id = ?", id).Delete(&models.Transaction{}).Error; err != nil {
			return err
		}
		return tx.Unscoped().Delete(&models.Portfolio{}, id).Error
	})
}

func (s *GormStore) Holding(ctx context.Context, portfolioID uint, symbol string) (*models.Holding, error) {
	var h models.Holding
	err := s.db.WithContext(ctx).
		Where("portfolio_id = ? AND symbol = ?", portfolioID, symbol).
		First(&h).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &h, nil
}

func (s *GormStore) HoldingsByPortfolio(ctx context.Context, portfolioID uint) ([]models.Holding, error) {
	var hs []models.Holding
	err := s.db.WithContext(ctx).
		Where("portfolio_id = ?", portfolioID).
		Order("symbol ASC").
		Find(&hs).Error
	return hs, err
}

func (s *GormStore) SaveHolding(ctx context.Context, h *models.Holding) error {
	return conflict(s.db.WithContext(ctx).Save(h).Error)
}

func (s *GormStore) DeleteHolding(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Unscoped().Delete(&models.Holding{}, id).Error
}

func (s *GormStore) CreateTransaction(ctx context.Context, t *models.Transaction) error {
	return s.db.WithContext(ctx).Create(t).Error
}

func (s *GormStore) TransactionsByPortfolio(ctx context.Context, portfolioID uint) ([]models.Transaction, error) {
	var ts []models.Transaction
	err := s.db.WithContext(ctx).
		Where("portfolio_id = ?", portfolioID).
		Order("timestamp ASC, id ASC").
		Find(&ts).Error
	return ts, err
}
