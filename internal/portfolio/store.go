package portfolio

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"crypto-portfolio-tracker/internal/errs"
	"crypto-portfolio-tracker/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store persists holdings, purchases and daily valuations.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE") || strings.Contains(msg, "duplicate")
}

// AssetFilter narrows ListAssets by asset name. Both matches ignore case.
type AssetFilter struct {
	Query  string // name contains
	Letter string // name starts with; a single letter
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)

// ListAssets returns the owner's holdings in insertion order.
func (s *Store) ListAssets(ctx context.Context, userID uint, filter AssetFilter) ([]models.Asset, error) {
	q := s.db.WithContext(ctx).Where("user_id = ?", userID)

	if query := strings.ToLower(strings.TrimSpace(filter.Query)); query != "" {
		q = q.Where(`LOWER(name) LIKE ? ESCAPE '\'`, "%"+likeEscaper.Replace(query)+"%")
	}
	if filter.Letter != "" {
		r := []rune(filter.Letter)
		if len(r) != 1 || !unicode.IsLetter(r[0]) {
			return nil, fmt.Errorf("%w: letter must be a single letter", errs.ErrInvalidInput)
		}
		q = q.Where(`LOWER(name) LIKE ? ESCAPE '\'`, strings.ToLower(filter.Letter)+"%")
	}

	var assets []models.Asset
	if err := q.Order("id asc").Find(&assets).Error; err != nil {
		return nil, fmt.Errorf("failed to list assets: %w", err)
	}
	return assets, nil
}

// GetAsset returns one holding of the owner.
func (s *Store) GetAsset(ctx context.Context, userID, id uint) (*models.Asset, error) {
	var asset models.Asset
	if err := s.db.WithContext(ctx).Where("user_id = ? AND id = ?", userID, id).First(&asset).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	return &asset, nil
}

// AddAsset stores a new holding. The symbol is upper-cased so that
// (owner, symbol) stays unique regardless of case.
func (s *Store) AddAsset(ctx context.Context, asset *models.Asset) error {
	asset.Name = strings.TrimSpace(asset.Name)
	asset.Symbol = strings.ToUpper(strings.TrimSpace(asset.Symbol))
	if asset.Name == "" || asset.Symbol == "" || asset.Amount < 0 {
		return errs.ErrInvalidInput
	}

	if err := s.db.WithContext(ctx).Create(asset).Error; err != nil {
		if isUniqueViolation(err) {
			return errs.ErrAlreadyExists
		}
		return err
	}
	return nil
}

// UpdateAmount sets the quantity held of one asset.
func (s *Store) UpdateAmount(ctx context.Context, userID, id uint, amount float64) (*models.Asset, error) {
	if amount < 0 {
		return nil, errs.ErrInvalidInput
	}
	result := s.db.WithContext(ctx).Model(&models.Asset{}).
		Where("user_id = ? AND id = ?", userID, id).
		Update("amount", amount)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, errs.ErrNotFound
	}
	return s.GetAsset(ctx, userID, id)
}

// DeleteAsset removes a holding for good. Alerts on it go inactive on the
// next evaluation pass.
func (s *Store) DeleteAsset(ctx context.Context, userID, id uint) error {
	result := s.db.WithContext(ctx).Unscoped().Where("user_id = ? AND id = ?", userID, id).Delete(&models.Asset{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// ListTransactions returns the owner's purchases, newest first.
func (s *Store) ListTransactions(ctx context.Context, userID uint) ([]models.Transaction, error) {
	var txs []models.Transaction
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("transaction_date desc, id desc").Find(&txs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	return txs, nil
}

// AddTransaction records a purchase. A missing external id is generated and
// a missing date defaults to now.
func (s *Store) AddTransaction(ctx context.Context, tx *models.Transaction) error {
	tx.Symbol = strings.ToUpper(strings.TrimSpace(tx.Symbol))
	if tx.Name == "" || tx.Symbol == "" || tx.Amount <= 0 || tx.Price < 0 {
		return errs.ErrInvalidInput
	}
	if tx.ExternalID == "" {
		tx.ExternalID = uuid.NewString()
	}
	if tx.Date.IsZero() {
		tx.Date = time.Now().UTC()
	}
	if tx.Rate == 0 && tx.Amount > 0 {
		tx.Rate = tx.Price / tx.Amount
	}

	if err := s.db.WithContext(ctx).Create(tx).Error; err != nil {
		if isUniqueViolation(err) {
			return errs.ErrAlreadyExists
		}
		return err
	}
	return nil
}

// RecordDaily stores the portfolio value for a calendar day, overwriting any
// earlier value for the same day.
func (s *Store) RecordDaily(ctx context.Context, userID uint, date string, value float64) error {
	row := models.PortfolioDaily{UserID: userID, Date: date, Value: value}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "date"}},
		DoUpdates: clause.AssignmentColumns([]string{"portfolio_value", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("failed to record daily value: %w", err)
	}
	return nil
}

// PreviousDaily returns the latest stored value strictly before date, or nil.
func (s *Store) PreviousDaily(ctx context.Context, userID uint, date string) (*models.PortfolioDaily, error) {
	var row models.PortfolioDaily
	res := s.db.WithContext(ctx).Where("user_id = ? AND date < ?", userID, date).Order("date desc").Limit(1).Find(&row)
	if res.Error != nil {
		return nil, fmt.Errorf("failed to read daily value: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}
	return &row, nil
}
