package alerts

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"crypto-portfolio-tracker/internal/errs"
	"crypto-portfolio-tracker/internal/models"

	"gorm.io/gorm"
)

// Store persists alerts and their notifications.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// ActiveAlerts returns every alert still taking part in evaluation.
func (s *Store) ActiveAlerts(ctx context.Context) ([]models.Alert, error) {
	var alerts []models.Alert
	err := s.db.WithContext(ctx).Where("status = ?", models.AlertStatusActive).Order("id asc").Find(&alerts).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load active alerts: %w", err)
	}
	return alerts, nil
}

// Deactivate moves an alert to its terminal inactive state.
func (s *Store) Deactivate(ctx context.Context, id uint) error {
	err := s.db.WithContext(ctx).Model(&models.Alert{}).Where("id = ?", id).
		Update("status", models.AlertStatusInactive).Error
	if err != nil {
		return fmt.Errorf("failed to deactivate alert %d: %w", id, err)
	}
	return nil
}

// HoldsAsset reports whether the owner holds an asset whose name or symbol
// matches coin, case-insensitively.
func (s *Store) HoldsAsset(ctx context.Context, userID uint, coin string) (bool, error) {
	coin = strings.ToLower(strings.TrimSpace(coin))
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Asset{}).
		Where("user_id = ? AND (LOWER(name) = ? OR LOWER(symbol) = ?)", userID, coin, coin).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check holdings: %w", err)
	}
	return count > 0, nil
}

// CreateAlert stores a new active alert on a coin the owner holds.
func (s *Store) CreateAlert(ctx context.Context, alert *models.Alert) error {
	alert.Type = strings.ToLower(strings.TrimSpace(alert.Type))
	alert.Name = strings.TrimSpace(alert.Name)
	if alert.Name == "" || !ValidType(alert.Type) || alert.Threshold <= 0 {
		return errs.ErrInvalidInput
	}
	held, err := s.HoldsAsset(ctx, alert.UserID, alert.Name)
	if err != nil {
		return err
	}
	if !held {
		return fmt.Errorf("%w: %s is not in the portfolio", errs.ErrInvalidInput, alert.Name)
	}
	if alert.Symbol == "" {
		alert.Symbol = alert.Name
	}
	alert.Status = models.AlertStatusActive

	return s.db.WithContext(ctx).Create(alert).Error
}

// ListAlerts returns all alerts of the owner, newest first.
func (s *Store) ListAlerts(ctx context.Context, userID uint) ([]models.Alert, error) {
	var alerts []models.Alert
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("id desc").Find(&alerts).Error; err != nil {
		return nil, fmt.Errorf("failed to list alerts: %w", err)
	}
	return alerts, nil
}

func (s *Store) GetAlert(ctx context.Context, userID, id uint) (*models.Alert, error) {
	var alert models.Alert
	if err := s.db.WithContext(ctx).Where("user_id = ? AND id = ?", userID, id).First(&alert).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	return &alert, nil
}

// DeleteAlert removes an alert and its notifications at the owner's request.
func (s *Store) DeleteAlert(ctx context.Context, userID, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Where("user_id = ? AND id = ?", userID, id).Delete(&models.Alert{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return errs.ErrNotFound
		}
		return tx.Where("alert_id = ?", id).Delete(&models.Notification{}).Error
	})
}

// lastUnread returns the newest unread notification of an alert, or nil.
func lastUnread(tx *gorm.DB, alertID uint) (*models.Notification, error) {
	var n models.Notification
	res := tx.Where("alert_id = ? AND is_read = ?", alertID, false).
		Order("created_at desc, id desc").Limit(1).Find(&n)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}
	return &n, nil
}

// ListNotifications returns the owner's notifications, newest first.
func (s *Store) ListNotifications(ctx context.Context, userID uint, unreadOnly bool) ([]models.Notification, error) {
	q := s.db.WithContext(ctx).Where("user_id = ?", userID)
	if unreadOnly {
		q = q.Where("is_read = ?", false)
	}
	var out []models.Notification
	if err := q.Order("created_at desc, id desc").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	return out, nil
}

// MarkRead flags one notification of the owner as read.
func (s *Store) MarkRead(ctx context.Context, userID, id uint) error {
	result := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("user_id = ? AND id = ?", userID, id).
		Update("is_read", true)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// UnreadCount returns how many notifications of the owner are unread.
func (s *Store) UnreadCount(ctx context.Context, userID uint) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count notifications: %w", err)
	}
	return count, nil
}
