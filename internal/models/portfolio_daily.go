package models

import "time"

// PortfolioDaily keeps one valuation per owner and calendar day.
type PortfolioDaily struct {
	ID        uint      `gorm:"primaryKey" json:"-"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_daily_owner_date" json:"user_id"`
	Date      string    `gorm:"not null;uniqueIndex:idx_daily_owner_date" json:"date"` // YYYY-MM-DD
	Value     float64   `gorm:"column:portfolio_value;not null" json:"portfolio_value"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (PortfolioDaily) TableName() string {
	return "portfolio_daily"
}
