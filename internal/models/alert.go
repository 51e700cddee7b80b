package models

import "time"

const (
	AlertTypeMore = "more"
	AlertTypeLess = "less"

	AlertStatusActive   = "active"
	AlertStatusInactive = "inactive"
)

// Alert fires when the price of Name crosses Threshold in the direction given by Type.
type Alert struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"index;not null" json:"user_id"`
	Name      string    `gorm:"not null" json:"name"`
	Symbol    string    `gorm:"column:cryptocurrency;not null" json:"cryptocurrency"`
	Type      string    `gorm:"column:alert_type;not null" json:"alert_type"` // "more" or "less"
	Threshold float64   `gorm:"not null" json:"threshold"`
	Status    string    `gorm:"index;not null;default:active" json:"status"`
	CreatedAt time.Time `json:"created_at"`
}
