package models

import "time"

// Notification is a persisted record of a fired alert.
// Only IsRead changes after insertion.
type Notification struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"index;not null" json:"user_id"`
	AlertID   uint      `gorm:"index;not null" json:"alert_id"`
	Message   string    `gorm:"column:notification_text;not null" json:"notification_text"`
	Price     float64   `gorm:"column:current_price;not null" json:"current_price"`
	IsRead    bool      `gorm:"not null;default:false" json:"is_read"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}
