package models

import (
	"time"

	"gorm.io/gorm"
)

// Transaction records a purchase. Price is the total paid in the quote currency.
type Transaction struct {
	gorm.Model
	UserID     uint      `gorm:"index;not null" json:"user_id"`
	Name       string    `gorm:"not null" json:"name"`
	Symbol     string    `gorm:"not null" json:"symbol"`
	Date       time.Time `gorm:"column:transaction_date;not null" json:"transaction_date"`
	Amount     float64   `gorm:"not null" json:"amount"`
	Price      float64   `gorm:"not null" json:"price"`
	ExternalID string    `gorm:"column:transaction_id;uniqueIndex;not null" json:"transaction_id"`
	Rate       float64   `json:"rate"`
}
