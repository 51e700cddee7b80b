package models

import "gorm.io/gorm"

// Asset is a holding in a user's portfolio.
// Symbols are stored upper-cased so (owner, symbol) is unique case-insensitively.
type Asset struct {
	gorm.Model
	UserID uint    `gorm:"not null;uniqueIndex:idx_asset_owner_symbol" json:"user_id"`
	Name   string  `gorm:"not null" json:"name"`
	Symbol string  `gorm:"not null;uniqueIndex:idx_asset_owner_symbol" json:"symbol"`
	Amount float64 `gorm:"not null" json:"amount"`
}
