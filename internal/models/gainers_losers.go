package models

import "time"

// Mover is the compact form of a coin stored in the gainers/losers cache.
type Mover struct {
	ID                       string  `json:"id"`
	Symbol                   string  `json:"symbol"`
	Name                     string  `json:"name"`
	Image                    string  `json:"image"`
	CurrentPrice             float64 `json:"current_price"`
	MarketCapRank            int     `json:"market_cap_rank"`
	PriceChangePercentage24h float64 `json:"price_change_percentage_24h"`
	MarketCap                float64 `json:"market_cap"`
	TotalVolume              float64 `json:"total_volume"`
}

// GainersLosersEntry caches the 24h movers for one owner and one set of held coins.
// Entries for holding sets that no longer exist are never purged.
type GainersLosersEntry struct {
	ID          uint      `gorm:"primaryKey"`
	UserID      uint      `gorm:"not null;uniqueIndex:idx_gl_owner_coins"`
	Coins       string    `gorm:"column:owned_coins;not null;uniqueIndex:idx_gl_owner_coins"`
	Gainers     []Mover   `gorm:"serializer:json"`
	Losers      []Mover   `gorm:"serializer:json"`
	RefreshedAt time.Time `gorm:"not null"`
}

func (GainersLosersEntry) TableName() string {
	return "gainers_losers_cache"
}
