package models

import "time"

// MarketRow is one coin of the cached market snapshot.
// Every row of a generation shares the same RefreshedAt.
type MarketRow struct {
	ID                           uint       `gorm:"primaryKey" json:"-"`
	CoinID                       string     `gorm:"index" json:"id"`
	Symbol                       string     `gorm:"index" json:"symbol"`
	Name                         string     `json:"name"`
	Image                        string     `json:"image"`
	CurrentPrice                 float64    `json:"current_price"`
	MarketCap                    *float64   `json:"market_cap"`
	MarketCapRank                *int       `json:"market_cap_rank"`
	FullyDilutedValuation        *float64   `json:"fully_diluted_valuation"`
	TotalVolume                  *float64   `json:"total_volume"`
	High24h                      *float64   `gorm:"column:high_24h" json:"high_24h"`
	Low24h                       *float64   `gorm:"column:low_24h" json:"low_24h"`
	PriceChange24h               *float64   `gorm:"column:price_change_24h" json:"price_change_24h"`
	PriceChangePercentage24h     *float64   `gorm:"column:price_change_percentage_24h" json:"price_change_percentage_24h"`
	MarketCapChange24h           *float64   `gorm:"column:market_cap_change_24h" json:"market_cap_change_24h"`
	MarketCapChangePercentage24h *float64   `gorm:"column:market_cap_change_percentage_24h" json:"market_cap_change_percentage_24h"`
	CirculatingSupply            *float64   `json:"circulating_supply"`
	TotalSupply                  *float64   `json:"total_supply"`
	MaxSupply                    *float64   `json:"max_supply"`
	Ath                          *float64   `json:"ath"`
	AthChangePercentage          *float64   `json:"ath_change_percentage"`
	AthDate                      *time.Time `json:"ath_date"`
	Atl                          *float64   `json:"atl"`
	AtlChangePercentage          *float64   `json:"atl_change_percentage"`
	AtlDate                      *time.Time `json:"atl_date"`
	LastUpdated                  *time.Time `json:"last_updated"`
	RefreshedAt                  time.Time  `gorm:"index;not null" json:"refreshed_at"`
}

func (MarketRow) TableName() string {
	return "cryptocurrencies"
}

// Rank returns the market-cap rank, or 0 when the API did not report one.
func (r MarketRow) Rank() int {
	if r.MarketCapRank == nil {
		return 0
	}
	return *r.MarketCapRank
}
