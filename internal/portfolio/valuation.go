package portfolio

import (
	"sort"
	"strings"

	"crypto-portfolio-tracker/internal/models"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Line is one valued holding.
type Line struct {
	AssetID    uint    `json:"asset_id"`
	Name       string  `json:"name"`
	Symbol     string  `json:"symbol"`
	Amount     float64 `json:"amount"`
	Price      float64 `json:"current_price"`
	Value      float64 `json:"value"`
	Allocation float64 `json:"allocation"` // percent of Total
	Rank       int     `json:"market_cap_rank"`
	Image      string  `json:"image"`
}

// Valuation is a portfolio priced against one market snapshot.
type Valuation struct {
	Lines []Line  `json:"assets"`
	Total float64 `json:"total_value"`
}

// Value prices each holding from the snapshot, matching the coin by name
// and then by symbol, both case-insensitively. Unmatched holdings are worth
// zero. Values and the total are rounded to cents; lines are ordered by value,
// largest first.
func Value(assets []models.Asset, snapshot []models.MarketRow) Valuation {
	byName := make(map[string]models.MarketRow, len(snapshot))
	bySymbol := make(map[string]models.MarketRow, len(snapshot))
	for _, row := range snapshot {
		name, symbol := strings.ToLower(row.Name), strings.ToLower(row.Symbol)
		// first (best ranked) row wins on collisions
		if _, ok := byName[name]; !ok {
			byName[name] = row
		}
		if _, ok := bySymbol[symbol]; !ok {
			bySymbol[symbol] = row
		}
	}

	values := make([]decimal.Decimal, len(assets))
	lines := make([]Line, len(assets))
	total := decimal.Zero
	for i, a := range assets {
		row, ok := byName[strings.ToLower(a.Name)]
		if !ok {
			row, ok = bySymbol[strings.ToLower(a.Symbol)]
		}

		line := Line{AssetID: a.ID, Name: a.Name, Symbol: a.Symbol, Amount: a.Amount}
		value := decimal.Zero
		if ok {
			line.Price = row.CurrentPrice
			line.Rank = row.Rank()
			line.Image = row.Image
			value = decimal.NewFromFloat(a.Amount).Mul(decimal.NewFromFloat(row.CurrentPrice)).Round(2)
		}
		line.Value = value.InexactFloat64()

		values[i] = value
		lines[i] = line
		total = total.Add(value)
	}
	total = total.Round(2)

	if !total.IsZero() {
		for i := range lines {
			lines[i].Allocation = values[i].Div(total).Mul(hundred).Round(2).InexactFloat64()
		}
	}

	sort.SliceStable(lines, func(i, j int) bool {
		return lines[i].Value > lines[j].Value
	})

	return Valuation{Lines: lines, Total: total.InexactFloat64()}
}

// Summary is the headline figures of a portfolio.
type Summary struct {
	Date          string   `json:"date"`
	TotalValue    float64  `json:"total_value"`
	Invested      float64  `json:"invested"`
	ROI           float64  `json:"roi"`                      // percent, zero when nothing was invested
	PreviousValue *float64 `json:"previous_value,omitempty"` // last stored daily value before Date
	Change        float64  `json:"change"`                   // percent versus PreviousValue
}

// Summarize computes return on investment and day-over-day change.
func Summarize(date string, total float64, transactions []models.Transaction, previous *models.PortfolioDaily) Summary {
	invested := decimal.Zero
	for _, tx := range transactions {
		invested = invested.Add(decimal.NewFromFloat(tx.Price))
	}
	invested = invested.Round(2)
	current := decimal.NewFromFloat(total)

	s := Summary{
		Date:       date,
		TotalValue: total,
		Invested:   invested.InexactFloat64(),
	}
	if invested.IsPositive() {
		s.ROI = current.Sub(invested).Div(invested).Mul(hundred).Round(2).InexactFloat64()
	}
	if previous != nil {
		prev := previous.Value
		s.PreviousValue = &prev
		if p := decimal.NewFromFloat(prev); p.IsPositive() {
			s.Change = current.Sub(p).Div(p).Mul(hundred).Round(2).InexactFloat64()
		}
	}
	return s
}
