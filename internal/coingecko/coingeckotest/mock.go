// Package coingeckotest provides a testify mock of the market data client.
package coingeckotest

import (
	"context"

	"crypto-portfolio-tracker/internal/coingecko"

	"github.com/stretchr/testify/mock"
)

// MockClient is a mock implementation of coingecko.ClientInterface.
type MockClient struct {
	mock.Mock
}

var _ coingecko.ClientInterface = (*MockClient)(nil)

func (m *MockClient) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockClient) CoinsMarkets(ctx context.Context, params coingecko.MarketsParams) ([]coingecko.MarketCoin, error) {
	args := m.Called(ctx, params)
	coins, _ := args.Get(0).([]coingecko.MarketCoin)
	return coins, args.Error(1)
}

func (m *MockClient) SimplePrice(ctx context.Context, ids []string, vsCurrency string) (map[string]map[string]float64, error) {
	args := m.Called(ctx, ids, vsCurrency)
	prices, _ := args.Get(0).(map[string]map[string]float64)
	return prices, args.Error(1)
}

// Coin builds a minimal valid market record.
func Coin(id, symbol, name string, price float64, rank int, change24h *float64) coingecko.MarketCoin {
	return coingecko.MarketCoin{
		ID:                       id,
		Symbol:                   symbol,
		Name:                     name,
		CurrentPrice:             &price,
		MarketCapRank:            &rank,
		PriceChangePercentage24h: change24h,
	}
}

// Float returns a pointer to f.
func Float(f float64) *float64 {
	return &f
}
