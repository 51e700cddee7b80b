package coingecko

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"crypto-portfolio-tracker/internal/config"

	"github.com/go-playground/validator/v10"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	baseURL        = "https://api.coingecko.com/api/v3"
	apiKeyHeader   = "x-cg-demo-api-key"
	defaultTimeout = 10 * time.Second
)

// ClientInterface defines the market data calls the rest of the application relies on.
type ClientInterface interface {
	Ping(ctx context.Context) error
	CoinsMarkets(ctx context.Context, params MarketsParams) ([]MarketCoin, error)
	SimplePrice(ctx context.Context, ids []string, vsCurrency string) (map[string]map[string]float64, error)
}

// Client is a client for the CoinGecko v3 REST API.
// It implements the ClientInterface.
type Client struct {
	client   *resty.Client
	logger   *zap.Logger
	limiter  *rate.Limiter
	validate *validator.Validate
}

// ensure Client implements the interface
var _ ClientInterface = (*Client)(nil)

// NewClient creates a new CoinGecko client.
func NewClient(cfg *config.CoinGecko, logger *zap.Logger) *Client {
	url := cfg.BaseURL
	if url == "" {
		url = baseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	client := resty.New().
		SetBaseURL(url).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")
	if cfg.ApiKey != "" {
		client.SetHeader(apiKeyHeader, cfg.ApiKey)
	}

	// A zero rate disables limiting.
	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	burst := cfg.RateLimitBurst
	if burst <= 0 {
		burst = 1
	}

	return &Client{
		client:   client,
		logger:   logger.Named("coingecko"),
		limiter:  rate.NewLimiter(limit, burst),
		validate: validator.New(),
	}
}

// doRequest waits for the rate limiter and executes a single attempt.
// Market data is never retried: a failed call simply yields no data for that call.
func (c *Client) doRequest(ctx context.Context, method, url string, req *resty.Request) (*resty.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter wait failed: %w", err)
	}

	c.logger.Debug("Executing request", zap.String("method", method), zap.String("url", c.client.BaseURL+url))
	resp, err := req.SetContext(ctx).Execute(method, url)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("request failed with status %s: %s", resp.Status(), resp.String())
	}
	return resp, nil
}

// Ping checks connectivity with the API.
func (c *Client) Ping(ctx context.Context) error {
	type pingResponse struct {
		GeckoSays string `json:"gecko_says"`
	}

	req := c.client.R().SetResult(&pingResponse{})
	if _, err := c.doRequest(ctx, "GET", "/ping", req); err != nil {
		return fmt.Errorf("failed to ping coingecko: %w", err)
	}
	return nil
}

// MarketsParams selects a page of the coins/markets endpoint.
type MarketsParams struct {
	VsCurrency string
	Page       int
	PerPage    int
	IDs        []string // optional; restricts the result to these coin ids
}

// MarketCoin is one record of the coins/markets endpoint.
type MarketCoin struct {
	ID                           string     `json:"id" validate:"required"`
	Symbol                       string     `json:"symbol" validate:"required"`
	Name                         string     `json:"name" validate:"required"`
	Image                        string     `json:"image"`
	CurrentPrice                 *float64   `json:"current_price" validate:"required"`
	MarketCap                    *float64   `json:"market_cap"`
	MarketCapRank                *int       `json:"market_cap_rank"`
	FullyDilutedValuation        *float64   `json:"fully_diluted_valuation"`
	TotalVolume                  *float64   `json:"total_volume"`
	High24h                      *float64   `json:"high_24h"`
	Low24h                       *float64   `json:"low_24h"`
	PriceChange24h               *float64   `json:"price_change_24h"`
	PriceChangePercentage24h     *float64   `json:"price_change_percentage_24h"`
	MarketCapChange24h           *float64   `json:"market_cap_change_24h"`
	MarketCapChangePercentage24h *float64   `json:"market_cap_change_percentage_24h"`
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
}

// CoinsMarkets fetches one page of coins ranked by market cap.
// Records failing validation are dropped; the rest of the page is returned.
func (c *Client) CoinsMarkets(ctx context.Context, params MarketsParams) ([]MarketCoin, error) {
	var coins []MarketCoin

	query := map[string]string{
		"vs_currency":             params.VsCurrency,
		"order":                   "market_cap_desc",
		"sparkline":               "false",
		"price_change_percentage": "24h",
	}
	if params.Page > 0 {
		query["page"] = strconv.Itoa(params.Page)
	}
	if params.PerPage > 0 {
		query["per_page"] = strconv.Itoa(params.PerPage)
	}
	if len(params.IDs) > 0 {
		query["ids"] = strings.Join(params.IDs, ",")
	}

	req := c.client.R().
		SetQueryParams(query).
		SetResult(&coins)

	if _, err := c.doRequest(ctx, "GET", "/coins/markets", req); err != nil {
		return nil, fmt.Errorf("failed to get coins markets page %d: %w", params.Page, err)
	}

	valid := coins[:0]
	for _, coin := range coins {
		if err := c.validate.Struct(coin); err != nil {
			c.logger.Warn("Dropping invalid market record", zap.String("id", coin.ID), zap.Error(err))
			continue
		}
		valid = append(valid, coin)
	}

	return valid, nil
}

// SimplePrice fetches the current price of each coin id in vsCurrency.
// The result is keyed by coin id, then by currency.
func (c *Client) SimplePrice(ctx context.Context, ids []string, vsCurrency string) (map[string]map[string]float64, error) {
	prices := make(map[string]map[string]float64)

	req := c.client.R().
		SetQueryParams(map[string]string{
			"ids":           strings.Join(ids, ","),
			"vs_currencies": vsCurrency,
		}).
		SetResult(&prices)

	if _, err := c.doRequest(ctx, "GET", "/simple/price", req); err != nil {
		return nil, fmt.Errorf("failed to get simple price: %w", err)
	}

	return prices, nil
}
