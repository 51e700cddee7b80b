package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"crypto-portfolio-tracker/internal/alerts"
	"crypto-portfolio-tracker/internal/audit"
	"crypto-portfolio-tracker/internal/auth"
	"crypto-portfolio-tracker/internal/coingecko"
	"crypto-portfolio-tracker/internal/coingecko/coingeckotest"
	"crypto-portfolio-tracker/internal/config"
	"crypto-portfolio-tracker/internal/database/dbtest"
	"crypto-portfolio-tracker/internal/market"
	"crypto-portfolio-tracker/internal/models"
	"crypto-portfolio-tracker/internal/portfolio"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type testEnv struct {
	db        *gorm.DB
	client    *coingeckotest.MockClient
	handler   http.Handler
	evaluator *alerts.Evaluator
}

func setupServer(t *testing.T) *testEnv {
	gin.SetMode(gin.TestMode)
	db := dbtest.New(t)
	log := zap.NewNop()
	client := new(coingeckotest.MockClient)

	marketSvc := market.NewService(db, client, &config.Market{VsCurrency: "usd", PerPage: 250, Pages: 1, CacheExpiry: time.Minute}, log)
	assets := portfolio.NewStore(db)
	alertStore := alerts.NewStore(db)

	svc := Services{
		Auth:      auth.NewService(db, &config.Auth{JWTSecret: "secret", TokenTTL: time.Hour, AdminUsers: []string{"admin"}}, log),
		Audit:     audit.NewRecorder(db, log),
		Assets:    assets,
		Portfolio: portfolio.NewService(assets, marketSvc, log),
		Market:    marketSvc,
		Alerts:    alertStore,
	}
	server := NewServer(&config.Server{Port: 0}, svc, log)

	return &testEnv{
		db:        db,
		client:    client,
		handler:   server.Handler(),
		evaluator: alerts.NewEvaluator(alertStore, marketSvc, alerts.NewNotifier(db, log, alerts.NewLogSender(log)), log),
	}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, req)
	return w
}

func (e *testEnv) signUp(t *testing.T, username string) string {
	t.Helper()
	w := e.do(t, http.MethodPost, "/api/v1/auth/register", "", gin.H{
		"username": username, "email": username + "@example.com", "password": "password123",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = e.do(t, http.MethodPost, "/api/v1/auth/login", "", gin.H{"username": username, "password": "password123"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp struct {
		AccessToken string `json:"access_token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.AccessToken
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestHealthAndMetrics(t *testing.T) {
	env := setupServer(t)

	w := env.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	w = env.do(t, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, `market_cache_hits_total{cache="snapshot"}`)
	assert.Contains(t, body, `market_cache_misses_total{cache="gainers_losers"}`)
	assert.Contains(t, body, `market_fetch_errors_total{endpoint="simple/price"}`)
}

func TestAuthRoutes(t *testing.T) {
	env := setupServer(t)
	token := env.signUp(t, "alice")

	t.Run("Duplicate registration", func(t *testing.T) {
		w := env.do(t, http.MethodPost, "/api/v1/auth/register", "", gin.H{
			"username": "alice", "email": "alice@example.com", "password": "password123",
		})
		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("Bad password is audited", func(t *testing.T) {
		w := env.do(t, http.MethodPost, "/api/v1/auth/login", "", gin.H{"username": "alice", "password": "nope"})
		assert.Equal(t, http.StatusUnauthorized, w.Code)

		var failures int64
		env.db.Model(&models.AuditEvent{}).Where("event_type = ? AND status = ?", audit.EventLogin, audit.StatusFailure).Count(&failures)
		assert.Equal(t, int64(1), failures)
	})

	t.Run("Private routes need a token", func(t *testing.T) {
		assert.Equal(t, http.StatusUnauthorized, env.do(t, http.MethodGet, "/api/v1/portfolio/assets", "", nil).Code)
		assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/api/v1/portfolio/assets", token, nil).Code)
	})

	t.Run("Admin routes need the capability", func(t *testing.T) {
		assert.Equal(t, http.StatusForbidden, env.do(t, http.MethodGet, "/api/v1/admin/users", token, nil).Code)

		adminToken := env.signUp(t, "admin")
		w := env.do(t, http.MethodGet, "/api/v1/admin/audit", adminToken, nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.NotEmpty(t, decode[[]models.AuditEvent](t, w))
	})

	t.Run("Closed account loses access", func(t *testing.T) {
		bobToken := env.signUp(t, "bob")
		assert.Equal(t, http.StatusNoContent, env.do(t, http.MethodDelete, "/api/v1/account", bobToken, nil).Code)
		assert.Equal(t, http.StatusUnauthorized, env.do(t, http.MethodGet, "/api/v1/portfolio/assets", bobToken, nil).Code)
	})
}

func TestPortfolioRoutes(t *testing.T) {
	env := setupServer(t)
	token := env.signUp(t, "alice")
	env.client.On("CoinsMarkets", mock.Anything, mock.MatchedBy(func(p coingecko.MarketsParams) bool { return len(p.IDs) == 0 })).
		Return([]coingecko.MarketCoin{
			coingeckotest.Coin("bitcoin", "btc", "Bitcoin", 50000, 1, coingeckotest.Float(2.5)),
			coingeckotest.Coin("ethereum", "eth", "Ethereum", 3000, 2, coingeckotest.Float(-1)),
			coingeckotest.Coin("tether", "usdt", "Tether", 1, 3, nil),
		}, nil)

	w := env.do(t, http.MethodPost, "/api/v1/portfolio/assets", token, gin.H{"name": "Bitcoin", "symbol": "btc", "amount": 2})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	asset := decode[models.Asset](t, w)
	assert.Equal(t, "BTC", asset.Symbol)

	t.Run("Duplicate symbol", func(t *testing.T) {
		w := env.do(t, http.MethodPost, "/api/v1/portfolio/assets", token, gin.H{"name": "Bitcoin", "symbol": "BTC", "amount": 1})
		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("Valuation", func(t *testing.T) {
		w := env.do(t, http.MethodGet, "/api/v1/portfolio", token, nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		v := decode[portfolio.Valuation](t, w)
		assert.Equal(t, 100000.0, v.Total)
		require.Len(t, v.Lines, 1)
		assert.Equal(t, 1, v.Lines[0].Rank)
	})

	t.Run("Unowned coins", func(t *testing.T) {
		w := env.do(t, http.MethodGet, "/api/v1/portfolio/unowned?limit=2", token, nil)
		require.Equal(t, http.StatusOK, w.Code)

		resp := decode[struct {
			Coins []models.MarketRow `json:"coins"`
		}](t, w)
		require.Len(t, resp.Coins, 1)
		assert.Equal(t, "ethereum", resp.Coins[0].CoinID)
	})

	t.Run("Market search", func(t *testing.T) {
		w := env.do(t, http.MethodGet, "/api/v1/market?search=teth", token, nil)
		require.Equal(t, http.StatusOK, w.Code)

		p := decode[market.Page](t, w)
		assert.Equal(t, 1, p.Total)
		assert.Equal(t, "tether", p.Coins[0].CoinID)
	})

	t.Run("Market rejects bad paging", func(t *testing.T) {
		for _, q := range []string{"per_page=abc", "per_page=0", "page=-1", "per_page=99999999999999999999"} {
			w := env.do(t, http.MethodGet, "/api/v1/market?"+q, token, nil)
			assert.Equal(t, http.StatusBadRequest, w.Code, q)
		}

		w := env.do(t, http.MethodGet, "/api/v1/market?per_page=9223372036854775807", token, nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, 250, decode[market.Page](t, w).PerPage)
	})

	t.Run("Asset search and letter filter", func(t *testing.T) {
		w := env.do(t, http.MethodGet, "/api/v1/portfolio/assets?query=itc", token, nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Len(t, decode[[]models.Asset](t, w), 1)

		w = env.do(t, http.MethodGet, "/api/v1/portfolio/assets?letter=e", token, nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, decode[[]models.Asset](t, w))

		for _, letter := range []string{"", "ab", "7"} {
			w = env.do(t, http.MethodGet, "/api/v1/portfolio/assets?letter="+letter, token, nil)
			assert.Equal(t, http.StatusBadRequest, w.Code, letter)
		}
	})

	t.Run("Snapshot is fetched once across requests", func(t *testing.T) {
		env.client.AssertNumberOfCalls(t, "CoinsMarkets", 1)
	})

	t.Run("Movers", func(t *testing.T) {
		env.client.On("CoinsMarkets", mock.Anything, mock.MatchedBy(func(p coingecko.MarketsParams) bool {
			return len(p.IDs) == 1 && p.IDs[0] == "bitcoin"
		})).Return([]coingecko.MarketCoin{
			coingeckotest.Coin("bitcoin", "btc", "Bitcoin", 50000, 1, coingeckotest.Float(2.5)),
		}, nil)

		w := env.do(t, http.MethodGet, "/api/v1/portfolio/movers", token, nil)
		require.Equal(t, http.StatusOK, w.Code)

		resp := decode[struct {
			Gainers []models.Mover `json:"gainers"`
			Losers  []models.Mover `json:"losers"`
		}](t, w)
		require.Len(t, resp.Gainers, 1)
		assert.Equal(t, 2.5, resp.Gainers[0].PriceChangePercentage24h)
	})

	t.Run("Outliers", func(t *testing.T) {
		w := env.do(t, http.MethodGet, "/api/v1/portfolio/outliers", token, nil)
		require.Equal(t, http.StatusOK, w.Code)

		report := decode[market.OutlierReport](t, w)
		assert.Empty(t, report.Outliers)
		require.Len(t, report.Inliers, 1)
		assert.Equal(t, "bitcoin", report.Inliers[0].ID)
		// served from the movers cache
		env.client.AssertNumberOfCalls(t, "CoinsMarkets", 2)
	})

	t.Run("Transactions and summary", func(t *testing.T) {
		w := env.do(t, http.MethodPost, "/api/v1/transactions", token, gin.H{"name": "Bitcoin", "symbol": "BTC", "amount": 2, "price": 80000})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

		w = env.do(t, http.MethodGet, "/api/v1/portfolio/summary", token, nil)
		require.Equal(t, http.StatusOK, w.Code)
		s := decode[portfolio.Summary](t, w)
		assert.Equal(t, 80000.0, s.Invested)
		assert.Equal(t, 25.0, s.ROI)
	})

	t.Run("Update and delete asset", func(t *testing.T) {
		path := fmt.Sprintf("/api/v1/portfolio/assets/%d", asset.ID)

		w := env.do(t, http.MethodPatch, path, token, gin.H{"amount": 3})
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, 3.0, decode[models.Asset](t, w).Amount)

		assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodPatch, path, token, gin.H{}).Code)
		assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodDelete, "/api/v1/portfolio/assets/abc", token, nil).Code)
		assert.Equal(t, http.StatusNoContent, env.do(t, http.MethodDelete, path, token, nil).Code)
		assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodDelete, path, token, nil).Code)
	})
}

func TestAlertRoutes(t *testing.T) {
	ctx := context.Background()
	env := setupServer(t)
	token := env.signUp(t, "alice")
	other := env.signUp(t, "mallory")

	require.Equal(t, http.StatusCreated,
		env.do(t, http.MethodPost, "/api/v1/portfolio/assets", token, gin.H{"name": "Bitcoin", "symbol": "BTC", "amount": 1}).Code)

	t.Run("Rejects unknown types and coins not held", func(t *testing.T) {
		w := env.do(t, http.MethodPost, "/api/v1/alerts", token, gin.H{"name": "Bitcoin", "alert_type": "below", "threshold": 1})
		assert.Equal(t, http.StatusBadRequest, w.Code)

		w = env.do(t, http.MethodPost, "/api/v1/alerts", token, gin.H{"name": "Dogecoin", "alert_type": "more", "threshold": 1})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	w := env.do(t, http.MethodPost, "/api/v1/alerts", token, gin.H{"name": "Bitcoin", "alert_type": "less", "threshold": 40000})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	alert := decode[models.Alert](t, w)
	alertPath := fmt.Sprintf("/api/v1/alerts/%d", alert.ID)

	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, alertPath, other, nil).Code)
	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, alertPath, token, nil).Code)

	env.client.On("SimplePrice", mock.Anything, []string{"bitcoin"}, "usd").
		Return(map[string]map[string]float64{"bitcoin": {"usd": 35000}}, nil)
	require.NoError(t, env.evaluator.Run(ctx))

	w = env.do(t, http.MethodGet, "/api/v1/notifications/unread-count", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(1), decode[map[string]int64](t, w)["unread"])

	w = env.do(t, http.MethodGet, "/api/v1/notifications?unread=true", token, nil)
	notifications := decode[[]models.Notification](t, w)
	require.Len(t, notifications, 1)
	assert.Contains(t, notifications[0].Message, "below 40000")

	readPath := fmt.Sprintf("/api/v1/notifications/%d/read", notifications[0].ID)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodPost, readPath, other, nil).Code)
	assert.Equal(t, http.StatusNoContent, env.do(t, http.MethodPost, readPath, token, nil).Code)

	w = env.do(t, http.MethodGet, "/api/v1/notifications/unread-count", token, nil)
	assert.Equal(t, int64(0), decode[map[string]int64](t, w)["unread"])

	assert.Equal(t, http.StatusNoContent, env.do(t, http.MethodDelete, alertPath, token, nil).Code)
	assert.Empty(t, decode[[]models.Alert](t, env.do(t, http.MethodGet, "/api/v1/alerts", token, nil)))
}
