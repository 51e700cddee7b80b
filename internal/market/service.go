package market

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"crypto-portfolio-tracker/internal/coingecko"
	"crypto-portfolio-tracker/internal/config"
	"crypto-portfolio-tracker/internal/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	defaultCacheExpiry = 120 * time.Second
	insertBatchSize    = 100
)

// ErrNoPrice is returned when the API has no current price for a coin.
var ErrNoPrice = errors.New("no price available")

// Service serves market data from persisted cache tables, calling the
// external API only once a cache generation is older than the expiry.
type Service struct {
	db     *gorm.DB
	client coingecko.ClientInterface
	cfg    config.Market
	logger *zap.Logger
	now    func() time.Time
}

// NewService creates a market data service.
func NewService(db *gorm.DB, client coingecko.ClientInterface, cfg *config.Market, logger *zap.Logger) *Service {
	c := *cfg
	if c.CacheExpiry <= 0 {
		c.CacheExpiry = defaultCacheExpiry
	}
	if c.VsCurrency == "" {
		c.VsCurrency = "usd"
	}
	if c.PerPage <= 0 {
		c.PerPage = 250
	}
	if c.Pages <= 0 {
		c.Pages = 4
	}
	return &Service{
		db:     db,
		client: client,
		cfg:    c,
		logger: logger.Named("market"),
		now:    time.Now,
	}
}

// VsCurrency is the quote currency every price is expressed in.
func (s *Service) VsCurrency() string {
	return s.cfg.VsCurrency
}

func (s *Service) fresh(refreshedAt time.Time) bool {
	return s.now().Sub(refreshedAt) < s.cfg.CacheExpiry
}

// Snapshot returns the cached top coins, refreshing them from the API when
// the newest stored row is older than the cache expiry.
func (s *Service) Snapshot(ctx context.Context) ([]models.MarketRow, error) {
	db := s.db.WithContext(ctx)

	var newest models.MarketRow
	res := db.Order("refreshed_at desc").Limit(1).Find(&newest)
	if res.Error != nil {
		return nil, fmt.Errorf("failed to read snapshot age: %w", res.Error)
	}

	if res.RowsAffected > 0 && s.fresh(newest.RefreshedAt) {
		cacheHitsTotal.WithLabelValues(cacheSnapshot).Inc()
		s.logger.Debug("Using cached market snapshot", zap.Time("refreshed_at", newest.RefreshedAt))
		return s.storedSnapshot(db)
	}

	cacheMissesTotal.WithLabelValues(cacheSnapshot).Inc()
	s.logger.Info("Market snapshot expired, fetching from API")

	coins := s.fetchMarkets(ctx)
	if len(coins) == 0 {
		s.logger.Warn("No market data fetched, serving stale snapshot")
		return s.storedSnapshot(db)
	}

	refreshedAt := s.now()
	rows := make([]models.MarketRow, 0, len(coins))
	for _, coin := range coins {
		rows = append(rows, rowFromCoin(coin, refreshedAt))
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.MarketRow{}).Error; err != nil {
			return err
		}
		return tx.CreateInBatches(rows, insertBatchSize).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to store market snapshot: %w", err)
	}

	s.logger.Info("Market snapshot refreshed", zap.Int("coins", len(rows)))
	return rows, nil
}

func (s *Service) storedSnapshot(db *gorm.DB) ([]models.MarketRow, error) {
	var rows []models.MarketRow
	if err := db.Order("id asc").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to read market snapshot: %w", err)
	}
	return rows, nil
}

// fetchMarkets reads pages until one is empty or fails. Pages fetched before
// a failure are kept; the failed page is not retried.
func (s *Service) fetchMarkets(ctx context.Context) []coingecko.MarketCoin {
	var all []coingecko.MarketCoin
	for page := 1; page <= s.cfg.Pages; page++ {
		coins, err := s.client.CoinsMarkets(ctx, coingecko.MarketsParams{
			VsCurrency: s.cfg.VsCurrency,
			Page:       page,
			PerPage:    s.cfg.PerPage,
		})
		if err != nil {
			fetchErrorsTotal.WithLabelValues(endpointMarkets).Inc()
			s.logger.Error("Error fetching market page", zap.Int("page", page), zap.Error(err))
			break
		}
		if len(coins) == 0 {
			break
		}
		all = append(all, coins...)
	}
	return all
}

func rowFromCoin(c coingecko.MarketCoin, refreshedAt time.Time) models.MarketRow {
	row := models.MarketRow{
		CoinID:                       c.ID,
		Symbol:                       c.Symbol,
		Name:                         c.Name,
		Image:                        c.Image,
		MarketCap:                    c.MarketCap,
		MarketCapRank:                c.MarketCapRank,
		FullyDilutedValuation:        c.FullyDilutedValuation,
		TotalVolume:                  c.TotalVolume,
		High24h:                      c.High24h,
		Low24h:                       c.Low24h,
		PriceChange24h:               c.PriceChange24h,
		PriceChangePercentage24h:     c.PriceChangePercentage24h,
		MarketCapChange24h:           c.MarketCapChange24h,
		MarketCapChangePercentage24h: c.MarketCapChangePercentage24h,
		CirculatingSupply:            c.CirculatingSupply,
		TotalSupply:                  c.TotalSupply,
		MaxSupply:                    c.MaxSupply,
		Ath:                          c.Ath,
		AthChangePercentage:          c.AthChangePercentage,
		AthDate:                      c.AthDate,
		Atl:                          c.Atl,
		AtlChangePercentage:          c.AtlChangePercentage,
		AtlDate:                      c.AtlDate,
		LastUpdated:                  c.LastUpdated,
		RefreshedAt:                  refreshedAt,
	}
	if c.CurrentPrice != nil {
		row.CurrentPrice = *c.CurrentPrice
	}
	return row
}

// CoinID derives the API coin id from a display name, e.g. "Shiba Inu" -> "shiba-inu".
func CoinID(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "-")
}

// coinsKey is the cache key for a set of held coins: lowercased, de-duplicated,
// sorted and comma-joined, so any change of holdings yields a new key.
func coinsKey(coinIDs []string) (string, []string) {
	seen := make(map[string]struct{}, len(coinIDs))
	ids := make([]string, 0, len(coinIDs))
	for _, id := range coinIDs {
		id = strings.ToLower(strings.TrimSpace(id))
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return strings.Join(ids, ","), ids
}

// GainersLosers returns the owner's held coins ranked by 24h change, best
// first for gainers and worst first for losers. API failures yield two empty
// lists, which callers treat the same as "no movers".
func (s *Service) GainersLosers(ctx context.Context, userID uint, coinIDs []string) (gainers, losers []models.Mover) {
	gainers, losers = []models.Mover{}, []models.Mover{}

	key, ids := coinsKey(coinIDs)
	if len(ids) == 0 {
		return
	}
	db := s.db.WithContext(ctx)
	l := s.logger.With(zap.Uint("user_id", userID), zap.String("coins", key))

	var entry models.GainersLosersEntry
	res := db.Where("user_id = ? AND owned_coins = ?", userID, key).Limit(1).Find(&entry)
	if res.Error != nil {
		l.Warn("Failed to read gainers/losers cache", zap.Error(res.Error))
	} else if res.RowsAffected > 0 && s.fresh(entry.RefreshedAt) {
		cacheHitsTotal.WithLabelValues(cacheGainersLosers).Inc()
		l.Debug("Using cached gainers/losers")
		return nonNil(entry.Gainers), nonNil(entry.Losers)
	}

	cacheMissesTotal.WithLabelValues(cacheGainersLosers).Inc()
	l.Info("Fetching gainers and losers from API")

	coins, err := s.client.CoinsMarkets(ctx, coingecko.MarketsParams{
		VsCurrency: s.cfg.VsCurrency,
		Page:       1,
		PerPage:    len(ids),
		IDs:        ids,
	})
	if err != nil {
		fetchErrorsTotal.WithLabelValues(endpointMarkets).Inc()
		l.Error("Failed to fetch gainers and losers", zap.Error(err))
		return
	}

	movers := make([]models.Mover, 0, len(coins))
	for _, c := range coins {
		if c.PriceChangePercentage24h == nil {
			continue
		}
		movers = append(movers, moverFromCoin(c))
	}

	gainers = append(gainers, movers...)
	sort.SliceStable(gainers, func(i, j int) bool {
		return gainers[i].PriceChangePercentage24h > gainers[j].PriceChangePercentage24h
	})
	losers = append(losers, movers...)
	sort.SliceStable(losers, func(i, j int) bool {
		return losers[i].PriceChangePercentage24h < losers[j].PriceChangePercentage24h
	})

	entry = models.GainersLosersEntry{
		UserID:      userID,
		Coins:       key,
		Gainers:     gainers,
		Losers:      losers,
		RefreshedAt: s.now(),
	}
	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ? AND owned_coins = ?", userID, key).Delete(&models.GainersLosersEntry{}).Error; err != nil {
			return err
		}
		return tx.Create(&entry).Error
	})
	if err != nil {
		l.Warn("Failed to cache gainers/losers", zap.Error(err))
	}

	return gainers, losers
}

func moverFromCoin(c coingecko.MarketCoin) models.Mover {
	m := models.Mover{
		ID:     c.ID,
		Symbol: c.Symbol,
		Name:   c.Name,
		Image:  c.Image,
	}
	if c.CurrentPrice != nil {
		m.CurrentPrice = *c.CurrentPrice
	}
	if c.MarketCapRank != nil {
		m.MarketCapRank = *c.MarketCapRank
	}
	if c.PriceChangePercentage24h != nil {
		m.PriceChangePercentage24h = *c.PriceChangePercentage24h
	}
	if c.MarketCap != nil {
		m.MarketCap = *c.MarketCap
	}
	if c.TotalVolume != nil {
		m.TotalVolume = *c.TotalVolume
	}
	return m
}

func nonNil(m []models.Mover) []models.Mover {
	if m == nil {
		return []models.Mover{}
	}
	return m
}

// CurrentPrice looks up the live price of a single coin by display name.
// It bypasses the snapshot cache. ErrNoPrice covers both API failures and
// coins the API does not know.
func (s *Service) CurrentPrice(ctx context.Context, name string) (float64, error) {
	id := CoinID(name)
	prices, err := s.client.SimplePrice(ctx, []string{id}, s.cfg.VsCurrency)
	if err != nil {
		fetchErrorsTotal.WithLabelValues(endpointSimplePrice).Inc()
		s.logger.Warn("Price lookup failed", zap.String("coin", id), zap.Error(err))
		return 0, fmt.Errorf("%s: %w", id, ErrNoPrice)
	}

	price, ok := prices[id][s.cfg.VsCurrency]
	if !ok {
		return 0, fmt.Errorf("%s in %s: %w", id, s.cfg.VsCurrency, ErrNoPrice)
	}
	return price, nil
}
