package portfolio

import (
	"context"
	"fmt"
	"time"

	"crypto-portfolio-tracker/internal/models"

	"go.uber.org/zap"
)

const dateLayout = "2006-01-02"

// SnapshotSource provides the current market snapshot.
type SnapshotSource interface {
	Snapshot(ctx context.Context) ([]models.MarketRow, error)
}

// Service values portfolios against the cached market snapshot.
type Service struct {
	store  *Store
	market SnapshotSource
	logger *zap.Logger
	now    func() time.Time
}

func NewService(store *Store, market SnapshotSource, logger *zap.Logger) *Service {
	return &Service{
		store:  store,
		market: market,
		logger: logger.Named("portfolio"),
		now:    time.Now,
	}
}

// Valuation prices the owner's holdings.
func (s *Service) Valuation(ctx context.Context, userID uint) (Valuation, error) {
	assets, err := s.store.ListAssets(ctx, userID, AssetFilter{})
	if err != nil {
		return Valuation{}, err
	}
	snapshot, err := s.market.Snapshot(ctx)
	if err != nil {
		return Valuation{}, fmt.Errorf("failed to load market snapshot: %w", err)
	}
	return Value(assets, snapshot), nil
}

// Summary values the portfolio, stores today's figure and compares it with
// the previous stored day.
func (s *Service) Summary(ctx context.Context, userID uint) (Summary, error) {
	v, err := s.Valuation(ctx, userID)
	if err != nil {
		return Summary{}, err
	}
	txs, err := s.store.ListTransactions(ctx, userID)
	if err != nil {
		return Summary{}, err
	}

	today := s.now().UTC().Format(dateLayout)
	previous, err := s.store.PreviousDaily(ctx, userID, today)
	if err != nil {
		return Summary{}, err
	}
	if err := s.store.RecordDaily(ctx, userID, today, v.Total); err != nil {
		// the summary is still valid without the history row
		s.logger.Warn("Failed to record daily value", zap.Uint("user_id", userID), zap.Error(err))
	}

	return Summarize(today, v.Total, txs, previous), nil
}
