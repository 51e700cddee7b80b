package alerts

import (
	"context"

	"crypto-portfolio-tracker/internal/models"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

var evaluationsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "alert_evaluations_total",
		Help: "Total number of alert evaluations by outcome",
	},
	[]string{"outcome"},
)

func init() {
	prometheus.MustRegister(evaluationsTotal)
}

// PriceFinder looks up the live price of one coin by display name.
type PriceFinder interface {
	CurrentPrice(ctx context.Context, name string) (float64, error)
}

// Evaluator checks every active alert against the live price.
type Evaluator struct {
	store    *Store
	prices   PriceFinder
	notifier *Notifier
	logger   *zap.Logger
}

func NewEvaluator(store *Store, prices PriceFinder, notifier *Notifier, logger *zap.Logger) *Evaluator {
	return &Evaluator{
		store:    store,
		prices:   prices,
		notifier: notifier,
		logger:   logger.Named("evaluator"),
	}
}

// Name identifies the job in scheduler logs.
func (e *Evaluator) Name() string {
	return "alert-check"
}

// Run performs one evaluation pass. Only failing to load the alerts fails the
// pass; problems with a single alert are logged and the pass moves on.
func (e *Evaluator) Run(ctx context.Context) error {
	alerts, err := e.store.ActiveAlerts(ctx)
	if err != nil {
		return err
	}
	e.logger.Debug("Checking alerts", zap.Int("active", len(alerts)))

	for _, alert := range alerts {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		outcome, err := e.evaluate(ctx, alert)
		if err != nil {
			outcome = "error"
			e.logger.Error("Error processing alert", zap.Uint("alert_id", alert.ID), zap.Error(err))
		}
		evaluationsTotal.WithLabelValues(outcome).Inc()
	}
	return nil
}

func (e *Evaluator) evaluate(ctx context.Context, alert models.Alert) (string, error) {
	l := e.logger.With(zap.Uint("alert_id", alert.ID), zap.String("name", alert.Name))

	held, err := e.store.HoldsAsset(ctx, alert.UserID, alert.Name)
	if err == nil && !held && alert.Symbol != "" && alert.Symbol != alert.Name {
		held, err = e.store.HoldsAsset(ctx, alert.UserID, alert.Symbol)
	}
	if err != nil {
		return "", err
	}
	if !held {
		if err := e.store.Deactivate(ctx, alert.ID); err != nil {
			return "", err
		}
		l.Info("Asset no longer held, alert deactivated")
		return "deactivated", nil
	}

	price, err := e.prices.CurrentPrice(ctx, alert.Name)
	if err != nil {
		l.Warn("No price data available", zap.Error(err))
		return "no_price", nil
	}

	if !Triggered(alert, price) {
		return "not_triggered", nil
	}

	saved, err := e.notifier.Save(ctx, alert, price)
	if err != nil {
		return "", err
	}
	if saved == nil {
		l.Debug("Notification suppressed", zap.Float64("price", price))
		return "suppressed", nil
	}

	if err := e.notifier.Send(ctx, alert, *saved); err != nil {
		l.Warn("Failed to send notification", zap.Error(err))
	}
	l.Info("Notification saved", zap.Uint("notification_id", saved.ID), zap.Float64("price", price))
	return "notified", nil
}
