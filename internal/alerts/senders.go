package alerts

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"crypto-portfolio-tracker/internal/models"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// LogSender writes each notification to the application log.
type LogSender struct {
	logger *zap.Logger
}

func NewLogSender(logger *zap.Logger) *LogSender {
	return &LogSender{logger: logger.Named("alert")}
}

func (s *LogSender) Send(_ context.Context, alert models.Alert, n models.Notification) error {
	s.logger.Info("Alert triggered",
		zap.String("cryptocurrency", alert.Symbol),
		zap.Float64("price", n.Price),
		zap.Float64("threshold", alert.Threshold),
		zap.String("type", alert.Type),
		zap.Uint("user_id", alert.UserID),
	)
	return nil
}

// Publisher is the subset of the redis client used to publish messages.
type Publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// RedisSender publishes notifications as JSON on a redis channel.
type RedisSender struct {
	client  Publisher
	channel string
}

func NewRedisSender(client Publisher, channel string) *RedisSender {
	return &RedisSender{client: client, channel: channel}
}

type notificationMessage struct {
	NotificationID uint      `json:"notification_id"`
	AlertID        uint      `json:"alert_id"`
	UserID         uint      `json:"user_id"`
	Cryptocurrency string    `json:"cryptocurrency"`
	AlertType      string    `json:"alert_type"`
	Threshold      float64   `json:"threshold"`
	Price          float64   `json:"current_price"`
	Message        string    `json:"message"`
	CreatedAt      time.Time `json:"created_at"`
}

func (s *RedisSender) Send(ctx context.Context, alert models.Alert, n models.Notification) error {
	payload, err := json.Marshal(notificationMessage{
		NotificationID: n.ID,
		AlertID:        alert.ID,
		UserID:         alert.UserID,
		Cryptocurrency: alert.Symbol,
		AlertType:      alert.Type,
		Threshold:      alert.Threshold,
		Price:          n.Price,
		Message:        n.Message,
		CreatedAt:      n.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("failed to encode notification: %w", err)
	}
	if err := s.client.Publish(ctx, s.channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish notification to %s: %w", s.channel, err)
	}
	return nil
}
