package alerts

import (
	"context"
	"fmt"
	"strconv"

	"crypto-portfolio-tracker/internal/models"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Sender emits a saved notification on a side channel.
type Sender interface {
	Send(ctx context.Context, alert models.Alert, n models.Notification) error
}

// Notifier persists notifications for triggered alerts and fans them out to
// the configured senders.
type Notifier struct {
	db      *gorm.DB
	senders []Sender
	logger  *zap.Logger
}

func NewNotifier(db *gorm.DB, logger *zap.Logger, senders ...Sender) *Notifier {
	return &Notifier{
		db:      db,
		senders: senders,
		logger:  logger.Named("notifier"),
	}
}

func formatAmount(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// Message renders the human-readable text of a notification.
func Message(alert models.Alert, price float64) string {
	direction := "above"
	if alert.Type == models.AlertTypeLess {
		direction = "below"
	}
	return fmt.Sprintf("%s is now %s %s USD (current price: %s USD).",
		alert.Name, direction, formatAmount(alert.Threshold), formatAmount(price))
}

// Save inserts a notification for alert at price unless the newest unread
// notification of the alert already covers it. It returns nil when the
// notification was suppressed.
func (n *Notifier) Save(ctx context.Context, alert models.Alert, price float64) (*models.Notification, error) {
	var saved *models.Notification
	err := n.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		last, err := lastUnread(tx, alert.ID)
		if err != nil {
			return fmt.Errorf("failed to read last unread notification: %w", err)
		}

		var lastPrice *float64
		if last != nil {
			lastPrice = &last.Price
		}
		if !Decide(alert, price, lastPrice).Notify() {
			return nil
		}

		row := models.Notification{
			UserID:  alert.UserID,
			AlertID: alert.ID,
			Message: Message(alert, price),
			Price:   price,
		}
		if err := tx.Create(&row).Error; err != nil {
			return fmt.Errorf("failed to insert notification: %w", err)
		}
		saved = &row
		return nil
	})
	if err != nil {
		return nil, err
	}
	return saved, nil
}

// Send hands a saved notification to every sender. All senders are tried;
// their errors are combined.
func (n *Notifier) Send(ctx context.Context, alert models.Alert, notification models.Notification) error {
	var err error
	for _, s := range n.senders {
		err = multierr.Append(err, s.Send(ctx, alert, notification))
	}
	return err
}
