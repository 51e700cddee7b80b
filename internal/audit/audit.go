package audit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"crypto-portfolio-tracker/internal/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	EventLogin    = "login_attempt"
	EventRegister = "registration"
	EventClose    = "account_closure"

	StatusSuccess = "success"
	StatusFailure = "failure"

	defaultInitialWait = 100 * time.Millisecond
	defaultAttempts    = 5
)

// Recorder writes audit events, retrying when the database is busy.
type Recorder struct {
	db          *gorm.DB
	logger      *zap.Logger
	initialWait time.Duration
	attempts    int
}

func NewRecorder(db *gorm.DB, logger *zap.Logger) *Recorder {
	return &Recorder{
		db:          db,
		logger:      logger.Named("audit"),
		initialWait: defaultInitialWait,
		attempts:    defaultAttempts,
	}
}

func isBusy(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "busy")
}

// Record inserts one audit event. Lock contention is retried with exponential
// backoff; any other error is returned at once.
func (r *Recorder) Record(ctx context.Context, event *models.AuditEvent) error {
	wait := r.initialWait
	var err error
	for attempt := 1; attempt <= r.attempts; attempt++ {
		err = r.db.WithContext(ctx).Create(event).Error
		if err == nil {
			return nil
		}
		if !isBusy(err) {
			return fmt.Errorf("failed to record audit event: %w", err)
		}
		if attempt == r.attempts {
			break
		}

		r.logger.Warn("Database is locked, retrying audit write",
			zap.Duration("wait", wait), zap.Int("attempts_left", r.attempts-attempt))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
		wait *= 2
	}

	r.logger.Error("Giving up on audit write", zap.String("event", event.EventType), zap.Error(err))
	return fmt.Errorf("failed to record audit event after %d attempts: %w", r.attempts, err)
}

// Recent returns the newest audit events, at most limit of them.
func (r *Recorder) Recent(ctx context.Context, limit int) ([]models.AuditEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	var events []models.AuditEvent
	if err := r.db.WithContext(ctx).Order("created_at desc, id desc").Limit(limit).Find(&events).Error; err != nil {
		return nil, fmt.Errorf("failed to list audit events: %w", err)
	}
	return events, nil
}
