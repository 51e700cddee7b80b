package alerts

import (
	"context"
	"testing"

	"crypto-portfolio-tracker/internal/database/dbtest"
	"crypto-portfolio-tracker/internal/errs"
	"crypto-portfolio-tracker/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestStore_Alerts(t *testing.T) {
	ctx := context.Background()
	db := dbtest.New(t)
	store := NewStore(db)
	require.NoError(t, db.Create(&models.Asset{UserID: 1, Name: "Bitcoin", Symbol: "BTC", Amount: 1}).Error)

	t.Run("Create requires a held coin", func(t *testing.T) {
		err := store.CreateAlert(ctx, &models.Alert{UserID: 1, Name: "Dogecoin", Type: "more", Threshold: 1})
		assert.ErrorIs(t, err, errs.ErrInvalidInput)
	})

	t.Run("Create rejects unknown types", func(t *testing.T) {
		err := store.CreateAlert(ctx, &models.Alert{UserID: 1, Name: "Bitcoin", Type: "below", Threshold: 1})
		assert.ErrorIs(t, err, errs.ErrInvalidInput)
	})

	alert := &models.Alert{UserID: 1, Name: "Bitcoin", Type: "MORE", Threshold: 70000}
	require.NoError(t, store.CreateAlert(ctx, alert))
	assert.Equal(t, models.AlertTypeMore, alert.Type)
	assert.Equal(t, models.AlertStatusActive, alert.Status)

	t.Run("Get is scoped to the owner", func(t *testing.T) {
		_, err := store.GetAlert(ctx, 2, alert.ID)
		assert.ErrorIs(t, err, errs.ErrNotFound)

		got, err := store.GetAlert(ctx, 1, alert.ID)
		require.NoError(t, err)
		assert.Equal(t, 70000.0, got.Threshold)
	})

	t.Run("Notifications lifecycle", func(t *testing.T) {
		notifier := NewNotifier(db, zap.NewNop())
		n, err := notifier.Save(ctx, *alert, 71000)
		require.NoError(t, err)

		count, err := store.UnreadCount(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)

		assert.ErrorIs(t, store.MarkRead(ctx, 2, n.ID), errs.ErrNotFound)
		require.NoError(t, store.MarkRead(ctx, 1, n.ID))

		unread, err := store.ListNotifications(ctx, 1, true)
		require.NoError(t, err)
		assert.Empty(t, unread)
		all, err := store.ListNotifications(ctx, 1, false)
		require.NoError(t, err)
		assert.Len(t, all, 1)
	})

	t.Run("Delete removes the alert and its notifications", func(t *testing.T) {
		require.NoError(t, store.DeleteAlert(ctx, 1, alert.ID))
		assert.ErrorIs(t, store.DeleteAlert(ctx, 1, alert.ID), errs.ErrNotFound)

		all, err := store.ListNotifications(ctx, 1, false)
		require.NoError(t, err)
		assert.Empty(t, all)
	})
}
