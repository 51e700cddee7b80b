// Package dbtest opens isolated in-memory databases for tests.
package dbtest

import (
	"fmt"
	"testing"

	"crypto-portfolio-tracker/internal/config"
	"crypto-portfolio-tracker/internal/database"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// New returns a migrated sqlite database private to the calling test.
func New(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := database.NewDatabase(&config.Database{Driver: "sqlite", DSN: dsn})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// A single connection keeps the in-memory database alive and serialises writers.
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	return db
}
