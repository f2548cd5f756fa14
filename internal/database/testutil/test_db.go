// Package testutil provides throwaway databases for package tests.
package testutil

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/agentdesk/internal/database"
)

// TestDBOption customises MustOpenTestDB.
type TestDBOption func(*database.Config, *bool)

// WithAutoMigrate migrates the identity schema after opening.
func WithAutoMigrate() TestDBOption {
	return func(_ *database.Config, migrate *bool) {
		*migrate = true
	}
}

// WithSQLLogger logs every statement to log, which is handy with zaptest.
func WithSQLLogger(log *zap.Logger) TestDBOption {
	return func(cfg *database.Config, _ *bool) {
		cfg.Logger = log
		cfg.LogSQL = log != nil
	}
}

// MustOpenTestDB opens a private in-memory sqlite database named after the
// test. It is closed through t.Cleanup.
func MustOpenTestDB(t *testing.T, opts ...TestDBOption) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name()) + "_" + uuid.NewString()
	cfg := database.Config{
		Driver: database.DriverSQLite,
		DSN:    "file:" + name + "?mode=memory&cache=shared&_foreign_keys=1",
		Logger: zap.NewNop(),
	}
	migrate := false
	for _, opt := range opts {
		opt(&cfg, &migrate)
	}

	db, err := database.Open(cfg)
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if migrate {
		require.NoError(t, database.Migrate(db))
	}
	return db
}
