package persistence_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-user-auth/persistence"
)

func TestOpenAndMigrate_SQLite(t *testing.T) {
	ctx := context.Background()

	db, err := persistence.Open(ctx, persistence.Config{
		Driver: persistence.DriverSQLite,
		DSN:    ":memory:",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, persistence.Migrate(ctx, db, persistence.DriverSQLite))

	var count int
	err = db.NewRaw("SELECT COUNT(*) FROM users").Scan(ctx, &count)
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	// running again is a no-op
	require.NoError(t, persistence.Migrate(ctx, db, persistence.DriverSQLite))
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	_, err := persistence.Open(context.Background(), persistence.Config{
		Driver: "oracle",
		DSN:    "whatever",
	})
	require.Error(t, err)
}
