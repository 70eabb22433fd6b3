package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunMigrations(t *testing.T) {
	conn, err := Open(":memory:")
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, RunMigrations(conn.DB))
	require.NoError(t, RunMigrations(conn.DB), "second run is a no-op")

	var tables []string
	err = conn.Select(&tables, "SELECT name FROM sqlite_master WHERE type = 'table' AND name IN ('snapshots', 'sessions') ORDER BY name")
	require.NoError(t, err)
	assert.Equal(t, []string{"sessions", "snapshots"}, tables)
}
