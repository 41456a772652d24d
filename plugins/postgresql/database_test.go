package postgresql

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nifty-lil-tricks/testharness/internal/testdb"
)

func postgresServer(t *testing.T) *Server {
	t.Helper()
	conn, err := ParseConnection(testdb.PostgresURL(t))
	require.NoError(t, err)
	return NewServer("external", conn)
}

func TestDatabaseStrategy_CreateAndDrop(t *testing.T) {
	server := postgresServer(t)
	ctx := context.Background()

	inst, err := DatabaseStrategy{Prefix: "orders", Server: server}.Run(ctx)
	require.NoError(t, err)

	name := inst.Output.Connection.Database
	assert.True(t, strings.HasPrefix(name, "orders_"), name)
	assert.Len(t, name, len("orders_")+8)
	assert.Equal(t, server.Connection.Hostname, inst.Output.Connection.Hostname)

	client, err := inst.Output.Connect(ctx)
	require.NoError(t, err)
	require.NoError(t, client.Close())

	require.NoError(t, inst.Teardown(ctx))

	admin, err := server.Connect(ctx)
	require.NoError(t, err)
	defer func() { _ = admin.Close() }()

	var exists bool
	require.NoError(t, admin.DB.QueryRowContext(ctx,
		"SELECT EXISTS (SELECT 1 FROM pg_database WHERE datname = $1)", name).Scan(&exists))
	assert.False(t, exists)
}

func TestPlugin_PerTestDatabase(t *testing.T) {
	server := postgresServer(t)
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"001_create_users.sql": `CREATE TABLE "User" (id SERIAL PRIMARY KEY, email TEXT NOT NULL, name TEXT);`,
	})

	inst, err := NewPlugin().Setup(context.Background(), Config{
		Server:   server,
		Database: &DatabaseConfig{Prefix: "seeded"},
		Migrate:  &MigrationConfig{Root: dir},
		Seed:     usersSeed(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = inst.Teardown(context.Background()) })

	assert.NotEqual(t, server.Connection.Database, inst.Output.Server.Connection.Database)
	assert.Equal(t, int64(2), inst.Output.Seed.Results[0].InsertedCount)
}

func TestDialPQ_CollectsNotices(t *testing.T) {
	server := postgresServer(t)
	ctx := context.Background()

	client, err := server.Connect(ctx)
	require.NoError(t, err)
	defer func() { _ = client.Close() }()

	_, err = client.DB.ExecContext(ctx, `DROP TABLE IF EXISTS "DoesNotExist"`)
	require.NoError(t, err)

	warnings := client.Warnings()
	require.Len(t, warnings, 1)
	assert.Equal(t, "NOTICE", warnings[0].Severity)
	assert.Equal(t, "00000", warnings[0].Code)
	assert.Contains(t, warnings[0].Message, "does not exist, skipping")
}
