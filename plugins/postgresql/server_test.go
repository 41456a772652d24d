package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nifty-lil-tricks/testharness/internal/testdb"
)

func TestServer_InitRetriesUntilConnected(t *testing.T) {
	path := testdb.SQLitePath(t)
	var attempts atomic.Int32

	s := NewServer("flaky", Connection{ServerName: "flaky"})
	s.dial = func(context.Context, Connection, func(Warning)) (*sql.DB, error) {
		if attempts.Add(1) < 3 {
			return nil, errors.New("connection refused")
		}
		return testdb.OpenSQLite(path)
	}

	require.NoError(t, s.Init(context.Background()))
	assert.Equal(t, int32(3), attempts.Load())
}

func TestServer_InitTimeout(t *testing.T) {
	s := NewServer("down", Connection{ServerName: "down"})
	s.initTimeout = 100 * time.Millisecond
	s.dial = func(context.Context, Connection, func(Warning)) (*sql.DB, error) {
		return nil, errors.New("connection refused")
	}

	err := s.Init(context.Background())
	require.ErrorIs(t, err, ErrReadinessTimeout)
	assert.ErrorContains(t, err, "connection refused")
}

func TestServer_InitCancelled(t *testing.T) {
	s := NewServer("down", Connection{ServerName: "down"})
	s.dial = func(context.Context, Connection, func(Warning)) (*sql.DB, error) {
		return nil, errors.New("connection refused")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	err := s.Init(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.NotErrorIs(t, err, ErrReadinessTimeout)
}

func TestConnectionStrategy_NoopTeardown(t *testing.T) {
	server := sqliteServer(t)

	inst, err := ConnectionStrategy{Server: server}.Setup(context.Background())
	require.NoError(t, err)
	assert.Same(t, server, inst.Output)
	require.NoError(t, inst.Teardown(context.Background()))

	// The server is still usable after teardown.
	client, err := server.Connect(context.Background())
	require.NoError(t, err)
	require.NoError(t, client.Close())
}

func TestClient_CollectsWarningsAndCounts(t *testing.T) {
	path := testdb.SQLitePath(t)
	dial := func(_ context.Context, _ Connection, onNotice func(Warning)) (*sql.DB, error) {
		onNotice(Warning{Severity: "NOTICE", Code: "00000", Message: "relation already exists, skipping"})
		return testdb.OpenSQLite(path)
	}

	client, err := Connect(context.Background(), dial, Connection{})
	require.NoError(t, err)
	defer func() { _ = client.Close() }()

	_, err = client.DB.Exec(`CREATE TABLE "User" (email TEXT, name TEXT)`)
	require.NoError(t, err)
	_, err = client.DB.Exec(`INSERT INTO "User" (email, name) VALUES ('a@example.com', 'A'), ('b@example.com', 'B')`)
	require.NoError(t, err)

	n, err := client.Count(context.Background(), "User")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	assert.Equal(t, []Warning{{Severity: "NOTICE", Code: "00000", Message: "relation already exists, skipping"}}, client.Warnings())
}
