package postgresql

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/nifty-lil-tricks/testharness"
)

// DatabaseConfig requests a fresh database on the server for each setup.
type DatabaseConfig struct {
	// Prefix is prepended to the generated database name. Defaults to "test".
	Prefix string
}

// DatabaseStrategy creates an ephemeral database on an existing server.
type DatabaseStrategy struct {
	Prefix string
	Server *Server
}

// Run creates the database and returns a server handle pointing at it. The
// teardown drops the database through the server's original database.
func (s DatabaseStrategy) Run(ctx context.Context) (testharness.Instance[*Server], error) {
	prefix := s.Prefix
	if prefix == "" {
		prefix = "test"
	}
	name := prefix + "_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]

	client, err := s.Server.Connect(ctx)
	if err != nil {
		return testharness.Instance[*Server]{}, fmt.Errorf("failed to create database %s: %w", name, err)
	}
	defer func() { _ = client.Close() }()

	if _, err := client.DB.ExecContext(ctx, "CREATE DATABASE "+pq.QuoteIdentifier(name)); err != nil {
		return testharness.Instance[*Server]{}, fmt.Errorf("failed to create database %s: %w", name, err)
	}

	return testharness.Instance[*Server]{
		Output: s.Server.withDatabase(name),
		Teardown: func(ctx context.Context) error {
			s.drop(ctx, name)
			return nil
		},
	}, nil
}

func (s DatabaseStrategy) drop(ctx context.Context, name string) {
	log := zap.S().Named("postgresql.database")

	client, err := s.Server.Connect(ctx)
	if err != nil {
		log.Warnw("failed to drop database", "database", name, "error", err)
		return
	}
	defer func() { _ = client.Close() }()

	if _, err := client.DB.ExecContext(ctx, "DROP DATABASE IF EXISTS "+pq.QuoteIdentifier(name)); err != nil {
		log.Warnw("failed to drop database", "database", name, "error", err)
	}
}
