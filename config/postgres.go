package config

import (
	"github.com/nifty-lil-tricks/testharness/plugins/postgresql"
)

// PostgresDefaults converts the config into defaults for the PostgreSQL plugin.
func (c *Config) PostgresDefaults() postgresql.Defaults {
	return postgresql.Defaults{
		Strategy:       postgresql.StrategyDocker,
		Binary:         c.Docker.Binary,
		Image:          c.Postgres.Image,
		Version:        c.Postgres.Version,
		Port:           c.Postgres.Port,
		ServerPrefix:   c.Postgres.ServerPrefix,
		DatabasePrefix: c.Postgres.DatabasePrefix,
		ReadyTimeout:   c.Postgres.ReadyTimeout.Duration(),
		InitTimeout:    c.Postgres.InitTimeout.Duration(),
		Migrate: postgresql.MigrationConfig{
			Strategy: postgresql.StrategySQL,
			Root:     c.Migrate.Root,
			Files:    c.Migrate.Files,
			OrderBy:  postgresql.OrderBy(c.Migrate.OrderBy),
			Validate: c.Migrate.Validate,
		},
	}
}

// PostgresSeed converts the [[seed]] blocks into a seed config.
func (c *Config) PostgresSeed() postgresql.SeedConfig {
	seed := make(postgresql.SeedConfig, 0, len(c.Seed))
	for _, table := range c.Seed {
		rows := make([]postgresql.Row, 0, len(table.Rows))
		for _, row := range table.Rows {
			rows = append(rows, postgresql.Row(row))
		}
		seed = append(seed, postgresql.TableSeed{Table: table.Table, Rows: rows})
	}
	return seed
}
