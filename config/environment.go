package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// EnvPrefix prefixes every environment variable that overrides a config key,
// e.g. TESTHARNESS_POSTGRES_VERSION overrides postgres.version.
const EnvPrefix = "TESTHARNESS_"

// applyEnv overrides config values from .env.<environment> and then from the
// process environment, which wins. The dotenv file is looked up next to the
// config file, or in dir when there is no config file.
func (c *Config) applyEnv(dir string) error {
	if env := os.Getenv(EnvPrefix + "ENV"); env != "" {
		c.Environment = env
	}

	values := map[string]string{}

	dotenvPath := filepath.Join(c.baseDir(dir), ".env."+c.Environment)
	if info, err := os.Stat(dotenvPath); err == nil && !info.IsDir() {
		fileValues, err := godotenv.Read(dotenvPath)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", dotenvPath, err)
		}
		for k, v := range fileValues {
			if strings.HasPrefix(k, EnvPrefix) {
				values[k] = v
			}
		}
		c.DotenvPath = dotenvPath
	} else if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to access %s: %w", dotenvPath, err)
	}

	for _, kv := range os.Environ() {
		k, v, _ := strings.Cut(kv, "=")
		if strings.HasPrefix(k, EnvPrefix) {
			values[k] = v
		}
	}

	for _, o := range c.overrides() {
		raw, ok := values[EnvPrefix+o.key]
		if !ok || raw == "" {
			continue
		}
		if err := o.set(raw); err != nil {
			return fmt.Errorf("invalid %s%s=%q: %w", EnvPrefix, o.key, raw, err)
		}
	}

	return nil
}

type override struct {
	key string
	set func(string) error
}

func (c *Config) overrides() []override {
	return []override{
		{"DOCKER_BINARY", setString(&c.Docker.Binary)},
		{"POSTGRES_IMAGE", setString(&c.Postgres.Image)},
		{"POSTGRES_VERSION", setString(&c.Postgres.Version)},
		{"POSTGRES_PORT", setInt(&c.Postgres.Port)},
		{"POSTGRES_SERVER_PREFIX", setString(&c.Postgres.ServerPrefix)},
		{"POSTGRES_DATABASE_PREFIX", setString(&c.Postgres.DatabasePrefix)},
		{"POSTGRES_READY_TIMEOUT", setDuration(&c.Postgres.ReadyTimeout)},
		{"POSTGRES_INIT_TIMEOUT", setDuration(&c.Postgres.InitTimeout)},
		{"MIGRATE_ROOT", setString(&c.Migrate.Root)},
		{"MIGRATE_FILES", setString(&c.Migrate.Files)},
		{"MIGRATE_ORDER_BY", setString(&c.Migrate.OrderBy)},
		{"MIGRATE_VALIDATE", setBool(&c.Migrate.Validate)},
	}
}

func setString(dst *string) func(string) error {
	return func(v string) error {
		*dst = v
		return nil
	}
}

func setInt(dst *int) func(string) error {
	return func(v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		*dst = n
		return nil
	}
}

func setBool(dst *bool) func(string) error {
	return func(v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return err
		}
		*dst = b
		return nil
	}
}

func setDuration(dst *Duration) func(string) error {
	return func(v string) error {
		d, err := time.ParseDuration(v)
		if err != nil {
			return err
		}
		*dst = Duration(d)
		return nil
	}
}
