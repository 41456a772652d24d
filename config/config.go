// Package config loads testharness.toml, the project-level defaults for the
// harness plugins and the CLI.
package config

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/pelletier/go-toml/v2"
	"github.com/xeipuuv/gojsonschema"
)

// FileName is the config file looked up by Load.
const FileName = "testharness.toml"

//go:embed schema.json
var schemaJSON []byte

// Config is the decoded testharness.toml.
type Config struct {
	// Environment selects the .env.<environment> file. Defaults to "test".
	Environment string         `toml:"environment" default:"test"`
	Docker      DockerConfig   `toml:"docker"`
	Postgres    PostgresConfig `toml:"postgres"`
	Migrate     MigrateConfig  `toml:"migrate"`
	Seed        []SeedTable    `toml:"seed"`

	// ConfigFilePath is the file the config was read from, empty when none was found.
	ConfigFilePath string `toml:"-"`
	// DotenvPath is the dotenv file that was applied, empty when none was found.
	DotenvPath string `toml:"-"`
}

type DockerConfig struct {
	Binary string `toml:"binary" default:"docker"`
}

type PostgresConfig struct {
	Image          string   `toml:"image" default:"postgres"`
	Version        string   `toml:"version" default:"latest"`
	Port           int      `toml:"port"`
	ServerPrefix   string   `toml:"server_prefix" default:"postgres"`
	DatabasePrefix string   `toml:"database_prefix" default:"test"`
	ReadyTimeout   Duration `toml:"ready_timeout"`
	InitTimeout    Duration `toml:"init_timeout"`
}

type MigrateConfig struct {
	Root     string `toml:"root"`
	Files    string `toml:"files" default:"**/*.sql"`
	OrderBy  string `toml:"order_by" default:"FILENAME_ASC"`
	Validate bool   `toml:"validate"`
}

// SeedTable is one [[seed]] block.
type SeedTable struct {
	Table string           `toml:"table"`
	Rows  []map[string]any `toml:"rows"`
}

// Duration is a time.Duration written as a string such as "30s".
type Duration time.Duration

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// ValidationError lists the schema violations found in a config file.
type ValidationError struct {
	Path     string
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s:\n  - %s", e.Path, strings.Join(e.Problems, "\n  - "))
}

// Load finds testharness.toml by walking up from the working directory and
// resolves it. Without a file the defaults are returned.
func Load() (*Config, error) {
	dir, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	return LoadFrom(dir)
}

// LoadFrom is Load starting from dir.
func LoadFrom(dir string) (*Config, error) {
	path := Find(dir)

	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := validate(path, data); err != nil {
			return nil, err
		}
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
		cfg.ConfigFilePath = path
	}

	if err := defaults.Set(cfg); err != nil {
		return nil, fmt.Errorf("failed to apply config defaults: %w", err)
	}

	if err := cfg.applyEnv(dir); err != nil {
		return nil, err
	}

	if cfg.Migrate.Root != "" && !filepath.IsAbs(cfg.Migrate.Root) {
		cfg.Migrate.Root = filepath.Join(cfg.baseDir(dir), cfg.Migrate.Root)
	}

	return cfg, nil
}

// Find returns the path of the nearest testharness.toml at or above dir,
// stopping at the project root. It returns "" when there is none.
func Find(dir string) string {
	for {
		path := filepath.Join(dir, FileName)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path
		}

		if isProjectRoot(dir) {
			return ""
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// ConfigDir is the directory holding the config file, or "" without one.
func (c *Config) ConfigDir() string {
	if c.ConfigFilePath == "" {
		return ""
	}
	return filepath.Dir(c.ConfigFilePath)
}

func (c *Config) baseDir(fallback string) string {
	if dir := c.ConfigDir(); dir != "" {
		return dir
	}
	return fallback
}

// isProjectRoot checks if the directory is a project root based on common markers
func isProjectRoot(dir string) bool {
	for _, marker := range []string{".git", "go.mod"} {
		if _, err := os.Stat(filepath.Join(dir, marker)); err == nil {
			return true
		}
	}
	return false
}

func validate(path string, data []byte) error {
	var doc map[string]any
	if err := toml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	docJSON, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(schemaJSON),
		gojsonschema.NewBytesLoader(docJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to validate %s: %w", path, err)
	}
	if result.Valid() {
		return nil
	}

	problems := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		problems = append(problems, e.String())
	}
	return &ValidationError{Path: path, Problems: problems}
}
