package postgresql

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nifty-lil-tricks/testharness"
	"github.com/nifty-lil-tricks/testharness/internal/command"
)

// Key is the default registry key for the plugin.
var Key = testharness.NewKey[Config, Output]("postgresql")

// Config selects the server to use and what to do with it.
type Config struct {
	// Server is a ServerConfig for a new server or an existing *Server.
	// Nil provisions a new server with the plugin defaults.
	Server ServerSource
	// Database, when set, creates a fresh database for this setup and points
	// migrations and seeds at it.
	Database *DatabaseConfig
	Migrate  *MigrationConfig
	Seed     SeedConfig
}

// Output is what the plugin hands to tests.
type Output struct {
	Server  *Server         `json:"server"`
	Migrate MigrationOutput `json:"migrate"`
	Seed    SeedOutput      `json:"seed"`
}

// Defaults fill the zero fields of a ServerConfig and MigrationConfig.
type Defaults struct {
	Strategy       ServerStrategy
	Binary         string
	Image          string
	Version        string
	Port           int
	ServerPrefix   string
	DatabasePrefix string
	ReadyTimeout   time.Duration
	InitTimeout    time.Duration
	Migrate        MigrationConfig
}

func (d Defaults) withFallbacks() Defaults {
	if d.Strategy == "" {
		d.Strategy = StrategyDocker
	}
	if d.Image == "" {
		d.Image = "postgres"
	}
	if d.Version == "" {
		d.Version = "latest"
	}
	if d.ServerPrefix == "" {
		d.ServerPrefix = "postgres"
	}
	return d
}

// Plugin provisions a PostgreSQL server, then optionally creates a database,
// applies migrations and seeds data.
type Plugin struct {
	runner   command.Runner
	dial     Dialer
	defaults Defaults
}

type Option func(*Plugin)

// WithCommandRunner sets the runner used for container runtime commands.
func WithCommandRunner(r command.Runner) Option {
	return func(p *Plugin) { p.runner = r }
}

// WithDialer sets how the plugin opens database handles.
func WithDialer(d Dialer) Option {
	return func(p *Plugin) { p.dial = d }
}

// WithDefaults sets the values used for unset config fields.
func WithDefaults(d Defaults) Option {
	return func(p *Plugin) { p.defaults = d }
}

func NewPlugin(opts ...Option) *Plugin {
	p := &Plugin{}
	for _, opt := range opts {
		opt(p)
	}
	if p.runner == nil {
		p.runner = command.NewExecRunner()
	}
	p.defaults = p.defaults.withFallbacks()
	return p
}

// Setup implements testharness.Plugin. Teardown drops the per-setup database
// if one was created, then releases the server.
func (p *Plugin) Setup(ctx context.Context, cfg Config) (testharness.Instance[Output], error) {
	serverInst, err := p.server(ctx, cfg.Server)
	if err != nil {
		return testharness.Instance[Output]{}, err
	}

	teardowns := []testharness.TeardownFunc{serverInst.Teardown}
	fail := func(err error) (testharness.Instance[Output], error) {
		_ = rollback(context.WithoutCancel(ctx), teardowns)
		return testharness.Instance[Output]{}, err
	}

	server := *serverInst.Output
	if p.dial != nil {
		server.dial = p.dial
	}
	if server.initTimeout == 0 {
		server.initTimeout = p.defaults.InitTimeout
	}

	if err := server.Init(ctx); err != nil {
		return fail(fmt.Errorf("PostgreSQL database server did not accept connections: %w", err))
	}

	target := &server
	if cfg.Database != nil {
		prefix := cfg.Database.Prefix
		if prefix == "" {
			prefix = p.defaults.DatabasePrefix
		}
		dbInst, err := DatabaseStrategy{Prefix: prefix, Server: target}.Run(ctx)
		if err != nil {
			return fail(err)
		}
		teardowns = append(teardowns, dbInst.Teardown)
		target = dbInst.Output
	}

	out := Output{Server: target}
	// An existing server is handed back as the caller's own reference. The
	// plugin dialer and init timeout only apply to the plugin's own work.
	if existing, ok := cfg.Server.(*Server); ok && existing != nil && cfg.Database == nil {
		out.Server = existing
	}

	if cfg.Migrate != nil {
		migrate, err := p.migration(*cfg.Migrate, target)
		if err != nil {
			return fail(err)
		}
		if out.Migrate, err = migrate.Run(ctx); err != nil {
			return fail(err)
		}
	}

	if len(cfg.Seed) > 0 {
		if out.Seed, err = (SeedStrategy{Config: cfg.Seed, Server: target}).Run(ctx); err != nil {
			return fail(err)
		}
	}

	return testharness.Instance[Output]{
		Output: out,
		Teardown: func(ctx context.Context) error {
			return rollback(ctx, teardowns)
		},
	}, nil
}

func (p *Plugin) server(ctx context.Context, src ServerSource) (testharness.Instance[*Server], error) {
	switch src := src.(type) {
	case *Server:
		return ConnectionStrategy{Server: src}.Setup(ctx)
	case nil:
		return p.newServer(ctx, ServerConfig{})
	case ServerConfig:
		return p.newServer(ctx, src)
	default:
		return testharness.Instance[*Server]{}, fmt.Errorf("unsupported server source %T", src)
	}
}

func (p *Plugin) newServer(ctx context.Context, cfg ServerConfig) (testharness.Instance[*Server], error) {
	d := p.defaults
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]

	prefix := cfg.Prefix
	if prefix == "" {
		prefix = d.ServerPrefix
	}
	strategy := cfg.Strategy
	if strategy == "" {
		strategy = d.Strategy
	}

	docker := DockerConfig{
		ServerName:   firstNonEmpty(cfg.ServerName, prefix+"-"+suffix),
		User:         firstNonEmpty(cfg.User, "user_"+suffix),
		Password:     firstNonEmpty(cfg.Password, strings.ReplaceAll(uuid.NewString(), "-", "")),
		Database:     firstNonEmpty(cfg.DatabaseName, prefix+"-"+suffix),
		Port:         cfg.Port,
		Version:      firstNonEmpty(cfg.Version, d.Version),
		Image:        firstNonEmpty(cfg.Image, d.Image),
		ReadyTimeout: cfg.ReadyTimeout,
	}
	if docker.Port == 0 {
		docker.Port = d.Port
	}
	if docker.ReadyTimeout == 0 {
		docker.ReadyTimeout = d.ReadyTimeout
	}

	switch strategy {
	case StrategyDocker:
		return (&DockerStrategy{Runner: p.runner, Binary: d.Binary, Dial: p.dial}).Setup(ctx, docker)
	default:
		return testharness.Instance[*Server]{}, &UnknownStrategyError{Kind: "server", Name: string(strategy)}
	}
}

func (p *Plugin) migration(cfg MigrationConfig, server *Server) (SQLMigrationStrategy, error) {
	d := p.defaults.Migrate
	if cfg.Strategy == "" {
		cfg.Strategy = firstNonEmpty(d.Strategy, StrategySQL)
	}
	if cfg.Strategy != StrategySQL {
		return SQLMigrationStrategy{}, &UnknownStrategyError{Kind: "migration", Name: string(cfg.Strategy)}
	}
	if cfg.FilesFunc == nil {
		cfg.Root = firstNonEmpty(cfg.Root, d.Root)
		cfg.Files = firstNonEmpty(cfg.Files, d.Files)
		cfg.OrderBy = firstNonEmpty(cfg.OrderBy, d.OrderBy)
	}
	cfg.Validate = cfg.Validate || d.Validate
	return SQLMigrationStrategy{Config: cfg, Server: server}, nil
}

// rollback runs every teardown in reverse order.
func rollback(ctx context.Context, teardowns []testharness.TeardownFunc) error {
	var errs []error
	for i := len(teardowns) - 1; i >= 0; i-- {
		if teardowns[i] == nil {
			continue
		}
		if err := teardowns[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func firstNonEmpty[T ~string](values ...T) T {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
