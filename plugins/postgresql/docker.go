package postgresql

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/nifty-lil-tricks/testharness"
	"github.com/nifty-lil-tricks/testharness/internal/command"
)

const (
	containerPort  = "5432/tcp"
	healthInterval = 250 * time.Millisecond
)

// DockerConfig describes a PostgreSQL container to start.
type DockerConfig struct {
	ServerName string
	User       string
	Password   string
	Database   string
	// Port is the host port to publish on. Zero lets the runtime choose.
	Port    int
	Version string
	Image   string
	// ReadyTimeout bounds the pg_isready polling. Zero waits until ctx is done.
	ReadyTimeout time.Duration
}

// DockerStrategy provisions PostgreSQL servers as containers through the
// container runtime CLI.
type DockerStrategy struct {
	Runner command.Runner
	// Binary is the runtime executable, "docker" when empty.
	Binary string
	// Dial is handed to the servers this strategy creates.
	Dial Dialer
}

func (d *DockerStrategy) binary() string {
	if d.Binary == "" {
		return "docker"
	}
	return d.Binary
}

func (d *DockerStrategy) run(ctx context.Context, args ...string) (command.Result, error) {
	runner := d.Runner
	if runner == nil {
		runner = command.NewExecRunner()
	}
	return runner.Run(ctx, d.binary(), args...)
}

// Setup starts a container, waits until PostgreSQL inside it is ready and
// returns the server with a teardown that stops and removes the container.
// If any step after the container started fails, the container is removed
// before the error is returned.
func (d *DockerStrategy) Setup(ctx context.Context, cfg DockerConfig) (testharness.Instance[*Server], error) {
	log := zap.S().Named("postgresql.docker")

	id, err := d.start(ctx, cfg)
	if err != nil {
		return testharness.Instance[*Server]{}, err
	}
	log.Debugw("started PostgreSQL container", "id", id, "name", cfg.ServerName)

	conn, err := d.inspect(ctx, id, cfg)
	if err != nil {
		d.remove(ctx, id)
		return testharness.Instance[*Server]{}, err
	}

	if err := d.waitHealthy(ctx, id, cfg); err != nil {
		d.remove(ctx, id)
		return testharness.Instance[*Server]{}, err
	}

	server := NewServer(id, conn)
	if d.Dial != nil {
		server.dial = d.Dial
	}

	return testharness.Instance[*Server]{
		Output: server,
		Teardown: func(ctx context.Context) error {
			d.teardown(ctx, id)
			return nil
		},
	}, nil
}

func (d *DockerStrategy) start(ctx context.Context, cfg DockerConfig) (string, error) {
	publish := "5432"
	if cfg.Port != 0 {
		publish = fmt.Sprintf("%d:5432", cfg.Port)
	}
	image := cfg.Image
	if image == "" {
		image = "postgres"
	}
	version := cfg.Version
	if version == "" {
		version = "latest"
	}

	res, err := d.run(ctx,
		"run",
		"--name", cfg.ServerName,
		"--detach",
		"-p", publish,
		"-e", "POSTGRES_PASSWORD="+cfg.Password,
		"-e", "POSTGRES_USER="+cfg.User,
		"-e", "POSTGRES_DB="+cfg.Database,
		image+":"+version,
	)
	if err != nil {
		return "", &ProvisionError{Step: "starting", Err: err}
	}
	if !res.Success() {
		return "", &ProvisionError{Step: "starting", ExitCode: res.Code, Stderr: res.StderrString()}
	}
	return res.StdoutString(), nil
}

type inspectedContainer struct {
	NetworkSettings struct {
		Ports map[string][]struct {
			HostIP   string `json:"HostIp"`
			HostPort string `json:"HostPort"`
		} `json:"Ports"`
	} `json:"NetworkSettings"`
}

func (d *DockerStrategy) inspect(ctx context.Context, id string, cfg DockerConfig) (Connection, error) {
	res, err := d.run(ctx, "inspect", id)
	if err != nil {
		return Connection{}, &ProvisionError{Step: "inspecting", Err: err}
	}
	if !res.Success() {
		return Connection{}, &ProvisionError{Step: "inspecting", ExitCode: res.Code, Stderr: res.StderrString()}
	}

	hostname, port, err := parseInspect(res.Stdout)
	if err != nil {
		return Connection{}, err
	}

	return Connection{
		ServerName: cfg.ServerName,
		Hostname:   hostname,
		Port:       port,
		User:       cfg.User,
		Password:   cfg.Password,
		Database:   cfg.Database,
	}, nil
}

// parseInspect extracts the published host and port of 5432/tcp from
// `docker inspect` output. Wildcard bind addresses map to localhost.
func parseInspect(out []byte) (string, int, error) {
	var containers []inspectedContainer
	if err := json.Unmarshal(out, &containers); err != nil {
		return "", 0, &ProvisionError{Step: "parsing inspect output of", Err: err}
	}

	var hostIP, hostPort string
	if len(containers) > 0 {
		if bindings := containers[0].NetworkSettings.Ports[containerPort]; len(bindings) > 0 {
			hostIP, hostPort = bindings[0].HostIP, bindings[0].HostPort
		}
	}

	port, err := strconv.Atoi(hostPort)
	if err != nil || port <= 0 || port > 65535 {
		return "", 0, &ProvisionError{Field: "port", Value: hostPort}
	}

	hostname := strings.TrimSpace(hostIP)
	switch hostname {
	case "0.0.0.0", "::":
		hostname = "localhost"
	case "":
		return "", 0, &ProvisionError{Field: "hostname", Value: hostIP}
	}

	return hostname, port, nil
}

func (d *DockerStrategy) waitHealthy(ctx context.Context, id string, cfg DockerConfig) error {
	log := zap.S().Named("postgresql.docker")
	return pollUntil(ctx, healthInterval, cfg.ReadyTimeout, func() error {
		res, err := d.run(ctx, "exec", id, "pg_isready", "-U", cfg.User)
		if err != nil {
			return err
		}
		if !res.Success() {
			log.Debugw("PostgreSQL container not ready", "id", id, "exitCode", res.Code)
			return fmt.Errorf("pg_isready exited with code %d: %s", res.Code, res.StdoutString())
		}
		return nil
	})
}

// remove force-removes a container after a failed setup.
func (d *DockerStrategy) remove(ctx context.Context, id string) {
	log := zap.S().Named("postgresql.docker")
	ctx = context.WithoutCancel(ctx)
	res, err := d.run(ctx, "rm", "--force", id)
	if err != nil {
		log.Warnw("failed to remove PostgreSQL container", "id", id, "error", err)
		return
	}
	if !res.Success() {
		log.Warnw("failed to remove PostgreSQL container", "id", id, "exitCode", res.Code, "error", res.StderrString())
	}
}

// teardown stops and removes the container. Failures are logged only.
func (d *DockerStrategy) teardown(ctx context.Context, id string) {
	log := zap.S().Named("postgresql.docker")
	for _, step := range []string{"stop", "rm"} {
		res, err := d.run(ctx, step, id)
		if err != nil {
			log.Warnw("failed to "+step+" PostgreSQL container", "id", id, "error", err)
			continue
		}
		if !res.Success() {
			log.Warnw("failed to "+step+" PostgreSQL container", "id", id, "exitCode", res.Code, "error", res.StderrString())
		}
	}
}
