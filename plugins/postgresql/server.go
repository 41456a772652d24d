package postgresql

import (
	"context"
	"time"

	"go.uber.org/zap"
)

const initInterval = 300 * time.Millisecond

// Server is a running PostgreSQL server together with the connection details
// of its default database.
type Server struct {
	// ID identifies the server to its provisioner, e.g. a container id.
	ID         string     `json:"id"`
	Connection Connection `json:"connection"`

	dial        Dialer
	initTimeout time.Duration
}

// NewServer creates a server handle that connects with lib/pq.
func NewServer(id string, conn Connection) *Server {
	return &Server{ID: id, Connection: conn, dial: DialPQ}
}

func (*Server) serverSource() {}

// Init blocks until the server accepts a connection and answers a ping.
// Connection errors are retried every 300ms. The wait is bounded only by ctx
// and, when set, the server's init timeout.
func (s *Server) Init(ctx context.Context) error {
	log := zap.S().Named("postgresql")
	return pollUntil(ctx, initInterval, s.initTimeout, func() error {
		client, err := s.Connect(ctx)
		if err != nil {
			log.Debugw("waiting for PostgreSQL database server", "server", s.Connection.ServerName, "error", err)
			return err
		}
		return client.Close()
	})
}

// Connect opens a client on the server's database.
func (s *Server) Connect(ctx context.Context) (*Client, error) {
	return Connect(ctx, s.dial, s.Connection)
}

// withDatabase returns a copy of the server pointing at another database.
func (s *Server) withDatabase(name string) *Server {
	cp := *s
	cp.Connection = s.Connection.WithDatabase(name)
	return &cp
}

// ServerSource selects the server a Plugin runs against: either a
// ServerConfig describing a new server or an existing *Server.
type ServerSource interface {
	serverSource()
}

// ServerStrategy names how a new server is provisioned.
type ServerStrategy string

const (
	StrategyDocker ServerStrategy = "DOCKER"
)

// ServerConfig describes a server to provision. Zero values are filled from
// the plugin defaults.
type ServerConfig struct {
	Strategy     ServerStrategy
	ServerName   string
	Prefix       string
	User         string
	Password     string
	DatabaseName string
	Port         int
	Version      string
	Image        string
	ReadyTimeout time.Duration
}

func (ServerConfig) serverSource() {}
