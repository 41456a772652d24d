package postgresql

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
)

// Connection describes how to reach a PostgreSQL database. It is produced by
// a server strategy and handed unchanged to every later strategy.
type Connection struct {
	ServerName string `json:"serverName"`
	Hostname   string `json:"hostname"`
	Port       int    `json:"port"`
	User       string `json:"user"`
	Password   string `json:"password"`
	Database   string `json:"database"`
}

// DSN renders the connection as a postgres:// URL with TLS disabled.
func (c Connection) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     net.JoinHostPort(c.Hostname, strconv.Itoa(c.Port)),
		Path:     "/" + c.Database,
		RawQuery: "sslmode=disable",
	}
	return u.String()
}

// WithDatabase returns a copy of the connection pointing at another database.
func (c Connection) WithDatabase(name string) Connection {
	c.Database = name
	return c
}

// ParseConnection reads a postgres:// URL. The port defaults to 5432.
func ParseConnection(dsn string) (Connection, error) {
	u, err := url.Parse(dsn)
	if err != nil {
		return Connection{}, fmt.Errorf("invalid connection URL: %w", err)
	}
	if u.Scheme != "postgres" && u.Scheme != "postgresql" {
		return Connection{}, fmt.Errorf("invalid connection URL: unsupported scheme %q", u.Scheme)
	}

	port := 5432
	if p := u.Port(); p != "" {
		if port, err = strconv.Atoi(p); err != nil {
			return Connection{}, fmt.Errorf("invalid connection URL: bad port %q", p)
		}
	}
	password, _ := u.User.Password()

	return Connection{
		ServerName: u.Hostname(),
		Hostname:   u.Hostname(),
		Port:       port,
		User:       u.User.Username(),
		Password:   password,
		Database:   strings.TrimPrefix(u.Path, "/"),
	}, nil
}
