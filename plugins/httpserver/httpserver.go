// Package httpserver is a testharness plugin that serves an http.Handler on
// a local port for the duration of a test run.
package httpserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/nifty-lil-tricks/testharness"
)

const defaultAddr = "127.0.0.1:0"

// Key is the default registry key for the plugin.
var Key = testharness.NewKey[Config, Output]("httpserver")

// ErrNoHandler is returned when Config.Handler is nil.
var ErrNoHandler = errors.New("httpserver: no handler configured")

// Middleware wraps a handler.
type Middleware func(http.Handler) http.Handler

// Config describes the application to serve.
type Config struct {
	Handler http.Handler
	// Middleware overrides are applied around Handler, outermost first.
	Middleware []Middleware
	// Addr defaults to 127.0.0.1:0, an ephemeral port on the loopback interface.
	Addr string
	// ReadHeaderTimeout defaults to 10s.
	ReadHeaderTimeout time.Duration
}

// Output tells tests where the server listens.
type Output struct {
	// Origin is the base URL, e.g. "http://127.0.0.1:53211".
	Origin string
	Addr   string
}

// Plugin implements testharness.Plugin.
type Plugin struct{}

func NewPlugin() *Plugin {
	return &Plugin{}
}

// Setup binds the listener before returning, so the origin accepts requests
// as soon as setup succeeds. Teardown shuts the server down gracefully.
func (p *Plugin) Setup(_ context.Context, cfg Config) (testharness.Instance[Output], error) {
	if cfg.Handler == nil {
		return testharness.Instance[Output]{}, ErrNoHandler
	}

	addr := cfg.Addr
	if addr == "" {
		addr = defaultAddr
	}
	readHeaderTimeout := cfg.ReadHeaderTimeout
	if readHeaderTimeout == 0 {
		readHeaderTimeout = 10 * time.Second
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return testharness.Instance[Output]{}, fmt.Errorf("listening on %s: %w", addr, err)
	}
	actualAddr := listener.Addr().String()

	server := &http.Server{
		Handler:           wrap(cfg.Handler, cfg.Middleware),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	log := zap.S().Named("httpserver")
	go func() {
		log.Debugw("serving", "addr", actualAddr)
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorw("server stopped", "addr", actualAddr, "error", err)
		}
	}()

	return testharness.Instance[Output]{
		Output: Output{
			Origin: "http://" + actualAddr,
			Addr:   actualAddr,
		},
		Teardown: func(ctx context.Context) error {
			if err := server.Shutdown(ctx); err != nil {
				return fmt.Errorf("shutting down server on %s: %w", actualAddr, err)
			}
			return nil
		},
	}, nil
}

// wrap applies middleware so that middleware[0] sees the request first.
func wrap(h http.Handler, middleware []Middleware) http.Handler {
	for i := len(middleware) - 1; i >= 0; i-- {
		h = middleware[i](h)
	}
	return h
}
