// Package testharness sets up and tears down the resources a test needs.
//
// Plugins are registered once under a typed Key. Each test run then picks the
// plugins it needs and configures them; SetupTests runs their setups in the
// given order and TeardownTests releases them in reverse.
package testharness

import "context"

// TeardownFunc releases whatever a plugin setup acquired.
type TeardownFunc func(ctx context.Context) error

// NoopTeardown is a teardown that does nothing.
func NoopTeardown(context.Context) error { return nil }

// Instance is the result of a single plugin setup.
type Instance[R any] struct {
	Output   R
	Teardown TeardownFunc
}

// Plugin provisions one kind of resource.
type Plugin[C, R any] interface {
	Setup(ctx context.Context, cfg C) (Instance[R], error)
}

// PluginFunc adapts a function to the Plugin interface.
type PluginFunc[C, R any] func(ctx context.Context, cfg C) (Instance[R], error)

func (f PluginFunc[C, R]) Setup(ctx context.Context, cfg C) (Instance[R], error) {
	return f(ctx, cfg)
}
