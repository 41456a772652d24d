package postgresql

import (
	"context"

	"github.com/nifty-lil-tricks/testharness"
)

// ConnectionStrategy uses a server that is already running. Its teardown
// leaves the server untouched.
type ConnectionStrategy struct {
	Server *Server
}

func (s ConnectionStrategy) Setup(context.Context) (testharness.Instance[*Server], error) {
	return testharness.Instance[*Server]{
		Output:   s.Server,
		Teardown: testharness.NoopTeardown,
	}, nil
}
