package testharness

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Harness is an immutable set of registered plugins.
type Harness struct {
	plugins map[string]Registration
	names   []string
}

// New builds a harness from registrations. Names must be non-empty and unique.
func New(registrations ...Registration) (*Harness, error) {
	h := &Harness{plugins: make(map[string]Registration, len(registrations))}
	for _, reg := range registrations {
		if reg.name == "" {
			return nil, fmt.Errorf("%w: empty name", ErrDuplicatePlugin)
		}
		if _, ok := h.plugins[reg.name]; ok {
			return nil, fmt.Errorf("%w: %s", ErrDuplicatePlugin, reg.name)
		}
		h.plugins[reg.name] = reg
		h.names = append(h.names, reg.name)
	}
	return h, nil
}

// Plugins returns the registered names in registration order.
func (h *Harness) Plugins() []string {
	return append([]string(nil), h.names...)
}

type namedTeardown struct {
	plugin   string
	teardown TeardownFunc
}

// Result is the outcome of a successful SetupTests call.
type Result struct {
	Outputs *Outputs

	teardowns []namedTeardown
	once      sync.Once
}

// SetupTests runs the setup of every enabled entry, one at a time, in the
// order given. Disabled entries are skipped. If a setup fails, the plugins
// already set up by this call are torn down in reverse order and a
// *SetupError is returned.
func (h *Harness) SetupTests(ctx context.Context, entries ...Entry) (*Result, error) {
	log := zap.S().Named("testharness")

	seen := make(map[string]bool, len(entries))
	for _, e := range entries {
		if !e.enabled {
			continue
		}
		if _, ok := h.plugins[e.name]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownPlugin, e.name)
		}
		if seen[e.name] {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateEntry, e.name)
		}
		seen[e.name] = true
	}

	res := &Result{Outputs: newOutputs()}
	for _, e := range entries {
		if !e.enabled {
			log.Debugw("skipping disabled plugin", "plugin", e.name)
			continue
		}

		log.Debugw("setting up plugin", "plugin", e.name)
		inst, err := h.plugins[e.name].setup(ctx, e.config)
		if err != nil {
			rollbackErr := res.teardown(context.WithoutCancel(ctx))
			return nil, &SetupError{Plugin: e.name, Err: err, Rollback: rollbackErr}
		}

		res.Outputs.add(e.name, inst)
		res.teardowns = append(res.teardowns, namedTeardown{plugin: e.name, teardown: inst.Teardown})
	}

	return res, nil
}

// TeardownTests runs every collected teardown in reverse setup order. A
// failing teardown is logged and does not stop the others; all failures are
// joined into the returned error. Calls after the first do nothing.
func (r *Result) TeardownTests(ctx context.Context) error {
	var err error
	r.once.Do(func() {
		err = r.teardown(ctx)
	})
	return err
}

func (r *Result) teardown(ctx context.Context) error {
	log := zap.S().Named("testharness")

	var errs []error
	for i := len(r.teardowns) - 1; i >= 0; i-- {
		td := r.teardowns[i]
		if td.teardown == nil {
			continue
		}
		if err := td.teardown(ctx); err != nil {
			log.Warnw("teardown failed", "plugin", td.plugin, "error", err)
			errs = append(errs, fmt.Errorf("teardown of plugin %q failed: %w", td.plugin, err))
		}
	}
	return errors.Join(errs...)
}
