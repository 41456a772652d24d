package testharness

import (
	"context"
	"fmt"
)

// Key names a plugin and fixes its config and output types.
type Key[C, R any] struct {
	name string
}

func NewKey[C, R any](name string) Key[C, R] {
	return Key[C, R]{name: name}
}

func (k Key[C, R]) Name() string {
	return k.name
}

// Configure enables the plugin for a run with the given config.
func (k Key[C, R]) Configure(cfg C) Entry {
	return Entry{name: k.name, config: cfg, enabled: true}
}

// Maybe enables the plugin only when cfg is non-nil. A disabled entry is
// skipped entirely: its setup is never called and it has no output.
func (k Key[C, R]) Maybe(cfg *C) Entry {
	if cfg == nil {
		return Entry{name: k.name}
	}
	return k.Configure(*cfg)
}

// Instance returns the plugin's instance from a run, if it was set up.
func (k Key[C, R]) Instance(outputs *Outputs) (Instance[R], bool) {
	inst, ok := outputs.Get(k.name)
	if !ok {
		return Instance[R]{}, false
	}
	out, ok := inst.Output.(R)
	if !ok && inst.Output != nil {
		return Instance[R]{}, false
	}
	return Instance[R]{Output: out, Teardown: inst.Teardown}, true
}

// Output returns the plugin's output, or the zero value if it was not set up.
func (k Key[C, R]) Output(outputs *Outputs) R {
	inst, _ := k.Instance(outputs)
	return inst.Output
}

// Entry is one plugin's config for a run.
type Entry struct {
	name    string
	config  any
	enabled bool
}

func (e Entry) Name() string  { return e.name }
func (e Entry) Enabled() bool { return e.enabled }

// Registration binds a plugin to its key. Build one with Register.
type Registration struct {
	name  string
	setup func(ctx context.Context, cfg any) (Instance[any], error)
}

func (r Registration) Name() string { return r.name }

// Register pairs a plugin with a key whose types it matches.
func Register[C, R any](key Key[C, R], plugin Plugin[C, R]) Registration {
	return Registration{
		name: key.name,
		setup: func(ctx context.Context, cfg any) (Instance[any], error) {
			c, ok := cfg.(C)
			if !ok {
				return Instance[any]{}, fmt.Errorf("plugin %q expects config of type %T, got %T", key.name, *new(C), cfg)
			}
			inst, err := plugin.Setup(ctx, c)
			return Instance[any]{Output: inst.Output, Teardown: inst.Teardown}, err
		},
	}
}
