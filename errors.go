package testharness

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownPlugin is returned when a run configures a name that was never registered.
	ErrUnknownPlugin = errors.New("unknown plugin")
	// ErrDuplicatePlugin is returned by New for empty or repeated plugin names.
	ErrDuplicatePlugin = errors.New("duplicate plugin")
	// ErrDuplicateEntry is returned when a run configures the same plugin twice.
	ErrDuplicateEntry = errors.New("plugin configured more than once")
)

// SetupError reports the plugin whose setup failed. The plugins set up
// before it in the same run have already been torn down; Rollback holds any
// errors from doing so.
type SetupError struct {
	Plugin   string
	Err      error
	Rollback error
}

func (e *SetupError) Error() string {
	msg := fmt.Sprintf("setup of plugin %q failed: %v", e.Plugin, e.Err)
	if e.Rollback != nil {
		msg += fmt.Sprintf(" (rollback: %v)", e.Rollback)
	}
	return msg
}

func (e *SetupError) Unwrap() []error {
	if e.Rollback == nil {
		return []error{e.Err}
	}
	return []error{e.Err, e.Rollback}
}
