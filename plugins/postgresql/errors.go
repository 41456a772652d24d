package postgresql

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownStrategy is returned when a server or migration strategy name is not recognised.
	ErrUnknownStrategy = errors.New("unknown strategy")
	// ErrReadinessTimeout is returned when a configured readiness bound elapses
	// before the server accepts connections.
	ErrReadinessTimeout = errors.New("timed out waiting for PostgreSQL database server")
)

// UnknownStrategyError names the strategy that could not be resolved. It
// matches ErrUnknownStrategy with errors.Is.
type UnknownStrategyError struct {
	Kind string // "server" or "migration"
	Name string
}

func (e *UnknownStrategyError) Error() string {
	return fmt.Sprintf("unknown %s strategy: %s", e.Kind, e.Name)
}

func (e *UnknownStrategyError) Is(target error) bool {
	return target == ErrUnknownStrategy
}

// ProvisionError reports a failed container runtime step: a command that
// could not be run, a command that exited nonzero or an invalid value in its
// output.
type ProvisionError struct {
	Step     string
	ExitCode int
	Stderr   string
	// Field and Value are set when the failure is an invalid inspected value.
	Field string
	Value string
	// Err is set when the runtime binary could not be run at all.
	Err error
}

func (e *ProvisionError) Error() string {
	switch {
	case e.Field != "":
		return fmt.Sprintf("PostgreSQL database server not exposed on a valid %s: %s", e.Field, e.Value)
	case e.Err != nil:
		return fmt.Sprintf("error %s PostgreSQL database server: %v", e.Step, e.Err)
	}
	return fmt.Sprintf("error %s PostgreSQL database server (exit code: %d): %s", e.Step, e.ExitCode, e.Stderr)
}

func (e *ProvisionError) Unwrap() error {
	return e.Err
}

// MigrationError wraps a failed migration run together with the migrations
// that were applied before the failure. File is the migration being read or
// applied when the run failed, empty for failures outside a file.
type MigrationError struct {
	Applied []MigrationResult
	File    string
	Err     error
}

func (e *MigrationError) Error() string {
	return "Unable to run migrations: " + e.Err.Error()
}

func (e *MigrationError) Unwrap() error {
	return e.Err
}
