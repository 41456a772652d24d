// Package commandtest provides a scripted command.Runner for tests.
package commandtest

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/nifty-lil-tricks/testharness/internal/command"
)

// Call records a single invocation of the fake runner.
type Call struct {
	Name string
	Args []string
}

// Subcommand returns the first argument, e.g. "run" for `docker run ...`.
func (c Call) Subcommand() string {
	if len(c.Args) == 0 {
		return ""
	}
	return c.Args[0]
}

// Response is what the fake returns for a matching call.
type Response struct {
	Result command.Result
	Err    error
}

// Handler computes a response for a call. It is consulted before scripted
// responses, which makes it useful for stateful behaviour such as
// "fail the first two health probes".
type Handler func(call Call) (Response, bool)

// Runner is a command.Runner that returns scripted results keyed by the
// first argument of the command.
type Runner struct {
	mu        sync.Mutex
	responses map[string][]Response
	handlers  []Handler
	calls     []Call
}

// NewRunner creates an empty fake runner. Unscripted calls succeed with empty output.
func NewRunner() *Runner {
	return &Runner{responses: map[string][]Response{}}
}

// On queues a response for the given subcommand. Queued responses are used in
// order; the last one is repeated once the queue is drained.
func (r *Runner) On(subcommand string, responses ...Response) *Runner {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.responses[subcommand] = append(r.responses[subcommand], responses...)
	return r
}

// Handle registers a handler that may answer any call.
func (r *Runner) Handle(h Handler) *Runner {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers = append(r.handlers, h)
	return r
}

func (r *Runner) Run(_ context.Context, name string, args ...string) (command.Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	call := Call{Name: name, Args: append([]string(nil), args...)}
	r.calls = append(r.calls, call)

	for _, h := range r.handlers {
		if resp, ok := h(call); ok {
			return resp.Result, resp.Err
		}
	}

	queue := r.responses[call.Subcommand()]
	if len(queue) == 0 {
		return command.Result{}, nil
	}
	resp := queue[0]
	if len(queue) > 1 {
		r.responses[call.Subcommand()] = queue[1:]
	}
	return resp.Result, resp.Err
}

// Calls returns every call made so far.
func (r *Runner) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call(nil), r.calls...)
}

// Subcommands returns the subcommand of every call, in order.
func (r *Runner) Subcommands() []string {
	calls := r.Calls()
	out := make([]string, 0, len(calls))
	for _, c := range calls {
		out = append(out, c.Subcommand())
	}
	return out
}

// CallsTo returns the calls whose subcommand matches.
func (r *Runner) CallsTo(subcommand string) []Call {
	var out []Call
	for _, c := range r.Calls() {
		if c.Subcommand() == subcommand {
			out = append(out, c)
		}
	}
	return out
}

// Stdout is a convenience for a successful response with the given stdout.
func Stdout(s string) Response {
	return Response{Result: command.Result{Stdout: []byte(s)}}
}

// Exit is a convenience for a response with the given exit code and stderr.
func Exit(code int, stderr string) Response {
	return Response{Result: command.Result{Code: code, Stderr: []byte(stderr)}}
}

// Fail is a convenience for a runner-level failure.
func Fail(format string, args ...any) Response {
	return Response{Err: fmt.Errorf(format, args...)}
}

// String renders a call like a shell command line.
func (c Call) String() string {
	return strings.TrimSpace(c.Name + " " + strings.Join(c.Args, " "))
}
