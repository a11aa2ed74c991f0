package synth

import (
	"context"
	"strings"
	"sync"
)

// Call is one invocation seen by a RecordingRunner.
type Call struct {
	Dir  string
	Args []string
}

// String renders the call as a command line.
func (c Call) String() string {
	return strings.Join(c.Args, " ")
}

// RecordingRunner records invocations instead of running anything. RunFunc
// scripts the result; by default every call succeeds.
type RecordingRunner struct {
	RunFunc      func(ctx context.Context, dir string, args []string) Result
	LookPathFunc func(file string) (string, error)

	mu    sync.Mutex
	calls []Call
}

// LookPath implements Runner.
func (r *RecordingRunner) LookPath(file string) (string, error) {
	if r.LookPathFunc != nil {
		return r.LookPathFunc(file)
	}
	return "/usr/bin/" + file, nil
}

// Run implements Runner.
func (r *RecordingRunner) Run(ctx context.Context, dir string, args []string) Result {
	r.mu.Lock()
	r.calls = append(r.calls, Call{Dir: dir, Args: append([]string(nil), args...)})
	r.mu.Unlock()

	if r.RunFunc != nil {
		return r.RunFunc(ctx, dir, args)
	}
	return Result{Command: DefaultCommand, Args: args, Dir: dir}
}

// Calls returns a copy of the recorded invocations in arrival order.
func (r *RecordingRunner) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call(nil), r.calls...)
}
