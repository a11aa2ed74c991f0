// Package synth invokes the external synthesis tool inside a workspace build
// directory.
package synth

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	dseerrors "github.com/conneroisu/sgmdse/internal/errors"
	"github.com/conneroisu/sgmdse/internal/validation"
)

// DefaultCommand is the build driver the synthesis flow is wrapped in.
const DefaultCommand = "make"

// SysrootEnv is the environment variable the cross-compilation flow reads.
const SysrootEnv = "SYSROOT"

// waitDelay bounds how long Run waits for orphaned children to release the
// output pipe after the tool is killed.
const waitDelay = 10 * time.Second

// DefaultAllowedCommands are the tools a runner may start.
var DefaultAllowedCommands = []string{"make", "gmake"}

// Runner runs the synthesis tool. Implementations must be safe for use by
// several workers at once.
type Runner interface {
	// LookPath resolves the tool executable.
	LookPath(file string) (string, error)

	// Run invokes the tool in dir and blocks until it exits.
	Run(ctx context.Context, dir string, args []string) Result
}

// Result describes one finished tool invocation.
type Result struct {
	Command  string        `json:"command" yaml:"command"`
	Args     []string      `json:"args" yaml:"args"`
	Dir      string        `json:"dir" yaml:"dir"`
	ExitCode int           `json:"exit_code" yaml:"exit_code"`
	Output   string        `json:"output,omitempty" yaml:"output,omitempty"`
	Duration time.Duration `json:"duration" yaml:"duration"`
	Err      error         `json:"-" yaml:"-"`
}

// Success reports whether the tool ran and exited zero.
func (r Result) Success() bool {
	return r.Err == nil && r.ExitCode == 0
}

// ExecError carries the combined output of a failed invocation.
type ExecError struct {
	Err    error
	Output string
}

func (e *ExecError) Error() string {
	return fmt.Sprintf("%v: %s", e.Err, Tail(e.Output, 512))
}

func (e *ExecError) Unwrap() error {
	return e.Err
}

// Options configure an ExecRunner.
type Options struct {
	Command         string
	Sysroot         string
	Timeout         time.Duration
	Env             []string
	AllowedCommands []string
}

// ExecRunner runs the tool with os/exec.
type ExecRunner struct {
	command string
	sysroot string
	timeout time.Duration
	env     []string
}

// NewExecRunner validates opts and returns a runner. An empty command means
// DefaultCommand; an empty allowlist means DefaultAllowedCommands.
func NewExecRunner(opts Options) (*ExecRunner, error) {
	command := opts.Command
	if command == "" {
		command = DefaultCommand
	}

	names := opts.AllowedCommands
	if len(names) == 0 {
		names = DefaultAllowedCommands
	}
	allowed := make(map[string]bool, len(names))
	for _, n := range names {
		allowed[n] = true
	}

	if err := validation.ValidateCommand(command, allowed); err != nil {
		return nil, dseerrors.NewSecurityError(dseerrors.ErrCodeCommandRejected, err.Error())
	}
	for _, kv := range opts.Env {
		if err := validation.ValidateAssignment(kv); err != nil {
			return nil, dseerrors.WrapConfig(err, dseerrors.ErrCodeInvalidConfig, "invalid tool environment")
		}
	}

	return &ExecRunner{
		command: command,
		sysroot: opts.Sysroot,
		timeout: opts.Timeout,
		env:     opts.Env,
	}, nil
}

// Command returns the tool the runner starts.
func (r *ExecRunner) Command() string {
	return r.command
}

// LookPath implements Runner.
func (r *ExecRunner) LookPath(file string) (string, error) {
	return exec.LookPath(file)
}

// Run implements Runner. The sysroot is passed through untouched.
func (r *ExecRunner) Run(ctx context.Context, dir string, args []string) Result {
	result := Result{Command: r.command, Args: args, Dir: dir, ExitCode: -1}

	if err := validateArgs(args); err != nil {
		result.Err = dseerrors.NewSecurityError(dseerrors.ErrCodeCommandRejected, err.Error())
		return result
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, r.command, args...)
	cmd.Dir = dir
	cmd.Env = r.environ()
	cmd.WaitDelay = waitDelay

	start := time.Now()
	output, err := cmd.CombinedOutput()
	result.Duration = time.Since(start)
	result.Output = string(output)

	if err == nil {
		result.ExitCode = 0
		return result
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		result.ExitCode = exitErr.ExitCode()
	}

	switch {
	case ctx.Err() != nil:
		result.Err = dseerrors.WrapTool(ctx.Err(), dseerrors.ErrCodeCancelled,
			fmt.Sprintf("%s interrupted", r.command)).WithPath(dir)
	case errors.Is(err, exec.ErrNotFound):
		result.Err = dseerrors.WrapTool(err, dseerrors.ErrCodeToolNotFound,
			fmt.Sprintf("%s not found", r.command)).WithPath(dir)
	default:
		result.Err = dseerrors.WrapTool(&ExecError{Err: err, Output: result.Output}, dseerrors.ErrCodeToolFailed,
			fmt.Sprintf("%s exited with code %d", r.command, result.ExitCode)).WithPath(dir)
	}
	return result
}

func (r *ExecRunner) environ() []string {
	env := append(os.Environ(), r.env...)
	if r.sysroot != "" {
		env = append(env, SysrootEnv+"="+r.sysroot)
	}
	return env
}

func validateArgs(args []string) error {
	for _, arg := range args {
		var err error
		if strings.Contains(arg, "=") {
			err = validation.ValidateAssignment(arg)
		} else {
			err = validation.ValidateArgument(arg)
		}
		if err != nil {
			return fmt.Errorf("invalid argument %q: %w", arg, err)
		}
	}
	return nil
}

// Tail returns at most the last max bytes of s, starting on a line boundary
// when one is available.
func Tail(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	tail := s[len(s)-max:]
	if i := strings.IndexByte(tail, '\n'); i >= 0 && i < len(tail)-1 {
		tail = tail[i+1:]
	}
	return tail
}
