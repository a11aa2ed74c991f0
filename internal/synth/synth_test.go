package synth

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dseerrors "github.com/conneroisu/sgmdse/internal/errors"
	"github.com/conneroisu/sgmdse/internal/grid"
)

func TestMakeArgs(t *testing.T) {
	c := grid.Configuration{
		Height: 374, Width: 1242, CostFunction: 2, WindowSize: 7,
		MaxDisparity: 128, ParallelDisparity: 16, NumDir: 4,
		Uniqueness: 1, LRCheck: 2, FilterWin: 5, ShdWindow: 3,
		P1: 80, P2: 3200,
	}

	assert.Equal(t, []string{
		"-f", "Makefile",
		"NUM_DIR=4", "WINDOW_SIZE=7", "SHD_WINDOW=3", "NUM_DISPARITY=128",
		"PARALLEL_DISPARITIES=16", "FilterWin=5", "HEIGHT=374", "WIDTH=1242",
		"SMALL_PENALTY=80", "LARGE_PENALTY=3200",
		"COST_FUNCTION=2", "UNIQ=1", "LR_CHECK=2",
	}, MakeArgs(c, "Makefile"))

	args := MakeArgs(c, "")
	assert.Len(t, args, 13)
	assert.Equal(t, "NUM_DIR=4", args[0])
	assert.NoError(t, validateArgs(args))
}

func TestNewExecRunner(t *testing.T) {
	tests := []struct {
		name    string
		opts    Options
		wantErr bool
	}{
		{"default command", Options{}, false},
		{"gmake allowed", Options{Command: "gmake"}, false},
		{"absolute path to make", Options{Command: "/usr/bin/make"}, false},
		{"custom allowlist", Options{Command: "sds++", AllowedCommands: []string{"sds++"}}, false},
		{"not allowed", Options{Command: "rm"}, true},
		{"injection", Options{Command: "make; rm -rf /"}, true},
		{"bad env", Options{Env: []string{"XILINX=$(id)"}}, true},
		{"env without value", Options{Env: []string{"XILINX"}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := NewExecRunner(tt.opts)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotEmpty(t, r.Command())
		})
	}

	t.Run("rejected command is a security error", func(t *testing.T) {
		_, err := NewExecRunner(Options{Command: "curl"})
		var dseErr *dseerrors.DSEError
		require.ErrorAs(t, err, &dseErr)
		assert.Equal(t, dseerrors.ErrorTypeSecurity, dseErr.Type)
		assert.Equal(t, dseerrors.ErrCodeCommandRejected, dseErr.Code)
	})
}

func shRunner(t *testing.T, opts Options) *ExecRunner {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	opts.Command = "sh"
	opts.AllowedCommands = []string{"sh"}
	r, err := NewExecRunner(opts)
	require.NoError(t, err)
	return r
}

func TestExecRunnerRun(t *testing.T) {
	dir := t.TempDir()

	t.Run("success captures output and sysroot", func(t *testing.T) {
		require.NoError(t, writeScript(dir, "ok.sh", "echo sysroot=$SYSROOT\necho args=$*\n"))
		r := shRunner(t, Options{Sysroot: "/opt/sysroot"})

		result := r.Run(context.Background(), dir, []string{"ok.sh", "HEIGHT=374"})
		require.NoError(t, result.Err)
		assert.True(t, result.Success())
		assert.Equal(t, 0, result.ExitCode)
		assert.Contains(t, result.Output, "sysroot=/opt/sysroot")
		assert.Contains(t, result.Output, "args=HEIGHT=374")
		assert.Equal(t, dir, result.Dir)
	})

	t.Run("non-zero exit is a tool error", func(t *testing.T) {
		require.NoError(t, writeScript(dir, "fail.sh", "echo synthesis failed\nexit 3\n"))
		r := shRunner(t, Options{})

		result := r.Run(context.Background(), dir, []string{"fail.sh"})
		assert.False(t, result.Success())
		assert.Equal(t, 3, result.ExitCode)
		assert.True(t, dseerrors.IsToolError(result.Err))
		assert.Contains(t, result.Err.Error(), "synthesis failed")
	})

	t.Run("timeout stops the tool", func(t *testing.T) {
		require.NoError(t, writeScript(dir, "slow.sh", "exec sleep 5\n"))
		r := shRunner(t, Options{Timeout: 50 * time.Millisecond})

		result := r.Run(context.Background(), dir, []string{"slow.sh"})
		assert.False(t, result.Success())

		var dseErr *dseerrors.DSEError
		require.ErrorAs(t, result.Err, &dseErr)
		assert.Equal(t, dseerrors.ErrCodeCancelled, dseErr.Code)
		assert.Less(t, result.Duration, 5*time.Second)
	})

	t.Run("dangerous arguments never reach the tool", func(t *testing.T) {
		r := shRunner(t, Options{})
		result := r.Run(context.Background(), dir, []string{"-c", "echo hi; rm -rf /"})
		require.Error(t, result.Err)
		assert.Equal(t, -1, result.ExitCode)
		assert.Empty(t, result.Output)
	})
}

func writeScript(dir, name, body string) error {
	return os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644)
}

func TestTail(t *testing.T) {
	assert.Equal(t, "short", Tail("short", 100))
	assert.Equal(t, "everything", Tail("everything", 0))

	long := strings.Repeat("line of output\n", 100) + "ERROR: timing not met\n"
	tail := Tail(long, 40)
	assert.LessOrEqual(t, len(tail), 40)
	assert.True(t, strings.HasSuffix(tail, "ERROR: timing not met\n"))
	assert.False(t, strings.HasPrefix(tail, "ine"))
}

func TestRecordingRunner(t *testing.T) {
	r := &RecordingRunner{
		RunFunc: func(_ context.Context, dir string, args []string) Result {
			if strings.Contains(dir, "bad") {
				return Result{ExitCode: 2, Err: dseerrors.NewToolError(dseerrors.ErrCodeToolFailed, "boom", nil)}
			}
			return Result{Dir: dir, Args: args}
		},
	}

	assert.True(t, r.Run(context.Background(), "/ws/good", []string{"-f", "Makefile"}).Success())
	assert.False(t, r.Run(context.Background(), "/ws/bad", nil).Success())

	calls := r.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "/ws/good", calls[0].Dir)
	assert.Equal(t, "-f Makefile", calls[0].String())

	path, err := r.LookPath("make")
	require.NoError(t, err)
	assert.Equal(t, "/usr/bin/make", path)
}
