package dispatch

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dseerrors "github.com/conneroisu/sgmdse/internal/errors"
	"github.com/conneroisu/sgmdse/internal/grid"
	"github.com/conneroisu/sgmdse/internal/synth"
	"github.com/conneroisu/sgmdse/internal/testutils"
	"github.com/conneroisu/sgmdse/internal/workspace"
)

// fakeMaterializer hands out build directories without touching disk.
type fakeMaterializer struct {
	fail func(grid.Configuration) error
}

func (f *fakeMaterializer) Prepare(_ context.Context, c grid.Configuration) (workspace.Paths, error) {
	root := filepath.Join("/ws", c.Key())
	paths := workspace.Paths{Root: root, Src: root + "/src", Lib: root + "/src/lib_accel", Build: root + "/build"}
	if f.fail != nil {
		if err := f.fail(c); err != nil {
			return paths, err
		}
	}
	return paths, nil
}

func sweepSet() []grid.Configuration {
	axes := grid.DefaultAxes()
	axes.Disparities = []grid.DisparityPair{{Range: 64, Parallel: 16}}
	return grid.Generate(axes)
}

func newDispatcher(t *testing.T, runner synth.Runner, workers int) *Dispatcher {
	t.Helper()
	d, err := New(&fakeMaterializer{}, runner, Options{Workers: workers, BuildFile: "Makefile"})
	require.NoError(t, err)
	return d
}

func TestPartition(t *testing.T) {
	set := sweepSet()
	require.Len(t, set, 48)

	t.Run("48 across 10 workers", func(t *testing.T) {
		parts, err := Partition(set, 10)
		require.NoError(t, err)
		require.Len(t, parts, 10)

		sizes := make([]int, len(parts))
		total := 0
		for i, p := range parts {
			sizes[i] = len(p)
			total += len(p)
		}
		assert.Equal(t, 48, total)
		assert.Equal(t, []int{4, 5, 5, 5, 5, 4, 5, 5, 5, 5}, sizes)
	})

	t.Run("concatenation reproduces the set", func(t *testing.T) {
		parts, err := Partition(set, 7)
		require.NoError(t, err)

		var joined []grid.Configuration
		for _, p := range parts {
			joined = append(joined, p...)
		}
		assert.Equal(t, set, joined)
	})

	t.Run("more workers than configurations", func(t *testing.T) {
		parts, err := Partition(set[:3], 5)
		require.NoError(t, err)
		require.Len(t, parts, 5)

		empty := 0
		for _, p := range parts {
			assert.LessOrEqual(t, len(p), 1)
			if len(p) == 0 {
				empty++
			}
		}
		assert.Equal(t, 2, empty)
	})

	t.Run("empty set", func(t *testing.T) {
		parts, err := Partition(nil, 3)
		require.NoError(t, err)
		assert.Len(t, parts, 3)
	})

	t.Run("single worker takes everything", func(t *testing.T) {
		parts, err := Partition(set, 1)
		require.NoError(t, err)
		assert.Equal(t, [][]grid.Configuration{set}, parts)
	})

	for _, w := range []int{0, -1} {
		_, err := Partition(set, w)
		require.Error(t, err)
		var dseErr *dseerrors.DSEError
		require.ErrorAs(t, err, &dseErr)
		assert.Equal(t, dseerrors.ErrorTypeValidation, dseErr.Type)
	}

	t.Run("appending to a partition never overwrites its neighbour", func(t *testing.T) {
		parts, err := Partition(set, 2)
		require.NoError(t, err)
		next := parts[1][0]
		_ = append(parts[0], grid.Configuration{})
		assert.Equal(t, next, parts[1][0])
	})
}

func TestNewValidatesWorkers(t *testing.T) {
	_, err := New(&fakeMaterializer{}, &synth.RecordingRunner{}, Options{Workers: 0})
	require.Error(t, err)
}

func TestLaunchAllSucceed(t *testing.T) {
	runner := &synth.RecordingRunner{}
	d := newDispatcher(t, runner, 10)

	var mu sync.Mutex
	var seen []string
	d.OnOutcome(func(o Outcome) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, o.Key)
	})

	set := sweepSet()
	run, err := d.Launch(context.Background(), set)
	require.NoError(t, err)

	report := run.Wait()
	assert.Equal(t, 48, report.Total)
	assert.Equal(t, 48, report.Succeeded)
	assert.Zero(t, report.Failed)
	assert.True(t, report.OK())
	assert.Equal(t, 10, report.Workers)
	require.NoError(t, run.Err())

	calls := runner.Calls()
	require.Len(t, calls, 48)
	dirs := make(map[string]bool)
	for _, c := range calls {
		assert.True(t, strings.HasSuffix(c.Dir, "/build"))
		assert.Equal(t, []string{"-f", "Makefile"}, c.Args[:2])
		dirs[c.Dir] = true
	}
	assert.Len(t, dirs, 48)
	assert.Len(t, seen, 48)

	snapshot := d.Metrics().Snapshot()
	assert.Equal(t, int64(48), snapshot.Total)
	assert.Equal(t, int64(48), snapshot.Succeeded)
	assert.Zero(t, snapshot.InFlight)
	assert.Equal(t, 100.0, d.Metrics().SuccessRate())
}

func TestLaunchPreservesOrderWithinWorkers(t *testing.T) {
	d := newDispatcher(t, &synth.RecordingRunner{}, 4)
	set := sweepSet()

	run, err := d.Launch(context.Background(), set)
	require.NoError(t, err)

	outcomes := run.Outcomes()
	require.Len(t, outcomes, len(set))
	for i, o := range outcomes {
		assert.Equal(t, set[i].Key(), o.Key)
		assert.Equal(t, StageDone, o.Stage)
	}

	for w, part := range run.Partitions() {
		for i, c := range part {
			o := outcomes[indexOf(set, c)]
			assert.Equal(t, w, o.Worker)
			assert.Equal(t, i, o.Index)
		}
	}
}

func indexOf(set []grid.Configuration, c grid.Configuration) int {
	for i, s := range set {
		if s == c {
			return i
		}
	}
	return -1
}

func TestFailuresDoNotStopWorkers(t *testing.T) {
	runner := &synth.RecordingRunner{
		RunFunc: func(_ context.Context, dir string, args []string) synth.Result {
			for _, a := range args {
				if a == "LR_CHECK=1" {
					return synth.Result{ExitCode: 2, Output: "ERROR: [HLS 200-70] failed\n"}
				}
			}
			return synth.Result{Dir: dir, Args: args}
		},
	}
	d := newDispatcher(t, runner, 3)

	run, err := d.Launch(context.Background(), sweepSet())
	require.NoError(t, err)
	report := run.Wait()

	assert.Equal(t, 48, report.Total)
	assert.Equal(t, 16, report.Failed)
	assert.Equal(t, 32, report.Succeeded)
	assert.False(t, report.OK())
	require.Len(t, report.Failures, 16)
	assert.Len(t, runner.Calls(), 48)

	failure := report.Failures[0]
	assert.Equal(t, StageSynthesize, failure.Stage)
	assert.Equal(t, 2, failure.ExitCode)
	assert.Contains(t, failure.Output, "HLS 200-70")
	assert.Equal(t, 1, failure.Configuration.LRCheck)

	err = run.Err()
	require.Error(t, err)
	assert.Len(t, dseerrors.Errors(err), 16)
	assert.True(t, dseerrors.IsToolError(dseerrors.Errors(err)[0]))
}

func TestMaterializationFailure(t *testing.T) {
	runner := &synth.RecordingRunner{}
	m := &fakeMaterializer{fail: func(c grid.Configuration) error {
		if c.CostFunction == 3 {
			return dseerrors.NewIOError(dseerrors.ErrCodeWorkspace, "disk full", nil).
				WithKey(c.Key()).WithStage(workspace.StageSources)
		}
		return nil
	}}
	d, err := New(m, runner, Options{Workers: 2})
	require.NoError(t, err)

	run, err := d.Launch(context.Background(), sweepSet())
	require.NoError(t, err)
	report := run.Wait()

	assert.Equal(t, 12, report.Failed)
	assert.Len(t, runner.Calls(), 36)
	for _, f := range report.Failures {
		assert.Equal(t, workspace.StageSources, f.Stage)
		assert.Equal(t, -1, f.ExitCode)
	}
}

func TestLaunchReturnsImmediately(t *testing.T) {
	release := make(chan struct{})
	runner := &synth.RecordingRunner{
		RunFunc: func(ctx context.Context, dir string, args []string) synth.Result {
			<-release
			return synth.Result{}
		},
	}
	d := newDispatcher(t, runner, 4)

	run, err := d.Launch(context.Background(), sweepSet()[:8])
	require.NoError(t, err)

	select {
	case <-run.Done():
		t.Fatal("run finished before any tool call returned")
	default:
	}

	// every worker reaches the tool at the same time
	assert.Eventually(t, func() bool {
		return d.Metrics().InFlight.Load() == 4
	}, 2*time.Second, 5*time.Millisecond)

	close(release)
	report := run.Wait()
	assert.Equal(t, 8, report.Succeeded)
}

func TestCancellationSkipsRemaining(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runner := &synth.RecordingRunner{
		RunFunc: func(context.Context, string, []string) synth.Result {
			cancel()
			return synth.Result{}
		},
	}
	d := newDispatcher(t, runner, 1)

	run, err := d.Launch(ctx, sweepSet()[:5])
	require.NoError(t, err)
	report := run.Wait()

	assert.Equal(t, 5, report.Total)
	assert.Equal(t, 1, report.Succeeded)
	assert.Equal(t, 4, report.Skipped)
	assert.Zero(t, report.Failed)
	assert.Len(t, runner.Calls(), 1)

	for _, o := range run.Outcomes()[1:] {
		assert.Equal(t, StageSkipped, o.Stage)
		assert.Equal(t, StatusSkipped, o.Status())
	}
	assert.Equal(t, int64(4), d.Metrics().Snapshot().Skipped)
}

func TestWorkerPanicIsContained(t *testing.T) {
	set := sweepSet()[:4]
	runner := &synth.RecordingRunner{
		RunFunc: func(_ context.Context, dir string, _ []string) synth.Result {
			if strings.Contains(dir, set[0].Key()) {
				panic("tool wrapper crashed")
			}
			return synth.Result{}
		},
	}
	d := newDispatcher(t, runner, 2)

	run, err := d.Launch(context.Background(), set)
	require.NoError(t, err)
	report := run.Wait()

	assert.Equal(t, 4, report.Total)
	assert.Equal(t, 2, report.Succeeded)
	assert.Equal(t, 2, report.Failed)
	for _, f := range report.Failures {
		assert.Equal(t, 0, f.Worker)
		assert.Equal(t, StageInternal, f.Stage)
	}
}

func TestLaunchEmptySet(t *testing.T) {
	runner := &synth.RecordingRunner{}
	d := newDispatcher(t, runner, 10)

	run, err := d.Launch(context.Background(), nil)
	require.NoError(t, err)

	report := run.Wait()
	assert.Zero(t, report.Total)
	assert.NoError(t, run.Err())
	assert.Empty(t, runner.Calls())
}

func TestLaunchWithWorkspaces(t *testing.T) {
	fs := afero.NewMemMapFs()
	layout := testutils.CreateTemplateTree(t, fs, "/tpl", "/ws")
	runner := &synth.RecordingRunner{}

	d, err := New(workspace.NewMaterializer(fs, layout, nil), runner, Options{Workers: 2, BuildFile: layout.BuildFile})
	require.NoError(t, err)

	a := sweepSet()[0]
	b := a
	b.LRCheck = 2

	run, err := d.Launch(context.Background(), []grid.Configuration{a, b})
	require.NoError(t, err)
	report := run.Wait()
	require.True(t, report.OK(), "%+v", report.Failures)

	entries, err := afero.ReadDir(fs, "/ws")
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	for _, c := range runner.Calls() {
		exists, err := afero.Exists(fs, filepath.Join(c.Dir, "Makefile"))
		require.NoError(t, err)
		assert.True(t, exists, c.Dir)
	}
}

func TestSummarize(t *testing.T) {
	report := Summarize([]Outcome{
		{Key: "a", Success: true},
		{Key: "b"},
		{Key: "c", Skipped: true},
	})
	assert.Equal(t, 3, report.Total)
	assert.Equal(t, 1, report.Succeeded)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 1, report.Skipped)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, "b", report.Failures[0].Key)
}

func TestMetrics(t *testing.T) {
	m := NewMetrics()
	m.Record(Outcome{Success: true, Duration: 2 * time.Second})
	m.Record(Outcome{Duration: 4 * time.Second})
	m.Record(Outcome{Skipped: true})

	s := m.Snapshot()
	assert.Equal(t, int64(3), s.Total)
	assert.Equal(t, int64(1), s.Succeeded)
	assert.Equal(t, int64(1), s.Failed)
	assert.Equal(t, int64(1), s.Skipped)
	assert.Equal(t, 3*time.Second, s.AverageDuration)
	assert.Equal(t, 4*time.Second, s.MaxDuration)
	assert.Equal(t, 50.0, m.SuccessRate())
	assert.Equal(t, 0.0, NewMetrics().SuccessRate())
}
