package resultlog

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/sgmdse/internal/dispatch"
	dseerrors "github.com/conneroisu/sgmdse/internal/errors"
	"github.com/conneroisu/sgmdse/internal/grid"
)

func outcome(key string, success bool) dispatch.Outcome {
	o := dispatch.Outcome{
		Key:           key,
		Configuration: grid.Configuration{Height: 374, Width: 1242, NumDir: 4},
		Stage:         dispatch.StageDone,
		Start:         time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC),
		Duration:      90 * time.Second,
		Success:       success,
	}
	if !success {
		o.Stage = dispatch.StageSynthesize
		o.ExitCode = 2
		o.Error = "make exited with code 2"
		o.Output = "ERROR: csynth failed\n"
	}
	return o
}

func TestAppendAndRead(t *testing.T) {
	fs := afero.NewMemMapFs()
	log, err := Open(fs, "/ws/outcomes.jsonl")
	require.NoError(t, err)
	assert.Equal(t, "/ws/outcomes.jsonl", log.Path())

	require.NoError(t, log.Append(outcome("a", true)))
	require.NoError(t, log.Append(outcome("b", false)))
	require.NoError(t, log.Close())
	require.NoError(t, log.Close())

	outcomes, err := Read(fs, "/ws/outcomes.jsonl")
	require.NoError(t, err)
	require.Len(t, outcomes, 2)
	assert.Equal(t, outcome("a", true), outcomes[0])
	assert.Equal(t, outcome("b", false), outcomes[1])

	t.Run("append after close fails", func(t *testing.T) {
		err := log.Append(outcome("c", true))
		assert.True(t, dseerrors.IsIOError(err))
	})

	t.Run("reopen appends", func(t *testing.T) {
		again, err := Open(fs, "/ws/outcomes.jsonl")
		require.NoError(t, err)
		require.NoError(t, again.Append(outcome("a", false)))
		require.NoError(t, again.Close())

		outcomes, err := Read(fs, "/ws/outcomes.jsonl")
		require.NoError(t, err)
		assert.Len(t, outcomes, 3)

		latest := Latest(outcomes)
		require.Len(t, latest, 2)
		assert.Equal(t, "a", latest[0].Key)
		assert.False(t, latest[0].Success)
		assert.Equal(t, "b", latest[1].Key)
	})
}

func TestConcurrentAppend(t *testing.T) {
	fs := afero.NewMemMapFs()
	log, err := Open(fs, "/ws/outcomes.jsonl")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 25; i++ {
				assert.NoError(t, log.Append(outcome(fmt.Sprintf("%d_%d", w, i), true)))
			}
		}(w)
	}
	wg.Wait()
	require.NoError(t, log.Close())

	outcomes, err := Read(fs, "/ws/outcomes.jsonl")
	require.NoError(t, err)
	assert.Len(t, outcomes, 200)
	assert.Len(t, Latest(outcomes), 200)
}

func TestReadErrors(t *testing.T) {
	fs := afero.NewMemMapFs()

	_, err := Read(fs, "/missing.jsonl")
	assert.True(t, dseerrors.IsIOError(err))

	require.NoError(t, afero.WriteFile(fs, "/bad.jsonl", []byte("{\"key\":\"a\"}\n\nnot json\n"), 0o644))
	_, err = Read(fs, "/bad.jsonl")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 3")
}

func TestReport(t *testing.T) {
	fs := afero.NewMemMapFs()
	report := dispatch.Summarize([]dispatch.Outcome{outcome("a", true), outcome("b", false)})
	report.Workers = 10
	report.Started = time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)
	report.Duration = 3 * time.Minute

	require.NoError(t, WriteReport(fs, "/ws/report.yaml", report))

	data, err := afero.ReadFile(fs, "/ws/report.yaml")
	require.NoError(t, err)
	assert.Contains(t, string(data), "failed: 1")
	assert.Contains(t, string(data), "duration: 3m0s")

	loaded, err := ReadReport(fs, "/ws/report.yaml")
	require.NoError(t, err)
	assert.Equal(t, report.Total, loaded.Total)
	assert.Equal(t, report.Failed, loaded.Failed)
	assert.Equal(t, report.Duration, loaded.Duration)
	require.Len(t, loaded.Failures, 1)
	assert.Equal(t, "b", loaded.Failures[0].Key)
	assert.Equal(t, "ERROR: csynth failed\n", loaded.Failures[0].Output)

	_, err = ReadReport(fs, "/ws/none.yaml")
	assert.True(t, dseerrors.IsIOError(err))
}
