package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sourcegraph/conc"

	dseerrors "github.com/conneroisu/sgmdse/internal/errors"
	"github.com/conneroisu/sgmdse/internal/grid"
	"github.com/conneroisu/sgmdse/internal/logging"
	"github.com/conneroisu/sgmdse/internal/synth"
	"github.com/conneroisu/sgmdse/internal/workspace"
)

// DefaultOutputTail is how many bytes of tool output an outcome keeps.
const DefaultOutputTail = 4096

// Materializer prepares the workspace of one configuration.
type Materializer interface {
	Prepare(ctx context.Context, c grid.Configuration) (workspace.Paths, error)
}

// OutcomeCallback receives every outcome as soon as it is recorded. It is
// called from worker goroutines and must be safe for concurrent use.
type OutcomeCallback func(Outcome)

// Options configure a Dispatcher.
type Options struct {
	Workers    int
	BuildFile  string
	OutputTail int
	Logger     logging.Logger
	Metrics    *Metrics
}

// Dispatcher runs configuration sets on a fixed pool of workers.
type Dispatcher struct {
	materializer Materializer
	runner       synth.Runner
	workers      int
	buildFile    string
	outputTail   int
	logger       logging.Logger
	metrics      *Metrics

	// mu protects callbacks
	mu        sync.RWMutex
	callbacks []OutcomeCallback
}

// New creates a dispatcher. Workers must be at least one.
func New(m Materializer, r synth.Runner, opts Options) (*Dispatcher, error) {
	if opts.Workers < 1 {
		return nil, dseerrors.NewValidationError(dseerrors.ErrCodeInvalidConfig,
			fmt.Sprintf("worker count must be at least 1, got %d", opts.Workers))
	}
	if opts.OutputTail <= 0 {
		opts.OutputTail = DefaultOutputTail
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewNopLogger()
	}
	if opts.Metrics == nil {
		opts.Metrics = NewMetrics()
	}

	return &Dispatcher{
		materializer: m,
		runner:       r,
		workers:      opts.Workers,
		buildFile:    opts.BuildFile,
		outputTail:   opts.OutputTail,
		logger:       opts.Logger.WithComponent("dispatch"),
		metrics:      opts.Metrics,
	}, nil
}

// Workers returns the pool size.
func (d *Dispatcher) Workers() int {
	return d.workers
}

// Metrics returns the live progress counters.
func (d *Dispatcher) Metrics() *Metrics {
	return d.metrics
}

// OnOutcome registers a callback for recorded outcomes.
func (d *Dispatcher) OnOutcome(cb OutcomeCallback) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.callbacks = append(d.callbacks, cb)
}

// Launch partitions set, starts one worker per non-empty partition and
// returns without waiting. Call Wait on the returned Run to block until every
// worker has finished. Cancelling ctx stops each worker before its next
// configuration; the remaining ones are recorded as skipped.
func (d *Dispatcher) Launch(ctx context.Context, set []grid.Configuration) (*Run, error) {
	parts, err := Partition(set, d.workers)
	if err != nil {
		return nil, err
	}

	run := &Run{
		started:    time.Now(),
		workers:    d.workers,
		partitions: parts,
		outcomes:   make([][]Outcome, len(parts)),
		done:       make(chan struct{}),
	}

	d.logger.Info(ctx, "Dispatching configurations", "configurations", len(set), "workers", d.workers)
	for i, part := range parts {
		if len(part) == 0 {
			d.logger.Debug(ctx, "Worker idle", "worker", i)
			continue
		}
		d.logger.Info(ctx, "Worker assignment", "worker", i, "configurations", len(part),
			"first", part[0].Key(), "last", part[len(part)-1].Key())
	}

	var wg conc.WaitGroup
	for i, part := range parts {
		if len(part) == 0 {
			continue
		}
		worker, part := i, part
		wg.Go(func() {
			d.work(ctx, run, worker, part)
		})
	}

	go func() {
		recovered := wg.WaitAndRecover()
		if recovered != nil {
			d.logger.Error(ctx, recovered.AsError(), "Worker panicked")
		}
		run.finish(ctx, d, recovered.AsError())
	}()

	return run, nil
}

// work processes one partition in order. A failed configuration never stops
// the worker.
func (d *Dispatcher) work(ctx context.Context, run *Run, worker int, part []grid.Configuration) {
	logger := d.logger.With("worker", worker)
	logger.Info(ctx, "Worker started", "configurations", len(part))

	failed := 0
	for index, c := range part {
		var o Outcome
		if err := ctx.Err(); err != nil {
			o = skipped(worker, index, c, err)
		} else {
			o = d.process(ctx, logger, worker, index, c)
		}
		if o.Status() == StatusFailed {
			failed++
		}
		run.record(worker, o)
		d.notify(o)
	}

	logger.Info(ctx, "Worker finished", "configurations", len(part), "failed", failed)
}

// process materializes c and runs the synthesis tool in its build directory.
func (d *Dispatcher) process(ctx context.Context, logger logging.Logger, worker, index int, c grid.Configuration) Outcome {
	key := c.Key()
	perf := logging.StartOperation(logger.With("key", key), "configuration")

	d.metrics.InFlight.Inc()
	defer d.metrics.InFlight.Dec()

	o := Outcome{
		Key:           key,
		Configuration: c,
		Worker:        worker,
		Index:         index,
		Start:         time.Now(),
		ExitCode:      -1,
	}

	paths, err := d.materializer.Prepare(ctx, c)
	o.Workspace = paths.Root
	if err != nil {
		o.Stage = stageOf(err, workspace.StageCreate)
		o.Err = err
		o.Error = err.Error()
		o.Duration = perf.EndWithError(ctx, err, "stage", o.Stage)
		return o
	}

	o.Stage = StageSynthesize
	result := d.runner.Run(ctx, paths.Build, synth.MakeArgs(c, d.buildFile))
	o.ExitCode = result.ExitCode
	o.Output = synth.Tail(result.Output, d.outputTail)

	if !result.Success() {
		err := result.Err
		if err == nil {
			err = dseerrors.NewToolError(dseerrors.ErrCodeToolFailed,
				fmt.Sprintf("tool exited with code %d", result.ExitCode), nil)
		}
		var de *dseerrors.DSEError
		if errors.As(err, &de) && de.Key == "" {
			err = de.WithKey(key).WithStage(StageSynthesize)
		}
		o.Err = err
		o.Error = err.Error()
		o.Duration = perf.EndWithError(ctx, err, "stage", o.Stage, "exit_code", o.ExitCode)
		return o
	}

	o.Stage = StageDone
	o.Success = true
	o.Duration = perf.End(ctx, "workspace", paths.Root)
	return o
}

func (d *Dispatcher) notify(o Outcome) {
	d.metrics.Record(o)

	d.mu.RLock()
	callbacks := d.callbacks
	d.mu.RUnlock()

	for _, cb := range callbacks {
		cb(o)
	}
}

func skipped(worker, index int, c grid.Configuration, cause error) Outcome {
	err := dseerrors.WrapInternal(cause, dseerrors.ErrCodeCancelled, "sweep cancelled before configuration started").
		WithKey(c.Key()).WithStage(StageSkipped)
	return Outcome{
		Key:           c.Key(),
		Configuration: c,
		Worker:        worker,
		Index:         index,
		Stage:         StageSkipped,
		ExitCode:      -1,
		Error:         err.Error(),
		Start:         time.Now(),
		Skipped:       true,
		Err:           err,
	}
}

func stageOf(err error, fallback string) string {
	var de *dseerrors.DSEError
	if errors.As(err, &de) && de.Stage != "" {
		return de.Stage
	}
	return fallback
}
