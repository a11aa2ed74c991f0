package dispatch

import (
	"context"
	"time"

	dseerrors "github.com/conneroisu/sgmdse/internal/errors"
	"github.com/conneroisu/sgmdse/internal/grid"
)

// Run is one launched sweep.
type Run struct {
	started    time.Time
	workers    int
	partitions [][]grid.Configuration

	// outcomes[w] is written only by worker w until done is closed.
	outcomes [][]Outcome

	done   chan struct{}
	report Report
	err    error
}

// Partitions returns the assignment of configurations to workers.
func (r *Run) Partitions() [][]grid.Configuration {
	return r.partitions
}

// Done is closed once every worker has finished.
func (r *Run) Done() <-chan struct{} {
	return r.done
}

// Wait blocks until every worker has finished and returns the report.
func (r *Run) Wait() Report {
	<-r.done
	return r.report
}

// Err waits for the run and returns every failure combined into one error,
// or nil when all configurations succeeded.
func (r *Run) Err() error {
	<-r.done
	return r.err
}

// Outcomes waits for the run and returns every outcome in set order.
func (r *Run) Outcomes() []Outcome {
	<-r.done
	var all []Outcome
	for _, o := range r.outcomes {
		all = append(all, o...)
	}
	return all
}

func (r *Run) record(worker int, o Outcome) {
	r.outcomes[worker] = append(r.outcomes[worker], o)
}

// finish fills in outcomes a panicking worker never recorded, then builds
// the report.
func (r *Run) finish(ctx context.Context, d *Dispatcher, panicErr error) {
	if panicErr != nil {
		for w, part := range r.partitions {
			for index := len(r.outcomes[w]); index < len(part); index++ {
				c := part[index]
				err := dseerrors.WrapInternal(panicErr, dseerrors.ErrCodeInternalError, "worker stopped unexpectedly").
					WithKey(c.Key()).WithStage(StageInternal)
				o := Outcome{
					Key:           c.Key(),
					Configuration: c,
					Worker:        w,
					Index:         index,
					Stage:         StageInternal,
					ExitCode:      -1,
					Error:         err.Error(),
					Start:         time.Now(),
					Err:           err,
				}
				r.record(w, o)
				d.notify(o)
			}
		}
	}

	var all []Outcome
	var errs error
	for _, outcomes := range r.outcomes {
		for _, o := range outcomes {
			all = append(all, o)
			if !o.Success && o.Err != nil {
				errs = dseerrors.Append(errs, o.Err)
			}
		}
	}

	r.report = Summarize(all)
	r.report.Workers = r.workers
	r.report.Started = r.started
	r.report.Duration = time.Since(r.started)
	r.err = errs

	d.logger.Info(ctx, "Sweep finished",
		"total", r.report.Total,
		"succeeded", r.report.Succeeded,
		"failed", r.report.Failed,
		"skipped", r.report.Skipped,
		"duration", r.report.Duration.String())
	close(r.done)
}
