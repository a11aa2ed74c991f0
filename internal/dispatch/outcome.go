package dispatch

import (
	"time"

	"github.com/conneroisu/sgmdse/internal/grid"
)

// Stages recorded on an outcome in addition to the workspace stages.
const (
	StageSynthesize = "synthesize"
	StageDone       = "done"
	StageSkipped    = "skipped"
	StageInternal   = "internal"
)

// Outcome statuses.
const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
	StatusSkipped   = "skipped"
)

// Outcome records what happened to one configuration.
type Outcome struct {
	Key           string             `json:"key" yaml:"key"`
	Configuration grid.Configuration `json:"configuration" yaml:"configuration"`
	Worker        int                `json:"worker" yaml:"worker"`
	Index         int                `json:"index" yaml:"index"`
	Workspace     string             `json:"workspace,omitempty" yaml:"workspace,omitempty"`
	Stage         string             `json:"stage" yaml:"stage"`
	ExitCode      int                `json:"exit_code" yaml:"exit_code"`
	Output        string             `json:"output,omitempty" yaml:"output,omitempty"`
	Error         string             `json:"error,omitempty" yaml:"error,omitempty"`
	Start         time.Time          `json:"start" yaml:"start"`
	Duration      time.Duration      `json:"duration" yaml:"duration"`
	Success       bool               `json:"success" yaml:"success"`
	Skipped       bool               `json:"skipped,omitempty" yaml:"skipped,omitempty"`

	Err error `json:"-" yaml:"-"`
}

// Status summarizes the outcome in one word.
func (o Outcome) Status() string {
	switch {
	case o.Skipped:
		return StatusSkipped
	case o.Success:
		return StatusSucceeded
	default:
		return StatusFailed
	}
}

// Report aggregates the outcomes of a sweep.
type Report struct {
	Total     int           `json:"total" yaml:"total"`
	Succeeded int           `json:"succeeded" yaml:"succeeded"`
	Failed    int           `json:"failed" yaml:"failed"`
	Skipped   int           `json:"skipped" yaml:"skipped"`
	Workers   int           `json:"workers" yaml:"workers"`
	Started   time.Time     `json:"started" yaml:"started"`
	Duration  time.Duration `json:"duration" yaml:"duration"`
	Failures  []Outcome     `json:"failures,omitempty" yaml:"failures,omitempty"`
}

// OK reports whether every configuration succeeded.
func (r Report) OK() bool {
	return r.Failed == 0 && r.Skipped == 0
}

// Summarize builds a report from outcomes.
func Summarize(outcomes []Outcome) Report {
	report := Report{Total: len(outcomes)}
	for _, o := range outcomes {
		switch o.Status() {
		case StatusSucceeded:
			report.Succeeded++
		case StatusSkipped:
			report.Skipped++
		default:
			report.Failed++
			report.Failures = append(report.Failures, o)
		}
	}
	return report
}
