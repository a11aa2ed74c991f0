// Package dispatch splits a configuration set across a fixed pool of workers
// and drives each configuration through materialization and synthesis.
//
// Every worker owns one contiguous partition and processes it strictly in
// order. Workers share nothing on the hot path, so no two of them ever touch
// the same workspace.
package dispatch

import (
	"fmt"

	dseerrors "github.com/conneroisu/sgmdse/internal/errors"
	"github.com/conneroisu/sgmdse/internal/grid"
)

// DefaultWorkers is the size of the worker pool when none is configured.
const DefaultWorkers = 10

// Partition splits set into exactly workers contiguous partitions. Partition
// i covers [floor(i*n/w), floor((i+1)*n/w)), so sizes differ by at most one
// and some partitions are empty when there are more workers than
// configurations.
func Partition(set []grid.Configuration, workers int) ([][]grid.Configuration, error) {
	if workers < 1 {
		return nil, dseerrors.NewValidationError(dseerrors.ErrCodeInvalidConfig,
			fmt.Sprintf("worker count must be at least 1, got %d", workers))
	}

	n := len(set)
	parts := make([][]grid.Configuration, workers)
	for i := 0; i < workers; i++ {
		lo := i * n / workers
		hi := (i + 1) * n / workers
		parts[i] = set[lo:hi:hi]
	}
	return parts, nil
}
