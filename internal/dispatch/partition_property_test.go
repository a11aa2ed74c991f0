//go:build property
// +build property

package dispatch

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/conneroisu/sgmdse/internal/grid"
)

func TestPartitionProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	set := func(n int) []grid.Configuration {
		out := make([]grid.Configuration, n)
		for i := range out {
			out[i] = grid.Configuration{Height: i}
		}
		return out
	}

	// Property: exactly w partitions whose sizes sum to n and differ by at most one
	properties.Property("balanced cover", prop.ForAll(
		func(n, w int) bool {
			parts, err := Partition(set(n), w)
			if err != nil || len(parts) != w {
				return false
			}
			total, lo, hi := 0, n, 0
			for _, p := range parts {
				total += len(p)
				if len(p) < lo {
					lo = len(p)
				}
				if len(p) > hi {
					hi = len(p)
				}
			}
			return total == n && hi-lo <= 1
		},
		gen.IntRange(0, 500),
		gen.IntRange(1, 64),
	))

	// Property: partitions are disjoint and concatenate back to the set
	properties.Property("disjoint and ordered", prop.ForAll(
		func(n, w int) bool {
			s := set(n)
			parts, err := Partition(s, w)
			if err != nil {
				return false
			}
			next := 0
			for _, p := range parts {
				for _, c := range p {
					if c.Height != next {
						return false
					}
					next++
				}
			}
			return next == n
		},
		gen.IntRange(0, 500),
		gen.IntRange(1, 64),
	))

	// Property: non-positive worker counts are rejected
	properties.Property("rejects empty pool", prop.ForAll(
		func(w int) bool {
			_, err := Partition(set(10), w)
			return err != nil
		},
		gen.IntRange(-100, 0),
	))

	properties.TestingRun(t)
}
