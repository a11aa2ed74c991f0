//go:build property
// +build property

package grid

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestGenerateProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	costs := gen.SliceOfN(3, gen.IntRange(0, 3))
	windows := gen.SliceOfN(2, gen.OneConstOf(3, 5, 7, 9))
	uniq := gen.SliceOfN(2, gen.IntRange(0, 1))
	lr := gen.SliceOfN(3, gen.IntRange(0, 2))

	// Property: keys are unique whenever the axis values themselves are unique
	properties.Property("unique keys", prop.ForAll(
		func(costs, windows, uniq, lr []int) bool {
			axes := randomAxes(costs, windows, uniq, lr)
			return len(DuplicateKeys(Generate(axes))) == 0
		},
		costs, windows, uniq, lr,
	))

	// Property: with a complete penalty table the set is the full cross product
	properties.Property("cardinality", prop.ForAll(
		func(costs, windows, uniq, lr []int) bool {
			axes := randomAxes(costs, windows, uniq, lr)
			return len(Generate(axes)) == axes.Size()
		},
		costs, windows, uniq, lr,
	))

	// Property: every generated configuration survives the positional round trip
	properties.Property("args round trip", prop.ForAll(
		func(index int) bool {
			set := Generate(DefaultAxes())
			c := set[index%len(set)]
			parsed, err := ParseArgs(c.Args())
			return err == nil && parsed == c
		},
		gen.IntRange(0, 10000),
	))

	properties.TestingRun(t)
}

func randomAxes(costs, windows, uniq, lr []int) Axes {
	axes := DefaultAxes()
	axes.CostFunctions = dedupe(costs)
	axes.WindowSizes = dedupe(windows)
	axes.Uniqueness = dedupe(uniq)
	axes.LRChecks = dedupe(lr)
	axes.Penalties = fullTable(axes.CostFunctions, axes.WindowSizes)
	return axes
}

func dedupe(values []int) []int {
	seen := make(map[int]bool, len(values))
	out := make([]int, 0, len(values))
	for _, v := range values {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}

func fullTable(costFunctions, windowSizes []int) PenaltyTable {
	table := make(PenaltyTable, 0, len(costFunctions)*len(windowSizes))
	for _, cf := range costFunctions {
		for _, ws := range windowSizes {
			table = append(table, PenaltyEntry{CostFunction: cf, WindowSize: ws, P1: cf + 1, P2: ws * 10})
		}
	}
	return table
}
