// Package grid expands the accelerator parameter grid into the flat, ordered
// set of configurations that a sweep synthesizes.
//
// Independent axes are crossed. The penalty pair is the one correlated axis:
// it is looked up from an explicit table keyed by cost function and window
// size, so the pairing does not depend on loop order.
package grid

import (
	"fmt"
	"sort"

	dseerrors "github.com/conneroisu/sgmdse/internal/errors"
)

// DefaultSupportedPathCount is the only aggregation path count the
// accelerator architecture currently builds.
const DefaultSupportedPathCount = 4

// DisparityPair couples a disparity range with the number of disparities the
// hardware evaluates in parallel. The two always move together.
type DisparityPair struct {
	Range    int `mapstructure:"range" json:"range" yaml:"range"`
	Parallel int `mapstructure:"parallel" json:"parallel" yaml:"parallel"`
}

// PenaltyPair holds the small (P1) and large (P2) SGM smoothness penalties.
type PenaltyPair struct {
	P1 int `mapstructure:"p1" json:"p1" yaml:"p1"`
	P2 int `mapstructure:"p2" json:"p2" yaml:"p2"`
}

// PenaltyEntry is one row of a PenaltyTable.
type PenaltyEntry struct {
	CostFunction int `mapstructure:"cost_function" json:"cost_function" yaml:"cost_function"`
	WindowSize   int `mapstructure:"window_size" json:"window_size" yaml:"window_size"`
	P1           int `mapstructure:"p1" json:"p1" yaml:"p1"`
	P2           int `mapstructure:"p2" json:"p2" yaml:"p2"`
}

// PenaltyTable maps (cost function, window size) to a penalty pair. Rows are
// kept in declaration order so the table round-trips through config files.
type PenaltyTable []PenaltyEntry

// Lookup returns the penalty pair declared for the cost function and window.
func (t PenaltyTable) Lookup(costFunction, windowSize int) (PenaltyPair, bool) {
	for _, e := range t {
		if e.CostFunction == costFunction && e.WindowSize == windowSize {
			return PenaltyPair{P1: e.P1, P2: e.P2}, true
		}
	}
	return PenaltyPair{}, false
}

// DefaultPenaltyTable returns the penalty pairs tuned for each cost function
// and window size of the production grid.
func DefaultPenaltyTable() PenaltyTable {
	return PenaltyTable{
		{CostFunction: 0, WindowSize: 5, P1: 5, P2: 36},
		{CostFunction: 0, WindowSize: 7, P1: 5, P2: 56},
		{CostFunction: 1, WindowSize: 5, P1: 5, P2: 26},
		{CostFunction: 1, WindowSize: 7, P1: 5, P2: 46},
		{CostFunction: 2, WindowSize: 5, P1: 50, P2: 1500},
		{CostFunction: 2, WindowSize: 7, P1: 80, P2: 3200},
		{CostFunction: 3, WindowSize: 5, P1: 10, P2: 600},
		{CostFunction: 3, WindowSize: 7, P1: 30, P2: 1290},
	}
}

// PositionalPenaltyTable builds a table from an ordered penalty list the way
// legacy sweep scripts consumed it: one pair per (cost function, window size)
// step, cost function outermost.
func PositionalPenaltyTable(costFunctions, windowSizes []int, pairs []PenaltyPair) (PenaltyTable, error) {
	need := len(costFunctions) * len(windowSizes)
	if len(pairs) < need {
		return nil, dseerrors.NewConfigError(dseerrors.ErrCodeInvalidConfig,
			fmt.Sprintf("positional penalty list has %d pairs, grid needs %d", len(pairs), need))
	}

	table := make(PenaltyTable, 0, need)
	index := 0
	for _, cf := range costFunctions {
		for _, ws := range windowSizes {
			p := pairs[index]
			index++
			table = append(table, PenaltyEntry{CostFunction: cf, WindowSize: ws, P1: p.P1, P2: p.P2})
		}
	}
	return table, nil
}

// Axes is the full description of a design space. It is passed explicitly to
// Generate so tests can use small synthetic grids.
type Axes struct {
	Height             int             `mapstructure:"height" json:"height" yaml:"height"`
	Width              int             `mapstructure:"width" json:"width" yaml:"width"`
	CostFunctions      []int           `mapstructure:"cost_functions" json:"cost_functions" yaml:"cost_functions"`
	WindowSizes        []int           `mapstructure:"window_sizes" json:"window_sizes" yaml:"window_sizes"`
	PathCounts         []int           `mapstructure:"path_counts" json:"path_counts" yaml:"path_counts"`
	SupportedPathCount int             `mapstructure:"supported_path_count" json:"supported_path_count" yaml:"supported_path_count"`
	Disparities        []DisparityPair `mapstructure:"disparities" json:"disparities" yaml:"disparities"`
	Uniqueness         []int           `mapstructure:"uniqueness" json:"uniqueness" yaml:"uniqueness"`
	LRChecks           []int           `mapstructure:"lr_checks" json:"lr_checks" yaml:"lr_checks"`
	FilterWin          int             `mapstructure:"filter_win" json:"filter_win" yaml:"filter_win"`
	ShdWindow          int             `mapstructure:"shd_window" json:"shd_window" yaml:"shd_window"`
	Penalties          PenaltyTable    `mapstructure:"penalties" json:"penalties" yaml:"penalties"`
}

// DefaultAxes returns the production design space for the 1242x374 stereo
// pipeline.
func DefaultAxes() Axes {
	return Axes{
		Height:             374,
		Width:              1242,
		CostFunctions:      []int{0, 1, 2, 3},
		WindowSizes:        []int{5, 7},
		PathCounts:         []int{4},
		SupportedPathCount: DefaultSupportedPathCount,
		Disparities: []DisparityPair{
			{Range: 64, Parallel: 4},
			{Range: 64, Parallel: 8},
			{Range: 64, Parallel: 16},
			{Range: 128, Parallel: 8},
			{Range: 128, Parallel: 16},
			{Range: 128, Parallel: 32},
		},
		Uniqueness: []int{0, 1},
		LRChecks:   []int{0, 1, 2},
		FilterWin:  5,
		ShdWindow:  3,
		Penalties:  DefaultPenaltyTable(),
	}
}

// supportedPathCount treats an unset value as the architecture default.
func (a Axes) supportedPathCount() int {
	if a.SupportedPathCount == 0 {
		return DefaultSupportedPathCount
	}
	return a.SupportedPathCount
}

// Size returns the number of raw tuples before any filtering.
func (a Axes) Size() int {
	return len(a.Disparities) * len(a.CostFunctions) * len(a.PathCounts) *
		len(a.WindowSizes) * len(a.Uniqueness) * len(a.LRChecks)
}

// MissingPenalties lists the (cost function, window size) combinations of
// the grid that have no penalty entry.
func (a Axes) MissingPenalties() [][2]int {
	var missing [][2]int
	for _, cf := range a.CostFunctions {
		for _, ws := range a.WindowSizes {
			if _, ok := a.Penalties.Lookup(cf, ws); !ok {
				missing = append(missing, [2]int{cf, ws})
			}
		}
	}
	return missing
}

// Validate reports grids that would silently produce fewer configurations
// than the operator expects.
func (a Axes) Validate() error {
	if a.Height <= 0 || a.Width <= 0 {
		return dseerrors.NewConfigError(dseerrors.ErrCodeInvalidConfig,
			fmt.Sprintf("image dimensions must be positive, got %dx%d", a.Width, a.Height))
	}

	if a.Size() == 0 {
		return dseerrors.NewConfigError(dseerrors.ErrCodeInvalidConfig,
			"every axis needs at least one value")
	}

	for _, d := range a.Disparities {
		if d.Range <= 0 || d.Parallel <= 0 {
			return dseerrors.NewConfigError(dseerrors.ErrCodeInvalidConfig,
				fmt.Sprintf("disparity pair (%d,%d) must be positive", d.Range, d.Parallel))
		}
		if d.Range%d.Parallel != 0 {
			return dseerrors.NewConfigError(dseerrors.ErrCodeInvalidConfig,
				fmt.Sprintf("disparity range %d is not a multiple of parallelism %d", d.Range, d.Parallel))
		}
	}

	seen := make(map[[2]int]bool, len(a.Penalties))
	for _, e := range a.Penalties {
		k := [2]int{e.CostFunction, e.WindowSize}
		if seen[k] {
			return dseerrors.NewConfigError(dseerrors.ErrCodeInvalidConfig,
				fmt.Sprintf("duplicate penalty entry for cost function %d window %d", k[0], k[1]))
		}
		seen[k] = true
	}

	if missing := a.MissingPenalties(); len(missing) > 0 {
		sort.Slice(missing, func(i, j int) bool {
			if missing[i][0] != missing[j][0] {
				return missing[i][0] < missing[j][0]
			}
			return missing[i][1] < missing[j][1]
		})
		return dseerrors.NewConfigError(dseerrors.ErrCodeInvalidConfig,
			fmt.Sprintf("no penalty pair for (cost function, window) %v", missing))
	}

	return nil
}
