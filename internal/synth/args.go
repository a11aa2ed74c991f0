package synth

import (
	"strconv"

	"github.com/conneroisu/sgmdse/internal/grid"
)

// MakeArgs returns the build arguments for c. Every tunable is passed on the
// command line so the build file needs no defaults of its own.
func MakeArgs(c grid.Configuration, buildFile string) []string {
	vars := []struct {
		name  string
		value int
	}{
		{"NUM_DIR", c.NumDir},
		{"WINDOW_SIZE", c.WindowSize},
		{"SHD_WINDOW", c.ShdWindow},
		{"NUM_DISPARITY", c.MaxDisparity},
		{"PARALLEL_DISPARITIES", c.ParallelDisparity},
		{"FilterWin", c.FilterWin},
		{"HEIGHT", c.Height},
		{"WIDTH", c.Width},
		{"SMALL_PENALTY", c.P1},
		{"LARGE_PENALTY", c.P2},
		{"COST_FUNCTION", c.CostFunction},
		{"UNIQ", c.Uniqueness},
		{"LR_CHECK", c.LRCheck},
	}

	args := make([]string, 0, len(vars)+2)
	if buildFile != "" {
		args = append(args, "-f", buildFile)
	}
	for _, v := range vars {
		args = append(args, v.name+"="+strconv.Itoa(v.value))
	}
	return args
}
