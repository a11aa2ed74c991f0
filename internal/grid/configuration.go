package grid

import (
	"fmt"
	"strconv"
	"strings"

	dseerrors "github.com/conneroisu/sgmdse/internal/errors"
)

// NumArgs is the number of positional values that describe one Configuration.
const NumArgs = 13

// KeySeparator joins the values of a canonical key.
const KeySeparator = "_"

// Configuration is one fully specified point of the design space. Values are
// never mutated after generation.
type Configuration struct {
	Height            int `json:"height" yaml:"height"`
	Width             int `json:"width" yaml:"width"`
	CostFunction      int `json:"cost_function" yaml:"cost_function"`
	WindowSize        int `json:"window_size" yaml:"window_size"`
	MaxDisparity      int `json:"max_disparity" yaml:"max_disparity"`
	ParallelDisparity int `json:"parallel_disparity" yaml:"parallel_disparity"`
	NumDir            int `json:"num_dir" yaml:"num_dir"`
	Uniqueness        int `json:"uniqueness" yaml:"uniqueness"`
	LRCheck           int `json:"lr_check" yaml:"lr_check"`
	FilterWin         int `json:"filter_win" yaml:"filter_win"`
	ShdWindow         int `json:"shd_window" yaml:"shd_window"`
	P1                int `json:"p1" yaml:"p1"`
	P2                int `json:"p2" yaml:"p2"`
}

// Key returns the canonical key used as the workspace directory name. The
// value order differs from Args and must stay stable across releases, since
// existing workspaces are found by it.
func (c Configuration) Key() string {
	values := []int{
		c.Height, c.Width,
		c.MaxDisparity, c.ParallelDisparity,
		c.NumDir,
		c.P1, c.P2,
		c.CostFunction, c.WindowSize,
		c.FilterWin, c.ShdWindow,
		c.Uniqueness, c.LRCheck,
	}

	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, KeySeparator)
}

// Args returns the thirteen positional values in command line order.
func (c Configuration) Args() []string {
	values := c.values()
	args := make([]string, len(values))
	for i, v := range values {
		args[i] = strconv.Itoa(v)
	}
	return args
}

func (c Configuration) values() []int {
	return []int{
		c.Height, c.Width,
		c.CostFunction, c.WindowSize,
		c.MaxDisparity, c.ParallelDisparity,
		c.NumDir,
		c.Uniqueness, c.LRCheck,
		c.FilterWin, c.ShdWindow,
		c.P1, c.P2,
	}
}

// String renders the configuration as its canonical key.
func (c Configuration) String() string {
	return c.Key()
}

// ArgNames lists the positional values in command line order.
var ArgNames = [NumArgs]string{
	"height", "width", "cost-function", "window-size", "max-disparity",
	"parallel-disparity", "num-dir", "uniqueness", "lr-check",
	"filter-win", "shd-window", "p1", "p2",
}

// ParseArgs builds a Configuration from the thirteen positional values.
func ParseArgs(args []string) (Configuration, error) {
	if len(args) != NumArgs {
		return Configuration{}, dseerrors.NewValidationError(dseerrors.ErrCodeInvalidArgs,
			fmt.Sprintf("expected %d values (%s), got %d", NumArgs, strings.Join(ArgNames[:], " "), len(args)))
	}

	var v [NumArgs]int
	for i, arg := range args {
		n, err := strconv.Atoi(strings.TrimSpace(arg))
		if err != nil {
			return Configuration{}, dseerrors.NewValidationError(dseerrors.ErrCodeInvalidArgs,
				fmt.Sprintf("%s must be an integer, got %q", ArgNames[i], arg))
		}
		v[i] = n
	}

	return Configuration{
		Height:            v[0],
		Width:             v[1],
		CostFunction:      v[2],
		WindowSize:        v[3],
		MaxDisparity:      v[4],
		ParallelDisparity: v[5],
		NumDir:            v[6],
		Uniqueness:        v[7],
		LRCheck:           v[8],
		FilterWin:         v[9],
		ShdWindow:         v[10],
		P1:                v[11],
		P2:                v[12],
	}, nil
}

// DuplicateKeys returns every canonical key that occurs more than once in set.
func DuplicateKeys(set []Configuration) []string {
	seen := make(map[string]int, len(set))
	var dups []string
	for _, c := range set {
		key := c.Key()
		seen[key]++
		if seen[key] == 2 {
			dups = append(dups, key)
		}
	}
	return dups
}
