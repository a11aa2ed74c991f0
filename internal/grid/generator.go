package grid

// Filter decides whether a generated tuple is kept.
type Filter func(Configuration) bool

// PathCountFilter keeps only configurations built with the supported number
// of aggregation paths.
func PathCountFilter(supported int) Filter {
	return func(c Configuration) bool {
		return c.NumDir == supported
	}
}

// Generate expands the axes into every valid configuration.
//
// Nesting, outermost first: disparity pair, cost function, path count,
// window size, uniqueness, left-right check. The order only matters for
// partition boundaries. A tuple is dropped when it fails the path-count guard,
// any extra filter, or has no penalty entry. An empty axis yields an empty set.
func Generate(axes Axes, filters ...Filter) []Configuration {
	filters = append([]Filter{PathCountFilter(axes.supportedPathCount())}, filters...)

	set := make([]Configuration, 0, axes.Size())
	for _, dp := range axes.Disparities {
		for _, cf := range axes.CostFunctions {
			for _, nd := range axes.PathCounts {
				for _, ws := range axes.WindowSizes {
					penalty, ok := axes.Penalties.Lookup(cf, ws)
					if !ok {
						continue
					}
					for _, u := range axes.Uniqueness {
						for _, lr := range axes.LRChecks {
							c := Configuration{
								Height:            axes.Height,
								Width:             axes.Width,
								CostFunction:      cf,
								WindowSize:        ws,
								MaxDisparity:      dp.Range,
								ParallelDisparity: dp.Parallel,
								NumDir:            nd,
								Uniqueness:        u,
								LRCheck:           lr,
								FilterWin:         axes.FilterWin,
								ShdWindow:         axes.ShdWindow,
								P1:                penalty.P1,
								P2:                penalty.P2,
							}
							if accept(c, filters) {
								set = append(set, c)
							}
						}
					}
				}
			}
		}
	}
	return set
}

func accept(c Configuration, filters []Filter) bool {
	for _, f := range filters {
		if !f(c) {
			return false
		}
	}
	return true
}
