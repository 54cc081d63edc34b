package cluster

// GridBuilderOption is a functional option for configuring a GridBuilder.
type GridBuilderOption func(*gridBuilder)

// WithGrid sets the cluster partition. Defaults to DefaultGrid().
//
// Parameters:
//   - grid: the X x Y x Z partition
//
// Returns:
//   - GridBuilderOption: a function that applies the grid option
func WithGrid(grid Grid) GridBuilderOption {
	return func(g *gridBuilder) {
		g.grid = grid
	}
}

// WithGridFramesInFlight sets the number of per-frame box copies. Defaults to frame.DefaultFramesInFlight.
//
// Parameters:
//   - n: frames in flight
//
// Returns:
//   - GridBuilderOption: a function that applies the frames-in-flight option
func WithGridFramesInFlight(n int) GridBuilderOption {
	return func(g *gridBuilder) {
		g.framesInFlight = n
	}
}
