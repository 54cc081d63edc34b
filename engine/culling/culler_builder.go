package culling

// FrustumCullerBuilderOption is a functional option for configuring a FrustumCuller.
type FrustumCullerBuilderOption func(*frustumCuller)

// WithCornerRefinement additionally culls boxes lying entirely beyond the frustum corner extent
// along one axis. Off by default, so boxes straddling two planes near a frustum edge stay visible.
//
// Parameters:
//   - enabled: whether to refine
//
// Returns:
//   - FrustumCullerBuilderOption: a function that applies the refinement option
func WithCornerRefinement(enabled bool) FrustumCullerBuilderOption {
	return func(c *frustumCuller) {
		c.refine = enabled
	}
}
