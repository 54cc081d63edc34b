package cluster

// LightBinnerOption is a functional option for configuring a LightBinner.
type LightBinnerOption func(*lightBinner)

// WithMaxLights sets the capacity of the light buffer. Defaults to DefaultMaxLights.
//
// Parameters:
//   - n: the maximum number of lights per frame
//
// Returns:
//   - LightBinnerOption: a function that applies the capacity option
func WithMaxLights(n int) LightBinnerOption {
	return func(b *lightBinner) {
		b.maxLights = n
	}
}

// WithMaxLightsPerCluster bounds the light list of one cluster. Defaults to DefaultMaxLightsPerCluster.
//
// Parameters:
//   - n: the per-cluster limit
//
// Returns:
//   - LightBinnerOption: a function that applies the limit option
func WithMaxLightsPerCluster(n int) LightBinnerOption {
	return func(b *lightBinner) {
		b.maxPerCluster = n
	}
}

// WithOverflowPolicy selects what ResolveBinning does when a cluster dropped lights.
// Defaults to OverflowClamp.
//
// Parameters:
//   - p: the policy
//
// Returns:
//   - LightBinnerOption: a function that applies the policy option
func WithOverflowPolicy(p OverflowPolicy) LightBinnerOption {
	return func(b *lightBinner) {
		b.overflow = p
	}
}
