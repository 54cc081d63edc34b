package scene

import (
	"github.com/Carmen-Shannon/oxy-cluster/engine/loader"
)

// MeshSceneBuilderOption is a functional option for configuring a MeshScene.
// Use the With* functions to create options.
type MeshSceneBuilderOption func(s *meshScene)

// WithName sets the scene name used in buffer labels and logs.
//
// Parameters:
//   - name: the scene name
//
// Returns:
//   - MeshSceneBuilderOption: option function to apply
func WithName(name string) MeshSceneBuilderOption {
	return func(s *meshScene) {
		s.name = name
	}
}

// WithLoader sets the Loader models are imported with. Defaults to a new loader.NewLoader().
//
// Parameters:
//   - l: the loader
//
// Returns:
//   - MeshSceneBuilderOption: option function to apply
func WithLoader(l loader.Loader) MeshSceneBuilderOption {
	return func(s *meshScene) {
		s.ldr = l
	}
}

// WithFramesInFlight sets how many copies of the per-frame buffers the scene owns.
// Defaults to frame.DefaultFramesInFlight.
//
// Parameters:
//   - n: frames in flight, within [1, frame.MaxFramesInFlight]
//
// Returns:
//   - MeshSceneBuilderOption: option function to apply
func WithFramesInFlight(n int) MeshSceneBuilderOption {
	return func(s *meshScene) {
		s.framesInFlight = n
	}
}

// WithLoadConcurrency bounds how many models load at once. Defaults to runtime.NumCPU()-1.
//
// Parameters:
//   - n: the number of concurrent loads (minimum 1)
//
// Returns:
//   - MeshSceneBuilderOption: option function to apply
func WithLoadConcurrency(n int) MeshSceneBuilderOption {
	return func(s *meshScene) {
		if n < 1 {
			n = 1
		}
		s.loadConcurrency = n
	}
}
