package engine

import (
	"time"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/Carmen-Shannon/oxy-cluster/engine/camera"
	"github.com/Carmen-Shannon/oxy-cluster/engine/cluster"
	"github.com/Carmen-Shannon/oxy-cluster/engine/config"
	"github.com/Carmen-Shannon/oxy-cluster/engine/device"
	"github.com/Carmen-Shannon/oxy-cluster/engine/loader"
	"github.com/Carmen-Shannon/oxy-cluster/engine/profiler"
)

// EngineBuilderOption is a functional option for configuring an Engine.
// Use the With* functions to create options that are applied directly to the engine instance.
type EngineBuilderOption func(*engine)

// WithDevice makes the engine use an existing device instead of creating one. The engine does not
// release it.
//
// Parameters:
//   - dev: the device
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithDevice(dev device.Device) EngineBuilderOption {
	return func(e *engine) {
		e.dev = dev
	}
}

// WithBackend selects the backend of the device the engine creates. Defaults to the simulated backend.
//
// Parameters:
//   - b: the backend
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithBackend(b device.BackendType) EngineBuilderOption {
	return func(e *engine) {
		e.backend = b
	}
}

// WithWorkers sets the worker count of the simulated device the engine creates.
func WithWorkers(n int) EngineBuilderOption {
	return func(e *engine) {
		e.workers = n
	}
}

// WithFramesInFlight sets the number of frame slots, within [1, frame.MaxFramesInFlight].
//
// Parameters:
//   - n: frames in flight (default 2)
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithFramesInFlight(n int) EngineBuilderOption {
	return func(e *engine) {
		e.framesInFlight = n
	}
}

// WithLoader sets the loader scenes are built with.
func WithLoader(l loader.Loader) EngineBuilderOption {
	return func(e *engine) {
		e.ldr = l
	}
}

// WithGrid sets the cluster grid.
func WithGrid(g cluster.Grid) EngineBuilderOption {
	return func(e *engine) {
		e.grid = g
	}
}

// WithLightLimits sets the light buffer capacity and the per-cluster light limit.
//
// Parameters:
//   - maxLights: lights per frame (default 1024)
//   - maxPerCluster: lights per cluster (default 150)
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithLightLimits(maxLights, maxPerCluster int) EngineBuilderOption {
	return func(e *engine) {
		e.maxLights = maxLights
		e.maxPerCluster = maxPerCluster
	}
}

// WithOverflowPolicy sets what happens when a cluster is touched by more lights than it can list.
func WithOverflowPolicy(p cluster.OverflowPolicy) EngineBuilderOption {
	return func(e *engine) {
		e.overflow = p
	}
}

// WithCornerRefinement enables corner refinement in frustum culling.
func WithCornerRefinement(enabled bool) EngineBuilderOption {
	return func(e *engine) {
		e.refine = enabled
	}
}

// WithProfiling enables or disables performance profiling output.
//
// Parameters:
//   - enabled: if true, enables performance profiling
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithProfiling(enabled bool) EngineBuilderOption {
	return func(e *engine) {
		e.profilingEnabled = enabled
	}
}

// WithProfilerOptions configures the profiler, e.g. its report interval.
func WithProfilerOptions(options ...profiler.ProfilerOption) EngineBuilderOption {
	return func(e *engine) {
		e.profilerOptions = append(e.profilerOptions, options...)
	}
}

// WithFrameReadback makes RenderFrame read back the visible entry count and the light bins of
// every frame. Requires a device with readback; intended for the simulator and tests.
//
// Parameters:
//   - enabled: if true, frames are read back after submission
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithFrameReadback(enabled bool) EngineBuilderOption {
	return func(e *engine) {
		e.frameReadback = enabled
	}
}

// WithFrameCallback registers a function receiving the stats of every rendered frame.
func WithFrameCallback(fn func(FrameStats)) EngineBuilderOption {
	return func(e *engine) {
		e.frameCallback = fn
	}
}

// WithRenderFrameLimit sets an optional render frame rate cap in frames per second.
// Pass 0 to uncap the render loop (default).
//
// Parameters:
//   - fps: maximum render frames per second (0 = uncapped)
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithRenderFrameLimit(fps float64) EngineBuilderOption {
	return func(e *engine) {
		if fps <= 0 {
			e.renderFrameLimit = 0
			return
		}
		e.renderFrameLimit = time.Duration(float64(time.Second) / fps)
	}
}

// WithConfig applies the device, frame, cluster and culling settings of a configuration file.
//
// Parameters:
//   - c: a validated configuration
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithConfig(c config.Config) EngineBuilderOption {
	return func(e *engine) {
		e.backend = c.BackendType()
		e.workers = c.Workers
		e.framesInFlight = c.FramesInFlight
		e.grid = c.Grid()
		e.maxLights = c.Cluster.MaxLights
		e.maxPerCluster = c.Cluster.MaxLightsPerCluster
		e.overflow = c.OverflowPolicy()
		e.refine = c.Culling.CornerRefinement
	}
}

// CameraFromConfig builds the camera described by a configuration file.
//
// Parameters:
//   - c: a validated configuration
//
// Returns:
//   - camera.Camera: the camera, looking from Position at Target
func CameraFromConfig(c config.Config) camera.Camera {
	target := mgl32.Vec3(c.Camera.Target)
	offset := mgl32.Vec3(c.Camera.Position).Sub(target)
	radius := offset.Len()
	var azimuth, elevation float32
	if radius > 0 {
		azimuth = math32.Atan2(offset.X(), offset.Z())
		elevation = math32.Asin(offset.Y() / radius)
	}
	return camera.NewCamera(
		camera.WithFov(mgl32.DegToRad(c.Camera.FovDegrees)),
		camera.WithNear(c.Camera.Near),
		camera.WithFar(c.Camera.Far),
		camera.WithViewport(c.Viewport.Width, c.Viewport.Height),
		camera.WithController(camera.NewCameraController(
			camera.WithTarget(target),
			camera.WithRadius(radius),
			camera.WithAzimuth(azimuth),
			camera.WithElevation(elevation),
		)),
	)
}
