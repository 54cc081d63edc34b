// Package engine is the entry point of the clustered renderer data layer. An Engine owns the device,
// the cluster grid and light binner, and the scene built from model descriptors, and runs frames of
// frustum culling, cluster building and light binning through the frame scheduler.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/Carmen-Shannon/oxy-cluster/common"
	"github.com/Carmen-Shannon/oxy-cluster/engine/camera"
	"github.com/Carmen-Shannon/oxy-cluster/engine/cluster"
	"github.com/Carmen-Shannon/oxy-cluster/engine/culling"
	"github.com/Carmen-Shannon/oxy-cluster/engine/device"
	"github.com/Carmen-Shannon/oxy-cluster/engine/frame"
	"github.com/Carmen-Shannon/oxy-cluster/engine/light"
	"github.com/Carmen-Shannon/oxy-cluster/engine/loader"
	"github.com/Carmen-Shannon/oxy-cluster/engine/model"
	"github.com/Carmen-Shannon/oxy-cluster/engine/profiler"
	"github.com/Carmen-Shannon/oxy-cluster/engine/scene"
)

// FrameInput is what one frame renders.
type FrameInput struct {
	// View is the camera of the frame.
	View camera.View
	// Lights are binned into the cluster grid.
	Lights []light.PointLight
	// Draw issues the draw of each material range; nil only declares the consumers.
	Draw frame.DrawFunc
}

// FrameStats reports what a frame did.
type FrameStats struct {
	Frame          uint64
	Slot           int
	ClusterRebuilt bool
	Draws          []frame.IndirectDraw
	Timings        []frame.PassTiming
	// Visible is the number of entries that passed culling; -1 when frame readback is off.
	Visible int
	// Bins is the light binning result when frame readback is on.
	Bins *cluster.BinResult
}

// InputFunc supplies the input of frame n, given the seconds since the previous frame.
// Returning false stops Run.
type InputFunc func(n uint64, dt float32) (FrameInput, bool)

// engine implements the Engine interface.
type engine struct {
	mu sync.Mutex

	dev        device.Device
	ownsDevice bool
	backend    device.BackendType
	workers    int

	framesInFlight int
	counter        *frame.Counter
	ldr            loader.Loader

	grid          cluster.Grid
	maxLights     int
	maxPerCluster int
	overflow      cluster.OverflowPolicy
	refine        bool

	clusters cluster.GridBuilder
	binner   cluster.LightBinner
	scene    scene.MeshScene
	culler   culling.FrustumCuller

	profiler         *profiler.Profiler
	profilerOptions  []profiler.ProfilerOption
	profilingEnabled bool
	frameReadback    bool
	renderFrameLimit time.Duration
	frameCallback    func(FrameStats)

	log *slog.Logger
}

// Engine is the external API of the renderer data layer.
//
// Usage pattern:
//  1. NewEngine, then BuildScene with the model descriptors
//  2. Per frame, either RenderFrame with a FrameInput, or NextFrame and the Record* operations
//     followed by Submit on the returned context
//  3. Release
type Engine interface {
	// Device returns the device every buffer lives on.
	Device() device.Device

	// FramesInFlight returns the number of frame slots.
	FramesInFlight() int

	// BuildScene loads the models, flattens them into instance entries sorted by material and
	// uploads the scene buffers. A previous scene is released.
	//
	// Parameters:
	//   - ctx: cancels model loading
	//   - descriptors: the models in order
	//
	// Returns:
	//   - scene.MeshScene: the new scene
	//   - error: common.ErrConfig for invalid descriptors, common.ErrAssetLoad for unloadable models
	BuildScene(ctx context.Context, descriptors []model.ModelDescriptor) (scene.MeshScene, error)

	// Scene returns the current scene, or nil before BuildScene.
	Scene() scene.MeshScene

	// UpdateInstanceTransform sets the model matrix of one instance and stages the upload of the
	// matrix and its re-derived bounding boxes into every frame slot.
	//
	// Parameters:
	//   - modelIndex: the model, in descriptor order
	//   - instanceIndex: the instance of that model
	//   - m: the model matrix
	//
	// Returns:
	//   - error: an error wrapping common.ErrIndexOutOfRange for invalid indices, or
	//     common.ErrConfig without a scene
	UpdateInstanceTransform(modelIndex, instanceIndex int, m mgl32.Mat4) error

	// MaterialRange returns the byte offset and record count of a material inside the indirect
	// buffer, or (0, 0) when no entry has that material or no scene is built.
	MaterialRange(m common.MaterialType) (uint64, uint32)

	// PickInstance returns the entry of a clickable model closest along r.
	PickInstance(r common.Ray) (int, bool)

	// NextFrame returns the context of the next frame for manual recording.
	NextFrame() *frame.Context

	// RecordFrustumCull records the cull of the scene into a frame.
	RecordFrustumCull(ctx *frame.Context, f common.Frustum) error

	// RecordClusterBuild records the cluster grid build into a frame when it is dirty. It must run
	// in every frame that bins lights, since binning uses the view given here.
	RecordClusterBuild(ctx *frame.Context, v camera.View) (bool, error)

	// RecordLightBinning records light binning into a frame, after RecordClusterBuild for the same frame.
	RecordLightBinning(ctx *frame.Context, lights []light.PointLight) error

	// ResolveBinning reads back the light bins of a submitted frame slot.
	ResolveBinning(slot int) (cluster.BinResult, error)

	// RenderFrame runs cull, cluster build, light binning and the material draws of one frame
	// through the scheduler and submits it. A failed frame is discarded and not retried.
	//
	// Parameters:
	//   - ctx: checked for cancellation before the frame starts
	//   - in: the frame input
	//
	// Returns:
	//   - FrameStats: what the frame did
	//   - error: the first pass or submission failure
	RenderFrame(ctx context.Context, in FrameInput) (FrameStats, error)

	// Run renders frames until input returns false or ctx is done. Frames failing with
	// common.ErrGPUSync are logged and skipped; any other failure stops Run.
	//
	// Parameters:
	//   - ctx: stops the loop
	//   - input: supplies each frame
	//
	// Returns:
	//   - error: the failure that stopped the loop, or nil
	Run(ctx context.Context, input InputFunc) error

	// SetRenderFrameLimit sets an optional render frame rate cap in frames per second.
	// Pass 0 to uncap the render loop (default).
	SetRenderFrameLimit(fps float64)

	// EnableProfiler enables performance profiling output to the log.
	EnableProfiler()

	// DisableProfiler disables performance profiling output.
	DisableProfiler()

	// Release frees the scene, grid and binner buffers, and the device when the engine created it.
	Release()
}

// NewEngine creates an Engine. Unless WithDevice is given, a device of the configured backend is
// created and owned by the engine.
//
// Parameters:
//   - options: functional options for engine configuration
//
// Returns:
//   - Engine: the newly created engine
//   - error: common.ErrConfig for invalid options, or a device error
func NewEngine(options ...EngineBuilderOption) (Engine, error) {
	e := &engine{
		backend:        device.BackendTypeSimulated,
		workers:        4,
		framesInFlight: frame.DefaultFramesInFlight,
		grid:           cluster.DefaultGrid(),
		maxLights:      cluster.DefaultMaxLights,
		maxPerCluster:  cluster.DefaultMaxLightsPerCluster,
		overflow:       cluster.OverflowClamp,
		log:            common.ComponentLogger("engine"),
	}
	for _, opt := range options {
		opt(e)
	}
	e.profiler = profiler.NewProfiler(e.profilerOptions...)

	counter, err := frame.NewCounter(e.framesInFlight)
	if err != nil {
		return nil, err
	}
	e.counter = counter

	if e.dev == nil {
		dev, err := device.NewDevice(e.backend, device.WithWorkers(e.workers), device.WithLabel("oxy-cluster"))
		if err != nil {
			return nil, fmt.Errorf("engine: %w", err)
		}
		e.dev, e.ownsDevice = dev, true
	}
	if e.ldr == nil {
		e.ldr = loader.NewLoader()
	}

	if e.clusters, err = cluster.NewGridBuilder(e.dev, cluster.WithGrid(e.grid), cluster.WithGridFramesInFlight(e.framesInFlight)); err != nil {
		e.Release()
		return nil, err
	}
	if e.binner, err = cluster.NewLightBinner(e.dev, e.clusters,
		cluster.WithMaxLights(e.maxLights),
		cluster.WithMaxLightsPerCluster(e.maxPerCluster),
		cluster.WithOverflowPolicy(e.overflow),
	); err != nil {
		e.Release()
		return nil, err
	}
	e.log.Info("engine created",
		slog.String("backend", e.dev.Backend().String()),
		slog.Int("frames_in_flight", e.framesInFlight),
		slog.String("grid", e.grid.String()))
	return e, nil
}

func (e *engine) Device() device.Device {
	return e.dev
}

func (e *engine) FramesInFlight() int {
	return e.framesInFlight
}

func (e *engine) BuildScene(ctx context.Context, descriptors []model.ModelDescriptor) (scene.MeshScene, error) {
	s, err := scene.NewMeshScene(ctx, e.dev, descriptors,
		scene.WithLoader(e.ldr),
		scene.WithFramesInFlight(e.framesInFlight),
	)
	if err != nil {
		return nil, err
	}
	c, err := culling.NewFrustumCuller(e.dev, s, culling.WithCornerRefinement(e.refine))
	if err != nil {
		s.Release()
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.releaseScene()
	e.scene, e.culler = s, c
	return s, nil
}

func (e *engine) Scene() scene.MeshScene {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.scene
}

func (e *engine) currentScene() (scene.MeshScene, culling.FrustumCuller, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.scene == nil {
		return nil, nil, fmt.Errorf("engine: no scene built: %w", common.ErrConfig)
	}
	return e.scene, e.culler, nil
}

func (e *engine) UpdateInstanceTransform(modelIndex, instanceIndex int, m mgl32.Mat4) error {
	s, _, err := e.currentScene()
	if err != nil {
		return err
	}
	return s.UpdateTransform(modelIndex, instanceIndex, m)
}

func (e *engine) MaterialRange(m common.MaterialType) (uint64, uint32) {
	s, _, err := e.currentScene()
	if err != nil {
		return 0, 0
	}
	return s.MaterialRange(m)
}

func (e *engine) PickInstance(r common.Ray) (int, bool) {
	s, _, err := e.currentScene()
	if err != nil {
		return 0, false
	}
	return s.PickInstance(r)
}

func (e *engine) NextFrame() *frame.Context {
	return e.counter.Next(e.dev)
}

func (e *engine) RecordFrustumCull(ctx *frame.Context, f common.Frustum) error {
	_, c, err := e.currentScene()
	if err != nil {
		return err
	}
	return c.RecordFrustumCull(ctx, f)
}

func (e *engine) RecordClusterBuild(ctx *frame.Context, v camera.View) (bool, error) {
	return e.clusters.RecordClusterBuild(ctx, v)
}

func (e *engine) RecordLightBinning(ctx *frame.Context, lights []light.PointLight) error {
	return e.binner.RecordLightBinning(ctx, lights)
}

func (e *engine) ResolveBinning(slot int) (cluster.BinResult, error) {
	return e.binner.ResolveBinning(slot)
}

func (e *engine) RenderFrame(ctx context.Context, in FrameInput) (FrameStats, error) {
	if err := ctx.Err(); err != nil {
		return FrameStats{}, err
	}
	s, c, err := e.currentScene()
	if err != nil {
		return FrameStats{}, err
	}

	observer := func(frame.PassKind, time.Duration) {}
	if e.profilingEnabled {
		observer = e.profiler.Observe
	}
	sched := frame.NewScheduler(
		frame.WithCuller(c),
		frame.WithClusterBuilder(e.clusters),
		frame.WithLightBinner(e.binner),
		frame.WithDrawSource(s),
		frame.WithObserver(observer),
	)

	fc := e.counter.Next(e.dev)
	stats := FrameStats{Frame: fc.Number, Slot: fc.Slot, Visible: -1}
	report, err := sched.Run(fc, frame.StandardPasses(in.View, in.Lights, in.Draw))
	stats.ClusterRebuilt = report.ClusterRebuilt
	stats.Draws = report.Draws
	stats.Timings = report.Timings
	if err != nil {
		// The grid build of a discarded frame never ran.
		if report.ClusterRebuilt {
			e.clusters.Invalidate()
		}
		return stats, err
	}

	if e.frameReadback {
		if err := e.readFrame(s, &stats); err != nil {
			return stats, err
		}
	}
	if e.profilingEnabled {
		e.profiler.Tick()
	}
	if e.frameCallback != nil {
		e.frameCallback(stats)
	}
	return stats, nil
}

// readFrame fills the visible count and light bins of a submitted frame.
func (e *engine) readFrame(s scene.MeshScene, stats *FrameStats) error {
	rb, ok := e.dev.(device.Readback)
	if !ok {
		return fmt.Errorf("engine: %s device cannot read back frames: %w", e.dev.Backend(), common.ErrConfig)
	}
	data, err := rb.ReadBuffer(s.Buffers(stats.Slot).Indirect, 0, device.WholeSize)
	if err != nil {
		return fmt.Errorf("engine: %w", err)
	}
	stats.Visible = 0
	for i := range s.EntryCount() {
		if scene.UnmarshalGPUIndirectDrawRecord(data[i*scene.IndirectDrawRecordSize:]).InstanceCount != 0 {
			stats.Visible++
		}
	}
	bins, err := e.binner.ResolveBinning(stats.Slot)
	stats.Bins = &bins
	return err
}

func (e *engine) Run(ctx context.Context, input InputFunc) error {
	lastRender := time.Now()
	for n := uint64(0); ; n++ {
		if err := ctx.Err(); err != nil {
			return nil
		}
		now := time.Now()
		dt := float32(now.Sub(lastRender).Seconds())
		lastRender = now

		in, ok := input(n, dt)
		if !ok {
			return nil
		}
		if _, err := e.RenderFrame(ctx, in); err != nil {
			if !errors.Is(err, common.ErrGPUSync) {
				return err
			}
			e.log.Warn("frame skipped", slog.Uint64("input", n), slog.Any("error", err))
		}

		// Frame rate limiting
		if e.renderFrameLimit > 0 {
			elapsed := time.Since(lastRender)
			if remaining := e.renderFrameLimit - elapsed; remaining > 0 {
				time.Sleep(remaining)
			}
		}
	}
}

// SetRenderFrameLimit sets an optional render frame rate cap.
// Pass 0 to uncap the render loop.
func (e *engine) SetRenderFrameLimit(fps float64) {
	if fps <= 0 {
		e.renderFrameLimit = 0
		return
	}
	e.renderFrameLimit = time.Duration(float64(time.Second) / fps)
}

// EnableProfiler enables performance profiling output to the log.
func (e *engine) EnableProfiler() {
	e.profilingEnabled = true
}

// DisableProfiler disables performance profiling output.
func (e *engine) DisableProfiler() {
	e.profilingEnabled = false
}

func (e *engine) releaseScene() {
	if e.culler != nil {
		e.culler.Release()
		e.culler = nil
	}
	if e.scene != nil {
		e.scene.Release()
		e.scene = nil
	}
}

func (e *engine) Release() {
	e.mu.Lock()
	e.releaseScene()
	e.mu.Unlock()
	if e.binner != nil {
		e.binner.Release()
		e.binner = nil
	}
	if e.clusters != nil {
		e.clusters.Release()
		e.clusters = nil
	}
	if e.ownsDevice && e.dev != nil {
		e.dev.Release()
		e.dev = nil
	}
}
