package cluster

import (
	"fmt"
	"log/slog"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/Carmen-Shannon/oxy-cluster/common"
	"github.com/Carmen-Shannon/oxy-cluster/engine/camera"
	"github.com/Carmen-Shannon/oxy-cluster/engine/device"
	"github.com/Carmen-Shannon/oxy-cluster/engine/frame"
	"github.com/Carmen-Shannon/oxy-cluster/engine/shader"
)

// aabbProgram computes one cluster box per invocation. Bindings: 0 cluster uniform, 1 cluster boxes.
var aabbProgram = shader.MustCompile(clusterAABBSource)

var aabbKernel = aabbProgram.Kernel("cluster aabb", func(gid [3]uint32, mem device.Memory) {
	u := unmarshalClusterUniform(mem.Bytes(0))
	grid := Grid{X: u.Grid[0], Y: u.Grid[1], Z: u.Grid[2]}
	if gid[0] >= grid.X || gid[1] >= grid.Y || gid[2] >= grid.Z {
		return
	}
	slices, err := NewSliceParams(grid.Z, u.Near, u.Far)
	if err != nil {
		return
	}
	box := ClusterAABB(u.InverseProjection, grid, slices, gid[0], gid[1], gid[2])
	id := int(grid.LinearID(gid[0], gid[1], gid[2]))
	box.MarshalInto(mem.Bytes(1)[id*AABBSize:])
})

// GridBuilder keeps the cluster boxes of every frame-in-flight up to date with the camera.
type GridBuilder interface {
	// RecordClusterBuild rebuilds the cluster boxes of the frame's slot when its dirty flag is set or
	// the projection, clip distances or viewport changed since that slot's last build. A rebuild
	// uploads the cluster uniform, dispatches one invocation per cluster and records a barrier
	// making the boxes visible to compute reads. The view is remembered for the frame's light
	// binning either way, so it must be called every frame that bins lights.
	//
	// Parameters:
	//   - ctx: the frame being prepared
	//   - v: the camera view of the frame
	//
	// Returns:
	//   - bool: true when the build was recorded
	//   - error: common.ErrConfig for an unusable view, or an upload or command validation error
	RecordClusterBuild(ctx *frame.Context, v camera.View) (bool, error)

	// Invalidate marks every slot dirty.
	Invalidate()

	// Dirty reports whether the boxes of a slot must be rebuilt before use.
	Dirty(slot int) bool

	// View returns the view passed to RecordClusterBuild for ctx. It reports false when the slot's
	// last call belongs to another frame, so a stale view is never binned against.
	View(ctx *frame.Context) (camera.View, bool)

	// Grid returns the cluster partition.
	Grid() Grid

	// FramesInFlight returns the number of slots.
	FramesInFlight() int

	// AABBBuffer returns the cluster box buffer of a slot.
	AABBBuffer(slot int) device.Handle

	// Release frees the grid buffers.
	Release()
}

type gridSlot struct {
	uniform device.Handle
	aabbs   device.Handle
	dirty   bool

	projection    mgl32.Mat4
	near, far     float32
	width, height uint32

	view      camera.View
	viewFrame uint64
	hasView   bool
}

// gridBuilder is the implementation of the GridBuilder interface.
type gridBuilder struct {
	dev            device.Device
	grid           Grid
	framesInFlight int
	slots          []gridSlot
	log            *slog.Logger
}

var _ GridBuilder = &gridBuilder{}
var _ frame.ClusterRecorder = &gridBuilder{}

// NewGridBuilder registers the AABB kernel and allocates one uniform and one box buffer per
// frame-in-flight. Every slot starts dirty.
//
// Parameters:
//   - dev: the device
//   - options: GridBuilderOption values
//
// Returns:
//   - GridBuilder: the builder
//   - error: common.ErrConfig for an invalid grid or frames-in-flight count, or a device error
func NewGridBuilder(dev device.Device, options ...GridBuilderOption) (GridBuilder, error) {
	g := &gridBuilder{
		dev:            dev,
		grid:           DefaultGrid(),
		framesInFlight: frame.DefaultFramesInFlight,
		log:            common.ComponentLogger("cluster"),
	}
	for _, option := range options {
		option(g)
	}
	if err := g.grid.Validate(); err != nil {
		return nil, err
	}
	if g.framesInFlight < 1 || g.framesInFlight > frame.MaxFramesInFlight {
		return nil, fmt.Errorf("cluster: %d frames in flight: %w", g.framesInFlight, common.ErrConfig)
	}
	if err := dev.RegisterKernel(aabbKernel); err != nil {
		return nil, fmt.Errorf("cluster: %w", err)
	}

	g.slots = make([]gridSlot, g.framesInFlight)
	for i := range g.slots {
		s := &g.slots[i]
		s.dirty = true
		var err error
		if s.uniform, err = dev.CreateBuffer(fmt.Sprintf("cluster uniform[%d]", i), GPUClusterUniformSize, device.BufferUsageUniform|device.BufferUsageCopyDst); err != nil {
			g.Release()
			return nil, fmt.Errorf("cluster: %w", err)
		}
		if s.aabbs, err = dev.CreateBuffer(fmt.Sprintf("cluster aabbs[%d]", i), uint64(g.grid.Count())*AABBSize, device.BufferUsageStorage); err != nil {
			g.Release()
			return nil, fmt.Errorf("cluster: %w", err)
		}
	}
	g.log.Debug("grid created", slog.String("grid", g.grid.String()), slog.Int("frames_in_flight", g.framesInFlight))
	return g, nil
}

func (g *gridBuilder) Grid() Grid {
	return g.grid
}

func (g *gridBuilder) FramesInFlight() int {
	return g.framesInFlight
}

func (g *gridBuilder) Invalidate() {
	for i := range g.slots {
		g.slots[i].dirty = true
	}
}

func (g *gridBuilder) Dirty(slot int) bool {
	if slot < 0 || slot >= len(g.slots) {
		return true
	}
	return g.slots[slot].dirty
}

func (g *gridBuilder) View(ctx *frame.Context) (camera.View, bool) {
	if ctx.Slot < 0 || ctx.Slot >= len(g.slots) {
		return camera.View{}, false
	}
	s := g.slots[ctx.Slot]
	if !s.hasView || s.viewFrame != ctx.Number {
		return camera.View{}, false
	}
	return s.view, true
}

func (g *gridBuilder) AABBBuffer(slot int) device.Handle {
	if slot < 0 || slot >= len(g.slots) {
		return device.InvalidHandle
	}
	return g.slots[slot].aabbs
}

func (g *gridBuilder) RecordClusterBuild(ctx *frame.Context, v camera.View) (bool, error) {
	if err := common.CheckIndex("frame slot", ctx.Slot, len(g.slots)); err != nil {
		return false, err
	}
	if _, err := NewSliceParams(g.grid.Z, v.Near, v.Far); err != nil {
		return false, err
	}
	if v.Width == 0 || v.Height == 0 {
		return false, fmt.Errorf("cluster: viewport %dx%d: %w", v.Width, v.Height, common.ErrConfig)
	}

	s := &g.slots[ctx.Slot]
	s.view, s.viewFrame, s.hasView = v, ctx.Number, true
	if !s.dirty && s.projection == v.Projection && s.near == v.Near && s.far == v.Far &&
		s.width == v.Width && s.height == v.Height {
		return false, nil
	}

	uniform := GPUClusterUniform{
		InverseProjection: v.InverseProjection(),
		ScreenSize:        [2]float32{float32(v.Width), float32(v.Height)},
		Near:              v.Near,
		Far:               v.Far,
		Grid:              [3]uint32{g.grid.X, g.grid.Y, g.grid.Z},
	}
	if err := ctx.Upload(device.BufferWrite{Buffer: s.uniform, Data: uniform.Marshal()}); err != nil {
		return false, fmt.Errorf("cluster: upload grid uniform: %w", err)
	}
	bindings := []device.Binding{
		{Slot: 0, Buffer: s.uniform, Access: device.AccessUniformRead},
		{Slot: 1, Buffer: s.aabbs, Access: device.AccessShaderReadWrite},
	}
	if err := ctx.Dispatch(aabbKernel, bindings, [3]uint32{g.grid.X, g.grid.Y, g.grid.Z}); err != nil {
		return false, fmt.Errorf("cluster: %w", err)
	}
	if err := ctx.Barrier(device.BufferBarrier{
		Buffer:    s.aabbs,
		SrcStage:  device.StageCompute,
		SrcAccess: device.AccessShaderWrite,
		DstStage:  device.StageCompute,
		DstAccess: device.AccessShaderRead,
	}); err != nil {
		return false, fmt.Errorf("cluster: %w", err)
	}

	s.dirty = false
	s.projection, s.near, s.far = v.Projection, v.Near, v.Far
	s.width, s.height = v.Width, v.Height
	g.log.Debug("grid rebuilt", slog.Uint64("frame", ctx.Number), slog.Int("slot", ctx.Slot))
	return true, nil
}

func (g *gridBuilder) Release() {
	for _, s := range g.slots {
		g.dev.ReleaseBuffer(s.uniform)
		g.dev.ReleaseBuffer(s.aabbs)
	}
	g.slots = nil
}
