// Package culling records the per-frame GPU frustum cull that writes the instance count of every
// indirect draw record: 1 when the entry's world-space box may be visible, 0 when it is not.
package culling

import (
	"fmt"
	"log/slog"

	"github.com/Carmen-Shannon/oxy-cluster/common"
	"github.com/Carmen-Shannon/oxy-cluster/engine/device"
	"github.com/Carmen-Shannon/oxy-cluster/engine/frame"
	"github.com/Carmen-Shannon/oxy-cluster/engine/scene"
	"github.com/Carmen-Shannon/oxy-cluster/engine/shader"
)

// WorkgroupSize is the number of entries one cull workgroup tests. It must match the
// @workgroup_size of cull_main.
const WorkgroupSize = 64

// cullProgram tests one entry per invocation. Bindings: 0 frustum uniform, 1 transformed boxes,
// 2 indirect draw records.
var cullProgram = shader.MustCompile(frustumCullSource,
	shader.WithStruct("indirect_draw", scene.GPUIndirectDrawRecordSource))

var cullKernel = cullProgram.Kernel("frustum cull", func(gid [3]uint32, mem device.Memory) {
	f, count, refine := unmarshalFrustum(mem.Bytes(0))
	i := int(gid[0])
	if i >= int(count) {
		return
	}
	box := common.UnmarshalBoundingBox(mem.Bytes(1)[i*common.BoundingBoxSize:])
	var visible uint32
	if Visible(f, box, refine) {
		visible = 1
	}
	common.PutUint32(mem.Bytes(2), i*scene.IndirectDrawRecordSize+scene.InstanceCountOffset, visible)
})

// Visible is the cull test of one box. A box is culled when it lies entirely outside one frustum
// plane or, with refine set, entirely beyond the frustum corner extent along one axis. Boxes
// intersecting the frustum are never culled.
//
// Parameters:
//   - f: the world-space frustum
//   - box: the world-space box
//   - refine: whether corner refinement is enabled
//
// Returns:
//   - bool: false when the box is certainly outside the frustum
func Visible(f common.Frustum, box common.BoundingBox, refine bool) bool {
	if !f.IntersectsBox(box) {
		return false
	}
	return !refine || !f.CornersExcludeBox(box)
}

// FrustumCuller records the frustum cull of a scene into frames.
type FrustumCuller interface {
	// RecordFrustumCull uploads the staged transforms of the scene and the frustum uniform of the
	// frame's slot, dispatches one invocation per entry, and records a barrier making the
	// instance counts visible to indirect draws.
	//
	// Parameters:
	//   - ctx: the frame being prepared
	//   - f: the world-space view frustum
	//
	// Returns:
	//   - error: an upload or command validation error
	RecordFrustumCull(ctx *frame.Context, f common.Frustum) error

	// CornerRefinement reports whether corner refinement is enabled.
	CornerRefinement() bool

	// Release frees the uniform buffers.
	Release()
}

// frustumCuller is the implementation of the FrustumCuller interface.
type frustumCuller struct {
	dev      device.Device
	scene    scene.MeshScene
	refine   bool
	uniforms []device.Handle
	log      *slog.Logger
}

var _ FrustumCuller = &frustumCuller{}
var _ frame.CullRecorder = &frustumCuller{}

// NewFrustumCuller registers the cull kernel and creates one frustum uniform per frame-in-flight.
//
// Parameters:
//   - dev: the device the scene lives on
//   - s: the scene whose indirect records are culled
//   - options: FrustumCullerBuilderOption values
//
// Returns:
//   - FrustumCuller: the culler
//   - error: a kernel registration or buffer creation error
func NewFrustumCuller(dev device.Device, s scene.MeshScene, options ...FrustumCullerBuilderOption) (FrustumCuller, error) {
	c := &frustumCuller{
		dev:   dev,
		scene: s,
		log:   common.ComponentLogger("culling"),
	}
	for _, option := range options {
		option(c)
	}

	if err := dev.RegisterKernel(cullKernel); err != nil {
		return nil, fmt.Errorf("culling: %w", err)
	}
	c.uniforms = make([]device.Handle, s.FramesInFlight())
	for slot := range c.uniforms {
		h, err := dev.CreateBuffer(fmt.Sprintf("frustum[%d]", slot), GPUFrustumSize, device.BufferUsageUniform|device.BufferUsageCopyDst)
		if err != nil {
			c.Release()
			return nil, fmt.Errorf("culling: %w", err)
		}
		c.uniforms[slot] = h
	}
	return c, nil
}

func (c *frustumCuller) CornerRefinement() bool {
	return c.refine
}

func (c *frustumCuller) RecordFrustumCull(ctx *frame.Context, f common.Frustum) error {
	if err := common.CheckIndex("frame slot", ctx.Slot, len(c.uniforms)); err != nil {
		return err
	}
	if err := c.scene.Flush(ctx); err != nil {
		return fmt.Errorf("culling: flush transforms: %w", err)
	}

	entries := c.scene.EntryCount()
	uniform := NewGPUFrustum(f, entries, c.refine)
	if err := ctx.Upload(device.BufferWrite{Buffer: c.uniforms[ctx.Slot], Data: uniform.Marshal()}); err != nil {
		return fmt.Errorf("culling: upload frustum: %w", err)
	}

	buffers := c.scene.Buffers(ctx.Slot)
	indirectSize := uint64(entries) * scene.IndirectDrawRecordSize
	bindings := []device.Binding{
		{Slot: 0, Buffer: c.uniforms[ctx.Slot], Access: device.AccessUniformRead},
		{Slot: 1, Buffer: buffers.Boxes, Size: uint64(entries) * common.BoundingBoxSize, Access: device.AccessShaderRead},
		{Slot: 2, Buffer: buffers.Indirect, Size: indirectSize, Access: device.AccessShaderReadWrite},
	}
	groups := [3]uint32{common.DivCeil(uint32(entries), WorkgroupSize), 1, 1}
	if err := ctx.Dispatch(cullKernel, bindings, groups); err != nil {
		return fmt.Errorf("culling: %w", err)
	}
	if err := ctx.Barrier(device.BufferBarrier{
		Buffer:    buffers.Indirect,
		Size:      indirectSize,
		SrcStage:  device.StageCompute,
		SrcAccess: device.AccessShaderWrite,
		DstStage:  device.StageDrawIndirect,
		DstAccess: device.AccessIndirectRead,
	}); err != nil {
		return fmt.Errorf("culling: %w", err)
	}
	c.log.Debug("cull recorded", slog.Uint64("frame", ctx.Number), slog.Int("entries", entries), slog.Any("groups", groups))
	return nil
}

func (c *frustumCuller) Release() {
	for _, h := range c.uniforms {
		c.dev.ReleaseBuffer(h)
	}
	c.uniforms = nil
}
