package cluster

import (
	"fmt"
	"log/slog"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/Carmen-Shannon/oxy-cluster/common"
	"github.com/Carmen-Shannon/oxy-cluster/engine/device"
	"github.com/Carmen-Shannon/oxy-cluster/engine/frame"
	"github.com/Carmen-Shannon/oxy-cluster/engine/light"
	"github.com/Carmen-Shannon/oxy-cluster/engine/shader"
)

// binProgram lists the lights of one cluster per invocation and reserves its index range with a
// single atomic add. Bindings: 0 bin uniform, 1 lights, 2 cluster boxes, 3 global index counter,
// 4 light cells, 5 light indices, 6 bin status.
var binProgram = shader.MustCompile(lightBinningSource,
	shader.WithStruct("point_light", light.GPUPointLightSource))

var binKernel = newBinKernel()

// newBinKernel runs invocations in linear order so the atomic reservations are reproducible.
func newBinKernel() *device.Kernel {
	kernel := binProgram.Kernel("light binning", func(gid [3]uint32, mem device.Memory) {
		u := unmarshalBinUniform(mem.Bytes(0))
		grid := Grid{X: u.Grid[0], Y: u.Grid[1], Z: u.Grid[2]}
		if gid[0] >= grid.X || gid[1] >= grid.Y || gid[2] >= grid.Z {
			return
		}
		id := int(grid.LinearID(gid[0], gid[1], gid[2]))
		box := common.UnmarshalBoundingBox(mem.Bytes(2)[id*AABBSize:])

		lights := mem.Bytes(1)
		var total uint32
		picked := make([]uint32, 0, min(u.LightCount, u.MaxPerCluster))
		for i := range u.LightCount {
			l := light.UnmarshalGPUPointLight(lights[int(i)*light.GPUPointLightSize:])
			center := common.TransformPoint(u.View, mgl32.Vec3(l.Position))
			if !box.IntersectsSphere(center, l.Radius) {
				continue
			}
			total++
			if uint32(len(picked)) < u.MaxPerCluster {
				picked = append(picked, i)
			}
		}

		count := uint32(len(picked))
		start := mem.AtomicAdd(3, 0, count)
		indices := mem.Bytes(5)
		for k, i := range picked {
			common.PutUint32(indices, int(start)*4+k*4, i)
		}
		LightCell{Offset: start, Count: count}.MarshalInto(mem.Bytes(4)[id*LightCellSize:])

		mem.AtomicMax(6, binStatusMaxCountOffset, total)
		if total > count {
			mem.AtomicAdd(6, binStatusOverflowsOffset, 1)
		}
	})
	kernel.Ordered = true
	return kernel
}

// BinResult is the outcome of one light binning pass read back from the device.
type BinResult struct {
	// Cells holds the light range of every cluster by linear id.
	Cells []LightCell
	// Indices holds the first Counter entries of the light-index buffer.
	Indices []uint32
	// Counter is the final value of the global index counter.
	Counter uint32
	// MaxCount is the largest per-cluster light count before clamping.
	MaxCount uint32
	// OverflowClusters counts the clusters that dropped lights.
	OverflowClusters uint32
}

// Lights returns the light indices of a cluster.
func (r BinResult) Lights(id int) []uint32 {
	if id < 0 || id >= len(r.Cells) {
		return nil
	}
	c := r.Cells[id]
	return r.Indices[c.Offset : c.Offset+c.Count]
}

// LightBinner assigns the frame's point lights to the clusters of a GridBuilder.
type LightBinner interface {
	// RecordLightBinning uploads the lights, resets the frame's index counter and bin status, and
	// dispatches one invocation per cluster. Each invocation collects the lights whose sphere touches
	// its box in ascending light order, keeps at most MaxLightsPerCluster of them, reserves its index
	// range with one atomic add and writes its LightCell. A barrier then makes cells and indices
	// visible to fragment reads. Light centres are moved into view space with the view given to
	// RecordClusterBuild for the same frame; that call is required even when the grid is clean.
	//
	// Parameters:
	//   - ctx: the frame being prepared
	//   - lights: the lights of the frame
	//
	// Returns:
	//   - error: common.ErrResourceExhausted when len(lights) exceeds MaxLights, common.ErrGPUSync
	//     when the slot's grid was never built or RecordClusterBuild was not called for ctx, or an
	//     upload or command validation error
	RecordLightBinning(ctx *frame.Context, lights []light.PointLight) error

	// ShadingBindings returns the light list, cells and indices of a slot as read by shading.
	ShadingBindings(slot int) []device.Binding

	// ResolveBinning reads the binning result of a slot back from the device. The frame that
	// recorded it must have been submitted.
	//
	// Parameters:
	//   - slot: the frame-in-flight slot
	//
	// Returns:
	//   - BinResult: the cells, indices and counters
	//   - error: common.ErrResourceExhausted under OverflowFail when a cluster dropped lights,
	//     common.ErrConfig when the device cannot read back
	ResolveBinning(slot int) (BinResult, error)

	MaxLights() int
	MaxLightsPerCluster() int
	OverflowPolicy() OverflowPolicy

	// Release frees the binning buffers.
	Release()
}

type binSlot struct {
	uniform device.Handle
	lights  device.Handle
	counter device.Handle
	cells   device.Handle
	indices device.Handle
	status  device.Handle
}

// lightBinner is the implementation of the LightBinner interface.
type lightBinner struct {
	dev           device.Device
	grid          GridBuilder
	maxLights     int
	maxPerCluster int
	overflow      OverflowPolicy
	slots         []binSlot
	log           *slog.Logger
}

var _ LightBinner = &lightBinner{}
var _ frame.LightBinRecorder = &lightBinner{}

// NewLightBinner registers the binning kernel and allocates the binning buffers of every slot of grid.
//
// Parameters:
//   - dev: the device the grid lives on
//   - grid: the grid whose boxes the lights are binned into
//   - options: LightBinnerOption values
//
// Returns:
//   - LightBinner: the binner
//   - error: common.ErrConfig for non-positive limits, or a device error
func NewLightBinner(dev device.Device, grid GridBuilder, options ...LightBinnerOption) (LightBinner, error) {
	b := &lightBinner{
		dev:           dev,
		grid:          grid,
		maxLights:     DefaultMaxLights,
		maxPerCluster: DefaultMaxLightsPerCluster,
		overflow:      OverflowClamp,
		log:           common.ComponentLogger("cluster"),
	}
	for _, option := range options {
		option(b)
	}
	if b.maxLights < 1 || b.maxPerCluster < 1 {
		return nil, fmt.Errorf("cluster: light limits %d/%d: %w", b.maxLights, b.maxPerCluster, common.ErrConfig)
	}
	if err := dev.RegisterKernel(binKernel); err != nil {
		return nil, fmt.Errorf("cluster: %w", err)
	}

	clusters := uint64(grid.Grid().Count())
	b.slots = make([]binSlot, grid.FramesInFlight())
	for i := range b.slots {
		s := &b.slots[i]
		buffers := []struct {
			h     *device.Handle
			label string
			size  uint64
			usage device.BufferUsage
		}{
			{&s.uniform, "bin uniform", GPUBinUniformSize, device.BufferUsageUniform | device.BufferUsageCopyDst},
			{&s.lights, "lights", uint64(b.maxLights) * light.GPUPointLightSize, device.BufferUsageStorage | device.BufferUsageCopyDst},
			{&s.counter, "light index counter", 4, device.BufferUsageStorage | device.BufferUsageCopyDst | device.BufferUsageCopySrc},
			{&s.cells, "light cells", clusters * LightCellSize, device.BufferUsageStorage | device.BufferUsageCopySrc},
			{&s.indices, "light indices", clusters * uint64(b.maxPerCluster) * 4, device.BufferUsageStorage | device.BufferUsageCopySrc},
			{&s.status, "bin status", binStatusSize, device.BufferUsageStorage | device.BufferUsageCopyDst | device.BufferUsageCopySrc},
		}
		for _, buf := range buffers {
			h, err := dev.CreateBuffer(fmt.Sprintf("%s[%d]", buf.label, i), buf.size, buf.usage)
			if err != nil {
				b.Release()
				return nil, fmt.Errorf("cluster: %w", err)
			}
			*buf.h = h
		}
	}
	return b, nil
}

func (b *lightBinner) MaxLights() int {
	return b.maxLights
}

func (b *lightBinner) MaxLightsPerCluster() int {
	return b.maxPerCluster
}

func (b *lightBinner) OverflowPolicy() OverflowPolicy {
	return b.overflow
}

func (b *lightBinner) RecordLightBinning(ctx *frame.Context, lights []light.PointLight) error {
	if err := common.CheckIndex("frame slot", ctx.Slot, len(b.slots)); err != nil {
		return err
	}
	if len(lights) > b.maxLights {
		return fmt.Errorf("cluster: %d lights exceed the light buffer capacity %d: %w", len(lights), b.maxLights, common.ErrResourceExhausted)
	}
	for i, l := range lights {
		if err := l.Validate(); err != nil {
			return fmt.Errorf("light %d: %w", i, err)
		}
	}
	if b.grid.Dirty(ctx.Slot) {
		return fmt.Errorf("cluster: grid of slot %d not built before binning: %w", ctx.Slot, common.ErrGPUSync)
	}
	view, ok := b.grid.View(ctx)
	if !ok {
		return fmt.Errorf("cluster: no cluster build recorded for frame %d: %w", ctx.Number, common.ErrGPUSync)
	}

	grid := b.grid.Grid()
	s := b.slots[ctx.Slot]
	uniform := GPUBinUniform{
		View:          view.View,
		LightCount:    uint32(len(lights)),
		MaxPerCluster: uint32(b.maxPerCluster),
		Grid:          [3]uint32{grid.X, grid.Y, grid.Z},
	}
	writes := []device.BufferWrite{
		{Buffer: s.uniform, Data: uniform.Marshal()},
		{Buffer: s.counter, Data: make([]byte, 4)},
		{Buffer: s.status, Data: make([]byte, binStatusSize)},
	}
	if len(lights) > 0 {
		writes = append(writes, device.BufferWrite{Buffer: s.lights, Data: light.MarshalLightBuffer(lights)})
	}
	if err := ctx.Upload(writes...); err != nil {
		return fmt.Errorf("cluster: upload lights: %w", err)
	}

	bindings := []device.Binding{
		{Slot: 0, Buffer: s.uniform, Access: device.AccessUniformRead},
		{Slot: 1, Buffer: s.lights, Access: device.AccessShaderRead},
		{Slot: 2, Buffer: b.grid.AABBBuffer(ctx.Slot), Access: device.AccessShaderRead},
		{Slot: 3, Buffer: s.counter, Access: device.AccessShaderReadWrite},
		{Slot: 4, Buffer: s.cells, Access: device.AccessShaderReadWrite},
		{Slot: 5, Buffer: s.indices, Access: device.AccessShaderReadWrite},
		{Slot: 6, Buffer: s.status, Access: device.AccessShaderReadWrite},
	}
	if err := ctx.Dispatch(binKernel, bindings, [3]uint32{grid.X, grid.Y, grid.Z}); err != nil {
		return fmt.Errorf("cluster: %w", err)
	}
	barrier := func(h device.Handle) device.BufferBarrier {
		return device.BufferBarrier{
			Buffer:    h,
			SrcStage:  device.StageCompute,
			SrcAccess: device.AccessShaderWrite,
			DstStage:  device.StageFragment,
			DstAccess: device.AccessShaderRead,
		}
	}
	if err := ctx.Barrier(barrier(s.cells), barrier(s.indices)); err != nil {
		return fmt.Errorf("cluster: %w", err)
	}
	b.log.Debug("lights binned", slog.Uint64("frame", ctx.Number), slog.Int("lights", len(lights)))
	return nil
}

func (b *lightBinner) ShadingBindings(slot int) []device.Binding {
	if slot < 0 || slot >= len(b.slots) {
		return nil
	}
	s := b.slots[slot]
	return []device.Binding{
		{Slot: 0, Buffer: s.lights, Access: device.AccessShaderRead},
		{Slot: 1, Buffer: s.cells, Access: device.AccessShaderRead},
		{Slot: 2, Buffer: s.indices, Access: device.AccessShaderRead},
	}
}

func (b *lightBinner) ResolveBinning(slot int) (BinResult, error) {
	if err := common.CheckIndex("frame slot", slot, len(b.slots)); err != nil {
		return BinResult{}, err
	}
	rb, ok := b.dev.(device.Readback)
	if !ok {
		return BinResult{}, fmt.Errorf("cluster: %s device cannot read back bins: %w", b.dev.Backend(), common.ErrConfig)
	}
	s := b.slots[slot]

	read := func(h device.Handle, size uint64) ([]byte, error) {
		data, err := rb.ReadBuffer(h, 0, size)
		if err != nil {
			return nil, fmt.Errorf("cluster: read back: %w", err)
		}
		return data, nil
	}
	status, err := read(s.status, device.WholeSize)
	if err != nil {
		return BinResult{}, err
	}
	counter, err := read(s.counter, device.WholeSize)
	if err != nil {
		return BinResult{}, err
	}
	cells, err := read(s.cells, device.WholeSize)
	if err != nil {
		return BinResult{}, err
	}

	r := BinResult{
		Counter:          common.Uint32At(counter, 0),
		MaxCount:         common.Uint32At(status, binStatusMaxCountOffset),
		OverflowClusters: common.Uint32At(status, binStatusOverflowsOffset),
		Cells:            make([]LightCell, len(cells)/LightCellSize),
	}
	for i := range r.Cells {
		r.Cells[i] = UnmarshalLightCell(cells[i*LightCellSize:])
	}
	if r.Counter > 0 {
		indices, err := read(s.indices, uint64(r.Counter)*4)
		if err != nil {
			return BinResult{}, err
		}
		r.Indices = make([]uint32, r.Counter)
		for i := range r.Indices {
			r.Indices[i] = common.Uint32At(indices, i*4)
		}
	}

	if r.OverflowClusters > 0 {
		if b.overflow == OverflowFail {
			return r, fmt.Errorf("cluster: %d clusters touched by up to %d lights, limit %d: %w",
				r.OverflowClusters, r.MaxCount, b.maxPerCluster, common.ErrResourceExhausted)
		}
		b.log.Warn("cluster light lists clamped",
			slog.Uint64("clusters", uint64(r.OverflowClusters)),
			slog.Uint64("max_count", uint64(r.MaxCount)),
			slog.Int("limit", b.maxPerCluster))
	}
	return r, nil
}

func (b *lightBinner) Release() {
	for _, s := range b.slots {
		for _, h := range []device.Handle{s.uniform, s.lights, s.counter, s.cells, s.indices, s.status} {
			b.dev.ReleaseBuffer(h)
		}
	}
	b.slots = nil
}
