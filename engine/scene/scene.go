// Package scene flattens models and their instances into the GPU-resident tables that drive indirect
// drawing: one entry per (instance, mesh), stably sorted by material, with a model matrix table,
// original and transformed bounding boxes, MeshData records and indirect draw records.
package scene

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"

	"github.com/go-gl/mathgl/mgl32"
	"golang.org/x/sync/errgroup"

	"github.com/Carmen-Shannon/oxy-cluster/common"
	"github.com/Carmen-Shannon/oxy-cluster/engine/device"
	"github.com/Carmen-Shannon/oxy-cluster/engine/frame"
	"github.com/Carmen-Shannon/oxy-cluster/engine/loader"
	"github.com/Carmen-Shannon/oxy-cluster/engine/model"
)

// MeshScene is the flattened, GPU-resident form of a set of models and their instances.
// Entry, MeshData and bounding box arrays all have one element per (instance x mesh) and share
// indices. Per-frame buffers exist once per frame-in-flight slot.
// Thread-safe for concurrent access.
type MeshScene interface {
	// EntryCount returns the number of entries, sum(InstanceCount x meshCount) over all models.
	EntryCount() int

	// Entry retrieves one entry.
	//
	// Parameters:
	//   - i: the entry index
	//
	// Returns:
	//   - InstanceEntry: the entry
	//   - error: an *common.IndexError for an invalid index
	Entry(i int) (InstanceEntry, error)

	// Entries returns a copy of all entries in sorted order.
	Entries() []InstanceEntry

	// ModelCount returns the number of models.
	ModelCount() int

	// Descriptor returns the descriptor the model at index was built from.
	Descriptor(modelIndex int) (model.ModelDescriptor, error)

	// MatrixCount returns the number of model matrix slots, sum(InstanceCount).
	MatrixCount() int

	// TriangleCount returns the number of triangles drawn when every entry is visible.
	TriangleCount() int

	// TextureCount returns the size of the scene-wide texture index space.
	TextureCount() int

	// FramesInFlight returns the number of per-frame buffer copies.
	FramesInFlight() int

	// MaterialRange locates the entries of a material in the indirect buffer.
	//
	// Parameters:
	//   - m: the material
	//
	// Returns:
	//   - uint64: the byte offset of the first record of m (first index x 16)
	//   - uint32: the number of records of m, 0 (with offset 0) when no entry uses m
	MaterialRange(m common.MaterialType) (uint64, uint32)

	// IndirectDraw resolves a material to its draw range in a frame slot's indirect buffer.
	//
	// Parameters:
	//   - slot: the frame-in-flight slot
	//   - m: the material
	//
	// Returns:
	//   - frame.IndirectDraw: the draw range
	//   - bool: false when the material has no entries or the slot is invalid
	IndirectDraw(slot int, m common.MaterialType) (frame.IndirectDraw, bool)

	// UpdateTransform sets the model matrix of one instance, re-derives the transformed bounding
	// boxes of every entry of that instance and stages partial uploads into every frame-in-flight.
	//
	// Parameters:
	//   - modelIndex: the model
	//   - instanceIndex: the instance of the model
	//   - m: the new model matrix
	//
	// Returns:
	//   - error: an *common.IndexError (wrapping common.ErrIndexOutOfRange) for invalid indices,
	//     in which case nothing changes
	UpdateTransform(modelIndex, instanceIndex int, m mgl32.Mat4) error

	// ModelMatrix returns the current model matrix of one instance.
	ModelMatrix(modelIndex, instanceIndex int) (mgl32.Mat4, error)

	// EntriesOf returns the entry indices of one instance in ascending order.
	EntriesOf(modelIndex, instanceIndex int) ([]int, error)

	// OriginalBoundingBox returns the object-space box of an entry.
	OriginalBoundingBox(entry int) (common.BoundingBox, error)

	// TransformedBoundingBox returns the world-space box of an entry.
	TransformedBoundingBox(entry int) (common.BoundingBox, error)

	// PickInstance returns the clickable entry whose transformed box the ray hits first.
	//
	// Parameters:
	//   - r: the world-space ray
	//
	// Returns:
	//   - int: the entry index
	//   - bool: false when no clickable entry is hit
	PickInstance(r common.Ray) (int, bool)

	// Flush uploads the transform updates staged for the frame's slot.
	//
	// Parameters:
	//   - ctx: the frame being prepared
	//
	// Returns:
	//   - error: an upload error; staged writes are kept for the next attempt
	Flush(ctx *frame.Context) error

	// Pending returns the number of staged writes for a slot.
	Pending(slot int) int

	// Buffers returns the device buffers of one frame slot.
	Buffers(slot int) Buffers

	// Release frees every device buffer of the scene.
	Release()
}

// Buffers lists the device buffers of a scene as seen by one frame-in-flight slot.
type Buffers struct {
	// Shared by all frames.
	Vertices device.Handle
	Indices  device.Handle
	MeshData device.Handle

	// Owned by the slot.
	Matrices device.Handle
	Boxes    device.Handle
	Indirect device.Handle
}

// frameBuffers are the per-slot buffers and the writes staged for them.
type frameBuffers struct {
	matrices, boxes, indirect device.Handle
	pending                   []device.BufferWrite
}

// meshScene is the implementation of the MeshScene interface.
type meshScene struct {
	mu sync.RWMutex

	dev  device.Device
	ldr  loader.Loader
	log  *slog.Logger
	name string

	framesInFlight  int
	loadConcurrency int

	descriptors []model.ModelDescriptor
	models      []model.Model
	slotBase    []int

	entries     []InstanceEntry
	transformed []common.BoundingBox
	matrices    []mgl32.Mat4
	slotEntries [][]int
	ranges      map[common.MaterialType][2]uint32

	geometry  geometry
	triangles int
	textures  int

	vertices, indices, meshData device.Handle
	frames                      []frameBuffers
}

var _ MeshScene = &meshScene{}

// NewMeshScene loads every described model and builds the scene tables and device buffers.
// Models load concurrently; their results are consumed in descriptor order.
//
// Parameters:
//   - ctx: cancels model loading
//   - dev: the device owning the scene buffers
//   - descriptors: the models in scene order
//   - options: MeshSceneBuilderOption values
//
// Returns:
//   - MeshScene: the built scene
//   - error: an error wrapping common.ErrConfig for invalid descriptors, common.ErrAssetLoad for
//     models that fail to load, or a device error
func NewMeshScene(ctx context.Context, dev device.Device, descriptors []model.ModelDescriptor, options ...MeshSceneBuilderOption) (MeshScene, error) {
	s := &meshScene{
		dev:             dev,
		name:            "scene",
		framesInFlight:  frame.DefaultFramesInFlight,
		loadConcurrency: max(runtime.NumCPU()-1, 1),
	}
	for _, option := range options {
		option(s)
	}
	if s.ldr == nil {
		s.ldr = loader.NewLoader()
	}
	s.log = common.ComponentLogger("scene").With(slog.String("scene", s.name))

	if dev == nil {
		return nil, fmt.Errorf("scene: nil device: %w", common.ErrConfig)
	}
	if s.framesInFlight < 1 || s.framesInFlight > frame.MaxFramesInFlight {
		return nil, fmt.Errorf("scene: %d frames in flight: %w", s.framesInFlight, common.ErrConfig)
	}
	if len(descriptors) == 0 {
		return nil, fmt.Errorf("scene: no models: %w", common.ErrConfig)
	}
	for i, d := range descriptors {
		if err := d.Validate(); err != nil {
			return nil, fmt.Errorf("scene: model %d: %w", i, err)
		}
	}
	s.descriptors = append([]model.ModelDescriptor(nil), descriptors...)

	if err := s.loadModels(ctx); err != nil {
		return nil, err
	}
	s.build()
	if err := s.allocate(); err != nil {
		s.Release()
		return nil, err
	}

	opaque := s.ranges[common.MaterialOpaque]
	transparent := s.ranges[common.MaterialTransparent]
	s.log.Info("scene built",
		slog.Int("models", len(s.models)),
		slog.Int("matrices", len(s.matrices)),
		slog.Int("entries", len(s.entries)),
		slog.Int("triangles", s.triangles),
		slog.Int("opaque", int(opaque[1])),
		slog.Int("transparent", int(transparent[1])))
	return s, nil
}

// loadModels loads the descriptors concurrently into s.models, keeping descriptor order.
func (s *meshScene) loadModels(ctx context.Context) error {
	s.models = make([]model.Model, len(s.descriptors))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.loadConcurrency)
	for i, d := range s.descriptors {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			m, err := s.ldr.Load(d.SourcePath)
			if err != nil {
				return fmt.Errorf("scene: model %d: %w", i, err)
			}
			s.models[i] = m
			return nil
		})
	}
	return g.Wait()
}

// build derives every CPU-side table from the loaded models.
func (s *meshScene) build() {
	s.slotBase = make([]int, len(s.descriptors))
	slots := 0
	for i, d := range s.descriptors {
		s.slotBase[i] = slots
		slots += int(d.InstanceCount)
	}

	g := concatGeometry(s.models)
	s.textures = g.textures
	s.entries = flattenEntries(s.descriptors, s.models, g, s.slotBase)
	s.ranges = materialRanges(s.entries)

	s.matrices = make([]mgl32.Mat4, slots)
	for i := range s.matrices {
		s.matrices[i] = mgl32.Ident4()
	}
	s.slotEntries = make([][]int, slots)
	s.transformed = make([]common.BoundingBox, len(s.entries))
	for i, e := range s.entries {
		slot := int(e.MeshData.ModelMatrixIndex)
		s.slotEntries[slot] = append(s.slotEntries[slot], i)
		s.transformed[i] = e.Bounds
		s.triangles += int(e.MeshData.IndexCount) / 3
	}

	s.geometry = g
}

// allocate creates and fills the device buffers.
func (s *meshScene) allocate() error {
	g := s.geometry
	s.geometry = geometry{}

	var err error
	create := func(label string, data []byte, usage device.BufferUsage) device.Handle {
		if err != nil {
			return device.InvalidHandle
		}
		var h device.Handle
		h, err = s.dev.CreateBuffer(s.name+" "+label, uint64(max(len(data), 4)), usage|device.BufferUsageCopyDst)
		if err != nil {
			err = fmt.Errorf("scene: create %s buffer: %w", label, err)
			return device.InvalidHandle
		}
		if len(data) > 0 {
			if werr := s.dev.WriteBuffer(h, 0, data); werr != nil {
				err = fmt.Errorf("scene: upload %s buffer: %w", label, werr)
			}
		}
		return h
	}

	s.vertices = create("vertices", model.MarshalVertices(g.vertices), device.BufferUsageVertex|device.BufferUsageStorage)
	s.indices = create("indices", model.MarshalIndices(g.indices), device.BufferUsageIndex|device.BufferUsageStorage)
	s.meshData = create("mesh data", s.marshalMeshData(), device.BufferUsageStorage)

	matrices := s.marshalMatrices(0, len(s.matrices))
	boxes := s.marshalBoxes(0, len(s.transformed))
	indirect := s.marshalIndirect()
	s.frames = make([]frameBuffers, s.framesInFlight)
	for slot := range s.frames {
		s.frames[slot] = frameBuffers{
			matrices: create(fmt.Sprintf("matrices[%d]", slot), matrices, device.BufferUsageStorage),
			boxes:    create(fmt.Sprintf("bounding boxes[%d]", slot), boxes, device.BufferUsageStorage),
			indirect: create(fmt.Sprintf("indirect[%d]", slot), indirect, device.BufferUsageIndirect|device.BufferUsageStorage),
		}
	}
	return err
}

func (s *meshScene) marshalMeshData() []byte {
	buf := make([]byte, len(s.entries)*model.GPUMeshDataSize)
	for i := range s.entries {
		s.entries[i].MeshData.MarshalInto(buf[i*model.GPUMeshDataSize:])
	}
	return buf
}

// marshalMatrices serializes matrix slots [first, last).
func (s *meshScene) marshalMatrices(first, last int) []byte {
	buf := make([]byte, (last-first)*64)
	for i := first; i < last; i++ {
		common.PutMat4(buf, (i-first)*64, s.matrices[i])
	}
	return buf
}

// marshalBoxes serializes transformed boxes [first, last).
func (s *meshScene) marshalBoxes(first, last int) []byte {
	buf := make([]byte, (last-first)*common.BoundingBoxSize)
	for i := first; i < last; i++ {
		s.transformed[i].MarshalInto(buf[(i-first)*common.BoundingBoxSize:])
	}
	return buf
}

func (s *meshScene) marshalIndirect() []byte {
	buf := make([]byte, len(s.entries)*IndirectDrawRecordSize)
	for i, e := range s.entries {
		rec := GPUIndirectDrawRecord{
			VertexCount:   e.MeshData.IndexCount,
			InstanceCount: 1,
			FirstInstance: uint32(i),
		}
		rec.MarshalInto(buf[i*IndirectDrawRecordSize:])
	}
	return buf
}

func (s *meshScene) EntryCount() int {
	return len(s.entries)
}

func (s *meshScene) Entry(i int) (InstanceEntry, error) {
	if err := common.CheckIndex("entry", i, len(s.entries)); err != nil {
		return InstanceEntry{}, err
	}
	return s.entries[i], nil
}

func (s *meshScene) Entries() []InstanceEntry {
	return append([]InstanceEntry(nil), s.entries...)
}

func (s *meshScene) ModelCount() int {
	return len(s.models)
}

func (s *meshScene) Descriptor(modelIndex int) (model.ModelDescriptor, error) {
	if err := common.CheckIndex("model", modelIndex, len(s.descriptors)); err != nil {
		return model.ModelDescriptor{}, err
	}
	return s.descriptors[modelIndex], nil
}

func (s *meshScene) MatrixCount() int {
	return len(s.matrices)
}

func (s *meshScene) TriangleCount() int {
	return s.triangles
}

func (s *meshScene) TextureCount() int {
	return s.textures
}

func (s *meshScene) FramesInFlight() int {
	return s.framesInFlight
}

func (s *meshScene) MaterialRange(m common.MaterialType) (uint64, uint32) {
	r, ok := s.ranges[m]
	if !ok {
		return 0, 0
	}
	return uint64(r[0]) * IndirectDrawRecordSize, r[1]
}

func (s *meshScene) IndirectDraw(slot int, m common.MaterialType) (frame.IndirectDraw, bool) {
	if slot < 0 || slot >= len(s.frames) {
		return frame.IndirectDraw{}, false
	}
	offset, count := s.MaterialRange(m)
	if count == 0 {
		return frame.IndirectDraw{}, false
	}
	return frame.IndirectDraw{
		Material: m,
		Buffer:   s.frames[slot].indirect,
		Offset:   offset,
		Count:    count,
		Stride:   IndirectDrawRecordSize,
	}, true
}

func (s *meshScene) Buffers(slot int) Buffers {
	b := Buffers{Vertices: s.vertices, Indices: s.indices, MeshData: s.meshData}
	if slot >= 0 && slot < len(s.frames) {
		b.Matrices = s.frames[slot].matrices
		b.Boxes = s.frames[slot].boxes
		b.Indirect = s.frames[slot].indirect
	}
	return b
}

func (s *meshScene) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, h := range []device.Handle{s.vertices, s.indices, s.meshData} {
		s.dev.ReleaseBuffer(h)
	}
	for _, f := range s.frames {
		s.dev.ReleaseBuffer(f.matrices)
		s.dev.ReleaseBuffer(f.boxes)
		s.dev.ReleaseBuffer(f.indirect)
	}
	s.frames = nil
	s.vertices, s.indices, s.meshData = device.InvalidHandle, device.InvalidHandle, device.InvalidHandle
}
