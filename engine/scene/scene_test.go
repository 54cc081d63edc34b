package scene

import (
	"context"
	"errors"
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/Carmen-Shannon/oxy-cluster/common"
	"github.com/Carmen-Shannon/oxy-cluster/engine/device"
	"github.com/Carmen-Shannon/oxy-cluster/engine/frame"
	"github.com/Carmen-Shannon/oxy-cluster/engine/loader"
	"github.com/Carmen-Shannon/oxy-cluster/engine/model"
)

func newTestDevice(t *testing.T) device.Device {
	t.Helper()
	d, err := device.NewDevice(device.BackendTypeSimulated, device.WithWorkers(2))
	if err != nil {
		t.Fatalf("NewDevice: %v", err)
	}
	t.Cleanup(d.Release)
	return d
}

func readAll(t *testing.T, d device.Device, h device.Handle) []byte {
	t.Helper()
	data, err := d.(device.Readback).ReadBuffer(h, 0, device.WholeSize)
	if err != nil {
		t.Fatalf("ReadBuffer: %v", err)
	}
	return data
}

// testLoader serves:
//   - A: two opaque meshes
//   - B: one transparent mesh
//   - mix: a transparent mesh followed by an opaque one
func testLoader() loader.Loader {
	return loader.NewLoader(
		loader.WithProcedural("A", &model.ImportedModel{Name: "A", Meshes: []model.ImportedMesh{
			loader.CubeMesh("a_body", 1), loader.CubeMesh("a_head", 1),
		}}),
		loader.WithProcedural("B", &model.ImportedModel{Name: "B", Meshes: []model.ImportedMesh{
			loader.CubeMesh("b_transparent", 1),
		}}),
		loader.WithProcedural("mix", &model.ImportedModel{Name: "mix", Meshes: []model.ImportedMesh{
			loader.CubeMesh("mix_transparent", 1), loader.CubeMesh("mix_body", 1),
		}}),
	)
}

func buildScene(t *testing.T, dev device.Device, descriptors []model.ModelDescriptor) MeshScene {
	t.Helper()
	s, err := NewMeshScene(context.Background(), dev, descriptors, WithLoader(testLoader()), WithFramesInFlight(2))
	if err != nil {
		t.Fatalf("NewMeshScene: %v", err)
	}
	t.Cleanup(s.Release)
	return s
}

var exampleDescriptors = []model.ModelDescriptor{
	{SourcePath: "mem:A", InstanceCount: 1},
	{SourcePath: "mem:B", InstanceCount: 3, Clickable: true},
}

func TestExampleScene(t *testing.T) {
	dev := newTestDevice(t)
	s := buildScene(t, dev, exampleDescriptors)

	if s.EntryCount() != 5 {
		t.Fatalf("EntryCount() = %d, want 5", s.EntryCount())
	}
	if s.MatrixCount() != 4 {
		t.Errorf("MatrixCount() = %d, want 4", s.MatrixCount())
	}
	if s.TriangleCount() != 5*12 {
		t.Errorf("TriangleCount() = %d, want 60", s.TriangleCount())
	}

	tests := []struct {
		material   common.MaterialType
		wantOffset uint64
		wantCount  uint32
	}{
		{common.MaterialOpaque, 0, 2},
		{common.MaterialTransparent, 2 * IndirectDrawRecordSize, 3},
	}
	for _, tt := range tests {
		t.Run(tt.material.String(), func(t *testing.T) {
			offset, count := s.MaterialRange(tt.material)
			if offset != tt.wantOffset || count != tt.wantCount {
				t.Errorf("got (%d, %d), want (%d, %d)", offset, count, tt.wantOffset, tt.wantCount)
			}
		})
	}

	want := []struct{ model, instance, mesh int }{
		{0, 0, 0}, {0, 0, 1}, {1, 0, 0}, {1, 1, 0}, {1, 2, 0},
	}
	for i, w := range want {
		e, err := s.Entry(i)
		if err != nil {
			t.Fatal(err)
		}
		if e.ModelIndex != w.model || e.InstanceIndex != w.instance || e.MeshIndex != w.mesh {
			t.Errorf("entry %d = (%d, %d, %d), want %v", i, e.ModelIndex, e.InstanceIndex, e.MeshIndex, w)
		}
	}
}

func TestMaterialRangeAbsent(t *testing.T) {
	s := buildScene(t, newTestDevice(t), []model.ModelDescriptor{{SourcePath: "mem:A", InstanceCount: 2}})

	offset, count := s.MaterialRange(common.MaterialTransparent)
	if offset != 0 || count != 0 {
		t.Errorf("got (%d, %d), want (0, 0)", offset, count)
	}
	if _, ok := s.IndirectDraw(0, common.MaterialTransparent); ok {
		t.Error("IndirectDraw should report no transparent draw")
	}
	if _, count := s.MaterialRange(common.MaterialOpaque); count != 4 {
		t.Errorf("opaque count = %d, want 4", count)
	}
}

func TestStableMaterialSort(t *testing.T) {
	s := buildScene(t, newTestDevice(t), []model.ModelDescriptor{{SourcePath: "mem:mix", InstanceCount: 2}})

	// Flattened order is (i0 transparent, i0 body, i1 transparent, i1 body).
	want := []struct {
		instance, mesh int
		material       common.MaterialType
	}{
		{0, 1, common.MaterialOpaque},
		{1, 1, common.MaterialOpaque},
		{0, 0, common.MaterialTransparent},
		{1, 0, common.MaterialTransparent},
	}
	for i, e := range s.Entries() {
		w := want[i]
		if e.InstanceIndex != w.instance || e.MeshIndex != w.mesh || e.Material() != w.material {
			t.Errorf("entry %d = (%d, %d, %v), want %v", i, e.InstanceIndex, e.MeshIndex, e.Material(), w)
		}
	}
	entries, err := s.EntriesOf(0, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 || entries[0] != 1 || entries[1] != 3 {
		t.Errorf("EntriesOf(0, 1) = %v, want [1 3]", entries)
	}
}

func TestSceneBuffers(t *testing.T) {
	dev := newTestDevice(t)
	s := buildScene(t, dev, exampleDescriptors)

	for slot := range s.FramesInFlight() {
		b := s.Buffers(slot)
		if got := dev.BufferSize(b.Boxes); got != 5*common.BoundingBoxSize {
			t.Errorf("slot %d boxes size = %d", slot, got)
		}
		if got := dev.BufferSize(b.Matrices); got != 4*64 {
			t.Errorf("slot %d matrices size = %d", slot, got)
		}

		indirect := readAll(t, dev, b.Indirect)
		if len(indirect) != 5*IndirectDrawRecordSize {
			t.Fatalf("slot %d indirect size = %d", slot, len(indirect))
		}
		for i := range 5 {
			rec := UnmarshalGPUIndirectDrawRecord(indirect[i*IndirectDrawRecordSize:])
			want := GPUIndirectDrawRecord{VertexCount: 36, InstanceCount: 1, FirstInstance: uint32(i)}
			if rec != want {
				t.Errorf("slot %d record %d = %+v, want %+v", slot, i, rec, want)
			}
		}

		matrices := readAll(t, dev, b.Matrices)
		for i := range 4 {
			if got := common.Mat4At(matrices, i*64); got != mgl32.Ident4() {
				t.Errorf("slot %d matrix %d = %v, want identity", slot, i, got)
			}
		}
	}

	meshData := readAll(t, dev, s.Buffers(0).MeshData)
	if len(meshData) != 5*model.GPUMeshDataSize {
		t.Fatalf("mesh data size = %d", len(meshData))
	}
	// Entry 3 is instance 1 of B: matrix slot 1 + 1, geometry after A's two meshes.
	md := model.UnmarshalGPUMeshData(meshData[3*model.GPUMeshDataSize:])
	if md.ModelMatrixIndex != 2 || md.VertexOffset != 48 || md.IndexOffset != 72 || md.IndexCount != 36 {
		t.Errorf("entry 3 mesh data = %+v", md)
	}
	if md.Material != uint32(common.MaterialTransparent) {
		t.Errorf("entry 3 material = %d", md.Material)
	}
}

func TestUpdateTransform(t *testing.T) {
	dev := newTestDevice(t)
	s := buildScene(t, dev, exampleDescriptors)
	counter, err := frame.NewCounter(2)
	if err != nil {
		t.Fatal(err)
	}

	m := mgl32.Translate3D(10, 0, 0)
	if err := s.UpdateTransform(1, 2, m); err != nil {
		t.Fatalf("UpdateTransform: %v", err)
	}

	box, _ := s.TransformedBoundingBox(4)
	if box.Min != (mgl32.Vec3{9.5, -0.5, -0.5}) || box.Max != (mgl32.Vec3{10.5, 0.5, 0.5}) {
		t.Errorf("transformed box = %v", box)
	}
	original, _ := s.OriginalBoundingBox(4)
	if original.Min != (mgl32.Vec3{-0.5, -0.5, -0.5}) {
		t.Errorf("original box changed: %v", original)
	}
	for slot := range 2 {
		if got := s.Pending(slot); got != 2 {
			t.Errorf("Pending(%d) = %d, want 2", slot, got)
		}
	}

	ctx := counter.Next(dev)
	if err := s.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if s.Pending(ctx.Slot) != 0 || s.Pending(1-ctx.Slot) != 2 {
		t.Errorf("pending after flush = %d/%d, want 0/2", s.Pending(ctx.Slot), s.Pending(1-ctx.Slot))
	}

	b := s.Buffers(ctx.Slot)
	if got := common.Mat4At(readAll(t, dev, b.Matrices), 3*64); got != m {
		t.Errorf("uploaded matrix = %v, want %v", got, m)
	}
	if got := common.UnmarshalBoundingBox(readAll(t, dev, b.Boxes)[4*common.BoundingBoxSize:]); got != box {
		t.Errorf("uploaded box = %v, want %v", got, box)
	}
	other := s.Buffers(1 - ctx.Slot)
	if got := common.Mat4At(readAll(t, dev, other.Matrices), 3*64); got != mgl32.Ident4() {
		t.Error("unflushed slot must keep its old matrix")
	}
}

func TestUpdateTransformIdentity(t *testing.T) {
	s := buildScene(t, newTestDevice(t), exampleDescriptors)
	if err := s.UpdateTransform(0, 0, mgl32.Ident4()); err != nil {
		t.Fatal(err)
	}
	for _, e := range []int{0, 1} {
		original, _ := s.OriginalBoundingBox(e)
		transformed, _ := s.TransformedBoundingBox(e)
		if original != transformed {
			t.Errorf("entry %d: got %v, want %v", e, transformed, original)
		}
	}
}

func TestUpdateTransformOutOfRange(t *testing.T) {
	s := buildScene(t, newTestDevice(t), exampleDescriptors)

	tests := []struct {
		name            string
		model, instance int
	}{
		{"model too large", 2, 0},
		{"negative model", -1, 0},
		{"instance too large", 1, 3},
		{"instance of single-instance model", 0, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.UpdateTransform(tt.model, tt.instance, mgl32.Translate3D(1, 1, 1))
			if !errors.Is(err, common.ErrIndexOutOfRange) {
				t.Fatalf("got %v, want ErrIndexOutOfRange", err)
			}
			var ie *common.IndexError
			if !errors.As(err, &ie) {
				t.Errorf("got %T, want *common.IndexError", err)
			}
		})
	}
	if s.Pending(0) != 0 {
		t.Error("a rejected update must not stage writes")
	}
}

func TestFlushAfterUse(t *testing.T) {
	dev := newTestDevice(t)
	s := buildScene(t, dev, exampleDescriptors)
	counter, _ := frame.NewCounter(2)

	if err := s.UpdateTransform(0, 0, mgl32.Translate3D(0, 1, 0)); err != nil {
		t.Fatal(err)
	}
	ctx := counter.Next(dev)
	if err := ctx.Use(device.StageCompute, []device.Binding{{
		Buffer: s.Buffers(ctx.Slot).Boxes,
		Access: device.AccessShaderRead,
	}}); err != nil {
		t.Fatal(err)
	}
	if err := s.Flush(ctx); !errors.Is(err, common.ErrGPUSync) {
		t.Fatalf("got %v, want ErrGPUSync", err)
	}
	if s.Pending(ctx.Slot) != 2 {
		t.Errorf("failed flush must keep staged writes, got %d", s.Pending(ctx.Slot))
	}
	ctx.Discard()
}

func TestPickInstance(t *testing.T) {
	dev := newTestDevice(t)
	s := buildScene(t, dev, exampleDescriptors)
	for i := range 3 {
		if err := s.UpdateTransform(1, i, mgl32.Translate3D(float32(5*i), 0, 0)); err != nil {
			t.Fatal(err)
		}
	}

	tests := []struct {
		name   string
		ray    common.Ray
		want   int
		wantOK bool
	}{
		// A sits at the origin too but is not clickable.
		{"nearest along +x", common.NewRay(mgl32.Vec3{-10, 0, 0}, mgl32.Vec3{1, 0, 0}), 2, true},
		{"nearest along -x", common.NewRay(mgl32.Vec3{20, 0, 0}, mgl32.Vec3{-1, 0, 0}), 4, true},
		{"from above", common.NewRay(mgl32.Vec3{5, 10, 0}, mgl32.Vec3{0, -1, 0}), 3, true},
		{"behind origin", common.NewRay(mgl32.Vec3{20, 0, 0}, mgl32.Vec3{1, 0, 0}), -1, false},
		{"miss", common.NewRay(mgl32.Vec3{0, 5, 0}, mgl32.Vec3{1, 0, 0}), -1, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := s.PickInstance(tt.ray)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("got (%d, %v), want (%d, %v)", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestPickInstanceTie(t *testing.T) {
	s := buildScene(t, newTestDevice(t), []model.ModelDescriptor{{SourcePath: "mem:A", InstanceCount: 1, Clickable: true}})
	// Both meshes of A share the same box; the lower entry wins.
	got, ok := s.PickInstance(common.NewRay(mgl32.Vec3{0, 0, 10}, mgl32.Vec3{0, 0, -1}))
	if !ok || got != 0 {
		t.Errorf("got (%d, %v), want (0, true)", got, ok)
	}
}

func TestNewMeshSceneErrors(t *testing.T) {
	dev := newTestDevice(t)
	tests := []struct {
		name        string
		descriptors []model.ModelDescriptor
		want        error
	}{
		{"empty", nil, common.ErrConfig},
		{"zero instances", []model.ModelDescriptor{{SourcePath: "mem:A"}}, common.ErrConfig},
		{"empty path", []model.ModelDescriptor{{InstanceCount: 1}}, common.ErrConfig},
		{"unknown model", []model.ModelDescriptor{{SourcePath: "mem:A", InstanceCount: 1}, {SourcePath: "mem:Z", InstanceCount: 1}}, common.ErrAssetLoad},
		{"missing file", []model.ModelDescriptor{{SourcePath: "does/not/exist.glb", InstanceCount: 1}}, common.ErrAssetLoad},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewMeshScene(context.Background(), dev, tt.descriptors, WithLoader(testLoader()))
			if !errors.Is(err, tt.want) {
				t.Errorf("got %v, want %v", err, tt.want)
			}
		})
	}
}

func TestTextureOffsets(t *testing.T) {
	textured := func(name string, textures, albedo int32) *model.ImportedModel {
		mesh := loader.CubeMesh(name, 1)
		mesh.Textures.Albedo = albedo
		return &model.ImportedModel{Name: name, Meshes: []model.ImportedMesh{mesh}, TextureCount: int(textures)}
	}
	l := loader.NewLoader(
		loader.WithProcedural("t1", textured("t1", 2, 1)),
		loader.WithProcedural("t2", textured("t2", 3, 0)),
	)
	s, err := NewMeshScene(context.Background(), newTestDevice(t), []model.ModelDescriptor{
		{SourcePath: "mem:t1", InstanceCount: 1},
		{SourcePath: "mem:t2", InstanceCount: 1},
	}, WithLoader(l))
	if err != nil {
		t.Fatal(err)
	}
	defer s.Release()

	if s.TextureCount() != 5 {
		t.Errorf("TextureCount() = %d, want 5", s.TextureCount())
	}
	e0, _ := s.Entry(0)
	e1, _ := s.Entry(1)
	if e0.MeshData.Textures.Albedo != 1 || e1.MeshData.Textures.Albedo != 2 {
		t.Errorf("albedo = %d/%d, want 1/2", e0.MeshData.Textures.Albedo, e1.MeshData.Textures.Albedo)
	}
	if e1.MeshData.Textures.Normal != common.NoTexture {
		t.Errorf("unused slot = %d, want NoTexture", e1.MeshData.Textures.Normal)
	}
}
