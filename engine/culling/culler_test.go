package culling

import (
	"context"
	"errors"
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/Carmen-Shannon/oxy-cluster/common"
	"github.com/Carmen-Shannon/oxy-cluster/engine/device"
	"github.com/Carmen-Shannon/oxy-cluster/engine/frame"
	"github.com/Carmen-Shannon/oxy-cluster/engine/model"
	"github.com/Carmen-Shannon/oxy-cluster/engine/scene"
)

// testFrustum looks down -Z from the origin with a 60 degree field of view.
func testFrustum() common.Frustum {
	proj := common.Perspective(mgl32.DegToRad(60), 1, 0.1, 100)
	view := mgl32.LookAtV(mgl32.Vec3{}, mgl32.Vec3{0, 0, -1}, mgl32.Vec3{0, 1, 0})
	return common.NewFrustum(proj, view)
}

func newCullFixture(t *testing.T, instances uint32, options ...FrustumCullerBuilderOption) (device.Device, scene.MeshScene, FrustumCuller) {
	t.Helper()
	dev, err := device.NewDevice(device.BackendTypeSimulated, device.WithWorkers(4))
	if err != nil {
		t.Fatalf("NewDevice: %v", err)
	}
	t.Cleanup(dev.Release)

	s, err := scene.NewMeshScene(context.Background(), dev, []model.ModelDescriptor{
		{SourcePath: "mem:cube", InstanceCount: instances},
	})
	if err != nil {
		t.Fatalf("NewMeshScene: %v", err)
	}
	t.Cleanup(s.Release)

	c, err := NewFrustumCuller(dev, s, options...)
	if err != nil {
		t.Fatalf("NewFrustumCuller: %v", err)
	}
	t.Cleanup(c.Release)
	return dev, s, c
}

func instanceCounts(t *testing.T, dev device.Device, s scene.MeshScene, slot int) []uint32 {
	t.Helper()
	data, err := dev.(device.Readback).ReadBuffer(s.Buffers(slot).Indirect, 0, device.WholeSize)
	if err != nil {
		t.Fatalf("ReadBuffer: %v", err)
	}
	counts := make([]uint32, s.EntryCount())
	for i := range counts {
		counts[i] = scene.UnmarshalGPUIndirectDrawRecord(data[i*scene.IndirectDrawRecordSize:]).InstanceCount
	}
	return counts
}

func TestFrustumCull(t *testing.T) {
	dev, s, c := newCullFixture(t, 4)

	positions := []mgl32.Vec3{
		{0, 0, -5},   // in front
		{0, 0, 5},    // behind
		{50, 0, -5},  // far right
		{0, 0, -200}, // beyond the far plane
	}
	for i, p := range positions {
		if err := s.UpdateTransform(0, i, mgl32.Translate3D(p.X(), p.Y(), p.Z())); err != nil {
			t.Fatalf("UpdateTransform(%d): %v", i, err)
		}
	}

	counter, _ := frame.NewCounter(s.FramesInFlight())
	ctx := counter.Next(dev)
	if err := c.RecordFrustumCull(ctx, testFrustum()); err != nil {
		t.Fatalf("RecordFrustumCull: %v", err)
	}
	if err := ctx.Submit(); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	got := instanceCounts(t, dev, s, ctx.Slot)
	want := []uint32{1, 0, 0, 0}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("entry %d instance count = %d, want %d", i, got[i], want[i])
		}
	}
	if s.Pending(ctx.Slot) != 0 {
		t.Errorf("Pending(%d) = %d after cull, want 0", ctx.Slot, s.Pending(ctx.Slot))
	}
}

func TestFrustumCullKeepsStraddlingBoxes(t *testing.T) {
	dev, s, c := newCullFixture(t, 2)

	// Box 0 straddles the near plane, box 1 the left plane.
	if err := s.UpdateTransform(0, 0, mgl32.Translate3D(0, 0, -0.2)); err != nil {
		t.Fatal(err)
	}
	if err := s.UpdateTransform(0, 1, mgl32.Translate3D(-2.9, 0, -5)); err != nil {
		t.Fatal(err)
	}

	counter, _ := frame.NewCounter(s.FramesInFlight())
	ctx := counter.Next(dev)
	if err := c.RecordFrustumCull(ctx, testFrustum()); err != nil {
		t.Fatalf("RecordFrustumCull: %v", err)
	}
	if err := ctx.Submit(); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	for i, n := range instanceCounts(t, dev, s, ctx.Slot) {
		if n != 1 {
			t.Errorf("entry %d instance count = %d, want 1", i, n)
		}
	}
}

func TestFrustumCullRecomputedEveryFrame(t *testing.T) {
	dev, s, c := newCullFixture(t, 1)
	counter, _ := frame.NewCounter(1)

	run := func() uint32 {
		ctx := counter.Next(dev)
		if err := c.RecordFrustumCull(ctx, testFrustum()); err != nil {
			t.Fatalf("RecordFrustumCull: %v", err)
		}
		if err := ctx.Submit(); err != nil {
			t.Fatalf("Submit: %v", err)
		}
		return instanceCounts(t, dev, s, ctx.Slot)[0]
	}

	_ = s.UpdateTransform(0, 0, mgl32.Translate3D(0, 0, 10))
	if got := run(); got != 0 {
		t.Fatalf("behind camera: instance count = %d, want 0", got)
	}
	_ = s.UpdateTransform(0, 0, mgl32.Translate3D(0, 0, -10))
	if got := run(); got != 1 {
		t.Fatalf("in front: instance count = %d, want 1", got)
	}
}

func TestVisibleCornerRefinement(t *testing.T) {
	f := testFrustum()

	// Beyond the far-left frustum edge: the box passes the left and far plane tests but no part of
	// it is inside the frustum.
	box := common.BoundingBox{Min: mgl32.Vec3{-80, -1, -120}, Max: mgl32.Vec3{-60, 1, -95}}
	if !f.IntersectsBox(box) {
		t.Fatalf("IntersectsBox() = false, want the plane test to keep the box")
	}
	if !Visible(f, box, false) {
		t.Errorf("Visible(refine=false) = false, want true")
	}
	if Visible(f, box, true) {
		t.Errorf("Visible(refine=true) = true, want false")
	}

	inside := common.BoundingBox{Min: mgl32.Vec3{-1, -1, -6}, Max: mgl32.Vec3{1, 1, -4}}
	if !Visible(f, inside, true) {
		t.Errorf("Visible(inside, refine=true) = false, want true")
	}
}

func TestCornerRefinementNeedsCorners(t *testing.T) {
	// A flattened view makes the view-projection singular, so no corners can be derived.
	f := common.NewFrustum(common.Perspective(mgl32.DegToRad(60), 1, 0.1, 100), mgl32.Scale3D(1, 1, 0))
	if f.CornersValid {
		t.Fatalf("CornersValid = true for a singular view-projection")
	}
	box := common.BoundingBox{Min: mgl32.Vec3{4, 4, -6}, Max: mgl32.Vec3{5, 5, -5}}
	if Visible(f, box, true) != Visible(f, box, false) {
		t.Errorf("refinement changed visibility using unset corners")
	}
	if g := NewGPUFrustum(f, 1, true); g.Refine != 0 {
		t.Errorf("Refine = %d, want 0 without corners", g.Refine)
	}
}

func TestFrustumCullBarrierAllowsIndirectDraw(t *testing.T) {
	dev, s, c := newCullFixture(t, 3, WithCornerRefinement(true))
	if !c.CornerRefinement() {
		t.Fatalf("CornerRefinement() = false")
	}

	counter, _ := frame.NewCounter(s.FramesInFlight())
	ctx := counter.Next(dev)
	if err := c.RecordFrustumCull(ctx, testFrustum()); err != nil {
		t.Fatalf("RecordFrustumCull: %v", err)
	}
	draw, ok := s.IndirectDraw(ctx.Slot, common.MaterialOpaque)
	if !ok {
		t.Fatalf("IndirectDraw: no opaque range")
	}
	if err := ctx.Use(device.StageDrawIndirect, []device.Binding{{
		Buffer: draw.Buffer,
		Offset: draw.Offset,
		Size:   uint64(draw.Count) * uint64(draw.Stride),
		Access: device.AccessIndirectRead,
	}}); err != nil {
		t.Fatalf("Use(draw-indirect): %v", err)
	}

	// The recorded cull references the boxes buffer, so flushing a transform into this frame fails.
	_ = s.UpdateTransform(0, 0, mgl32.Ident4())
	if err := c.RecordFrustumCull(ctx, testFrustum()); !errors.Is(err, common.ErrGPUSync) {
		t.Errorf("second RecordFrustumCull: got %v, want ErrGPUSync", err)
	}
	ctx.Discard()
}

func TestGPUFrustumLayout(t *testing.T) {
	f := testFrustum()
	g := NewGPUFrustum(f, 7, true)
	if g.Size() != GPUFrustumSize {
		t.Fatalf("Size() = %d, want %d", g.Size(), GPUFrustumSize)
	}
	got, n, refine := unmarshalFrustum(g.Marshal())
	if n != 7 || !refine {
		t.Errorf("entries, refine = %d, %v; want 7, true", n, refine)
	}
	for i := range f.Planes {
		if !got.Planes[i].Normal.ApproxEqual(f.Planes[i].Normal) || got.Planes[i].Distance != f.Planes[i].Distance {
			t.Errorf("plane %d = %v, want %v", i, got.Planes[i], f.Planes[i])
		}
	}
	if got.Corners[6] != f.Corners[6] {
		t.Errorf("corner 6 = %v, want %v", got.Corners[6], f.Corners[6])
	}
}

func TestCullKernelMatchesWGSL(t *testing.T) {
	sizes := map[string]uint64{
		"Frustum":          GPUFrustumSize,
		"BoundingBox":      common.BoundingBoxSize,
		"DrawIndirectArgs": scene.IndirectDrawRecordSize,
	}
	for name, want := range sizes {
		if got, ok := cullProgram.StructSize(name); !ok || got != want {
			t.Errorf("WGSL %s size = %d (%v), want %d", name, got, ok, want)
		}
	}
	if cullKernel.EntryPoint != "cull_main" || cullKernel.WorkgroupSize != [3]uint32{WorkgroupSize, 1, 1} {
		t.Errorf("entry %s workgroup %v", cullKernel.EntryPoint, cullKernel.WorkgroupSize)
	}
	want := []device.BindingKind{device.BindingUniform, device.BindingStorageRead, device.BindingStorageReadWrite}
	if len(cullKernel.Layout) != len(want) {
		t.Fatalf("Layout = %v, want %v", cullKernel.Layout, want)
	}
	for i := range want {
		if cullKernel.Layout[i] != want[i] {
			t.Errorf("slot %d = %v, want %v", i, cullKernel.Layout[i], want[i])
		}
	}
}
