package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/Carmen-Shannon/oxy-cluster/common"
	"github.com/Carmen-Shannon/oxy-cluster/engine/camera"
	"github.com/Carmen-Shannon/oxy-cluster/engine/cluster"
	"github.com/Carmen-Shannon/oxy-cluster/engine/config"
	"github.com/Carmen-Shannon/oxy-cluster/engine/frame"
	"github.com/Carmen-Shannon/oxy-cluster/engine/light"
	"github.com/Carmen-Shannon/oxy-cluster/engine/loader"
	"github.com/Carmen-Shannon/oxy-cluster/engine/model"
)

var exampleDescriptors = []model.ModelDescriptor{
	{SourcePath: "mem:A", InstanceCount: 1},
	{SourcePath: "mem:B", InstanceCount: 3, Clickable: true},
}

func testLoader() loader.Loader {
	return loader.NewLoader(
		loader.WithProcedural("A", &model.ImportedModel{Name: "A", Meshes: []model.ImportedMesh{
			loader.CubeMesh("a_body", 1), loader.CubeMesh("a_head", 1),
		}}),
		loader.WithProcedural("B", &model.ImportedModel{Name: "B", Meshes: []model.ImportedMesh{
			loader.CubeMesh("b_transparent", 1),
		}}),
	)
}

func testView() camera.View {
	return camera.View{
		View:       mgl32.LookAtV(mgl32.Vec3{}, mgl32.Vec3{0, 0, -1}, mgl32.Vec3{0, 1, 0}),
		Projection: common.Perspective(mgl32.DegToRad(60), 2, 0.1, 100),
		Near:       0.1,
		Far:        100,
		Width:      800,
		Height:     400,
	}
}

// newTestEngine builds the example scene with A in front of the camera and the three B instances
// in a row behind it.
func newTestEngine(t *testing.T, options ...EngineBuilderOption) Engine {
	t.Helper()
	options = append([]EngineBuilderOption{
		WithLoader(testLoader()),
		WithGrid(cluster.Grid{X: 8, Y: 4, Z: 8}),
		WithWorkers(2),
	}, options...)
	e, err := NewEngine(options...)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	t.Cleanup(e.Release)

	if _, err := e.BuildScene(context.Background(), exampleDescriptors); err != nil {
		t.Fatalf("BuildScene: %v", err)
	}
	if err := e.UpdateInstanceTransform(0, 0, mgl32.Translate3D(0, 0, -5)); err != nil {
		t.Fatal(err)
	}
	for i, x := range []float32{-3, 0, 3} {
		if err := e.UpdateInstanceTransform(1, i, mgl32.Translate3D(x, 0, -10)); err != nil {
			t.Fatal(err)
		}
	}
	return e
}

func TestEngineMaterialRanges(t *testing.T) {
	e := newTestEngine(t)

	if off, n := e.MaterialRange(common.MaterialOpaque); off != 0 || n != 2 {
		t.Errorf("MaterialRange(Opaque) = (%d, %d), want (0, 2)", off, n)
	}
	if off, n := e.MaterialRange(common.MaterialTransparent); off != 32 || n != 3 {
		t.Errorf("MaterialRange(Transparent) = (%d, %d), want (32, 3)", off, n)
	}
	if e.Scene().EntryCount() != 5 {
		t.Errorf("EntryCount() = %d, want 5", e.Scene().EntryCount())
	}
}

func TestEngineRenderFrame(t *testing.T) {
	e := newTestEngine(t, WithFrameReadback(true))
	lights := []light.PointLight{
		light.NewPointLight(mgl32.Vec3{0, 0, -5}, 2),
		light.NewPointLight(mgl32.Vec3{3, 0, -10}, 2),
	}

	var drawn []common.MaterialType
	in := FrameInput{
		View:   testView(),
		Lights: lights,
		Draw: func(_ *frame.Context, d frame.IndirectDraw) error {
			drawn = append(drawn, d.Material)
			return nil
		},
	}
	stats, err := e.RenderFrame(context.Background(), in)
	if err != nil {
		t.Fatalf("RenderFrame: %v", err)
	}
	if stats.Visible != 5 {
		t.Errorf("Visible = %d, want 5", stats.Visible)
	}
	if !stats.ClusterRebuilt {
		t.Errorf("first frame did not build the grid")
	}
	if len(drawn) != 2 || drawn[0] != common.MaterialOpaque || drawn[1] != common.MaterialTransparent {
		t.Errorf("drawn = %v, want opaque then transparent", drawn)
	}
	if stats.Bins == nil || stats.Bins.Counter == 0 {
		t.Fatalf("Bins = %+v, want binned lights", stats.Bins)
	}

	// Move A behind the camera; the next frame of the same slot rebuilds nothing but re-culls.
	if err := e.UpdateInstanceTransform(0, 0, mgl32.Translate3D(0, 0, 5)); err != nil {
		t.Fatal(err)
	}
	for range e.FramesInFlight() {
		stats, err = e.RenderFrame(context.Background(), in)
		if err != nil {
			t.Fatalf("RenderFrame: %v", err)
		}
	}
	if stats.Visible != 3 {
		t.Errorf("Visible after moving A = %d, want 3", stats.Visible)
	}
	if stats.ClusterRebuilt {
		t.Errorf("unchanged view rebuilt the grid")
	}
}

func TestEngineManualRecording(t *testing.T) {
	e := newTestEngine(t)
	ctx := e.NextFrame()
	if err := e.RecordFrustumCull(ctx, testView().Frustum()); err != nil {
		t.Fatalf("RecordFrustumCull: %v", err)
	}
	built, err := e.RecordClusterBuild(ctx, testView())
	if err != nil || !built {
		t.Fatalf("RecordClusterBuild = %v, %v", built, err)
	}
	if err := e.RecordLightBinning(ctx, light.NewRingField(16, light.WithCenter(mgl32.Vec3{0, 0, -10}))); err != nil {
		t.Fatalf("RecordLightBinning: %v", err)
	}
	if err := ctx.Submit(); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	r, err := e.ResolveBinning(ctx.Slot)
	if err != nil {
		t.Fatalf("ResolveBinning: %v", err)
	}
	var sum uint32
	for _, c := range r.Cells {
		sum += c.Count
	}
	if sum != r.Counter {
		t.Errorf("sum of counts %d != counter %d", sum, r.Counter)
	}
}

func TestEngineErrors(t *testing.T) {
	e, err := NewEngine(WithLoader(testLoader()), WithGrid(cluster.Grid{X: 2, Y: 2, Z: 2}))
	if err != nil {
		t.Fatal(err)
	}
	defer e.Release()

	if err := e.UpdateInstanceTransform(0, 0, mgl32.Ident4()); !errors.Is(err, common.ErrConfig) {
		t.Errorf("transform without scene: got %v, want ErrConfig", err)
	}
	if off, n := e.MaterialRange(common.MaterialOpaque); off != 0 || n != 0 {
		t.Errorf("MaterialRange without scene = (%d, %d)", off, n)
	}
	if _, err := e.RenderFrame(context.Background(), FrameInput{View: testView()}); !errors.Is(err, common.ErrConfig) {
		t.Errorf("RenderFrame without scene: got %v, want ErrConfig", err)
	}

	if _, err := e.BuildScene(context.Background(), exampleDescriptors); err != nil {
		t.Fatal(err)
	}
	if err := e.UpdateInstanceTransform(1, 3, mgl32.Ident4()); !errors.Is(err, common.ErrIndexOutOfRange) {
		t.Errorf("instance 3 of B: got %v, want ErrIndexOutOfRange", err)
	}
	if _, err := e.BuildScene(context.Background(), []model.ModelDescriptor{{SourcePath: "mem:missing", InstanceCount: 1}}); !errors.Is(err, common.ErrAssetLoad) {
		t.Errorf("missing model: got %v, want ErrAssetLoad", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := e.RenderFrame(ctx, FrameInput{View: testView()}); !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled RenderFrame: got %v", err)
	}

	if _, err := NewEngine(WithFramesInFlight(9)); !errors.Is(err, common.ErrConfig) {
		t.Errorf("9 frames in flight: got %v, want ErrConfig", err)
	}
}

func TestEnginePickInstance(t *testing.T) {
	e := newTestEngine(t)

	// The ray passes through A first, but only B is clickable.
	entry, ok := e.PickInstance(common.NewRay(mgl32.Vec3{}, mgl32.Vec3{0, 0, -1}))
	if !ok {
		t.Fatalf("PickInstance missed")
	}
	got, err := e.Scene().Entry(entry)
	if err != nil {
		t.Fatal(err)
	}
	if got.ModelIndex != 1 || got.InstanceIndex != 1 {
		t.Errorf("picked model %d instance %d, want model 1 instance 1", got.ModelIndex, got.InstanceIndex)
	}
	if _, ok := e.PickInstance(common.NewRay(mgl32.Vec3{}, mgl32.Vec3{0, 1, 0})); ok {
		t.Errorf("PickInstance hit looking up")
	}
}

func TestEngineRun(t *testing.T) {
	var frames int
	e := newTestEngine(t, WithFrameCallback(func(FrameStats) { frames++ }))

	err := e.Run(context.Background(), func(n uint64, _ float32) (FrameInput, bool) {
		return FrameInput{View: testView()}, n < 5
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if frames != 5 {
		t.Errorf("rendered %d frames, want 5", frames)
	}
}

func TestWithConfig(t *testing.T) {
	c := config.Default()
	c.FramesInFlight = 3
	c.Cluster.Slices = [3]uint32{4, 4, 4}
	c.Culling.CornerRefinement = true

	e, err := NewEngine(WithConfig(c))
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	defer e.Release()
	if e.FramesInFlight() != 3 {
		t.Errorf("FramesInFlight() = %d, want 3", e.FramesInFlight())
	}
	s, err := e.BuildScene(context.Background(), c.Descriptors())
	if err != nil {
		t.Fatalf("BuildScene: %v", err)
	}
	if s.FramesInFlight() != 3 {
		t.Errorf("scene FramesInFlight() = %d, want 3", s.FramesInFlight())
	}

	cam := CameraFromConfig(c)
	if pos := cam.View().Position; pos.Sub(mgl32.Vec3(c.Camera.Position)).Len() > 1e-3 {
		t.Errorf("camera position = %v, want %v", pos, c.Camera.Position)
	}
}
