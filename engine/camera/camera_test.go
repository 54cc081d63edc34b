package camera

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func near(a, b, eps float32) bool {
	return math.Abs(float64(a-b)) <= float64(eps)
}

// nearVec compares by distance; component-wise relative checks reject tiny values against zero.
func nearVec(a, b mgl32.Vec3, eps float32) bool {
	return a.Sub(b).Len() <= eps
}

func TestControllerOrbit(t *testing.T) {
	cc := NewCameraController(WithRadius(10), WithElevation(0), WithAzimuth(0))

	if got := cc.Position(); !nearVec(got, mgl32.Vec3{0, 0, 10}, 1e-5) {
		t.Errorf("position = %v, want (0, 0, 10)", got)
	}

	cc.Orbit(math.Pi/2, 0)
	if got := cc.Position(); !nearVec(got, mgl32.Vec3{10, 0, 0}, 1e-4) {
		t.Errorf("position after orbit = %v, want (10, 0, 0)", got)
	}

	cc.Orbit(0, 10)
	if got := cc.Elevation(); !near(got, math.Pi/2-0.1, 1e-6) {
		t.Errorf("elevation = %v, want clamped to %v", got, math.Pi/2-0.1)
	}
}

func TestControllerZoomClamps(t *testing.T) {
	cc := NewCameraController(WithRadius(50), WithRadiusBounds(5, 100), WithZoomSpeed(10))

	cc.Zoom(2)
	if got := cc.Radius(); got != 30 {
		t.Errorf("got %v, want 30", got)
	}
	cc.Zoom(100)
	if got := cc.Radius(); got != 5 {
		t.Errorf("got %v, want 5", got)
	}
	cc.SetRadius(1e6)
	if got := cc.Radius(); got != 100 {
		t.Errorf("got %v, want 100", got)
	}
}

func TestCameraView(t *testing.T) {
	cc := NewCameraController(WithRadius(20), WithElevation(0), WithTarget(mgl32.Vec3{0, 0, 0}))
	cam := NewCamera(WithController(cc), WithViewport(1920, 1080), WithNear(0.5), WithFar(500))

	if got := cam.Aspect(); !near(got, 16.0/9.0, 1e-6) {
		t.Errorf("aspect = %v, want 16/9", got)
	}

	v := cam.View()
	if v.Width != 1920 || v.Height != 1080 || v.Near != 0.5 || v.Far != 500 {
		t.Errorf("view = %+v", v)
	}

	// The target sits 20 units in front of the eye.
	target := v.View.Mul4x1(mgl32.Vec4{0, 0, 0, 1})
	if !near(target.Z(), -20, 1e-4) {
		t.Errorf("target view depth = %v, want -20", target.Z())
	}

	// The center ray hits the target.
	r := v.Ray(960, 540)
	if !nearVec(r.Direction, mgl32.Vec3{0, 0, -1}, 1e-4) {
		t.Errorf("center ray = %v, want (0, 0, -1)", r.Direction)
	}
}

func TestSetViewportIgnoresZero(t *testing.T) {
	cam := NewCamera(WithViewport(800, 600))
	before := cam.ProjectionMatrix()

	cam.SetViewport(0, 600)
	if w, h := cam.Viewport(); w != 800 || h != 600 {
		t.Errorf("viewport = %dx%d, want 800x600", w, h)
	}
	if cam.ProjectionMatrix() != before {
		t.Error("projection changed on an ignored resize")
	}

	cam.SetViewport(600, 600)
	if got := cam.Aspect(); got != 1 {
		t.Errorf("aspect = %v, want 1", got)
	}
}
