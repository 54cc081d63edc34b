package common

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func TestNewRayNormalizes(t *testing.T) {
	r := NewRay(mgl32.Vec3{1, 2, 3}, mgl32.Vec3{0, 0, -10})
	if r.Direction != (mgl32.Vec3{0, 0, -1}) {
		t.Errorf("direction = %v, want (0, 0, -1)", r.Direction)
	}
	if got := r.At(2); got != (mgl32.Vec3{1, 2, 1}) {
		t.Errorf("At(2) = %v, want (1, 2, 1)", got)
	}
}

func TestRayFromScreen(t *testing.T) {
	proj := Perspective(mgl32.DegToRad(90), 1, 1, 100)
	view := mgl32.LookAtV(mgl32.Vec3{0, 0, 5}, mgl32.Vec3{0, 0, 0}, mgl32.Vec3{0, 1, 0})
	inv := proj.Mul4(view).Inv()

	tests := []struct {
		name      string
		x, y      float32
		origin    mgl32.Vec3
		direction mgl32.Vec3
	}{
		{"center", 50, 50, mgl32.Vec3{0, 0, 4}, mgl32.Vec3{0, 0, -1}},
		{"top left", 0, 0, mgl32.Vec3{-1, 1, 4}, mgl32.Vec3{-1, 1, -1}.Normalize()},
		{"bottom right", 100, 100, mgl32.Vec3{1, -1, 4}, mgl32.Vec3{1, -1, -1}.Normalize()},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := RayFromScreen(inv, tc.x, tc.y, 100, 100)
			if !vecNear(r.Origin, tc.origin, 1e-3) {
				t.Errorf("origin = %v, want %v", r.Origin, tc.origin)
			}
			if !vecNear(r.Direction, tc.direction, 1e-3) {
				t.Errorf("direction = %v, want %v", r.Direction, tc.direction)
			}
		})
	}
}

func TestRayFromScreenPicksBox(t *testing.T) {
	proj := Perspective(mgl32.DegToRad(60), 16.0/9.0, 0.1, 1000)
	view := mgl32.LookAtV(mgl32.Vec3{0, 0, 10}, mgl32.Vec3{0, 0, 0}, mgl32.Vec3{0, 1, 0})
	r := RayFromScreen(proj.Mul4(view).Inv(), 960, 540, 1920, 1080)

	box := BoundingBox{Min: mgl32.Vec3{-1, -1, -1}, Max: mgl32.Vec3{1, 1, 1}}
	d, ok := box.Hit(r)
	if !ok {
		t.Fatal("ray through the screen center missed the box at the origin")
	}
	// The ray starts on the near plane, 0.1 in front of the eye.
	if want := float32(8.9); d < want-1e-2 || d > want+1e-2 {
		t.Errorf("got %v, want %v", d, want)
	}
}
