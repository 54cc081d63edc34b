package common

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

// testFrustum looks down -Z from the origin with a 90 degree square view, near 1 and far 100.
func testFrustum() Frustum {
	return NewFrustum(Perspective(mgl32.DegToRad(90), 1, 1, 100), mgl32.Ident4())
}

func boxAt(center mgl32.Vec3, half float32) BoundingBox {
	h := mgl32.Vec3{half, half, half}
	return BoundingBox{Min: center.Sub(h), Max: center.Add(h)}
}

func TestExtractFrustumPlanes(t *testing.T) {
	f := testFrustum()

	near := f.Planes[FrustumNear]
	if !vecNear(near.Normal, mgl32.Vec3{0, 0, -1}, 1e-5) {
		t.Errorf("near normal = %v, want (0, 0, -1)", near.Normal)
	}
	if math.Abs(float64(near.Distance+1)) > 1e-4 {
		t.Errorf("near distance = %v, want -1", near.Distance)
	}

	for i, p := range f.Planes {
		if l := p.Normal.Len(); math.Abs(float64(l-1)) > 1e-5 {
			t.Errorf("plane %d normal length = %v, want 1", i, l)
		}
		// Every plane keeps a point on the view axis inside.
		if d := p.SignedDistance(mgl32.Vec3{0, 0, -10}); d <= 0 {
			t.Errorf("plane %d distance to (0, 0, -10) = %v, want > 0", i, d)
		}
	}
}

func TestExtractFrustumCorners(t *testing.T) {
	f := testFrustum()

	tests := []struct {
		index int
		want  mgl32.Vec3
	}{
		{0, mgl32.Vec3{-1, -1, -1}},
		{2, mgl32.Vec3{1, 1, -1}},
		{4, mgl32.Vec3{-100, -100, -100}},
		{6, mgl32.Vec3{100, 100, -100}},
	}

	for _, tc := range tests {
		got := f.Corners[tc.index]
		if !vecNear(got, tc.want, 1e-2) {
			t.Errorf("corner %d = %v, want %v", tc.index, got, tc.want)
		}
	}
}

func TestFrustumIntersectsBox(t *testing.T) {
	f := testFrustum()

	tests := []struct {
		name string
		box  BoundingBox
		want bool
	}{
		{"in front", boxAt(mgl32.Vec3{0, 0, -10}, 1), true},
		{"behind camera", boxAt(mgl32.Vec3{0, 0, 10}, 1), false},
		{"beyond far", boxAt(mgl32.Vec3{0, 0, -200}, 1), false},
		{"straddling near", boxAt(mgl32.Vec3{0, 0, -1}, 0.5), true},
		{"straddling far", boxAt(mgl32.Vec3{0, 0, -100}, 5), true},
		{"straddling left", boxAt(mgl32.Vec3{-10, 0, -10}, 1), true},
		{"outside left", boxAt(mgl32.Vec3{-50, 0, -10}, 1), false},
		{"outside top", boxAt(mgl32.Vec3{0, 50, -10}, 1), false},
		{"enclosing camera", boxAt(mgl32.Vec3{0, 0, 0}, 500), true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := f.IntersectsBox(tc.box); got != tc.want {
				t.Errorf("got %v, want %v", got, tc.want)
			}
		})
	}
}

func TestFrustumCornersExcludeBox(t *testing.T) {
	f := testFrustum()

	tests := []struct {
		name string
		box  BoundingBox
		want bool
	}{
		{"inside", boxAt(mgl32.Vec3{0, 0, -10}, 1), false},
		{"right of corner extent", boxAt(mgl32.Vec3{300, 0, -50}, 10), true},
		{"behind corner extent", boxAt(mgl32.Vec3{0, 0, 20}, 5), true},
		{"straddling", boxAt(mgl32.Vec3{-10, 0, -10}, 1), false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := f.CornersExcludeBox(tc.box); got != tc.want {
				t.Errorf("got %v, want %v", got, tc.want)
			}
		})
	}
}

func TestSingularFrustumExcludesNothing(t *testing.T) {
	f := ExtractFrustum(mgl32.Mat4{})
	if f.CornersValid {
		t.Fatalf("CornersValid = true for a singular matrix")
	}
	if f.CornersExcludeBox(boxAt(mgl32.Vec3{5, 5, 5}, 1)) {
		t.Errorf("box away from the unset corners excluded")
	}
	if !testFrustum().CornersValid {
		t.Errorf("CornersValid = false for a perspective frustum")
	}
}

func BenchmarkFrustumIntersectsBox(b *testing.B) {
	f := testFrustum()
	box := boxAt(mgl32.Vec3{3, -2, -40}, 2)
	for b.Loop() {
		_ = f.IntersectsBox(box)
	}
}
