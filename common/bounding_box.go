package common

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// BoundingBoxSize is the GPU size of a BoundingBox: vec4 min + vec4 max.
const BoundingBoxSize = 32

// BoundingBox is an axis-aligned box described by its minimum and maximum corners.
type BoundingBox struct {
	Min mgl32.Vec3
	Max mgl32.Vec3
}

// NewBoundingBox returns the smallest box enclosing all points.
// An empty point set yields the zero box.
//
// Parameters:
//   - points: the points to enclose
//
// Returns:
//   - BoundingBox: the enclosing box
func NewBoundingBox(points []mgl32.Vec3) BoundingBox {
	if len(points) == 0 {
		return BoundingBox{}
	}
	b := BoundingBox{
		Min: mgl32.Vec3{math32.MaxFloat32, math32.MaxFloat32, math32.MaxFloat32},
		Max: mgl32.Vec3{-math32.MaxFloat32, -math32.MaxFloat32, -math32.MaxFloat32},
	}
	for _, p := range points {
		b = b.Extend(p)
	}
	return b
}

// Extend returns the box grown to include p.
func (b BoundingBox) Extend(p mgl32.Vec3) BoundingBox {
	for i := range 3 {
		b.Min[i] = math32.Min(b.Min[i], p[i])
		b.Max[i] = math32.Max(b.Max[i], p[i])
	}
	return b
}

// Size returns the edge lengths of the box.
func (b BoundingBox) Size() mgl32.Vec3 {
	return b.Max.Sub(b.Min)
}

// Center returns the midpoint of the box.
func (b BoundingBox) Center() mgl32.Vec3 {
	return b.Min.Add(b.Max).Mul(0.5)
}

// Corners returns the 8 corners of the box.
func (b BoundingBox) Corners() [8]mgl32.Vec3 {
	return [8]mgl32.Vec3{
		{b.Min.X(), b.Min.Y(), b.Min.Z()},
		{b.Min.X(), b.Max.Y(), b.Min.Z()},
		{b.Min.X(), b.Min.Y(), b.Max.Z()},
		{b.Min.X(), b.Max.Y(), b.Max.Z()},
		{b.Max.X(), b.Min.Y(), b.Min.Z()},
		{b.Max.X(), b.Max.Y(), b.Min.Z()},
		{b.Max.X(), b.Min.Y(), b.Max.Z()},
		{b.Max.X(), b.Max.Y(), b.Max.Z()},
	}
}

// Transformed returns the axis-aligned box enclosing all 8 corners of b after transforming them by m.
// The identity matrix returns b unchanged.
//
// Parameters:
//   - m: the affine transform to apply
//
// Returns:
//   - BoundingBox: the world-space enclosing box
func (b BoundingBox) Transformed(m mgl32.Mat4) BoundingBox {
	corners := b.Corners()
	for i := range corners {
		corners[i] = TransformPoint(m, corners[i])
	}
	return NewBoundingBox(corners[:])
}

// Hit intersects the ray with the box using the slab method.
// The returned distance is the entry distance along the ray, or the exit distance when the ray
// origin lies inside the box, so every reported hit is non-negative.
//
// Parameters:
//   - r: the ray to test
//
// Returns:
//   - float32: the hit distance along r.Direction
//   - bool: true when the ray hits the box in front of its origin
func (b BoundingBox) Hit(r Ray) (float32, bool) {
	inv := mgl32.Vec3{1 / r.Direction.X(), 1 / r.Direction.Y(), 1 / r.Direction.Z()}

	tmin := float32(-math32.MaxFloat32)
	tmax := float32(math32.MaxFloat32)
	for i := range 3 {
		t1 := (b.Min[i] - r.Origin[i]) * inv[i]
		t2 := (b.Max[i] - r.Origin[i]) * inv[i]
		// A zero direction component with the origin on a slab face gives 0*Inf = NaN;
		// such an axis constrains nothing.
		if math32.IsNaN(t1) || math32.IsNaN(t2) {
			continue
		}
		tmin = math32.Max(tmin, math32.Min(t1, t2))
		tmax = math32.Min(tmax, math32.Max(t1, t2))
	}

	if tmax < 0 || tmin > tmax {
		return tmax, false
	}
	if tmin < 0 {
		return tmax, true
	}
	return tmin, true
}

// IntersectsSphere reports whether the sphere touches the box, using the closest point on the box.
//
// Parameters:
//   - center: the sphere center
//   - radius: the sphere radius
//
// Returns:
//   - bool: true when the squared distance from the box to center is at most radius squared
func (b BoundingBox) IntersectsSphere(center mgl32.Vec3, radius float32) bool {
	var d2 float32
	for i := range 3 {
		v := center[i]
		if v < b.Min[i] {
			d := b.Min[i] - v
			d2 += d * d
		} else if v > b.Max[i] {
			d := v - b.Max[i]
			d2 += d * d
		}
	}
	return d2 <= radius*radius
}

// Marshal serializes the box into its 32-byte GPU layout (vec4 min, vec4 max, w = 1).
//
// Returns:
//   - []byte: the serialized box
func (b BoundingBox) Marshal() []byte {
	buf := make([]byte, BoundingBoxSize)
	b.MarshalInto(buf)
	return buf
}

// MarshalInto writes the GPU layout of the box into buf[0:32].
func (b BoundingBox) MarshalInto(buf []byte) {
	PutVec4(buf, 0, b.Min.Vec4(1))
	PutVec4(buf, 16, b.Max.Vec4(1))
}

// UnmarshalBoundingBox reads a box from its 32-byte GPU layout.
func UnmarshalBoundingBox(buf []byte) BoundingBox {
	return BoundingBox{
		Min: Vec4At(buf, 0).Vec3(),
		Max: Vec4At(buf, 16).Vec3(),
	}
}
