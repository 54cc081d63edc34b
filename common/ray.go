package common

import (
	"github.com/go-gl/mathgl/mgl32"
)

// Ray is a half-line from Origin along Direction.
type Ray struct {
	Origin    mgl32.Vec3
	Direction mgl32.Vec3
}

// NewRay creates a ray with a normalized direction.
//
// Parameters:
//   - origin: the ray origin
//   - direction: the ray direction (any non-zero length)
//
// Returns:
//   - Ray: the ray
func NewRay(origin, direction mgl32.Vec3) Ray {
	return Ray{Origin: origin, Direction: direction.Normalize()}
}

// At returns the point at distance t along the ray.
func (r Ray) At(t float32) mgl32.Vec3 {
	return r.Origin.Add(r.Direction.Mul(t))
}

// RayFromScreen builds a world-space picking ray through a pixel.
// Pixel (0, 0) is the top-left corner of the viewport; the ray starts on the near plane and
// points toward the far plane of the [0, 1] depth clip space.
//
// Parameters:
//   - invViewProj: the inverse of projection * view
//   - x, y: the pixel coordinates
//   - width, height: the viewport size in pixels
//
// Returns:
//   - Ray: the picking ray
func RayFromScreen(invViewProj mgl32.Mat4, x, y, width, height float32) Ray {
	ndcX := 2*x/width - 1
	ndcY := 1 - 2*y/height
	near := Unproject(invViewProj, mgl32.Vec4{ndcX, ndcY, 0, 1})
	far := Unproject(invViewProj, mgl32.Vec4{ndcX, ndcY, 1, 1})
	return NewRay(near, far.Sub(near))
}
