package common

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// Plane represents a plane in 3D space using the equation: ax + by + cz + d = 0
// where (a, b, c) is the normal and d is the distance from origin.
type Plane struct {
	Normal   mgl32.Vec3
	Distance float32
}

// SignedDistance returns the signed distance from p to the plane (positive on the normal side).
func (p Plane) SignedDistance(pt mgl32.Vec3) float32 {
	return p.Normal.Dot(pt) + p.Distance
}

// Vec4 packs the plane as (normal, distance) for GPU upload.
func (p Plane) Vec4() mgl32.Vec4 {
	return p.Normal.Vec4(p.Distance)
}

// Frustum represents the six planes of a view frustum and its eight world-space corners.
// Planes are oriented so that positive half-space is inside the frustum.
type Frustum struct {
	Planes  [6]Plane // Left, Right, Bottom, Top, Near, Far
	Corners [8]mgl32.Vec3
	// CornersValid is false when the view-projection matrix was singular and Corners are unset.
	CornersValid bool
}

// FrustumPlane indices for clarity
const (
	FrustumLeft   = 0
	FrustumRight  = 1
	FrustumBottom = 2
	FrustumTop    = 3
	FrustumNear   = 4
	FrustumFar    = 5
)

// ndcCorners are the clip-space corners of the WebGPU view volume (depth in [0, 1]).
var ndcCorners = [8]mgl32.Vec4{
	{-1, -1, 0, 1}, {1, -1, 0, 1}, {1, 1, 0, 1}, {-1, 1, 0, 1},
	{-1, -1, 1, 1}, {1, -1, 1, 1}, {1, 1, 1, 1}, {-1, 1, 1, 1},
}

// NewFrustum extracts the frustum of projection * view.
// Uses the Gribb/Hartmann method for plane extraction, with the near plane taken from the third
// row alone because WebGPU clip depth starts at 0. Corners are the NDC cube mapped back through
// the inverse view-projection matrix; when the matrix is singular the corners are left at zero.
//
// Reference: https://www8.cs.umu.se/kurser/5DV051/HT12/lab/plane_extraction.pdf
//
// Parameters:
//   - projection: the projection matrix (column-major)
//   - view: the view matrix (column-major)
//
// Returns:
//   - Frustum: the extracted frustum with normalized planes
func NewFrustum(projection, view mgl32.Mat4) Frustum {
	return ExtractFrustum(projection.Mul4(view))
}

// ExtractFrustum extracts the frustum from a combined view-projection matrix.
//
// Parameters:
//   - vp: the combined projection * view matrix (column-major)
//
// Returns:
//   - Frustum: the extracted frustum with normalized planes
func ExtractFrustum(vp mgl32.Mat4) Frustum {
	var f Frustum

	// Row i of a column-major matrix is (vp[i], vp[4+i], vp[8+i], vp[12+i]).
	row := func(i int) mgl32.Vec4 {
		return mgl32.Vec4{vp[i], vp[4+i], vp[8+i], vp[12+i]}
	}
	r0, r1, r2, r3 := row(0), row(1), row(2), row(3)

	f.Planes[FrustumLeft] = planeFromVec4(r3.Add(r0))
	f.Planes[FrustumRight] = planeFromVec4(r3.Sub(r0))
	f.Planes[FrustumBottom] = planeFromVec4(r3.Add(r1))
	f.Planes[FrustumTop] = planeFromVec4(r3.Sub(r1))
	f.Planes[FrustumNear] = planeFromVec4(r2)
	f.Planes[FrustumFar] = planeFromVec4(r3.Sub(r2))

	if math32.Abs(vp.Det()) > 0 {
		inv := vp.Inv()
		for i, c := range ndcCorners {
			f.Corners[i] = Unproject(inv, c)
		}
		f.CornersValid = true
	}
	return f
}

// planeFromVec4 builds a plane from (a, b, c, d) and normalizes it so the normal has unit length.
func planeFromVec4(v mgl32.Vec4) Plane {
	p := Plane{Normal: v.Vec3(), Distance: v.W()}
	length := p.Normal.Len()
	if length > 0 {
		invLen := 1.0 / length
		p.Normal = p.Normal.Mul(invLen)
		p.Distance *= invLen
	}
	return p
}

// IntersectsBox reports whether the box is at least partially inside the frustum.
// A box is rejected only when it lies entirely in the negative half-space of one plane, tested with
// the box corner furthest along the plane normal. Boxes straddling a plane are kept.
//
// Parameters:
//   - b: the world-space box
//
// Returns:
//   - bool: false when the box is fully outside any plane
func (f Frustum) IntersectsBox(b BoundingBox) bool {
	for _, p := range f.Planes {
		var positive mgl32.Vec3
		for i := range 3 {
			if p.Normal[i] >= 0 {
				positive[i] = b.Max[i]
			} else {
				positive[i] = b.Min[i]
			}
		}
		if p.SignedDistance(positive) < 0 {
			return false
		}
	}
	return true
}

// CornersExcludeBox reports whether all 8 frustum corners lie beyond one face of the box.
// It catches large boxes that straddle two planes near a frustum edge yet miss the volume.
// A frustum without valid corners excludes nothing.
//
// Parameters:
//   - b: the world-space box
//
// Returns:
//   - bool: true when the frustum corner extent and the box are disjoint along some axis
func (f Frustum) CornersExcludeBox(b BoundingBox) bool {
	if !f.CornersValid {
		return false
	}
	for axis := range 3 {
		above, below := 0, 0
		for _, c := range f.Corners {
			if c[axis] > b.Max[axis] {
				above++
			}
			if c[axis] < b.Min[axis] {
				below++
			}
		}
		if above == len(f.Corners) || below == len(f.Corners) {
			return true
		}
	}
	return false
}
