package common

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// Perspective creates a right-handed perspective projection matrix for the WebGPU clip space,
// where depth maps to [0, 1] (near -> 0, far -> 1).
// The matrix is column-major, matching mgl32.Mat4.
//
// Parameters:
//   - fovY: vertical field of view in radians
//   - aspect: viewport aspect ratio (width/height)
//   - near: near clipping plane distance (must be > 0)
//   - far: far clipping plane distance (must be > near)
//
// Returns:
//   - mgl32.Mat4: the projection matrix
func Perspective(fovY, aspect, near, far float32) mgl32.Mat4 {
	f := 1.0 / math32.Tan(fovY/2.0)

	var out mgl32.Mat4
	out[0] = f / aspect
	out[5] = f
	out[10] = far / (near - far)
	out[11] = -1.0
	out[14] = (near * far) / (near - far)
	return out
}

// ModelMatrix builds a model matrix from a translation, Euler rotation, and scale.
// The rotation order is Y * X * Z (yaw-pitch-roll), so the result is T * Ry * Rx * Rz * S.
//
// Parameters:
//   - position: translation in world space
//   - rotation: rotation angles in radians around X, Y and Z
//   - scale: scale factors along each axis
//
// Returns:
//   - mgl32.Mat4: the composed model matrix
func ModelMatrix(position, rotation, scale mgl32.Vec3) mgl32.Mat4 {
	r := mgl32.HomogRotate3DY(rotation.Y()).
		Mul4(mgl32.HomogRotate3DX(rotation.X())).
		Mul4(mgl32.HomogRotate3DZ(rotation.Z()))
	return mgl32.Translate3D(position.X(), position.Y(), position.Z()).
		Mul4(r).
		Mul4(mgl32.Scale3D(scale.X(), scale.Y(), scale.Z()))
}

// TransformPoint applies an affine transform to a point (w = 1) without a perspective divide.
//
// Parameters:
//   - m: the transform
//   - p: the point
//
// Returns:
//   - mgl32.Vec3: the transformed point
func TransformPoint(m mgl32.Mat4, p mgl32.Vec3) mgl32.Vec3 {
	return m.Mul4x1(p.Vec4(1)).Vec3()
}

// Unproject maps a clip-space point through an inverse matrix and applies the perspective divide.
// Returns the zero vector when w collapses to zero.
//
// Parameters:
//   - inv: the inverse (view-)projection matrix
//   - clip: the clip-space point with w
//
// Returns:
//   - mgl32.Vec3: the unprojected point
func Unproject(inv mgl32.Mat4, clip mgl32.Vec4) mgl32.Vec3 {
	q := inv.Mul4x1(clip)
	if q.W() == 0 {
		return mgl32.Vec3{}
	}
	return q.Vec3().Mul(1 / q.W())
}

// Clamp limits v to [lo, hi].
func Clamp[T int | int32 | uint32 | float32](v, lo, hi T) T {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// DivCeil returns ceil(a / b) for positive integers.
func DivCeil(a, b uint32) uint32 {
	return (a + b - 1) / b
}
