package common

import (
	"encoding/binary"
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// GPU buffers are little-endian and every helper below writes at an explicit byte offset, the same
// layout discipline the Marshal() methods of the GPU structs follow.

// PutUint32 writes v at buf[off:off+4].
func PutUint32(buf []byte, off int, v uint32) {
	binary.LittleEndian.PutUint32(buf[off:], v)
}

// Uint32At reads the little-endian uint32 at buf[off:off+4].
func Uint32At(buf []byte, off int) uint32 {
	return binary.LittleEndian.Uint32(buf[off:])
}

// PutFloat32 writes v at buf[off:off+4].
func PutFloat32(buf []byte, off int, v float32) {
	binary.LittleEndian.PutUint32(buf[off:], math.Float32bits(v))
}

// Float32At reads the little-endian float32 at buf[off:off+4].
func Float32At(buf []byte, off int) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(buf[off:]))
}

// PutVec4 writes a vec4<f32> (16 bytes) at buf[off:].
func PutVec4(buf []byte, off int, v mgl32.Vec4) {
	for i := range 4 {
		PutFloat32(buf, off+i*4, v[i])
	}
}

// Vec4At reads a vec4<f32> from buf[off:].
func Vec4At(buf []byte, off int) mgl32.Vec4 {
	var v mgl32.Vec4
	for i := range 4 {
		v[i] = Float32At(buf, off+i*4)
	}
	return v
}

// PutMat4 writes a column-major mat4x4<f32> (64 bytes) at buf[off:].
func PutMat4(buf []byte, off int, m mgl32.Mat4) {
	for i := range 16 {
		PutFloat32(buf, off+i*4, m[i])
	}
}

// Mat4At reads a column-major mat4x4<f32> from buf[off:].
func Mat4At(buf []byte, off int) mgl32.Mat4 {
	var m mgl32.Mat4
	for i := range 16 {
		m[i] = Float32At(buf, off+i*4)
	}
	return m
}
