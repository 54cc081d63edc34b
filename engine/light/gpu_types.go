package light

import (
	_ "embed"
	"encoding/binary"
	"math"
	"unsafe"
)

// GPUPointLightSource is the canonical WGSL definition of the PointLight struct.
// Matches GPUPointLight layout exactly (32 bytes, std430 aligned).
//
//go:embed assets/point_light.wgsl
var GPUPointLightSource string

// GPUPointLight is the GPU-aligned representation of a single point light.
// Matches the WGSL PointLight struct layout exactly (see GPUPointLightSource).
// Size: 32 bytes (std430 / WGSL aligned).
type GPUPointLight struct {
	Position  [3]float32 // offset  0: world-space position
	Radius    float32    // offset 12: radius of influence
	Color     [3]float32 // offset 16: RGB color
	Intensity float32    // offset 28: scalar multiplier
}

// GPUPointLightSize is the byte size of GPUPointLight.
const GPUPointLightSize = 32

// Size returns the size of the GPUPointLight struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (32)
func (g *GPUPointLight) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the GPUPointLight struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: 32-byte buffer ready for GPU upload
func (g *GPUPointLight) Marshal() []byte {
	buf := make([]byte, g.Size())
	g.MarshalInto(buf)
	return buf
}

// MarshalInto writes the GPU layout into buf[0:32].
func (g *GPUPointLight) MarshalInto(buf []byte) {
	binary.LittleEndian.PutUint32(buf[0:4], math.Float32bits(g.Position[0]))
	binary.LittleEndian.PutUint32(buf[4:8], math.Float32bits(g.Position[1]))
	binary.LittleEndian.PutUint32(buf[8:12], math.Float32bits(g.Position[2]))
	binary.LittleEndian.PutUint32(buf[12:16], math.Float32bits(g.Radius))
	binary.LittleEndian.PutUint32(buf[16:20], math.Float32bits(g.Color[0]))
	binary.LittleEndian.PutUint32(buf[20:24], math.Float32bits(g.Color[1]))
	binary.LittleEndian.PutUint32(buf[24:28], math.Float32bits(g.Color[2]))
	binary.LittleEndian.PutUint32(buf[28:32], math.Float32bits(g.Intensity))
}

// UnmarshalGPUPointLight reads a light from its 32-byte GPU layout.
func UnmarshalGPUPointLight(buf []byte) GPUPointLight {
	f := func(off int) float32 {
		return math.Float32frombits(binary.LittleEndian.Uint32(buf[off:]))
	}
	return GPUPointLight{
		Position:  [3]float32{f(0), f(4), f(8)},
		Radius:    f(12),
		Color:     [3]float32{f(16), f(20), f(24)},
		Intensity: f(28),
	}
}

// ToGPUPointLight converts a PointLight to its GPU representation.
func ToGPUPointLight(l PointLight) GPUPointLight {
	return GPUPointLight{
		Position:  l.Position,
		Radius:    l.Radius,
		Color:     l.Color,
		Intensity: l.Intensity,
	}
}

// MarshalLightBuffer serializes lights back to back in input order.
//
// Parameters:
//   - lights: the lights to serialize
//
// Returns:
//   - []byte: len(lights) * 32 bytes ready for GPU upload
func MarshalLightBuffer(lights []PointLight) []byte {
	var g GPUPointLight
	stride := g.Size()
	buf := make([]byte, len(lights)*stride)
	for i, l := range lights {
		g = ToGPUPointLight(l)
		g.MarshalInto(buf[i*stride:])
	}
	return buf
}
