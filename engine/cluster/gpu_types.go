package cluster

import (
	_ "embed"
	"unsafe"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/Carmen-Shannon/oxy-cluster/common"
)

//go:embed assets/cluster_aabb.wgsl
var clusterAABBSource string

//go:embed assets/light_binning.wgsl
var lightBinningSource string

// AABBSize is the GPU size of one cluster box: vec4 min, vec4 max.
const AABBSize = common.BoundingBoxSize

// GPUClusterUniform is the uniform of the cluster AABB kernel.
// Size: 96 bytes (uniform aligned).
type GPUClusterUniform struct {
	InverseProjection mgl32.Mat4 // offset  0
	ScreenSize        [2]float32 // offset 64: viewport in pixels
	Near              float32    // offset 72
	Far               float32    // offset 76
	Grid              [3]uint32  // offset 80: X, Y, Z
	_                 uint32     // offset 92: padding
}

// GPUClusterUniformSize is the byte size of GPUClusterUniform.
const GPUClusterUniformSize = 96

// Size returns the size of the GPUClusterUniform struct in bytes.
func (g *GPUClusterUniform) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the GPUClusterUniform struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: 96-byte buffer ready for GPU upload.
func (g *GPUClusterUniform) Marshal() []byte {
	buf := make([]byte, GPUClusterUniformSize)
	common.PutMat4(buf, 0, g.InverseProjection)
	common.PutFloat32(buf, 64, g.ScreenSize[0])
	common.PutFloat32(buf, 68, g.ScreenSize[1])
	common.PutFloat32(buf, 72, g.Near)
	common.PutFloat32(buf, 76, g.Far)
	for i, n := range g.Grid {
		common.PutUint32(buf, 80+i*4, n)
	}
	return buf
}

func unmarshalClusterUniform(buf []byte) GPUClusterUniform {
	return GPUClusterUniform{
		InverseProjection: common.Mat4At(buf, 0),
		ScreenSize:        [2]float32{common.Float32At(buf, 64), common.Float32At(buf, 68)},
		Near:              common.Float32At(buf, 72),
		Far:               common.Float32At(buf, 76),
		Grid:              [3]uint32{common.Uint32At(buf, 80), common.Uint32At(buf, 84), common.Uint32At(buf, 88)},
	}
}

// GPUBinUniform is the uniform of the light binning kernel.
// Size: 96 bytes (uniform aligned, 3 x u32 tail padding).
type GPUBinUniform struct {
	View          mgl32.Mat4 // offset  0: world-to-view matrix
	LightCount    uint32     // offset 64
	MaxPerCluster uint32     // offset 68
	Grid          [3]uint32  // offset 72: X, Y, Z
	_             [3]uint32  // offset 84: padding
}

// GPUBinUniformSize is the byte size of GPUBinUniform.
const GPUBinUniformSize = 96

// Size returns the size of the GPUBinUniform struct in bytes.
func (g *GPUBinUniform) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the GPUBinUniform struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: 96-byte buffer ready for GPU upload.
func (g *GPUBinUniform) Marshal() []byte {
	buf := make([]byte, GPUBinUniformSize)
	common.PutMat4(buf, 0, g.View)
	common.PutUint32(buf, 64, g.LightCount)
	common.PutUint32(buf, 68, g.MaxPerCluster)
	for i, n := range g.Grid {
		common.PutUint32(buf, 72+i*4, n)
	}
	return buf
}

func unmarshalBinUniform(buf []byte) GPUBinUniform {
	return GPUBinUniform{
		View:          common.Mat4At(buf, 0),
		LightCount:    common.Uint32At(buf, 64),
		MaxPerCluster: common.Uint32At(buf, 68),
		Grid:          [3]uint32{common.Uint32At(buf, 72), common.Uint32At(buf, 76), common.Uint32At(buf, 80)},
	}
}

// LightCell is the light range of one cluster inside the light-index buffer.
type LightCell struct {
	Offset uint32
	Count  uint32
}

// LightCellSize is the GPU size of a LightCell.
const LightCellSize = 8

// MarshalInto writes the GPU layout of the cell into buf[0:8].
func (c LightCell) MarshalInto(buf []byte) {
	common.PutUint32(buf, 0, c.Offset)
	common.PutUint32(buf, 4, c.Count)
}

// UnmarshalLightCell reads a cell from its 8-byte GPU layout.
func UnmarshalLightCell(buf []byte) LightCell {
	return LightCell{Offset: common.Uint32At(buf, 0), Count: common.Uint32At(buf, 4)}
}

// Bin status layout: the largest unclamped per-cluster light count, then the number of clusters
// that dropped lights.
const (
	binStatusSize            = 8
	binStatusMaxCountOffset  = 0
	binStatusOverflowsOffset = 4
)
