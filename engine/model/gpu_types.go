package model

import (
	_ "embed"
	"encoding/binary"
	"math"
	"unsafe"

	"github.com/Carmen-Shannon/oxy-cluster/common"
)

// GPUVertexSource is the canonical WGSL definition of the Vertex struct read by vertex pulling.
// Matches GPUVertex layout exactly (64 bytes, std430 aligned).
//
//go:embed assets/vertex.wgsl
var GPUVertexSource string

// GPUVertex is the GPU-aligned representation of a single mesh vertex.
// Matches the WGSL Vertex struct layout exactly (see GPUVertexSource).
// Size: 64 bytes (std430 aligned, no padding required).
type GPUVertex struct {
	Position [3]float32 // offset  0: vertex position in model space (12 bytes)
	Normal   [3]float32 // offset 12: vertex normal for lighting (12 bytes)
	TexCoord [2]float32 // offset 24: UV texture coordinate (8 bytes)
	Color    [4]float32 // offset 32: per-vertex RGBA color (16 bytes)
	Tangent  [4]float32 // offset 48: tangent vector (xyz) + handedness (w) for normal mapping (16 bytes)
}

// GPUVertexSize is the byte size of one GPUVertex.
const GPUVertexSize = 64

// Size returns the size of the GPUVertex struct in bytes.
//
// Returns:
//   - int: the size of the struct in bytes.
func (g *GPUVertex) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the GPUVertex struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: 64-byte buffer ready for GPU upload.
func (g *GPUVertex) Marshal() []byte {
	buf := make([]byte, GPUVertexSize)
	g.MarshalInto(buf)
	return buf
}

// MarshalInto writes the GPU layout of the vertex into buf[0:64].
func (g *GPUVertex) MarshalInto(buf []byte) {
	words := [16]float32{
		g.Position[0], g.Position[1], g.Position[2],
		g.Normal[0], g.Normal[1], g.Normal[2],
		g.TexCoord[0], g.TexCoord[1],
		g.Color[0], g.Color[1], g.Color[2], g.Color[3],
		g.Tangent[0], g.Tangent[1], g.Tangent[2], g.Tangent[3],
	}
	for i, w := range words {
		binary.LittleEndian.PutUint32(buf[i*4:(i+1)*4], math.Float32bits(w))
	}
}

// MarshalVertices serializes a vertex slice into one contiguous buffer.
//
// Parameters:
//   - vertices: the vertices to serialize
//
// Returns:
//   - []byte: len(vertices) * 64 bytes
func MarshalVertices(vertices []GPUVertex) []byte {
	buf := make([]byte, len(vertices)*GPUVertexSize)
	for i := range vertices {
		vertices[i].MarshalInto(buf[i*GPUVertexSize:])
	}
	return buf
}

// MarshalIndices serializes indices as little-endian u32 values.
func MarshalIndices(indices []uint32) []byte {
	buf := make([]byte, len(indices)*4)
	for i, idx := range indices {
		binary.LittleEndian.PutUint32(buf[i*4:], idx)
	}
	return buf
}

// GPUMeshDataSource is the canonical WGSL definition of the MeshData struct.
// Matches GPUMeshData layout exactly (48 bytes, std430 aligned).
//
//go:embed assets/mesh_data.wgsl
var GPUMeshDataSource string

// GPUMeshData is the per-entry record the vertex stage uses to locate geometry, the instance model
// matrix and the material textures of a draw.
// Size: 48 bytes (12 × 4-byte scalars, std430 aligned).
type GPUMeshData struct {
	VertexOffset     uint32            // offset  0: first vertex in the global vertex buffer
	VertexCount      uint32            // offset  4: number of vertices of the mesh
	IndexOffset      uint32            // offset  8: first index in the global index buffer
	IndexCount       uint32            // offset 12: number of indices of the mesh
	ModelMatrixIndex uint32            // offset 16: slot in the model matrix table
	Textures         common.TextureSet // offset 20: 6 × i32 scene-global texture indices (24 bytes)
	Material         uint32            // offset 44: common.MaterialType
}

// GPUMeshDataSize is the byte size of one GPUMeshData.
const GPUMeshDataSize = 48

// Size returns the size of the GPUMeshData struct in bytes.
//
// Returns:
//   - int: the size of the struct in bytes.
func (g *GPUMeshData) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the GPUMeshData struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: 48-byte buffer ready for GPU upload.
func (g *GPUMeshData) Marshal() []byte {
	buf := make([]byte, GPUMeshDataSize)
	g.MarshalInto(buf)
	return buf
}

// MarshalInto writes the GPU layout of the record into buf[0:48].
func (g *GPUMeshData) MarshalInto(buf []byte) {
	binary.LittleEndian.PutUint32(buf[0:4], g.VertexOffset)
	binary.LittleEndian.PutUint32(buf[4:8], g.VertexCount)
	binary.LittleEndian.PutUint32(buf[8:12], g.IndexOffset)
	binary.LittleEndian.PutUint32(buf[12:16], g.IndexCount)
	binary.LittleEndian.PutUint32(buf[16:20], g.ModelMatrixIndex)
	for i, tex := range g.Textures.Slice() {
		binary.LittleEndian.PutUint32(buf[20+i*4:24+i*4], uint32(tex))
	}
	binary.LittleEndian.PutUint32(buf[44:48], g.Material)
}

// UnmarshalGPUMeshData reads a record from its 48-byte GPU layout.
func UnmarshalGPUMeshData(buf []byte) GPUMeshData {
	var textures [6]int32
	for i := range textures {
		textures[i] = int32(binary.LittleEndian.Uint32(buf[20+i*4:]))
	}
	return GPUMeshData{
		VertexOffset:     binary.LittleEndian.Uint32(buf[0:4]),
		VertexCount:      binary.LittleEndian.Uint32(buf[4:8]),
		IndexOffset:      binary.LittleEndian.Uint32(buf[8:12]),
		IndexCount:       binary.LittleEndian.Uint32(buf[12:16]),
		ModelMatrixIndex: binary.LittleEndian.Uint32(buf[16:20]),
		Textures:         common.TextureSetFromSlice(textures),
		Material:         binary.LittleEndian.Uint32(buf[44:48]),
	}
}
