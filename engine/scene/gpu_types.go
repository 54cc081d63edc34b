package scene

import (
	_ "embed"
	"encoding/binary"
	"unsafe"
)

// GPUIndirectDrawRecordSource is the canonical WGSL definition of the DrawIndirectArgs struct.
// Matches GPUIndirectDrawRecord layout exactly (16 bytes, std430 aligned).
//
//go:embed assets/indirect_draw.wgsl
var GPUIndirectDrawRecordSource string

// GPUIndirectDrawRecord is one non-indexed indirect draw command. Geometry is fetched by vertex
// pulling, so VertexCount is the index count of the mesh and FirstInstance the entry index the
// vertex stage uses to find its MeshData.
// Size: 16 bytes (4 × u32).
type GPUIndirectDrawRecord struct {
	VertexCount   uint32 // offset  0: index count of the mesh
	InstanceCount uint32 // offset  4: 1 when visible, 0 when culled
	FirstVertex   uint32 // offset  8: always 0
	FirstInstance uint32 // offset 12: entry index
}

// IndirectDrawRecordSize is the byte size and stride of one GPUIndirectDrawRecord.
const IndirectDrawRecordSize = 16

// InstanceCountOffset is the byte offset of InstanceCount inside a record.
const InstanceCountOffset = 4

// Size returns the size of the GPUIndirectDrawRecord struct in bytes.
//
// Returns:
//   - int: the size of the struct in bytes.
func (g *GPUIndirectDrawRecord) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the GPUIndirectDrawRecord struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: 16-byte buffer ready for GPU upload.
func (g *GPUIndirectDrawRecord) Marshal() []byte {
	buf := make([]byte, IndirectDrawRecordSize)
	g.MarshalInto(buf)
	return buf
}

// MarshalInto writes the GPU layout of the record into buf[0:16].
func (g *GPUIndirectDrawRecord) MarshalInto(buf []byte) {
	binary.LittleEndian.PutUint32(buf[0:4], g.VertexCount)
	binary.LittleEndian.PutUint32(buf[4:8], g.InstanceCount)
	binary.LittleEndian.PutUint32(buf[8:12], g.FirstVertex)
	binary.LittleEndian.PutUint32(buf[12:16], g.FirstInstance)
}

// UnmarshalGPUIndirectDrawRecord reads a record from its 16-byte GPU layout.
func UnmarshalGPUIndirectDrawRecord(buf []byte) GPUIndirectDrawRecord {
	return GPUIndirectDrawRecord{
		VertexCount:   binary.LittleEndian.Uint32(buf[0:4]),
		InstanceCount: binary.LittleEndian.Uint32(buf[4:8]),
		FirstVertex:   binary.LittleEndian.Uint32(buf[8:12]),
		FirstInstance: binary.LittleEndian.Uint32(buf[12:16]),
	}
}
