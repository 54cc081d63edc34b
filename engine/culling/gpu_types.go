package culling

import (
	_ "embed"
	"unsafe"

	"github.com/Carmen-Shannon/oxy-cluster/common"
)

//go:embed assets/frustum_cull.wgsl
var frustumCullSource string

// GPUFrustum is the uniform of the cull kernel: the frustum planes as (normal, distance), the
// frustum corners (w = 1), the entry count and the corner refinement flag.
// Size: 240 bytes (uniform aligned, 2 × u32 tail padding).
type GPUFrustum struct {
	Planes     [6][4]float32 // offset   0: inside is the positive half-space
	Corners    [8][4]float32 // offset  96: near corners then far corners
	EntryCount uint32        // offset 224: number of bounding boxes and draw records
	Refine     uint32        // offset 228: 1 enables corner refinement
	_          [2]uint32     // offset 232: padding
}

// GPUFrustumSize is the byte size of GPUFrustum.
const GPUFrustumSize = 240

// NewGPUFrustum packs a frustum for upload.
//
// Parameters:
//   - f: the world-space frustum
//   - entries: the number of entries to test
//   - refine: whether corner refinement is enabled; ignored when f has no valid corners
//
// Returns:
//   - GPUFrustum: the uniform contents
func NewGPUFrustum(f common.Frustum, entries int, refine bool) GPUFrustum {
	g := GPUFrustum{EntryCount: uint32(entries)}
	for i, p := range f.Planes {
		g.Planes[i] = p.Vec4()
	}
	for i, c := range f.Corners {
		g.Corners[i] = c.Vec4(1)
	}
	if refine && f.CornersValid {
		g.Refine = 1
	}
	return g
}

// Size returns the size of the GPUFrustum struct in bytes.
//
// Returns:
//   - int: the size of the struct in bytes.
func (g *GPUFrustum) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the GPUFrustum struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: 240-byte buffer ready for GPU upload.
func (g *GPUFrustum) Marshal() []byte {
	buf := make([]byte, GPUFrustumSize)
	for i, p := range g.Planes {
		common.PutVec4(buf, i*16, p)
	}
	for i, c := range g.Corners {
		common.PutVec4(buf, 96+i*16, c)
	}
	common.PutUint32(buf, 224, g.EntryCount)
	common.PutUint32(buf, 228, g.Refine)
	return buf
}

// unmarshalFrustum reads the uniform back into a frustum, the entry count and the refine flag.
func unmarshalFrustum(buf []byte) (common.Frustum, uint32, bool) {
	var f common.Frustum
	for i := range f.Planes {
		v := common.Vec4At(buf, i*16)
		f.Planes[i] = common.Plane{Normal: v.Vec3(), Distance: v.W()}
	}
	for i := range f.Corners {
		f.Corners[i] = common.Vec4At(buf, 96+i*16).Vec3()
	}
	refine := common.Uint32At(buf, 228) != 0
	f.CornersValid = refine
	return f, common.Uint32At(buf, 224), refine
}
