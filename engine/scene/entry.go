package scene

import (
	"cmp"
	"slices"

	"github.com/Carmen-Shannon/oxy-cluster/common"
	"github.com/Carmen-Shannon/oxy-cluster/engine/model"
)

// InstanceEntry is one drawable: a single mesh of a single instance of a model.
type InstanceEntry struct {
	// ModelIndex is the position of the model in the descriptor list.
	ModelIndex int
	// InstanceIndex is the instance of that model, in [0, InstanceCount).
	InstanceIndex int
	// MeshIndex is the mesh of the model, in source order.
	MeshIndex int
	// MeshData is the GPU record of the entry.
	MeshData model.GPUMeshData
	// Bounds is the object-space bounding box of the mesh.
	Bounds common.BoundingBox
}

// Material returns the material type of the entry.
func (e InstanceEntry) Material() common.MaterialType {
	return common.MaterialType(e.MeshData.Material)
}

// geometry is the concatenated vertex and index data of all models, with the MeshData template
// of every (model, mesh) pair.
type geometry struct {
	vertices  []model.GPUVertex
	indices   []uint32
	templates [][]model.GPUMeshData
	textures  int
}

// concatGeometry lays out every mesh of every model once in the global arrays. Texture indices are
// shifted by the textures of the models before, so they address one scene-wide texture array.
func concatGeometry(models []model.Model) geometry {
	var g geometry
	g.templates = make([][]model.GPUMeshData, len(models))
	for mi, m := range models {
		g.templates[mi] = make([]model.GPUMeshData, m.MeshCount())
		for meshIdx, mesh := range m.Meshes() {
			g.templates[mi][meshIdx] = model.GPUMeshData{
				VertexOffset: uint32(len(g.vertices)),
				VertexCount:  uint32(len(mesh.Vertices)),
				IndexOffset:  uint32(len(g.indices)),
				IndexCount:   uint32(len(mesh.Indices)),
				Textures:     mesh.Textures.Offset(int32(g.textures)),
				Material:     uint32(mesh.Material),
			}
			g.vertices = append(g.vertices, mesh.Vertices...)
			g.indices = append(g.indices, mesh.Indices...)
		}
		g.textures += m.TextureCount()
	}
	return g
}

// flattenEntries emits one entry per (instance, mesh) in model order, instance-major, then sorts
// them stably by material. slotBase[mi] is the first model matrix slot of model mi.
func flattenEntries(descriptors []model.ModelDescriptor, models []model.Model, g geometry, slotBase []int) []InstanceEntry {
	var entries []InstanceEntry
	for mi, m := range models {
		meshes := m.Meshes()
		for inst := 0; inst < int(descriptors[mi].InstanceCount); inst++ {
			for meshIdx := range meshes {
				md := g.templates[mi][meshIdx]
				md.ModelMatrixIndex = uint32(slotBase[mi] + inst)
				entries = append(entries, InstanceEntry{
					ModelIndex:    mi,
					InstanceIndex: inst,
					MeshIndex:     meshIdx,
					MeshData:      md,
					Bounds:        meshes[meshIdx].Bounds,
				})
			}
		}
	}
	slices.SortStableFunc(entries, func(a, b InstanceEntry) int {
		return cmp.Compare(a.MeshData.Material, b.MeshData.Material)
	})
	return entries
}

// materialRanges finds the first index and count of every material in sorted entries.
func materialRanges(entries []InstanceEntry) map[common.MaterialType][2]uint32 {
	ranges := make(map[common.MaterialType][2]uint32)
	for i, e := range entries {
		m := e.Material()
		r, ok := ranges[m]
		if !ok {
			r[0] = uint32(i)
		}
		r[1] = uint32(i) - r[0] + 1
		ranges[m] = r
	}
	return ranges
}
