package loader

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"

	"github.com/Carmen-Shannon/oxy-cluster/engine/model"
)

// gltfMeshExtractor converts glTF mesh primitives into ImportedMesh values.
type gltfMeshExtractor struct {
	doc       *gltf.Document
	materials *gltfMaterialExtractor
}

func newGLTFMeshExtractor(doc *gltf.Document, materials *gltfMaterialExtractor) *gltfMeshExtractor {
	return &gltfMeshExtractor{doc: doc, materials: materials}
}

// ExtractAllMeshes extracts all meshes from the document.
// Returns a flattened slice with one ImportedMesh per triangle primitive across all meshes;
// points and lines primitives are skipped.
//
// Returns:
//   - []model.ImportedMesh: all meshes (flattened, one per primitive)
//   - error: error if extraction fails
func (e *gltfMeshExtractor) ExtractAllMeshes() ([]model.ImportedMesh, error) {
	var all []model.ImportedMesh
	for meshIdx, mesh := range e.doc.Meshes {
		for primIdx, prim := range mesh.Primitives {
			if prim.Mode != gltf.PrimitiveTriangles {
				continue
			}
			imported, err := e.extractPrimitive(prim, mesh.Name, primIdx)
			if err != nil {
				return nil, fmt.Errorf("mesh %d primitive %d: %w", meshIdx, primIdx, err)
			}
			all = append(all, imported)
		}
	}
	return all, nil
}

func (e *gltfMeshExtractor) accessor(index int) (*gltf.Accessor, error) {
	if index < 0 || index >= len(e.doc.Accessors) {
		return nil, fmt.Errorf("accessor %d out of range", index)
	}
	return e.doc.Accessors[index], nil
}

// extractPrimitive extracts a single primitive as an ImportedMesh.
func (e *gltfMeshExtractor) extractPrimitive(prim *gltf.Primitive, meshName string, primIndex int) (model.ImportedMesh, error) {
	posIdx, ok := prim.Attributes[gltf.POSITION]
	if !ok {
		return model.ImportedMesh{}, fmt.Errorf("primitive has no POSITION attribute")
	}
	posAccessor, err := e.accessor(posIdx)
	if err != nil {
		return model.ImportedMesh{}, err
	}
	positions, err := modeler.ReadPosition(e.doc, posAccessor, nil)
	if err != nil {
		return model.ImportedMesh{}, fmt.Errorf("read positions: %w", err)
	}

	vertices := make([]model.GPUVertex, len(positions))
	for i, pos := range positions {
		vertices[i].Position = pos
		vertices[i].Color = [4]float32{1, 1, 1, 1}
	}

	hasNormals := false
	if normIdx, ok := prim.Attributes[gltf.NORMAL]; ok {
		acc, err := e.accessor(normIdx)
		if err != nil {
			return model.ImportedMesh{}, err
		}
		normals, err := modeler.ReadNormal(e.doc, acc, nil)
		if err != nil {
			return model.ImportedMesh{}, fmt.Errorf("read normals: %w", err)
		}
		for i := range normals {
			if i < len(vertices) {
				vertices[i].Normal = normals[i]
			}
		}
		hasNormals = true
	}

	if uvIdx, ok := prim.Attributes[gltf.TEXCOORD_0]; ok {
		acc, err := e.accessor(uvIdx)
		if err != nil {
			return model.ImportedMesh{}, err
		}
		uvs, err := modeler.ReadTextureCoord(e.doc, acc, nil)
		if err != nil {
			return model.ImportedMesh{}, fmt.Errorf("read uvs: %w", err)
		}
		for i := range uvs {
			if i < len(vertices) {
				vertices[i].TexCoord = uvs[i]
			}
		}
	}

	var indices []uint32
	if prim.Indices != nil {
		acc, err := e.accessor(*prim.Indices)
		if err != nil {
			return model.ImportedMesh{}, err
		}
		indices, err = modeler.ReadIndices(e.doc, acc, nil)
		if err != nil {
			return model.ImportedMesh{}, fmt.Errorf("read indices: %w", err)
		}
	} else {
		// No indices, assume sequential triangles
		indices = make([]uint32, len(vertices))
		for i := range indices {
			indices[i] = uint32(i)
		}
	}

	if !hasNormals && len(indices) >= 3 {
		generateNormals(vertices, indices)
	}

	name := meshName
	if name == "" {
		name = fmt.Sprintf("mesh_%d", primIndex)
	} else if primIndex > 0 {
		name = fmt.Sprintf("%s_prim%d", name, primIndex)
	}

	material, textures := e.materials.Material(prim.Material, name)
	return model.ImportedMesh{
		Name:     name,
		Vertices: vertices,
		Indices:  indices,
		Material: material,
		Textures: textures,
	}, nil
}

// generateNormals computes smooth vertex normals from the triangle geometry when the
// file does not provide a NORMAL attribute. Face normals are accumulated area-weighted onto
// every vertex of their triangle and normalized at the end.
//
// Parameters:
//   - vertices: the vertex slice to write normal data into
//   - indices: the triangle index buffer
func generateNormals(vertices []model.GPUVertex, indices []uint32) {
	n := len(vertices)
	accum := make([]mgl32.Vec3, n)

	for i := 0; i+2 < len(indices); i += 3 {
		i0, i1, i2 := indices[i], indices[i+1], indices[i+2]
		if int(i0) >= n || int(i1) >= n || int(i2) >= n {
			continue
		}
		p0 := mgl32.Vec3(vertices[i0].Position)
		p1 := mgl32.Vec3(vertices[i1].Position)
		p2 := mgl32.Vec3(vertices[i2].Position)

		// Length proportional to triangle area.
		face := p1.Sub(p0).Cross(p2.Sub(p0))
		accum[i0] = accum[i0].Add(face)
		accum[i1] = accum[i1].Add(face)
		accum[i2] = accum[i2].Add(face)
	}

	for i, a := range accum {
		if a.Len() > 1e-12 {
			vertices[i].Normal = a.Normalize()
		} else {
			vertices[i].Normal = [3]float32{0, 1, 0}
		}
	}
}
