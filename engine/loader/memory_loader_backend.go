package loader

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/Carmen-Shannon/oxy-cluster/common"
	"github.com/Carmen-Shannon/oxy-cluster/engine/model"
)

// memoryLoaderBackend serves procedural models by name. A few shapes are built in:
// "cube", "transparent_cube" and "cube_pair" (an opaque and a transparent mesh).
type memoryLoaderBackend struct {
	mu     sync.RWMutex
	models map[string]*model.ImportedModel
}

var _ loaderBackend = &memoryLoaderBackend{}

func newMemoryLoaderBackend() *memoryLoaderBackend {
	return &memoryLoaderBackend{
		models: map[string]*model.ImportedModel{
			"cube":             Cube("cube", 1),
			"transparent_cube": Cube("transparent_cube", 1),
			"cube_pair":        CubePair("cube_pair", 1),
		},
	}
}

func (b *memoryLoaderBackend) register(name string, imported *model.ImportedModel) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.models[name] = imported
}

func (b *memoryLoaderBackend) Load(path string) (*model.ImportedModel, error) {
	name := strings.TrimPrefix(path, MemoryScheme)
	b.mu.RLock()
	defer b.mu.RUnlock()
	imported, ok := b.models[name]
	if !ok {
		return nil, fmt.Errorf("no procedural model named %q", name)
	}
	return imported, nil
}

func (b *memoryLoaderBackend) LoadReader(name string, _ io.Reader) (*model.ImportedModel, error) {
	return nil, fmt.Errorf("procedural model %q cannot be read from a stream", name)
}

// cubeFaces lists the outward normal and the two in-plane axes of each cube face.
var cubeFaces = [6]struct{ normal, u, v [3]float32 }{
	{[3]float32{1, 0, 0}, [3]float32{0, 0, -1}, [3]float32{0, 1, 0}},
	{[3]float32{-1, 0, 0}, [3]float32{0, 0, 1}, [3]float32{0, 1, 0}},
	{[3]float32{0, 1, 0}, [3]float32{1, 0, 0}, [3]float32{0, 0, -1}},
	{[3]float32{0, -1, 0}, [3]float32{1, 0, 0}, [3]float32{0, 0, 1}},
	{[3]float32{0, 0, 1}, [3]float32{1, 0, 0}, [3]float32{0, 1, 0}},
	{[3]float32{0, 0, -1}, [3]float32{-1, 0, 0}, [3]float32{0, 1, 0}},
}

// CubeMesh builds an axis-aligned cube of edge length size centered on the origin, with 24
// vertices (4 per face, flat normals) and 36 indices. The material follows the mesh name.
//
// Parameters:
//   - name: the mesh name
//   - size: the edge length
//
// Returns:
//   - model.ImportedMesh: the cube mesh
func CubeMesh(name string, size float32) model.ImportedMesh {
	h := size / 2
	mesh := model.ImportedMesh{
		Name:     name,
		Vertices: make([]model.GPUVertex, 0, 24),
		Indices:  make([]uint32, 0, 36),
		Material: model.MaterialFromName(name),
		Textures: common.EmptyTextureSet(),
	}
	corners := [4][2]float32{{-1, -1}, {1, -1}, {1, 1}, {-1, 1}}
	for _, f := range cubeFaces {
		base := uint32(len(mesh.Vertices))
		for _, c := range corners {
			var pos [3]float32
			for i := range 3 {
				pos[i] = (f.normal[i] + c[0]*f.u[i] + c[1]*f.v[i]) * h
			}
			mesh.Vertices = append(mesh.Vertices, model.GPUVertex{
				Position: pos,
				Normal:   f.normal,
				TexCoord: [2]float32{(c[0] + 1) / 2, (1 - c[1]) / 2},
				Color:    [4]float32{1, 1, 1, 1},
				Tangent:  [4]float32{f.u[0], f.u[1], f.u[2], 1},
			})
		}
		mesh.Indices = append(mesh.Indices, base, base+1, base+2, base, base+2, base+3)
	}
	return mesh
}

// Cube builds a single-mesh cube model. Names containing "transparent" yield a Transparent mesh.
//
// Parameters:
//   - name: the model and mesh name
//   - size: the edge length
//
// Returns:
//   - *model.ImportedModel: the cube model
func Cube(name string, size float32) *model.ImportedModel {
	return &model.ImportedModel{
		Name:   name,
		Meshes: []model.ImportedMesh{CubeMesh(name, size)},
	}
}

// CubePair builds a two-mesh model: an opaque cube and a transparent cube shell around it.
//
// Parameters:
//   - name: the model name
//   - size: the edge length of the inner cube
//
// Returns:
//   - *model.ImportedModel: the model
func CubePair(name string, size float32) *model.ImportedModel {
	return &model.ImportedModel{
		Name: name,
		Meshes: []model.ImportedMesh{
			CubeMesh(name+"_body", size),
			CubeMesh(name+"_shell_transparent", size*1.25),
		},
	}
}
