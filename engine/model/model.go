package model

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/Carmen-Shannon/oxy-cluster/common"
)

// Mesh is an imported mesh together with its object-space bounding box.
type Mesh struct {
	ImportedMesh

	// Bounds encloses every vertex of the mesh in model space.
	Bounds common.BoundingBox
}

// model is the implementation of the Model interface.
type model struct {
	name         string
	meshes       []Mesh
	textureCount int
	indexCount   int
	vertexCount  int
}

// Model defines the interface for a loaded 3D model.
// A Model holds the meshes of one imported file with their bounding boxes computed once at
// construction; every instance of the model placed in a scene shares them.
// It is produced by the Loader after importing a model file.
type Model interface {
	// Name retrieves the model identifier.
	//
	// Returns:
	//   - string: the model name
	Name() string

	// Meshes retrieves the meshes of the model in source order.
	//
	// Returns:
	//   - []Mesh: the meshes
	Meshes() []Mesh

	// MeshCount returns the number of meshes.
	MeshCount() int

	// TextureCount returns the number of textures the model's mesh texture indices address.
	TextureCount() int

	// VertexCount returns the total number of vertices across all meshes.
	VertexCount() int

	// IndexCount returns the total number of indices across all meshes.
	IndexCount() int

	// TriangleCount returns IndexCount / 3.
	TriangleCount() int

	// Bounds retrieves the box enclosing every mesh of the model.
	//
	// Returns:
	//   - common.BoundingBox: the union of the mesh boxes, or the zero box for an empty model
	Bounds() common.BoundingBox
}

var _ Model = &model{}

// NewModel creates a new Model with the provided options.
// Mesh bounding boxes are derived from vertex positions here, once per model.
//
// Parameters:
//   - options: a variadic list of ModelBuilderOption functions to configure the Model
//
// Returns:
//   - Model: the created Model
func NewModel(options ...ModelBuilderOption) Model {
	m := &model{}
	for _, option := range options {
		option(m)
	}
	for i := range m.meshes {
		m.meshes[i].Bounds = meshBounds(m.meshes[i].Vertices)
		m.vertexCount += len(m.meshes[i].Vertices)
		m.indexCount += len(m.meshes[i].Indices)
	}
	return m
}

// FromImported wraps a loader result into a Model.
//
// Parameters:
//   - imported: the import output
//
// Returns:
//   - Model: the created Model
func FromImported(imported ImportedModel) Model {
	return NewModel(
		WithName(imported.Name),
		WithMeshes(imported.Meshes),
		WithTextureCount(imported.TextureCount),
	)
}

func (m *model) Name() string {
	return m.name
}

func (m *model) Meshes() []Mesh {
	return m.meshes
}

func (m *model) MeshCount() int {
	return len(m.meshes)
}

func (m *model) TextureCount() int {
	return m.textureCount
}

func (m *model) VertexCount() int {
	return m.vertexCount
}

func (m *model) IndexCount() int {
	return m.indexCount
}

func (m *model) TriangleCount() int {
	return m.indexCount / 3
}

func (m *model) Bounds() common.BoundingBox {
	if len(m.meshes) == 0 {
		return common.BoundingBox{}
	}
	b := m.meshes[0].Bounds
	for _, mesh := range m.meshes[1:] {
		b = b.Extend(mesh.Bounds.Min).Extend(mesh.Bounds.Max)
	}
	return b
}

func meshBounds(vertices []GPUVertex) common.BoundingBox {
	points := make([]mgl32.Vec3, len(vertices))
	for i, v := range vertices {
		points[i] = mgl32.Vec3(v.Position)
	}
	return common.NewBoundingBox(points)
}
