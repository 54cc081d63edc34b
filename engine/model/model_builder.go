package model

// ModelBuilderOption is a functional option for configuring a Model via NewModel.
type ModelBuilderOption func(*model)

// WithName is an option builder that sets the name of the Model.
//
// Parameters:
//   - name: the model identifier
//
// Returns:
//   - ModelBuilderOption: a function that applies the name option to a model
func WithName(name string) ModelBuilderOption {
	return func(m *model) {
		m.name = name
	}
}

// WithMeshes is an option builder that sets the meshes of the Model.
// The meshes are copied; their vertex and index slices are shared.
//
// Parameters:
//   - meshes: the imported meshes in source order
//
// Returns:
//   - ModelBuilderOption: a function that applies the meshes option to a model
func WithMeshes(meshes []ImportedMesh) ModelBuilderOption {
	return func(m *model) {
		m.meshes = make([]Mesh, len(meshes))
		for i, mesh := range meshes {
			m.meshes[i] = Mesh{ImportedMesh: mesh}
		}
	}
}

// WithTextureCount is an option builder that sets how many textures the Model references.
//
// Parameters:
//   - count: the texture count
//
// Returns:
//   - ModelBuilderOption: a function that applies the texture count option to a model
func WithTextureCount(count int) ModelBuilderOption {
	return func(m *model) {
		m.textureCount = count
	}
}
