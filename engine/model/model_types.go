package model

import (
	"fmt"
	"strings"

	"github.com/Carmen-Shannon/oxy-cluster/common"
)

// ModelDescriptor names a model file and how many instances of it the scene holds.
type ModelDescriptor struct {
	// SourcePath is the file the loader imports (".gltf", ".glb", or a procedural "mem:" name).
	SourcePath string `yaml:"source"`

	// InstanceCount is the number of instances placed in the scene, at least 1.
	InstanceCount uint32 `yaml:"instances"`

	// Animated marks models driven by an external animation system. It is carried and reported only.
	Animated bool `yaml:"animated"`

	// Clickable makes the instances of this model eligible for picking.
	Clickable bool `yaml:"clickable"`
}

// Validate checks the descriptor fields.
//
// Returns:
//   - error: an error wrapping common.ErrConfig when the path is empty or InstanceCount is 0
func (d ModelDescriptor) Validate() error {
	if d.SourcePath == "" {
		return fmt.Errorf("model descriptor: empty source path: %w", common.ErrConfig)
	}
	if d.InstanceCount == 0 {
		return fmt.Errorf("model descriptor %q: instance count must be at least 1: %w", d.SourcePath, common.ErrConfig)
	}
	return nil
}

// ImportedMesh is one mesh as produced by a loader backend.
type ImportedMesh struct {
	// Name is the mesh name from the source file.
	Name string

	// Vertices are the mesh vertices in model space.
	Vertices []GPUVertex

	// Indices are triangle-list indices relative to Vertices.
	Indices []uint32

	// Material is the render-order class of the mesh.
	Material common.MaterialType

	// Textures holds the model-local texture indices of the mesh material.
	Textures common.TextureSet
}

// ImportedModel is the raw import output of a model file, before bounds are derived.
type ImportedModel struct {
	// Name is the model identifier, usually the source path.
	Name string

	// Meshes are the meshes in source order.
	Meshes []ImportedMesh

	// TextureCount is the number of textures the model references.
	TextureCount int
}

// MaterialFromName infers the material of a mesh from its name: any name containing
// "transparent" (ignoring case) is Transparent, everything else Opaque.
func MaterialFromName(name string) common.MaterialType {
	if strings.Contains(strings.ToLower(name), "transparent") {
		return common.MaterialTransparent
	}
	return common.MaterialOpaque
}
