package loader

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/qmuntal/gltf"

	"github.com/Carmen-Shannon/oxy-cluster/engine/model"
)

// gltfLoaderBackendImpl is the implementation of gltfLoaderBackend.
type gltfLoaderBackendImpl struct{}

// gltfLoaderBackend is a loaderBackend implementation for glTF/GLB files.
// Documents are decoded by qmuntal/gltf; meshes and materials are extracted from the document.
type gltfLoaderBackend interface {
	loaderBackend
}

var _ gltfLoaderBackend = &gltfLoaderBackendImpl{}

// newGLTFLoaderBackend creates a new glTF loader backend.
//
// Returns:
//   - gltfLoaderBackend: the loader backend for glTF/GLB files
func newGLTFLoaderBackend() gltfLoaderBackend {
	return &gltfLoaderBackendImpl{}
}

func (b *gltfLoaderBackendImpl) Load(path string) (*model.ImportedModel, error) {
	doc, err := gltf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open gltf: %w", err)
	}
	return importDocument(doc, path)
}

func (b *gltfLoaderBackendImpl) LoadReader(name string, r io.Reader) (*model.ImportedModel, error) {
	doc := new(gltf.Document)
	if err := gltf.NewDecoder(r).Decode(doc); err != nil {
		return nil, fmt.Errorf("decode gltf: %w", err)
	}
	return importDocument(doc, name)
}

// importDocument extracts every mesh primitive of a decoded document.
func importDocument(doc *gltf.Document, fallbackPath string) (*model.ImportedModel, error) {
	materials := newGLTFMaterialExtractor(doc)
	meshes, err := newGLTFMeshExtractor(doc, materials).ExtractAllMeshes()
	if err != nil {
		return nil, fmt.Errorf("mesh extraction failed: %w", err)
	}
	return &model.ImportedModel{
		Name:         gltfModelName(doc, fallbackPath),
		Meshes:       meshes,
		TextureCount: len(doc.Textures),
	}, nil
}

// gltfModelName prefers the name of the first scene, then the file name without extension.
func gltfModelName(doc *gltf.Document, fallbackPath string) string {
	if len(doc.Scenes) > 0 && doc.Scenes[0].Name != "" {
		return doc.Scenes[0].Name
	}
	base := filepath.Base(fallbackPath)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
