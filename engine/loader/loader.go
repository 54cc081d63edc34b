// Package loader imports model files into engine models: glTF and GLB through qmuntal/gltf, and
// procedural geometry registered in memory under a "mem:" path.
package loader

import (
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/Carmen-Shannon/oxy-cluster/common"
	"github.com/Carmen-Shannon/oxy-cluster/engine/model"
)

// MemoryScheme prefixes the source path of models served by the in-memory backend.
const MemoryScheme = "mem:"

// loader is the implementation of the Loader interface.
type loader struct {
	mu sync.RWMutex

	modelCache map[string]model.Model

	gltf   loaderBackend
	memory *memoryLoaderBackend
	log    *slog.Logger
}

// Loader defines the public-facing interface for loading and caching 3D models.
// It abstracts the file format behind a backend chosen from the path and
// manages a cache of previously loaded models. It is safe for concurrent use.
type Loader interface {
	// Load imports a model and caches the result.
	// If the model is already cached (by path), the cached version is returned.
	// The backend is selected from the path: ".gltf"/".glb" use the glTF backend and a
	// "mem:" prefix the in-memory backend.
	//
	// Parameters:
	//   - path: the model path
	//
	// Returns:
	//   - model.Model: the loaded and cached model
	//   - error: an error wrapping common.ErrAssetLoad if loading fails or the model has no meshes
	Load(path string) (model.Model, error)

	// LoadReader imports a glTF or GLB stream and caches it by the given name.
	//
	// Parameters:
	//   - name: the cache key for the loaded model
	//   - r: the reader providing model data
	//
	// Returns:
	//   - model.Model: the loaded model
	//   - error: an error wrapping common.ErrAssetLoad if loading fails
	LoadReader(name string, r io.Reader) (model.Model, error)

	// Register adds a procedural model to the in-memory backend, loadable as "mem:<name>".
	//
	// Parameters:
	//   - name: the name without the "mem:" prefix
	//   - imported: the model data
	Register(name string, imported *model.ImportedModel)

	// Get retrieves a cached model by path. Returns nil if not found.
	//
	// Parameters:
	//   - path: the cache key to look up
	//
	// Returns:
	//   - model.Model: the cached model or nil
	Get(path string) model.Model

	// Models returns a copy of the model cache.
	//
	// Returns:
	//   - map[string]model.Model: all cached models keyed by path
	Models() map[string]model.Model
}

var _ Loader = &loader{}

// NewLoader creates a new Loader with both backends and the options applied.
//
// Parameters:
//   - options: a variadic list of LoaderBuilderOption functions to configure the Loader
//
// Returns:
//   - Loader: a new instance of Loader
func NewLoader(options ...LoaderBuilderOption) Loader {
	l := &loader{
		modelCache: make(map[string]model.Model),
		gltf:       newGLTFLoaderBackend(),
		memory:     newMemoryLoaderBackend(),
		log:        common.ComponentLogger("loader"),
	}
	for _, option := range options {
		option(l)
	}
	return l
}

func (l *loader) Load(path string) (model.Model, error) {
	if cached := l.Get(path); cached != nil {
		return cached, nil
	}

	backend, err := l.resolveBackend(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}

	imported, err := backend.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w: %w", path, common.ErrAssetLoad, err)
	}
	return l.store(path, imported)
}

func (l *loader) LoadReader(name string, r io.Reader) (model.Model, error) {
	if cached := l.Get(name); cached != nil {
		return cached, nil
	}

	imported, err := l.gltf.LoadReader(name, r)
	if err != nil {
		return nil, fmt.Errorf("failed to load from reader %q: %w: %w", name, common.ErrAssetLoad, err)
	}
	return l.store(name, imported)
}

func (l *loader) Register(name string, imported *model.ImportedModel) {
	l.memory.register(name, imported)
}

func (l *loader) Get(path string) model.Model {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.modelCache[path]
}

func (l *loader) Models() map[string]model.Model {
	l.mu.RLock()
	defer l.mu.RUnlock()

	result := make(map[string]model.Model, len(l.modelCache))
	for k, v := range l.modelCache {
		result[k] = v
	}
	return result
}

// store validates an import, wraps it into a Model and caches it. When two goroutines load the
// same path concurrently the first stored model wins.
func (l *loader) store(key string, imported *model.ImportedModel) (model.Model, error) {
	if len(imported.Meshes) == 0 {
		return nil, fmt.Errorf("failed to load %s: model has no meshes: %w", key, common.ErrAssetLoad)
	}
	for i, mesh := range imported.Meshes {
		if len(mesh.Vertices) == 0 {
			return nil, fmt.Errorf("failed to load %s: mesh %d (%q) has no vertices: %w", key, i, mesh.Name, common.ErrAssetLoad)
		}
		for _, idx := range mesh.Indices {
			if int(idx) >= len(mesh.Vertices) {
				return nil, fmt.Errorf("failed to load %s: mesh %d (%q) index %d exceeds %d vertices: %w",
					key, i, mesh.Name, idx, len(mesh.Vertices), common.ErrAssetLoad)
			}
		}
	}

	m := model.FromImported(*imported)

	l.mu.Lock()
	defer l.mu.Unlock()
	if cached, ok := l.modelCache[key]; ok {
		return cached, nil
	}
	l.modelCache[key] = m
	l.log.Debug("model loaded",
		slog.String("path", key),
		slog.Int("meshes", m.MeshCount()),
		slog.Int("triangles", m.TriangleCount()),
		slog.Int("textures", m.TextureCount()))
	return m, nil
}

// resolveBackend selects an appropriate loader backend based on the path.
func (l *loader) resolveBackend(path string) (loaderBackend, error) {
	if strings.HasPrefix(path, MemoryScheme) {
		return l.memory, nil
	}
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".gltf", ".glb":
		return l.gltf, nil
	default:
		return nil, fmt.Errorf("unsupported model format %q: %w", ext, common.ErrAssetLoad)
	}
}
