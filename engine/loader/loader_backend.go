package loader

import (
	"io"

	"github.com/Carmen-Shannon/oxy-cluster/engine/model"
)

// loaderBackend defines the generic interface for importing models from files or streams.
// Concrete implementations (gltfLoaderBackend, memoryLoaderBackend) handle format-specific details.
type loaderBackend interface {
	// Load performs a model import from the given path.
	//
	// Parameters:
	//   - path: the path to load
	//
	// Returns:
	//   - *model.ImportedModel: the imported model data
	//   - error: error if loading fails
	Load(path string) (*model.ImportedModel, error)

	// LoadReader imports a model from a reader stream.
	//
	// Parameters:
	//   - name: the name given to the imported model
	//   - r: the reader providing model data
	//
	// Returns:
	//   - *model.ImportedModel: the imported model data
	//   - error: error if loading fails
	LoadReader(name string, r io.Reader) (*model.ImportedModel, error)
}
