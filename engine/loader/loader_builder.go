package loader

import (
	"github.com/Carmen-Shannon/oxy-cluster/engine/model"
)

// LoaderBuilderOption is a functional option for configuring a Loader via NewLoader.
type LoaderBuilderOption func(*loader)

// WithModel is an option builder that pre-populates the model cache with a model.
//
// Parameters:
//   - key: the cache key for the model
//   - model: the model to cache
//
// Returns:
//   - LoaderBuilderOption: a function that applies the model option to a loader
func WithModel(key string, model model.Model) LoaderBuilderOption {
	return func(l *loader) {
		l.modelCache[key] = model
	}
}

// WithProcedural is an option builder that registers a procedural model, loadable as "mem:<name>".
//
// Parameters:
//   - name: the name without the "mem:" prefix
//   - imported: the model data
//
// Returns:
//   - LoaderBuilderOption: a function that applies the procedural option to a loader
func WithProcedural(name string, imported *model.ImportedModel) LoaderBuilderOption {
	return func(l *loader) {
		l.memory.register(name, imported)
	}
}
