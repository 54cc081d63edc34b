package shader

// PreProcessorOption configures a PreProcessor.
type PreProcessorOption func(*preProcessor)

// WithStruct registers a WGSL struct source under key for @oxy:include and as a group annotation
// type. The type name is the first struct declared in source.
//
// Parameters:
//   - key: the annotation argument naming the struct
//   - source: the embedded WGSL struct definition
//
// Returns:
//   - PreProcessorOption: a function that applies the struct registration
func WithStruct(key, source string) PreProcessorOption {
	return func(p *preProcessor) {
		entry := registryEntry{Source: source}
		if structs := parseStructBlocks(stripComments(source)); len(structs) > 0 {
			entry.Type = structs[0].name
		}
		p.structRegistry[key] = entry
	}
}
