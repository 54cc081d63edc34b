package shader

import (
	"fmt"
	"strings"
)

// preProcessor is the implementation of the PreProcessor interface.
type preProcessor struct {
	// structRegistry maps struct keys to their WGSL source and type name.
	structRegistry map[string]registryEntry

	// declarations accumulates the group annotations of the last Process call.
	declarations []Annotation
}

// registryEntry pairs an embedded WGSL struct source with the struct's type name.
type registryEntry struct {
	Source string
	Type   string
}

// PreProcessor replaces @oxy: annotations in WGSL source with injected struct sources and
// generated binding declarations.
type PreProcessor interface {
	// Process pre-processes source. The declarations list is reset at the start of each call.
	//
	// Parameters:
	//   - source: WGSL source containing annotations
	//
	// Returns:
	//   - string: the processed WGSL source
	//   - error: an error if an annotation is malformed or references an unknown struct key
	Process(source string) (string, error)

	// Declarations returns the group annotations of the last Process call in source order.
	Declarations() []Annotation
}

var _ PreProcessor = &preProcessor{}

// NewPreProcessor creates a PreProcessor with the given struct registrations.
//
// Parameters:
//   - options: functional options registering structs
//
// Returns:
//   - PreProcessor: a ready-to-use pre-processor
func NewPreProcessor(options ...PreProcessorOption) PreProcessor {
	p := &preProcessor{structRegistry: make(map[string]registryEntry)}
	for _, opt := range options {
		opt(p)
	}
	return p
}

func (p *preProcessor) Process(source string) (string, error) {
	p.declarations = p.declarations[:0]

	lines := strings.Split(source, "\n")
	out := make([]string, 0, len(lines))
	included := make(map[string]bool)

	for i, line := range lines {
		a, err := parseAnnotation(line, i+1)
		if err != nil {
			return "", err
		}
		if a == nil {
			out = append(out, line)
			continue
		}

		switch a.Type {
		case AnnotationTypeInclude:
			entry, ok := p.structRegistry[a.Args[0]]
			if !ok {
				return "", fmt.Errorf("line %d: unknown @oxy:include argument %q", a.Line, a.Args[0])
			}
			// A struct may be declared only once per module.
			if !included[a.Args[0]] {
				out = append(out, strings.TrimRight(entry.Source, "\n"))
				included[a.Args[0]] = true
			}

		case AnnotationTypeBindingGroup:
			varName := a.Args[1]
			wgslType := p.resolveType(a.Args[2])
			out = append(out, fmt.Sprintf("@group(%d) @binding(%d) %s %s: %s;",
				a.Group, a.Binding, addressSpaces[a.Space()], varName, wgslType))
			p.declarations = append(p.declarations, *a)
		}
	}
	return strings.Join(out, "\n"), nil
}

// resolveType maps a registered struct key, or array<key>, to its WGSL type name. Other types
// pass through unchanged.
func (p *preProcessor) resolveType(t string) string {
	if inner, ok := strings.CutPrefix(t, "array<"); ok {
		inner = strings.TrimSuffix(inner, ">")
		if entry, ok := p.structRegistry[inner]; ok {
			return fmt.Sprintf("array<%s>", entry.Type)
		}
		return t
	}
	if entry, ok := p.structRegistry[t]; ok {
		return entry.Type
	}
	return t
}

func (p *preProcessor) Declarations() []Annotation {
	return p.declarations
}
