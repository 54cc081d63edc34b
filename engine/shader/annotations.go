// annotations.go defines the annotations of the kernel pre-processor. Annotations are single-line
// WGSL comments prefixed with @oxy: that inject shared struct definitions and generate bind group
// declarations, so a kernel's binding layout is read from its source instead of kept by hand.
package shader

import (
	"fmt"
	"strconv"
	"strings"
)

// annotationPrefix is the marker that identifies an annotation within a WGSL comment line.
const annotationPrefix = "@oxy:"

// AnnotationType identifies the kind of annotation parsed from a WGSL comment line.
type AnnotationType string

const (
	// AnnotationTypeInclude injects the WGSL source of a registered struct at the annotation site.
	//
	// Syntax: //@oxy:include <struct_key>
	//
	// Example: //@oxy:include point_light
	AnnotationTypeInclude AnnotationType = "include"

	// AnnotationTypeBindingGroup generates a @group/@binding variable declaration and records the
	// binding in the kernel layout. The type is a registered struct key, array<key>, or any raw
	// WGSL type.
	//
	// Syntax: //@oxy:group <group> <binding> <address_space> <var_name> <type>
	//
	// Example: //@oxy:group 0 1 storage_read lights array<point_light>
	AnnotationTypeBindingGroup AnnotationType = "group"
)

// AddressSpace is the address space argument of a group annotation.
type AddressSpace string

const (
	AddressSpaceUniform          AddressSpace = "uniform"
	AddressSpaceStorageRead      AddressSpace = "storage_read"
	AddressSpaceStorageReadWrite AddressSpace = "storage_read_write"
)

// addressSpaces maps address space arguments to their WGSL var<> syntax.
var addressSpaces = map[AddressSpace]string{
	AddressSpaceUniform:          "var<uniform>",
	AddressSpaceStorageRead:      "var<storage, read>",
	AddressSpaceStorageReadWrite: "var<storage, read_write>",
}

// Annotation is one parsed @oxy: annotation.
type Annotation struct {
	Type AnnotationType

	// Args holds the annotation's arguments:
	//   - include: [0] = struct key
	//   - group:   [0] = address space, [1] = var name, [2] = type
	Args []string

	// Line is the 1-based source line, for error reporting.
	Line int

	// Group and Binding are set for group annotations.
	Group   int
	Binding int
}

// Space returns the address space of a group annotation.
func (a Annotation) Space() AddressSpace {
	return AddressSpace(a.Args[0])
}

// parseAnnotation parses a single line as an annotation. Lines that are not annotations return
// nil without error.
//
// Parameters:
//   - line: one line of WGSL source
//   - lineNum: the 1-based line number
//
// Returns:
//   - *Annotation: the parsed annotation, or nil
//   - error: an error if the line is a malformed annotation
func parseAnnotation(line string, lineNum int) (*Annotation, error) {
	trimmed := strings.TrimSpace(line)
	rest, ok := strings.CutPrefix(trimmed, "//")
	if !ok {
		return nil, nil
	}
	rest, ok = strings.CutPrefix(strings.TrimSpace(rest), annotationPrefix)
	if !ok {
		return nil, nil
	}

	fields := strings.Fields(rest)
	if len(fields) == 0 {
		return nil, fmt.Errorf("line %d: empty annotation", lineNum)
	}
	a := &Annotation{Type: AnnotationType(fields[0]), Line: lineNum}
	args := fields[1:]

	switch a.Type {
	case AnnotationTypeInclude:
		if len(args) != 1 {
			return nil, fmt.Errorf("line %d: @oxy:include takes 1 argument, got %d", lineNum, len(args))
		}
		a.Args = args

	case AnnotationTypeBindingGroup:
		if len(args) != 5 {
			return nil, fmt.Errorf("line %d: @oxy:group takes 5 arguments, got %d", lineNum, len(args))
		}
		group, err := strconv.Atoi(args[0])
		if err != nil || group < 0 {
			return nil, fmt.Errorf("line %d: invalid group %q", lineNum, args[0])
		}
		binding, err := strconv.Atoi(args[1])
		if err != nil || binding < 0 {
			return nil, fmt.Errorf("line %d: invalid binding %q", lineNum, args[1])
		}
		if _, ok := addressSpaces[AddressSpace(args[2])]; !ok {
			return nil, fmt.Errorf("line %d: unknown address space %q", lineNum, args[2])
		}
		a.Group, a.Binding = group, binding
		a.Args = args[2:]

	default:
		return nil, fmt.Errorf("line %d: unknown annotation type %q", lineNum, a.Type)
	}
	return a, nil
}
