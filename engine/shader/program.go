// Package shader pre-processes the WGSL of compute kernels and reads the metadata a device needs
// to build them: the entry point, the workgroup size and the bind group 0 layout with the minimum
// binding size of every slot.
package shader

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-cluster/common"
	"github.com/Carmen-Shannon/oxy-cluster/engine/device"
)

// Program is a pre-processed compute kernel source.
type Program struct {
	// Source is the WGSL with every annotation replaced.
	Source string
	// EntryPoint is the single @compute function.
	EntryPoint string
	// WorkgroupSize is the @workgroup_size of the entry point.
	WorkgroupSize [3]uint32
	// Layout lists the bind group 0 entries in slot order.
	Layout []device.BindingKind
	// MinBindingSizes holds, per slot, the size of the bound type (one element for runtime arrays).
	MinBindingSizes []uint64

	structs map[string]typeLayout
}

// Compile pre-processes source and validates that it declares one compute entry point and a dense
// bind group 0 (slots 0..n-1, no other groups).
//
// Parameters:
//   - source: annotated WGSL source
//   - options: struct registrations for @oxy:include and group annotation types
//
// Returns:
//   - Program: the processed program
//   - error: common.ErrConfig wrapping the first problem found
func Compile(source string, options ...PreProcessorOption) (Program, error) {
	pp := NewPreProcessor(options...)
	processed, err := pp.Process(source)
	if err != nil {
		return Program{}, fmt.Errorf("shader: %w: %w", common.ErrConfig, err)
	}
	clean := stripComments(processed)

	p := Program{
		Source:        processed,
		WorkgroupSize: parseWorkgroupSize(clean),
		structs:       computeStructSizes(parseStructBlocks(clean)),
	}

	entries := parseComputeEntryPoints(clean)
	if len(entries) != 1 {
		return Program{}, fmt.Errorf("shader: want 1 @compute entry point, found %d: %w", len(entries), common.ErrConfig)
	}
	p.EntryPoint = entries[0]

	bindings := parseBindings(clean)
	p.Layout = make([]device.BindingKind, len(bindings))
	p.MinBindingSizes = make([]uint64, len(bindings))
	seen := make([]bool, len(bindings))
	for _, b := range bindings {
		if b.group != 0 || b.binding >= len(bindings) || seen[b.binding] {
			return Program{}, fmt.Errorf("shader: binding %s at @group(%d) @binding(%d) is not in a dense group 0: %w",
				b.varName, b.group, b.binding, common.ErrConfig)
		}
		kind, ok := bindingKind(b.addressSpace)
		if !ok {
			return Program{}, fmt.Errorf("shader: binding %s has address space %q: %w", b.varName, b.addressSpace, common.ErrConfig)
		}
		seen[b.binding] = true
		p.Layout[b.binding] = kind
		if l, ok := resolveTypeLayout(b.typeName, p.structs); ok {
			p.MinBindingSizes[b.binding] = l.size
		}
	}
	return p, nil
}

// MustCompile is like Compile but panics on error. It is meant for embedded kernel sources.
func MustCompile(source string, options ...PreProcessorOption) Program {
	p, err := Compile(source, options...)
	if err != nil {
		panic(err)
	}
	return p
}

// StructSize returns the host-shareable size of a struct declared or included in the program.
//
// Parameters:
//   - name: the WGSL struct name
//
// Returns:
//   - uint64: the size in bytes
//   - bool: false when the struct is unknown or has unresolvable fields
func (p Program) StructSize(name string) (uint64, bool) {
	l, ok := p.structs[name]
	return l.size, ok
}

// Kernel builds a device kernel from the program.
//
// Parameters:
//   - label: the kernel label
//   - invoke: the simulated body of one invocation
//
// Returns:
//   - *device.Kernel: the kernel, with Ordered unset
func (p Program) Kernel(label string, invoke func(gid [3]uint32, mem device.Memory)) *device.Kernel {
	return &device.Kernel{
		Label:           label,
		Source:          p.Source,
		EntryPoint:      p.EntryPoint,
		WorkgroupSize:   p.WorkgroupSize,
		Layout:          p.Layout,
		MinBindingSizes: p.MinBindingSizes,
		Invoke:          invoke,
	}
}

// bindingKind maps a var<> address space with spaces removed to a binding kind.
func bindingKind(space string) (device.BindingKind, bool) {
	switch space {
	case "uniform":
		return device.BindingUniform, true
	case "storage", "storage,read":
		return device.BindingStorageRead, true
	case "storage,read_write":
		return device.BindingStorageReadWrite, true
	}
	return 0, false
}
