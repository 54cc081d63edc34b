package device

// CommandStream records GPU work for one submission. Commands are validated against the barriers
// recorded before them; the first failure poisons the stream and is returned again by Submit,
// which then submits nothing.
type CommandStream interface {
	// Label returns the debug label of the stream.
	Label() string

	// Dispatch records a compute dispatch of groups workgroups.
	//
	// Parameters:
	//   - k: a registered kernel
	//   - bindings: the buffers bound to the kernel's slots, with the access each slot performs
	//   - groups: the workgroup counts along x, y and z
	//
	// Returns:
	//   - error: an error wrapping common.ErrGPUSync on a missing barrier
	Dispatch(k *Kernel, bindings []Binding, groups [3]uint32) error

	// Barrier records buffer barriers.
	Barrier(barriers ...BufferBarrier) error

	// Use declares that a stage outside this module (a draw or shading pass) consumes the bound ranges.
	// The declaration is validated like a dispatch but records no work.
	Use(stage Stage, bindings []Binding) error

	// Submit submits the recorded work. A stream can be submitted once.
	Submit() error

	// Discard drops the recorded work without submitting it.
	Discard()
}
