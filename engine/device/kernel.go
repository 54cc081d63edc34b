package device

// BindingKind is the WGSL address space of a kernel binding.
type BindingKind int

const (
	// BindingUniform is a var<uniform> binding.
	BindingUniform BindingKind = iota
	// BindingStorageRead is a var<storage, read> binding.
	BindingStorageRead
	// BindingStorageReadWrite is a var<storage, read_write> binding, including atomics.
	BindingStorageReadWrite
)

// Kernel is a compute program with two bodies: WGSL source for the WebGPU backend and an equivalent
// Go function executed per invocation by the simulated backend.
type Kernel struct {
	// Label names the kernel in logs and pipeline labels.
	Label string
	// Source is the WGSL module source.
	Source string
	// EntryPoint is the @compute function name in Source.
	EntryPoint string
	// WorkgroupSize must match the @workgroup_size attribute of EntryPoint.
	WorkgroupSize [3]uint32
	// Layout lists the bind group 0 entries in slot order.
	Layout []BindingKind
	// MinBindingSizes optionally holds the smallest valid binding size per slot.
	MinBindingSizes []uint64
	// Ordered forces the simulated backend to run invocations one at a time in linear
	// global-id order (x fastest, then y, then z), making atomic reservations reproducible.
	Ordered bool
	// Invoke runs one invocation on the simulated backend.
	Invoke func(gid [3]uint32, mem Memory)
}

// Invocations returns the number of invocations a dispatch of groups workgroups runs.
func (k *Kernel) Invocations(groups [3]uint32) uint64 {
	n := uint64(1)
	for i := range 3 {
		n *= uint64(groups[i]) * uint64(k.WorkgroupSize[i])
	}
	return n
}

// Memory is the view of bound buffers a simulated kernel invocation works on.
// Invocations of one dispatch may run concurrently; each must write only its own bytes except
// through the atomic helpers.
type Memory interface {
	// Bytes returns the bound range of the buffer at slot.
	Bytes(slot int) []byte

	// AtomicAdd adds delta to the u32 at byte offset of slot and returns the previous value.
	AtomicAdd(slot int, offset int, delta uint32) uint32

	// AtomicMax stores max(current, v) into the u32 at byte offset of slot and returns the previous value.
	AtomicMax(slot int, offset int, v uint32) uint32
}

// Binding attaches a buffer range to a kernel slot (or declares a consumer's read in CommandStream.Use).
type Binding struct {
	Slot   int
	Buffer Handle
	Offset uint64
	Size   uint64 // WholeSize for the rest of the buffer
	Access Access
}
