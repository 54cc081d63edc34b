// Package device owns every GPU resource of the engine behind integer handles and records compute work
// into command streams that validate buffer barriers before anything is submitted.
//
// Two backends implement Device: a WebGPU backend (cogentcore/webgpu) running the WGSL kernels on real
// hardware, and a simulated backend executing the same kernels' CPU bodies against host memory, which
// is what the tests and the command line simulator use.
package device

import (
	"fmt"
	"strings"
)

// Handle identifies a buffer owned by a Device. The zero Handle is never issued.
type Handle uint32

// InvalidHandle is the zero Handle.
const InvalidHandle Handle = 0

// WholeSize selects the remainder of a buffer from an offset in bindings and barriers.
const WholeSize uint64 = 0

// BackendType identifies the implementation behind a Device.
type BackendType int

const (
	// BackendTypeSimulated executes kernels on the CPU against host memory.
	BackendTypeSimulated BackendType = iota
	// BackendTypeWGPU executes WGSL kernels through WebGPU on a headless device.
	BackendTypeWGPU
)

func (b BackendType) String() string {
	switch b {
	case BackendTypeSimulated:
		return "simulated"
	case BackendTypeWGPU:
		return "wgpu"
	default:
		return fmt.Sprintf("BackendType(%d)", int(b))
	}
}

// ParseBackendType maps a backend name to its BackendType.
//
// Parameters:
//   - s: "simulated" (or "sim") or "wgpu"
//
// Returns:
//   - BackendType: the parsed backend
//   - bool: false when s names no backend
func ParseBackendType(s string) (BackendType, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "simulated", "sim", "":
		return BackendTypeSimulated, true
	case "wgpu", "webgpu":
		return BackendTypeWGPU, true
	}
	return BackendTypeSimulated, false
}

// BufferUsage describes how a buffer may be bound.
type BufferUsage uint32

const (
	BufferUsageStorage BufferUsage = 1 << iota
	BufferUsageUniform
	BufferUsageIndirect
	BufferUsageVertex
	BufferUsageIndex
	BufferUsageCopyDst
	BufferUsageCopySrc
)

// BufferWrite describes a single host-to-buffer upload at a byte offset.
type BufferWrite struct {
	Buffer Handle
	Offset uint64
	Data   []byte
}

// Device is the GPU collaborator of the engine. Buffers are addressed by Handle and freed with
// ReleaseBuffer or all at once by Release.
//
// Usage pattern:
//  1. Create buffers with CreateBuffer and fill them with WriteBuffer/WriteBuffers
//  2. Register every Kernel once with RegisterKernel
//  3. Per frame, open a CommandStream with BeginCommands, record dispatches and barriers, then Submit
type Device interface {
	// Backend reports which implementation backs this device.
	Backend() BackendType

	// Label returns the debug label of the device.
	Label() string

	// CreateBuffer allocates a zero-initialised buffer.
	//
	// Parameters:
	//   - label: a debug label
	//   - size: the size in bytes, rounded up to a multiple of 4
	//   - usage: the allowed bindings of the buffer
	//
	// Returns:
	//   - Handle: the handle of the new buffer
	//   - error: an error wrapping common.ErrResourceExhausted or a backend error
	CreateBuffer(label string, size uint64, usage BufferUsage) (Handle, error)

	// ReleaseBuffer frees a buffer. Releasing an unknown handle is a no-op.
	ReleaseBuffer(h Handle)

	// BufferSize returns the size of a buffer, or 0 for an unknown handle.
	BufferSize(h Handle) uint64

	// WriteBuffer uploads data into a buffer at offset.
	//
	// Parameters:
	//   - h: the destination buffer
	//   - offset: the byte offset, a multiple of 4
	//   - data: the bytes to upload
	//
	// Returns:
	//   - error: an error wrapping common.ErrIndexOutOfRange when the write exceeds the buffer
	WriteBuffer(h Handle, offset uint64, data []byte) error

	// WriteBuffers applies a batch of uploads in order, stopping at the first failure.
	WriteBuffers(writes []BufferWrite) error

	// RegisterKernel compiles a kernel so it can be dispatched. Registering twice is a no-op.
	RegisterKernel(k *Kernel) error

	// BeginCommands opens a command stream.
	//
	// Parameters:
	//   - label: a debug label for the stream
	//
	// Returns:
	//   - CommandStream: the open stream
	//   - error: a backend error
	BeginCommands(label string) (CommandStream, error)

	// Release frees every buffer and kernel owned by the device.
	Release()
}

// Readback is implemented by devices that can copy buffer contents back to the host.
type Readback interface {
	// ReadBuffer returns a copy of size bytes at offset (WholeSize reads to the end).
	ReadBuffer(h Handle, offset, size uint64) ([]byte, error)
}

// NewDevice creates a Device for the requested backend.
//
// Parameters:
//   - backend: the backend to create
//   - options: DeviceBuilderOption values applied before the backend is initialised
//
// Returns:
//   - Device: the created device
//   - error: an error if the backend could not be initialised
func NewDevice(backend BackendType, options ...DeviceBuilderOption) (Device, error) {
	cfg := &deviceConfig{
		label:    "oxy-cluster",
		workers:  defaultWorkers(),
		validate: true,
	}
	for _, option := range options {
		option(cfg)
	}

	switch backend {
	case BackendTypeSimulated:
		return newSimDevice(cfg), nil
	case BackendTypeWGPU:
		return newWGPUDevice(cfg)
	default:
		return nil, fmt.Errorf("device: unknown backend %v", backend)
	}
}

// alignSize rounds a buffer size up to the next multiple of 4.
func alignSize(size uint64) uint64 {
	return (size + 3) &^ 3
}

// resolveRange turns an (offset, size) pair with WholeSize into an explicit [offset, end) range.
func resolveRange(offset, size, bufferSize uint64) (uint64, uint64) {
	if size == WholeSize {
		if offset > bufferSize {
			return offset, offset
		}
		return offset, bufferSize
	}
	return offset, offset + size
}
