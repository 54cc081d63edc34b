// Package frame carries the explicit per-frame state of the engine: which frame-in-flight slot is
// being prepared, whether uploads are still allowed, and the command stream the passes record into.
package frame

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-cluster/common"
	"github.com/Carmen-Shannon/oxy-cluster/engine/device"
)

// MaxFramesInFlight bounds the configurable number of frames in flight.
const MaxFramesInFlight = 4

// DefaultFramesInFlight is the number of frames in flight used when none is configured.
const DefaultFramesInFlight = 2

// Context is the state of one frame being prepared. Slot selects the frame-in-flight copy of every
// per-frame buffer; Number counts frames since the Counter was created.
//
// Passes upload their inputs and record their commands through the Context. An upload to a buffer
// that an already recorded command of the same frame references fails with common.ErrGPUSync,
// because the write would land before that command executes.
type Context struct {
	Slot   int
	Number uint64

	dev        device.Device
	stream     device.CommandStream
	referenced map[device.Handle]struct{}
	submitted  bool
}

// Device returns the device the frame records on.
func (c *Context) Device() device.Device {
	return c.dev
}

// Submitted reports whether Submit or Discard has been called.
func (c *Context) Submitted() bool {
	return c.submitted
}

// Upload applies host writes to per-frame buffers.
//
// Parameters:
//   - writes: the uploads, applied in order
//
// Returns:
//   - error: an error wrapping common.ErrGPUSync when the frame is submitted or a target buffer
//     is already referenced by a recorded command
func (c *Context) Upload(writes ...device.BufferWrite) error {
	if c.submitted {
		return fmt.Errorf("%w: upload after frame %d was submitted", common.ErrGPUSync, c.Number)
	}
	for _, w := range writes {
		if _, ok := c.referenced[w.Buffer]; ok {
			return fmt.Errorf("%w: upload to buffer %d after a command of frame %d referenced it",
				common.ErrGPUSync, w.Buffer, c.Number)
		}
	}
	if len(writes) == 0 {
		return nil
	}
	return c.dev.WriteBuffers(writes)
}

// commands returns the frame's command stream, opening it on first use.
func (c *Context) commands() (device.CommandStream, error) {
	if c.submitted {
		return nil, fmt.Errorf("%w: frame %d already submitted", common.ErrGPUSync, c.Number)
	}
	if c.stream == nil {
		cs, err := c.dev.BeginCommands(fmt.Sprintf("frame %d (slot %d)", c.Number, c.Slot))
		if err != nil {
			return nil, err
		}
		c.stream = cs
	}
	return c.stream, nil
}

func (c *Context) reference(bindings []device.Binding) {
	if c.referenced == nil {
		c.referenced = make(map[device.Handle]struct{})
	}
	for _, b := range bindings {
		c.referenced[b.Buffer] = struct{}{}
	}
}

// Dispatch records a compute dispatch into the frame's stream.
//
// Parameters:
//   - k: a registered kernel
//   - bindings: the kernel bindings
//   - groups: the workgroup counts
//
// Returns:
//   - error: a validation error from the stream
func (c *Context) Dispatch(k *device.Kernel, bindings []device.Binding, groups [3]uint32) error {
	cs, err := c.commands()
	if err != nil {
		return err
	}
	if err := cs.Dispatch(k, bindings, groups); err != nil {
		return err
	}
	c.reference(bindings)
	return nil
}

// Barrier records buffer barriers into the frame's stream.
func (c *Context) Barrier(barriers ...device.BufferBarrier) error {
	cs, err := c.commands()
	if err != nil {
		return err
	}
	return cs.Barrier(barriers...)
}

// Use declares a consumer outside this module reading the bound ranges at stage.
func (c *Context) Use(stage device.Stage, bindings []device.Binding) error {
	cs, err := c.commands()
	if err != nil {
		return err
	}
	if err := cs.Use(stage, bindings); err != nil {
		return err
	}
	c.reference(bindings)
	return nil
}

// Submit submits the recorded commands, if any, and ends the frame.
// A frame whose stream failed validation is dropped and the validation error returned.
//
// Returns:
//   - error: the stream's first failure, or common.ErrGPUSync on a second Submit
func (c *Context) Submit() error {
	if c.submitted {
		return fmt.Errorf("%w: frame %d already submitted", common.ErrGPUSync, c.Number)
	}
	c.submitted = true
	if c.stream == nil {
		return nil
	}
	return c.stream.Submit()
}

// Discard abandons the frame without submitting.
func (c *Context) Discard() {
	if c.stream != nil && !c.submitted {
		c.stream.Discard()
	}
	c.submitted = true
}

// Counter hands out frame contexts, cycling through the frame-in-flight slots.
type Counter struct {
	framesInFlight int
	next           uint64
}

// NewCounter creates a Counter for n frames in flight.
//
// Parameters:
//   - n: frames in flight, within [1, MaxFramesInFlight]
//
// Returns:
//   - *Counter: the counter
//   - error: an error wrapping common.ErrConfig for out-of-range n
func NewCounter(n int) (*Counter, error) {
	if n < 1 || n > MaxFramesInFlight {
		return nil, fmt.Errorf("frame: %d frames in flight not in [1, %d]: %w", n, MaxFramesInFlight, common.ErrConfig)
	}
	return &Counter{framesInFlight: n}, nil
}

// FramesInFlight returns the number of slots.
func (c *Counter) FramesInFlight() int {
	return c.framesInFlight
}

// Next returns the context of the next frame. Slots wrap: frame k uses slot k mod N.
//
// Parameters:
//   - dev: the device the frame records on
//
// Returns:
//   - *Context: a fresh context with no recorded commands
func (c *Counter) Next(dev device.Device) *Context {
	ctx := &Context{
		Slot:   int(c.next % uint64(c.framesInFlight)),
		Number: c.next,
		dev:    dev,
	}
	c.next++
	return ctx
}

// At returns a context for an explicit slot without advancing the counter. Used by callers that
// drive the frame-in-flight index themselves.
//
// Parameters:
//   - dev: the device the frame records on
//   - slot: the frame-in-flight slot
//
// Returns:
//   - *Context: a fresh context with no recorded commands
//   - error: an *common.IndexError for an invalid slot
func (c *Counter) At(dev device.Device, slot int) (*Context, error) {
	if err := common.CheckIndex("frame slot", slot, c.framesInFlight); err != nil {
		return nil, err
	}
	return &Context{Slot: slot, Number: c.next, dev: dev}, nil
}
