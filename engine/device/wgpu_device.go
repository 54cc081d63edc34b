package device

import (
	"fmt"
	"log/slog"
	"runtime"
	"sync"

	"github.com/Carmen-Shannon/oxy-cluster/common"
	"github.com/cogentcore/webgpu/wgpu"
)

type wgpuBuffer struct {
	label  string
	size   uint64
	buffer *wgpu.Buffer
}

type wgpuKernel struct {
	layout   *wgpu.BindGroupLayout
	pipeline *wgpu.ComputePipeline
}

// wgpuDevice runs kernels through WebGPU on a headless device. WebGPU inserts the actual pipeline
// barriers itself; recorded BufferBarriers only feed the hazard validation.
type wgpuDevice struct {
	mu  sync.Mutex
	cfg *deviceConfig
	log *slog.Logger

	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpu.Queue

	buffers *arena[*wgpuBuffer]
	kernels map[*Kernel]*wgpuKernel
}

var _ Device = &wgpuDevice{}

func newWGPUDevice(cfg *deviceConfig) (*wgpuDevice, error) {
	runtime.LockOSThread()
	w := &wgpuDevice{
		cfg:      cfg,
		log:      common.ComponentLogger("device").With(slog.String("backend", BackendTypeWGPU.String())),
		instance: wgpu.CreateInstance(nil),
		buffers:  newArena[*wgpuBuffer](),
		kernels:  make(map[*Kernel]*wgpuKernel),
	}

	a, err := w.instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		ForceFallbackAdapter: cfg.forceFallbackAdapter,
	})
	if err != nil {
		w.instance.Release()
		return nil, fmt.Errorf("device: request adapter: %w", err)
	}
	w.adapter = a

	d, err := a.RequestDevice(&wgpu.DeviceDescriptor{
		Label: cfg.label,
		RequiredLimits: &wgpu.RequiredLimits{
			Limits: wgpu.DefaultLimits(),
		},
	})
	if err != nil {
		w.adapter.Release()
		w.instance.Release()
		return nil, fmt.Errorf("device: request device: %w", err)
	}
	w.device = d
	w.queue = d.GetQueue()

	w.log.Info("device created", slog.String("label", cfg.label), slog.Bool("fallback", cfg.forceFallbackAdapter))
	return w, nil
}

func (w *wgpuDevice) Backend() BackendType {
	return BackendTypeWGPU
}

func (w *wgpuDevice) Label() string {
	return w.cfg.label
}

func toWGPUUsage(u BufferUsage) wgpu.BufferUsage {
	var out wgpu.BufferUsage
	pairs := []struct {
		from BufferUsage
		to   wgpu.BufferUsage
	}{
		{BufferUsageStorage, wgpu.BufferUsageStorage},
		{BufferUsageUniform, wgpu.BufferUsageUniform},
		{BufferUsageIndirect, wgpu.BufferUsageIndirect},
		{BufferUsageVertex, wgpu.BufferUsageVertex},
		{BufferUsageIndex, wgpu.BufferUsageIndex},
		{BufferUsageCopyDst, wgpu.BufferUsageCopyDst},
		{BufferUsageCopySrc, wgpu.BufferUsageCopySrc},
	}
	for _, p := range pairs {
		if u&p.from != 0 {
			out |= p.to
		}
	}
	return out
}

func (w *wgpuDevice) CreateBuffer(label string, size uint64, usage BufferUsage) (Handle, error) {
	size = alignSize(max(size, 4))
	if size > MaxBufferSize {
		return InvalidHandle, fmt.Errorf("device: create buffer %q of %d bytes: %w", label, size, common.ErrResourceExhausted)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	buf, err := w.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label:            label,
		Size:             size,
		Usage:            toWGPUUsage(usage | BufferUsageCopyDst),
		MappedAtCreation: false,
	})
	if err != nil {
		return InvalidHandle, fmt.Errorf("device: create buffer %q: %w", label, err)
	}
	return w.buffers.insert(&wgpuBuffer{label: label, size: size, buffer: buf}), nil
}

func (w *wgpuDevice) ReleaseBuffer(h Handle) {
	if b, ok := w.buffers.remove(h); ok {
		b.buffer.Release()
	}
}

func (w *wgpuDevice) BufferSize(h Handle) uint64 {
	if b, ok := w.buffers.get(h); ok {
		return b.size
	}
	return 0
}

func (w *wgpuDevice) bufferLabel(h Handle) string {
	if b, ok := w.buffers.get(h); ok {
		return fmt.Sprintf("%q", b.label)
	}
	return fmt.Sprintf("buffer#%d", h)
}

func (w *wgpuDevice) WriteBuffer(h Handle, offset uint64, data []byte) error {
	b, ok := w.buffers.get(h)
	if !ok {
		return fmt.Errorf("device: write to unknown buffer %d: %w", h, common.ErrIndexOutOfRange)
	}
	if offset+uint64(len(data)) > b.size {
		return fmt.Errorf("device: write [%d, %d) to %q of %d bytes: %w",
			offset, offset+uint64(len(data)), b.label, b.size, common.ErrIndexOutOfRange)
	}
	if len(data) == 0 {
		return nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.queue.WriteBuffer(b.buffer, offset, data)
	return nil
}

func (w *wgpuDevice) WriteBuffers(writes []BufferWrite) error {
	for _, wr := range writes {
		if err := w.WriteBuffer(wr.Buffer, wr.Offset, wr.Data); err != nil {
			return err
		}
	}
	return nil
}

func layoutEntry(slot int, kind BindingKind) wgpu.BindGroupLayoutEntry {
	entry := wgpu.BindGroupLayoutEntry{
		Binding:    uint32(slot),
		Visibility: wgpu.ShaderStageCompute,
	}
	switch kind {
	case BindingUniform:
		entry.Buffer.Type = wgpu.BufferBindingTypeUniform
	case BindingStorageRead:
		entry.Buffer.Type = wgpu.BufferBindingTypeReadOnlyStorage
	case BindingStorageReadWrite:
		entry.Buffer.Type = wgpu.BufferBindingTypeStorage
	}
	return entry
}

func (w *wgpuDevice) RegisterKernel(k *Kernel) error {
	if k == nil || k.Source == "" {
		return fmt.Errorf("device: kernel has no WGSL source: %w", common.ErrConfig)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if _, ok := w.kernels[k]; ok {
		return nil
	}

	module, err := w.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label: k.Label,
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{
			Code: k.Source,
		},
	})
	if err != nil {
		return fmt.Errorf("device: compile kernel %s: %w", k.Label, err)
	}

	entries := make([]wgpu.BindGroupLayoutEntry, len(k.Layout))
	for slot, kind := range k.Layout {
		entries[slot] = layoutEntry(slot, kind)
		if slot < len(k.MinBindingSizes) {
			entries[slot].Buffer.MinBindingSize = k.MinBindingSizes[slot]
		}
	}
	bgl, err := w.device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label:   k.Label + " Bind Group Layout",
		Entries: entries,
	})
	if err != nil {
		return fmt.Errorf("device: bind group layout for kernel %s: %w", k.Label, err)
	}

	layout, err := w.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            k.Label,
		BindGroupLayouts: []*wgpu.BindGroupLayout{bgl},
	})
	if err != nil {
		return fmt.Errorf("device: pipeline layout for kernel %s: %w", k.Label, err)
	}

	created, err := w.device.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
		Label:  k.Label + " Compute Pipeline",
		Layout: layout,
		Compute: wgpu.ProgrammableStageDescriptor{
			Module:     module,
			EntryPoint: k.EntryPoint,
		},
	})
	if err != nil {
		return fmt.Errorf("device: compute pipeline for kernel %s: %w", k.Label, err)
	}

	w.kernels[k] = &wgpuKernel{layout: bgl, pipeline: created}
	w.log.Debug("kernel registered", slog.String("kernel", k.Label))
	return nil
}

func (w *wgpuDevice) BeginCommands(label string) (CommandStream, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	encoder, err := w.device.CreateCommandEncoder(nil)
	if err != nil {
		return nil, fmt.Errorf("device: begin commands %q: %w", label, err)
	}
	return &wgpuStream{
		w:       w,
		label:   label,
		encoder: encoder,
		tracker: newHazardTracker(w.cfg.validate, w.BufferSize, w.bufferLabel),
	}, nil
}

func (w *wgpuDevice) Release() {
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, b := range w.buffers.drain() {
		b.buffer.Release()
	}
	for k, kk := range w.kernels {
		kk.pipeline.Release()
		kk.layout.Release()
		delete(w.kernels, k)
	}
	if w.queue != nil {
		w.queue.Release()
		w.queue = nil
	}
	if w.device != nil {
		w.device.Release()
		w.device = nil
	}
	if w.adapter != nil {
		w.adapter.Release()
		w.adapter = nil
	}
	if w.instance != nil {
		w.instance.Release()
		w.instance = nil
	}
}

type wgpuStream struct {
	w          *wgpuDevice
	label      string
	encoder    *wgpu.CommandEncoder
	tracker    *hazardTracker
	bindGroups []*wgpu.BindGroup
	err        error
	done       bool
}

var _ CommandStream = &wgpuStream{}

func (s *wgpuStream) Label() string {
	return s.label
}

func (s *wgpuStream) check() error {
	if s.done {
		return fmt.Errorf("%w: command stream %q already submitted", common.ErrGPUSync, s.label)
	}
	return s.err
}

func (s *wgpuStream) fail(err error) error {
	if err != nil && s.err == nil {
		s.err = err
	}
	return err
}

func (s *wgpuStream) Dispatch(k *Kernel, bindings []Binding, groups [3]uint32) error {
	if err := s.check(); err != nil {
		return err
	}
	s.w.mu.Lock()
	kk, ok := s.w.kernels[k]
	s.w.mu.Unlock()
	if !ok {
		return s.fail(fmt.Errorf("device: dispatch of unregistered kernel %s: %w", k.Label, common.ErrConfig))
	}
	if err := s.tracker.command(k.Label, StageCompute, bindings); err != nil {
		return s.fail(err)
	}

	entries := make([]wgpu.BindGroupEntry, 0, len(bindings))
	for _, b := range bindings {
		buf, ok := s.w.buffers.get(b.Buffer)
		if !ok {
			return s.fail(fmt.Errorf("device: kernel %s binds released buffer %d: %w", k.Label, b.Buffer, common.ErrGPUSync))
		}
		size := b.Size
		if size == WholeSize {
			size = wgpu.WholeSize
		}
		entries = append(entries, wgpu.BindGroupEntry{
			Binding: uint32(b.Slot),
			Buffer:  buf.buffer,
			Offset:  b.Offset,
			Size:    size,
		})
	}

	s.w.mu.Lock()
	defer s.w.mu.Unlock()

	bindGroup, err := s.w.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:   k.Label + " Bind Group",
		Layout:  kk.layout,
		Entries: entries,
	})
	if err != nil {
		return s.fail(fmt.Errorf("device: bind group for kernel %s: %w", k.Label, err))
	}
	s.bindGroups = append(s.bindGroups, bindGroup)

	pass := s.encoder.BeginComputePass(nil)
	pass.SetPipeline(kk.pipeline)
	pass.SetBindGroup(0, bindGroup, nil)
	pass.DispatchWorkgroups(groups[0], groups[1], groups[2])
	pass.End()
	return nil
}

func (s *wgpuStream) Barrier(barriers ...BufferBarrier) error {
	if err := s.check(); err != nil {
		return err
	}
	for _, b := range barriers {
		if err := s.tracker.barrier(b); err != nil {
			return s.fail(err)
		}
	}
	return nil
}

func (s *wgpuStream) Use(stage Stage, bindings []Binding) error {
	if err := s.check(); err != nil {
		return err
	}
	return s.fail(s.tracker.command(stage.String()+" consumer", stage, bindings))
}

func (s *wgpuStream) Submit() error {
	if err := s.check(); err != nil {
		s.Discard()
		return err
	}
	s.done = true
	defer s.releaseBindGroups()

	s.w.mu.Lock()
	defer s.w.mu.Unlock()

	commandBuffer, err := s.encoder.Finish(nil)
	if err != nil {
		s.encoder.Release()
		return fmt.Errorf("device: finish %q: %w", s.label, err)
	}
	s.w.queue.Submit(commandBuffer)
	commandBuffer.Release()
	s.encoder.Release()
	return nil
}

func (s *wgpuStream) Discard() {
	if s.encoder != nil && !s.done {
		s.encoder.Release()
	}
	s.done = true
	s.releaseBindGroups()
}

func (s *wgpuStream) releaseBindGroups() {
	for _, bg := range s.bindGroups {
		bg.Release()
	}
	s.bindGroups = nil
}
