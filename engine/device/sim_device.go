package device

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-cluster/common"
)

// MaxBufferSize matches the default WebGPU maxBufferSize limit (256 MiB).
const MaxBufferSize uint64 = 256 << 20

type simBuffer struct {
	label string
	usage BufferUsage
	data  []byte
}

// simDevice runs kernels on the CPU. Unordered kernels are fanned out across a reusable worker pool
// in contiguous workgroup chunks; a WaitGroup is the per-dispatch barrier.
type simDevice struct {
	cfg     *deviceConfig
	log     *slog.Logger
	buffers *arena[*simBuffer]

	kernelsMu sync.Mutex
	kernels   map[*Kernel]struct{}

	pool worker.DynamicWorkerPool
}

var _ Device = &simDevice{}
var _ Readback = &simDevice{}

func newSimDevice(cfg *deviceConfig) *simDevice {
	d := &simDevice{
		cfg:     cfg,
		log:     common.ComponentLogger("device").With(slog.String("backend", BackendTypeSimulated.String())),
		buffers: newArena[*simBuffer](),
		kernels: make(map[*Kernel]struct{}),
		// Queue size of 256 leaves headroom over the per-dispatch chunk count.
		pool: worker.NewDynamicWorkerPool(cfg.workers, 256, 1*time.Second),
	}
	d.log.Info("device created", slog.String("label", cfg.label), slog.Int("workers", cfg.workers))
	return d
}

func (d *simDevice) Backend() BackendType {
	return BackendTypeSimulated
}

func (d *simDevice) Label() string {
	return d.cfg.label
}

func (d *simDevice) CreateBuffer(label string, size uint64, usage BufferUsage) (Handle, error) {
	size = alignSize(max(size, 4))
	if size > MaxBufferSize {
		return InvalidHandle, fmt.Errorf("device: create buffer %q of %d bytes: %w", label, size, common.ErrResourceExhausted)
	}
	h := d.buffers.insert(&simBuffer{label: label, usage: usage, data: make([]byte, size)})
	d.log.Debug("buffer created", slog.String("label", label), slog.Uint64("size", size), slog.Uint64("handle", uint64(h)))
	return h, nil
}

func (d *simDevice) ReleaseBuffer(h Handle) {
	d.buffers.remove(h)
}

func (d *simDevice) BufferSize(h Handle) uint64 {
	if b, ok := d.buffers.get(h); ok {
		return uint64(len(b.data))
	}
	return 0
}

func (d *simDevice) bufferLabel(h Handle) string {
	if b, ok := d.buffers.get(h); ok {
		return fmt.Sprintf("%q", b.label)
	}
	return fmt.Sprintf("buffer#%d", h)
}

func (d *simDevice) WriteBuffer(h Handle, offset uint64, data []byte) error {
	b, ok := d.buffers.get(h)
	if !ok {
		return fmt.Errorf("device: write to unknown buffer %d: %w", h, common.ErrIndexOutOfRange)
	}
	if offset+uint64(len(data)) > uint64(len(b.data)) {
		return fmt.Errorf("device: write [%d, %d) to %q of %d bytes: %w",
			offset, offset+uint64(len(data)), b.label, len(b.data), common.ErrIndexOutOfRange)
	}
	copy(b.data[offset:], data)
	return nil
}

func (d *simDevice) WriteBuffers(writes []BufferWrite) error {
	for _, w := range writes {
		if err := d.WriteBuffer(w.Buffer, w.Offset, w.Data); err != nil {
			return err
		}
	}
	return nil
}

func (d *simDevice) ReadBuffer(h Handle, offset, size uint64) ([]byte, error) {
	b, ok := d.buffers.get(h)
	if !ok {
		return nil, fmt.Errorf("device: read from unknown buffer %d: %w", h, common.ErrIndexOutOfRange)
	}
	start, end := resolveRange(offset, size, uint64(len(b.data)))
	if end > uint64(len(b.data)) || start > end {
		return nil, fmt.Errorf("device: read [%d, %d) from %q of %d bytes: %w", start, end, b.label, len(b.data), common.ErrIndexOutOfRange)
	}
	out := make([]byte, end-start)
	copy(out, b.data[start:end])
	return out, nil
}

func (d *simDevice) RegisterKernel(k *Kernel) error {
	if k == nil || k.Invoke == nil {
		return fmt.Errorf("device: kernel has no simulated body: %w", common.ErrConfig)
	}
	if k.WorkgroupSize[0] == 0 || k.WorkgroupSize[1] == 0 || k.WorkgroupSize[2] == 0 {
		return fmt.Errorf("device: kernel %s has an empty workgroup size: %w", k.Label, common.ErrConfig)
	}
	d.kernelsMu.Lock()
	defer d.kernelsMu.Unlock()
	d.kernels[k] = struct{}{}
	return nil
}

func (d *simDevice) registered(k *Kernel) bool {
	d.kernelsMu.Lock()
	defer d.kernelsMu.Unlock()
	_, ok := d.kernels[k]
	return ok
}

func (d *simDevice) BeginCommands(label string) (CommandStream, error) {
	return &simStream{
		d:       d,
		label:   label,
		tracker: newHazardTracker(d.cfg.validate, d.BufferSize, d.bufferLabel),
	}, nil
}

func (d *simDevice) Release() {
	d.buffers.drain()
	d.kernelsMu.Lock()
	clear(d.kernels)
	d.kernelsMu.Unlock()
}

type simDispatch struct {
	kernel   *Kernel
	bindings []Binding
	groups   [3]uint32
}

type simStream struct {
	d        *simDevice
	label    string
	tracker  *hazardTracker
	commands []simDispatch
	err      error
	done     bool
}

var _ CommandStream = &simStream{}

func (s *simStream) Label() string {
	return s.label
}

func (s *simStream) check() error {
	if s.done {
		return fmt.Errorf("%w: command stream %q already submitted", common.ErrGPUSync, s.label)
	}
	return s.err
}

func (s *simStream) fail(err error) error {
	if err != nil && s.err == nil {
		s.err = err
	}
	return err
}

func (s *simStream) Dispatch(k *Kernel, bindings []Binding, groups [3]uint32) error {
	if err := s.check(); err != nil {
		return err
	}
	if !s.d.registered(k) {
		return s.fail(fmt.Errorf("device: dispatch of unregistered kernel %s: %w", k.Label, common.ErrConfig))
	}
	for _, b := range bindings {
		if b.Slot >= len(k.MinBindingSizes) {
			continue
		}
		start, end := resolveRange(b.Offset, b.Size, s.d.BufferSize(b.Buffer))
		if end-start < k.MinBindingSizes[b.Slot] {
			return s.fail(fmt.Errorf("device: kernel %s slot %d binds %d bytes, needs %d: %w",
				k.Label, b.Slot, end-start, k.MinBindingSizes[b.Slot], common.ErrIndexOutOfRange))
		}
	}
	if err := s.tracker.command(k.Label, StageCompute, bindings); err != nil {
		return s.fail(err)
	}
	s.commands = append(s.commands, simDispatch{kernel: k, bindings: append([]Binding(nil), bindings...), groups: groups})
	return nil
}

func (s *simStream) Barrier(barriers ...BufferBarrier) error {
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

func (s *simStream) Use(stage Stage, bindings []Binding) error {
	if err := s.check(); err != nil {
		return err
	}
	return s.fail(s.tracker.command(stage.String()+" consumer", stage, bindings))
}

func (s *simStream) Submit() error {
	if err := s.check(); err != nil {
		s.done = true
		return err
	}
	s.done = true
	for _, c := range s.commands {
		if err := s.d.execute(c); err != nil {
			return fmt.Errorf("device: submit %q: %w", s.label, err)
		}
	}
	return nil
}

func (s *simStream) Discard() {
	s.done = true
	s.commands = nil
}

// simMemory exposes the bound ranges of one dispatch. Atomics serialise on mu.
type simMemory struct {
	mu    sync.Mutex
	views [][]byte
}

var _ Memory = &simMemory{}

func (m *simMemory) Bytes(slot int) []byte {
	return m.views[slot]
}

func (m *simMemory) AtomicAdd(slot int, offset int, delta uint32) uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	old := common.Uint32At(m.views[slot], offset)
	common.PutUint32(m.views[slot], offset, old+delta)
	return old
}

func (m *simMemory) AtomicMax(slot int, offset int, v uint32) uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	old := common.Uint32At(m.views[slot], offset)
	if v > old {
		common.PutUint32(m.views[slot], offset, v)
	}
	return old
}

func (d *simDevice) execute(c simDispatch) error {
	slots := 0
	for _, b := range c.bindings {
		slots = max(slots, b.Slot+1)
	}
	mem := &simMemory{views: make([][]byte, slots)}
	for _, b := range c.bindings {
		buf, ok := d.buffers.get(b.Buffer)
		if !ok {
			return fmt.Errorf("kernel %s slot %d: buffer %d released: %w", c.kernel.Label, b.Slot, b.Buffer, common.ErrGPUSync)
		}
		start, end := resolveRange(b.Offset, b.Size, uint64(len(buf.data)))
		mem.views[b.Slot] = buf.data[start:end:end]
	}

	k := c.kernel
	total := c.groups[0] * c.groups[1] * c.groups[2]
	d.log.Debug("dispatch", slog.String("kernel", k.Label), slog.Any("groups", c.groups), slog.Bool("ordered", k.Ordered))
	if total == 0 {
		return nil
	}

	if k.Ordered {
		dims := [3]uint32{}
		for i := range 3 {
			dims[i] = c.groups[i] * k.WorkgroupSize[i]
		}
		for z := range dims[2] {
			for y := range dims[1] {
				for x := range dims[0] {
					k.Invoke([3]uint32{x, y, z}, mem)
				}
			}
		}
		return nil
	}

	chunks := min(uint32(d.cfg.workers), total)
	if chunks <= 1 {
		runGroups(k, c.groups, 0, total, mem)
		return nil
	}
	per := common.DivCeil(total, chunks)
	var wg sync.WaitGroup
	for i := range chunks {
		first := i * per
		last := min(first+per, total)
		if first >= last {
			break
		}
		wg.Add(1)
		d.pool.SubmitTask(worker.Task{
			ID: int(i),
			Do: func() (any, error) {
				defer wg.Done()
				runGroups(k, c.groups, first, last, mem)
				return nil, nil
			},
		})
	}
	wg.Wait()
	return nil
}

// runGroups runs the invocations of linear workgroups [first, last).
func runGroups(k *Kernel, groups [3]uint32, first, last uint32, mem Memory) {
	ws := k.WorkgroupSize
	for g := first; g < last; g++ {
		wx := g % groups[0]
		wy := (g / groups[0]) % groups[1]
		wz := g / (groups[0] * groups[1])
		for lz := range ws[2] {
			for ly := range ws[1] {
				for lx := range ws[0] {
					k.Invoke([3]uint32{wx*ws[0] + lx, wy*ws[1] + ly, wz*ws[2] + lz}, mem)
				}
			}
		}
	}
}
