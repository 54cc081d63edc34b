package device

import (
	"fmt"
	"strings"

	"github.com/Carmen-Shannon/oxy-cluster/common"
)

// Stage is a pipeline stage that produces or consumes buffer data.
type Stage uint32

const (
	StageCompute Stage = 1 << iota
	StageDrawIndirect
	StageVertex
	StageFragment
)

func (s Stage) String() string {
	return maskString(uint32(s), []string{"compute", "draw-indirect", "vertex", "fragment"})
}

// Access is the kind of memory access a stage performs on a buffer range.
type Access uint32

const (
	AccessShaderRead Access = 1 << iota
	AccessShaderWrite
	AccessIndirectRead
	AccessUniformRead

	AccessShaderReadWrite = AccessShaderRead | AccessShaderWrite
)

func (a Access) String() string {
	return maskString(uint32(a), []string{"shader-read", "shader-write", "indirect-read", "uniform-read"})
}

func (a Access) reads() bool {
	return a&(AccessShaderRead|AccessIndirectRead|AccessUniformRead) != 0
}

func (a Access) writes() bool {
	return a&AccessShaderWrite != 0
}

func maskString(mask uint32, names []string) string {
	var parts []string
	for i, name := range names {
		if mask&(1<<i) != 0 {
			parts = append(parts, name)
		}
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

// BufferBarrier makes writes by SrcStage to a buffer range visible to DstStage.
type BufferBarrier struct {
	Buffer    Handle
	Offset    uint64
	Size      uint64 // WholeSize for the rest of the buffer
	SrcStage  Stage
	SrcAccess Access
	DstStage  Stage
	DstAccess Access
}

type trackedWrite struct {
	seq        int
	command    string
	buffer     Handle
	start, end uint64
	stage      Stage
}

type trackedBarrier struct {
	seq        int
	buffer     Handle
	start, end uint64
	b          BufferBarrier
}

// hazardTracker validates that every read (or write) of a range previously written in the same
// stream is separated from that write by a barrier covering the overlap with matching stages and
// access masks.
type hazardTracker struct {
	enabled  bool
	seq      int
	writes   []trackedWrite
	barriers []trackedBarrier
	sizeOf   func(Handle) uint64
	labelOf  func(Handle) string
}

func newHazardTracker(enabled bool, sizeOf func(Handle) uint64, labelOf func(Handle) string) *hazardTracker {
	return &hazardTracker{enabled: enabled, sizeOf: sizeOf, labelOf: labelOf}
}

// barrier records a barrier.
func (t *hazardTracker) barrier(b BufferBarrier) error {
	size := t.sizeOf(b.Buffer)
	start, end := resolveRange(b.Offset, b.Size, size)
	if end > size {
		return fmt.Errorf("%w: barrier on %s [%d, %d) exceeds buffer size %d", common.ErrGPUSync, t.labelOf(b.Buffer), start, end, size)
	}
	t.seq++
	t.barriers = append(t.barriers, trackedBarrier{seq: t.seq, buffer: b.Buffer, start: start, end: end, b: b})
	return nil
}

// command validates and then records a command at stage touching bindings.
func (t *hazardTracker) command(name string, stage Stage, bindings []Binding) error {
	for _, bd := range bindings {
		size := t.sizeOf(bd.Buffer)
		start, end := resolveRange(bd.Offset, bd.Size, size)
		if end > size || start >= end {
			return fmt.Errorf("%w: %s binds %s [%d, %d) outside buffer size %d",
				common.ErrIndexOutOfRange, name, t.labelOf(bd.Buffer), start, end, size)
		}
		if !t.enabled {
			continue
		}
		for _, w := range t.writes {
			if w.buffer != bd.Buffer || w.end <= start || end <= w.start {
				continue
			}
			lo, hi := max(w.start, start), min(w.end, end)
			if !t.covered(w, lo, hi, stage, bd.Access) {
				return fmt.Errorf("%w: %s (%s %s) touches %s [%d, %d) written by %s without a covering barrier",
					common.ErrGPUSync, name, stage, bd.Access, t.labelOf(bd.Buffer), lo, hi, w.command)
			}
		}
	}

	t.seq++
	for _, bd := range bindings {
		if !bd.Access.writes() {
			continue
		}
		start, end := resolveRange(bd.Offset, bd.Size, t.sizeOf(bd.Buffer))
		t.writes = append(t.writes, trackedWrite{seq: t.seq, command: name, buffer: bd.Buffer, start: start, end: end, stage: stage})
	}
	return nil
}

// covered reports whether a barrier after w makes [lo, hi) of w visible to stage with access.
func (t *hazardTracker) covered(w trackedWrite, lo, hi uint64, stage Stage, access Access) bool {
	for _, br := range t.barriers {
		if br.seq <= w.seq || br.buffer != w.buffer {
			continue
		}
		if br.start > lo || br.end < hi {
			continue
		}
		if br.b.SrcStage&w.stage == 0 || !br.b.SrcAccess.writes() {
			continue
		}
		if br.b.DstStage&stage == 0 || br.b.DstAccess&access != access {
			continue
		}
		return true
	}
	return false
}
