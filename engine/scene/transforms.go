package scene

import (
	"log/slog"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/Carmen-Shannon/oxy-cluster/common"
	"github.com/Carmen-Shannon/oxy-cluster/engine/device"
	"github.com/Carmen-Shannon/oxy-cluster/engine/frame"
)

// matrixSlot validates (model, instance) and returns its model matrix slot.
func (s *meshScene) matrixSlot(modelIndex, instanceIndex int) (int, error) {
	if err := common.CheckIndex("model", modelIndex, len(s.descriptors)); err != nil {
		return 0, err
	}
	if err := common.CheckIndex("instance", instanceIndex, int(s.descriptors[modelIndex].InstanceCount)); err != nil {
		return 0, err
	}
	return s.slotBase[modelIndex] + instanceIndex, nil
}

func (s *meshScene) UpdateTransform(modelIndex, instanceIndex int, m mgl32.Mat4) error {
	slot, err := s.matrixSlot(modelIndex, instanceIndex)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.matrices[slot] = m
	touched := s.slotEntries[slot]
	for _, e := range touched {
		s.transformed[e] = s.entries[e].Bounds.Transformed(m)
	}

	// Entries of one instance are not contiguous after the material sort; the span between the
	// first and last touched entry is uploaded as one write.
	first, last := touched[0], touched[len(touched)-1]
	matrixBytes := s.marshalMatrices(slot, slot+1)
	boxBytes := s.marshalBoxes(first, last+1)
	for i := range s.frames {
		f := &s.frames[i]
		f.pending = append(f.pending,
			device.BufferWrite{Buffer: f.matrices, Offset: uint64(slot) * 64, Data: matrixBytes},
			device.BufferWrite{Buffer: f.boxes, Offset: uint64(first) * common.BoundingBoxSize, Data: boxBytes},
		)
	}
	return nil
}

func (s *meshScene) ModelMatrix(modelIndex, instanceIndex int) (mgl32.Mat4, error) {
	slot, err := s.matrixSlot(modelIndex, instanceIndex)
	if err != nil {
		return mgl32.Mat4{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.matrices[slot], nil
}

func (s *meshScene) EntriesOf(modelIndex, instanceIndex int) ([]int, error) {
	slot, err := s.matrixSlot(modelIndex, instanceIndex)
	if err != nil {
		return nil, err
	}
	return append([]int(nil), s.slotEntries[slot]...), nil
}

func (s *meshScene) OriginalBoundingBox(entry int) (common.BoundingBox, error) {
	if err := common.CheckIndex("entry", entry, len(s.entries)); err != nil {
		return common.BoundingBox{}, err
	}
	return s.entries[entry].Bounds, nil
}

func (s *meshScene) TransformedBoundingBox(entry int) (common.BoundingBox, error) {
	if err := common.CheckIndex("entry", entry, len(s.entries)); err != nil {
		return common.BoundingBox{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.transformed[entry], nil
}

func (s *meshScene) Flush(ctx *frame.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := common.CheckIndex("frame slot", ctx.Slot, len(s.frames)); err != nil {
		return err
	}
	f := &s.frames[ctx.Slot]
	if len(f.pending) == 0 {
		return nil
	}
	if err := ctx.Upload(f.pending...); err != nil {
		return err
	}
	s.log.Debug("transforms flushed", slog.Int("slot", ctx.Slot), slog.Int("writes", len(f.pending)))
	f.pending = f.pending[:0]
	return nil
}

func (s *meshScene) Pending(slot int) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if slot < 0 || slot >= len(s.frames) {
		return 0
	}
	return len(s.frames[slot].pending)
}
