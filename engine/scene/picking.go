package scene

import (
	"github.com/Carmen-Shannon/oxy-cluster/common"
)

// PickInstance tests the ray against the transformed box of every entry of a clickable model and
// keeps the nearest positive hit. Equal distances keep the lower entry index.
func (s *meshScene) PickInstance(r common.Ray) (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	best := -1
	var bestT float32
	for i, e := range s.entries {
		if !s.descriptors[e.ModelIndex].Clickable {
			continue
		}
		t, ok := s.transformed[i].Hit(r)
		if !ok || t <= 0 {
			continue
		}
		if best < 0 || t < bestT {
			best, bestT = i, t
		}
	}
	return best, best >= 0
}
