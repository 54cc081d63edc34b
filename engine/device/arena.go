package device

import "sync"

// arena hands out handles for values of T. Handles are never reused, so a released handle can't
// alias a newer resource.
type arena[T any] struct {
	mu     sync.RWMutex
	next   Handle
	values map[Handle]T
}

func newArena[T any]() *arena[T] {
	return &arena[T]{values: make(map[Handle]T)}
}

func (a *arena[T]) insert(v T) Handle {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.next++
	a.values[a.next] = v
	return a.next
}

func (a *arena[T]) get(h Handle) (T, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	v, ok := a.values[h]
	return v, ok
}

func (a *arena[T]) remove(h Handle) (T, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	v, ok := a.values[h]
	delete(a.values, h)
	return v, ok
}

// drain removes and returns every value.
func (a *arena[T]) drain() []T {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]T, 0, len(a.values))
	for h, v := range a.values {
		out = append(out, v)
		delete(a.values, h)
	}
	return out
}

func (a *arena[T]) len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.values)
}
