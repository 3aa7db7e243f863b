package pipeline

import "sync"

// InflightSet tracks which briefs currently own a pipeline execution. At
// most one execution per brief id may be active; callers must release on
// every exit path, including panics.
type InflightSet struct {
	mu  sync.Mutex
	ids map[string]struct{}
}

// NewInflightSet creates an empty in-flight set.
func NewInflightSet() *InflightSet {
	return &InflightSet{ids: make(map[string]struct{})}
}

// TryAcquire claims the brief id. It returns false if a pipeline execution
// already owns it.
func (s *InflightSet) TryAcquire(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.ids[id]; ok {
		return false
	}
	s.ids[id] = struct{}{}
	return true
}

// Release gives up the brief id. Releasing an unowned id is a no-op.
func (s *InflightSet) Release(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.ids, id)
}

// Len returns the number of briefs currently in flight.
func (s *InflightSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ids)
}
