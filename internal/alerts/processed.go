// Package alerts detects disasters not yet alerted on and dispatches them to
// country topics.
package alerts

import "sync"

// ProcessedSet holds the disaster ids already alerted on. It lives for the
// process lifetime only.
type ProcessedSet struct {
	mu  sync.RWMutex
	ids map[string]struct{}
}

func NewProcessedSet() *ProcessedSet {
	return &ProcessedSet{ids: make(map[string]struct{})}
}

func (s *ProcessedSet) Add(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ids[id] = struct{}{}
}

func (s *ProcessedSet) Has(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.ids[id]
	return ok
}

func (s *ProcessedSet) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.ids)
}

// Reset replaces the contents with ids.
func (s *ProcessedSet) Reset(ids []string) {
	next := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		next[id] = struct{}{}
	}
	s.mu.Lock()
	s.ids = next
	s.mu.Unlock()
}
