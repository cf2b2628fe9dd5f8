package journal

import (
	"context"
	"sync"
	"time"
)

// InMemoryStore is a volatile Store kept in process memory. It is safe for
// concurrent use and suited for tests and single runs.
type InMemoryStore struct {
	mu      sync.RWMutex
	entries []Entry
	seq     int64
}

var _ Store = (*InMemoryStore)(nil)

// NewInMemoryStore constructs an empty store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

// Record appends e, assigning its sequence number and timestamp if unset.
func (s *InMemoryStore) Record(_ context.Context, e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	e.Seq = s.seq
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	s.entries = append(s.entries, e)
	return nil
}

// List returns copies of the matching entries.
func (s *InMemoryStore) List(_ context.Context, f Filter) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []Entry{}
	for _, e := range s.entries {
		if f.match(e) {
			out = append(out, e)
		}
	}
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[len(out)-f.Limit:]
	}
	return out, nil
}

// Close is a no-op.
func (s *InMemoryStore) Close() error { return nil }
