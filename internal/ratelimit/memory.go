package ratelimit

import (
	"context"
	"sync"
	"time"
)

type window struct {
	count int64
	start time.Time
}

// MemoryStore keeps counters in process memory. A window covers
// [start, start+length), so a denied call always has a positive reset time.
// Expired windows are swept lazily so the map does not grow with every client ever seen.
type MemoryStore struct {
	mu        sync.Mutex
	windows   map[string]*window
	now       func() time.Time
	lastSweep time.Time
}

func NewMemoryStore() *MemoryStore {
	return NewMemoryStoreWithClock(time.Now)
}

func NewMemoryStoreWithClock(now func() time.Time) *MemoryStore {
	return &MemoryStore{
		windows:   make(map[string]*window),
		now:       now,
		lastSweep: now(),
	}
}

func (s *MemoryStore) Hit(ctx context.Context, key string, length time.Duration) (int64, time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if now.Sub(s.lastSweep) > length {
		s.sweep(now, length)
	}

	w, ok := s.windows[key]
	if !ok || now.Sub(w.start) >= length {
		s.windows[key] = &window{count: 1, start: now}
		return 1, length, nil
	}
	w.count++
	return w.count, length - now.Sub(w.start), nil
}

func (s *MemoryStore) sweep(now time.Time, length time.Duration) {
	for k, w := range s.windows {
		if now.Sub(w.start) >= length {
			delete(s.windows, k)
		}
	}
	s.lastSweep = now
}

// Len is the number of live windows.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.windows)
}
