package utils

import (
	"sync"
	"time"
)

// Pacer enforces a minimum interval between page loads. The pipeline is
// strictly sequential, but the mutex keeps it safe if a caller ever isn't.
type Pacer struct {
	mu       sync.Mutex
	interval time.Duration
	last     time.Time
}

// NewPacer creates a Pacer with the given minimum interval between waits.
func NewPacer(minIntervalMs int) *Pacer {
	return &Pacer{interval: time.Duration(minIntervalMs) * time.Millisecond}
}

// Wait blocks until at least the minimum interval has passed since the
// previous Wait returned. The first call returns immediately.
func (p *Pacer) Wait() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.last.IsZero() {
		elapsed := time.Since(p.last)
		if elapsed < p.interval {
			time.Sleep(p.interval - elapsed)
		}
	}
	p.last = time.Now()
}

// URLSet is a thread-safe set for tracking visited URLs and other
// dedup fingerprints.
type URLSet struct {
	mu   sync.RWMutex
	seen map[string]struct{}
}

// NewURLSet creates an empty URLSet.
func NewURLSet() *URLSet {
	return &URLSet{seen: make(map[string]struct{})}
}

// Add returns true if the value was newly added, false if already present.
func (s *URLSet) Add(url string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.seen[url]; exists {
		return false
	}
	s.seen[url] = struct{}{}
	return true
}

// Contains returns true if the value has already been seen.
func (s *URLSet) Contains(url string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, exists := s.seen[url]
	return exists
}

// Size returns the number of unique values tracked.
func (s *URLSet) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.seen)
}
