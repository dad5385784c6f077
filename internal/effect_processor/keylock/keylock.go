// Package keylock provides per-key mutual exclusion for event processing.
// The resend sweep and live dispatch can race on the same event; holding the
// event's lock key for the whole read-modify-write keeps attempts serial.
package keylock

import "sync"

// Synchronizer hands out one mutex per key, created lazily and cached for
// the life of the process. Keys are bounded by tenants, assets, and in-flight
// events, so the cache is never evicted.
type Synchronizer struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New creates an empty synchronizer.
func New() *Synchronizer {
	return &Synchronizer{
		locks: make(map[string]*sync.Mutex),
	}
}

func (s *Synchronizer) lock(key string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.locks[key]
	if !ok {
		l = &sync.Mutex{}
		s.locks[key] = l
	}
	return l
}

// WithLock runs action while holding the mutex for key. The lock is always
// released, also when action panics.
func (s *Synchronizer) WithLock(key string, action func() error) error {
	l := s.lock(key)
	l.Lock()
	defer l.Unlock()
	return action()
}
