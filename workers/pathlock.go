package workers

import "sync"

// PathLocker serializes work on individual gallery paths. The reconciler and
// the enrollment workers both touch gallery directories; holding the path
// lock guarantees no two of them repair or populate the same gallery at once.
type PathLocker struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewPathLocker creates an empty path locker
func NewPathLocker() *PathLocker {
	return &PathLocker{locks: make(map[string]*sync.Mutex)}
}

// Lock acquires the mutex for the given path, creating it on first use
func (p *PathLocker) Lock(path string) {
	p.mu.Lock()
	m, ok := p.locks[path]
	if !ok {
		m = &sync.Mutex{}
		p.locks[path] = m
	}
	p.mu.Unlock()
	m.Lock()
}

// Unlock releases the mutex for the given path
func (p *PathLocker) Unlock(path string) {
	p.mu.Lock()
	m, ok := p.locks[path]
	p.mu.Unlock()
	if ok {
		m.Unlock()
	}
}
