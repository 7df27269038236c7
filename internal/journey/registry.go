package journey

import (
	"context"
	"log"
	"sync"
	"time"
)

type registryEntry struct {
	ctrl     *Controller
	lastUsed time.Time
}

// Registry owns one controller per student and disposes controllers that sat
// idle longer than the configured TTL.
type Registry struct {
	mu      sync.Mutex
	api     API
	opts    []Option
	ttl     time.Duration
	now     func() time.Time
	entries map[string]*registryEntry
}

func NewRegistry(api API, ttl time.Duration, opts ...Option) *Registry {
	return &Registry{
		api:     api,
		opts:    opts,
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]*registryEntry),
	}
}

// Get returns the student's controller, creating it in the Loading state if
// needed. Callers decide when to Load it.
func (r *Registry) Get(studentID string) *Controller {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[studentID]
	if !ok || e.ctrl.Disposed() {
		e = &registryEntry{ctrl: NewController(r.api, studentID, r.opts...)}
		r.entries[studentID] = e
	}
	e.lastUsed = r.now()
	return e.ctrl
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

func (r *Registry) Remove(studentID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.entries[studentID]; ok {
		e.ctrl.Dispose()
		delete(r.entries, studentID)
	}
}

// Evict disposes controllers idle for longer than the TTL and returns how
// many were removed.
func (r *Registry) Evict() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-r.ttl)
	removed := 0
	for id, e := range r.entries {
		if e.lastUsed.Before(cutoff) {
			e.ctrl.Dispose()
			delete(r.entries, id)
			removed++
		}
	}
	return removed
}

// Run sweeps idle controllers every interval until ctx is done, then closes
// the registry.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := r.Evict(); n > 0 {
				log.Printf("[JOURNEY] evicted %d idle controllers", n)
			}
		case <-ctx.Done():
			r.Close()
			return
		}
	}
}

func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, e := range r.entries {
		e.ctrl.Dispose()
		delete(r.entries, id)
	}
}
