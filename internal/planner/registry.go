package planner

import (
	"sync"
	"time"
)

// Registry shares one Workspace per user between connections. A workspace
// stays open for linger after its last release so reconnects and
// back-to-back requests reuse its snapshots.
type Registry struct {
	deps   *Deps
	linger time.Duration

	mu      sync.Mutex
	entries map[string]*entry
}

type entry struct {
	ws    *Workspace
	refs  int
	timer *time.Timer
}

func NewRegistry(d *Deps, linger time.Duration) *Registry {
	return &Registry{
		deps:    d,
		linger:  linger,
		entries: make(map[string]*entry),
	}
}

// Acquire returns the workspace of uid, creating and binding it if needed.
// release must be called once the caller is done with it.
func (r *Registry) Acquire(uid string) (*Workspace, func()) {
	r.mu.Lock()
	e, ok := r.entries[uid]
	if !ok {
		ws := NewWorkspace(r.deps)
		ws.SetUser(uid)
		e = &entry{ws: ws}
		r.entries[uid] = e
	}
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
	e.refs++
	r.mu.Unlock()

	var once sync.Once
	return e.ws, func() {
		once.Do(func() { r.release(uid, e) })
	}
}

func (r *Registry) release(uid string, e *entry) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e.refs--
	if e.refs > 0 {
		return
	}
	if r.linger <= 0 {
		delete(r.entries, uid)
		go e.ws.Close()
		return
	}
	e.timer = time.AfterFunc(r.linger, func() { r.expire(uid, e) })
}

func (r *Registry) expire(uid string, e *entry) {
	r.mu.Lock()
	if r.entries[uid] != e || e.refs > 0 {
		r.mu.Unlock()
		return
	}
	delete(r.entries, uid)
	r.mu.Unlock()

	e.ws.Close()
}

// Lookup returns the open workspace of uid without taking a reference.
func (r *Registry) Lookup(uid string) (*Workspace, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[uid]
	if !ok {
		return nil, false
	}
	return e.ws, true
}

// Users lists the users with an open workspace.
func (r *Registry) Users() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	users := make([]string, 0, len(r.entries))
	for uid := range r.entries {
		users = append(users, uid)
	}
	return users
}

// Close closes every open workspace.
func (r *Registry) Close() {
	r.mu.Lock()
	entries := r.entries
	r.entries = make(map[string]*entry)
	r.mu.Unlock()

	for _, e := range entries {
		if e.timer != nil {
			e.timer.Stop()
		}
		e.ws.Close()
	}
}
