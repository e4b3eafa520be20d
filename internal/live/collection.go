package live

import (
	"context"
	"log/slog"
	"sync"
)

// Ref identifies a collection or document. Its Path doubles as the bus
// topic. A nil *Ref means the query is not ready yet (no signed-in user).
type Ref struct {
	Path string
}

// FetchFunc loads the current contents of a collection.
type FetchFunc[T any] func(ctx context.Context) ([]T, error)

// Collection holds the latest snapshot of one bound Ref. While unbound, or
// until the first snapshot arrives, it reports loading with no data. Each
// snapshot replaces the data wholesale.
type Collection[T any] struct {
	bus    Bus
	logger *slog.Logger

	bindMu sync.Mutex
	stop   func()

	mu        sync.RWMutex
	ref       *Ref
	gen       uint64
	data      []T
	loading   bool
	err       error
	ready     chan struct{}
	listeners map[uint64]func()
	nextID    uint64
}

func NewCollection[T any](bus Bus, logger *slog.Logger) *Collection[T] {
	return &Collection[T]{
		bus:       bus,
		logger:    logger,
		loading:   true,
		ready:     make(chan struct{}),
		listeners: make(map[uint64]func()),
	}
}

// Bind points the collection at ref. The previous subscription, if any, is
// torn down before the new one starts. Binding the path that is already
// bound is a no-op.
func (c *Collection[T]) Bind(ref *Ref, fetch FetchFunc[T]) {
	c.bindMu.Lock()
	defer c.bindMu.Unlock()

	c.mu.RLock()
	same := sameRef(c.ref, ref)
	c.mu.RUnlock()
	if same && (ref == nil || c.stop != nil) {
		return
	}

	if c.stop != nil {
		c.stop()
		c.stop = nil
	}

	c.mu.Lock()
	c.gen++
	gen := c.gen
	c.ref = ref
	c.data = nil
	c.err = nil
	if !c.loading {
		c.loading = true
		c.ready = make(chan struct{})
	}
	c.mu.Unlock()
	c.notify()

	if ref == nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	wake := make(chan struct{}, 1)
	wake <- struct{}{}
	unsubscribe := c.bus.Subscribe(ref.Path, func() {
		select {
		case wake <- struct{}{}:
		default:
		}
	})

	done := make(chan struct{})
	go c.run(ctx, gen, fetch, wake, done)

	c.stop = func() {
		unsubscribe()
		cancel()
		<-done
	}
}

func (c *Collection[T]) run(ctx context.Context, gen uint64, fetch FetchFunc[T], wake <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		case <-wake:
		}

		items, err := fetch(ctx)
		if ctx.Err() != nil {
			return
		}

		c.mu.Lock()
		if c.gen != gen {
			c.mu.Unlock()
			return
		}
		if err != nil {
			c.logger.Error("snapshot fetch failed", "path", c.ref.Path, "error", err)
			c.err = err
		} else {
			c.data = items
			c.err = nil
		}
		if c.loading {
			c.loading = false
			close(c.ready)
		}
		c.mu.Unlock()
		c.notify()
	}
}

// Snapshot returns the current data and whether the first snapshot is
// still pending. The returned slice must not be modified.
func (c *Collection[T]) Snapshot() ([]T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.data, c.loading
}

// Err returns the error from the most recent fetch, if it failed.
func (c *Collection[T]) Err() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.err
}

func (c *Collection[T]) Loading() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loading
}

// Ready blocks until the first snapshot of the current binding arrives.
func (c *Collection[T]) Ready(ctx context.Context) error {
	c.mu.RLock()
	ready := c.ready
	c.mu.RUnlock()

	select {
	case <-ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Refresh forces a refetch without a bus notification.
func (c *Collection[T]) Refresh(ctx context.Context) error {
	c.mu.RLock()
	ref := c.ref
	c.mu.RUnlock()
	if ref == nil {
		return nil
	}
	return c.bus.Publish(ctx, ref.Path)
}

// OnChange registers fn to run after every snapshot or rebind. fn runs on
// the subscription goroutine and must not block.
func (c *Collection[T]) OnChange(fn func()) (cancel func()) {
	c.mu.Lock()
	c.nextID++
	id := c.nextID
	c.listeners[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.listeners, id)
		c.mu.Unlock()
	}
}

// Close tears down the subscription and leaves the collection unbound.
func (c *Collection[T]) Close() {
	c.Bind(nil, nil)
}

func (c *Collection[T]) notify() {
	c.mu.RLock()
	fns := make([]func(), 0, len(c.listeners))
	for _, fn := range c.listeners {
		fns = append(fns, fn)
	}
	c.mu.RUnlock()

	for _, fn := range fns {
		fn()
	}
}

func sameRef(a, b *Ref) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Path == b.Path
}

// Document is a Collection of at most one element.
type Document[T any] struct {
	c *Collection[T]
}

func NewDocument[T any](bus Bus, logger *slog.Logger) *Document[T] {
	return &Document[T]{c: NewCollection[T](bus, logger)}
}

// Bind points the document at ref. fetch returns nil when the document
// does not exist.
func (d *Document[T]) Bind(ref *Ref, fetch func(ctx context.Context) (*T, error)) {
	if fetch == nil {
		d.c.Bind(ref, nil)
		return
	}
	d.c.Bind(ref, func(ctx context.Context) ([]T, error) {
		v, err := fetch(ctx)
		if err != nil || v == nil {
			return nil, err
		}
		return []T{*v}, nil
	})
}

func (d *Document[T]) Snapshot() (*T, bool) {
	data, loading := d.c.Snapshot()
	if len(data) == 0 {
		return nil, loading
	}
	v := data[0]
	return &v, loading
}

func (d *Document[T]) Loading() bool                   { return d.c.Loading() }
func (d *Document[T]) Ready(ctx context.Context) error { return d.c.Ready(ctx) }
func (d *Document[T]) OnChange(fn func()) func()       { return d.c.OnChange(fn) }
func (d *Document[T]) Close()                          { d.c.Close() }
