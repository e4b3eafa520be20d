// Package live keeps in-memory snapshots of store collections current.
// Writers publish a topic (a collection path) after every successful write;
// subscribed collections refetch and replace their data wholesale.
package live

import (
	"context"
	"sync"
)

// Bus fans change notifications out to subscribers of a topic.
type Bus interface {
	Publish(ctx context.Context, topic string) error
	// Subscribe registers fn for topic. fn runs on the publishing goroutine
	// and must not block. The returned cancel func is idempotent.
	Subscribe(topic string, fn func()) (cancel func())
	Close() error
}

// LocalBus delivers notifications within a single process.
type LocalBus struct {
	mu     sync.RWMutex
	subs   map[string]map[uint64]func()
	nextID uint64
}

func NewLocalBus() *LocalBus {
	return &LocalBus{subs: make(map[string]map[uint64]func())}
}

func (b *LocalBus) Publish(_ context.Context, topic string) error {
	b.mu.RLock()
	fns := make([]func(), 0, len(b.subs[topic]))
	for _, fn := range b.subs[topic] {
		fns = append(fns, fn)
	}
	b.mu.RUnlock()

	for _, fn := range fns {
		fn()
	}
	return nil
}

func (b *LocalBus) Subscribe(topic string, fn func()) func() {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	if b.subs[topic] == nil {
		b.subs[topic] = make(map[uint64]func())
	}
	b.subs[topic][id] = fn
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs[topic], id)
			if len(b.subs[topic]) == 0 {
				delete(b.subs, topic)
			}
			b.mu.Unlock()
		})
	}
}

// SubscriberCount returns the number of live subscriptions on topic.
func (b *LocalBus) SubscriberCount(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[topic])
}

func (b *LocalBus) Close() error { return nil }

// envelope is the wire format shared by the Redis and NATS drivers.
type envelope struct {
	Origin string `json:"origin"`
	Topic  string `json:"topic"`
}
