package live

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// source is a fake collection backend.
type source struct {
	mu    sync.Mutex
	items map[string][]string
	calls atomic.Int32
	err   error
}

func (s *source) set(path string, items ...string) {
	s.mu.Lock()
	s.items[path] = items
	s.mu.Unlock()
}

func (s *source) fetch(path string) FetchFunc[string] {
	return func(ctx context.Context) ([]string, error) {
		s.calls.Add(1)
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.err != nil {
			return nil, s.err
		}
		return append([]string(nil), s.items[path]...), nil
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestCollectionNilRefIsLoading(t *testing.T) {
	c := NewCollection[string](NewLocalBus(), slog.Default())
	c.Bind(nil, nil)

	data, loading := c.Snapshot()
	if !loading {
		t.Error("expected loading while ref is nil")
	}
	if len(data) != 0 {
		t.Errorf("data = %v, want empty", data)
	}
}

func TestCollectionFirstSnapshot(t *testing.T) {
	bus := NewLocalBus()
	src := &source{items: map[string][]string{}}
	src.set("users/u1/tasks", "a", "b")

	c := NewCollection[string](bus, slog.Default())
	defer c.Close()
	c.Bind(&Ref{Path: "users/u1/tasks"}, src.fetch("users/u1/tasks"))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := c.Ready(ctx); err != nil {
		t.Fatalf("ready: %v", err)
	}

	data, loading := c.Snapshot()
	if loading {
		t.Error("expected loading=false after first snapshot")
	}
	if len(data) != 2 || data[0] != "a" {
		t.Errorf("data = %v", data)
	}
}

func TestCollectionReplacesOnPublish(t *testing.T) {
	bus := NewLocalBus()
	src := &source{items: map[string][]string{}}
	src.set("p", "one")

	c := NewCollection[string](bus, slog.Default())
	defer c.Close()
	c.Bind(&Ref{Path: "p"}, src.fetch("p"))
	c.Ready(context.Background())

	src.set("p", "two", "three")
	bus.Publish(context.Background(), "p")

	waitFor(t, func() bool {
		data, _ := c.Snapshot()
		return len(data) == 2 && data[0] == "two"
	})
}

func TestCollectionRebindTearsDownPrevious(t *testing.T) {
	bus := NewLocalBus()
	src := &source{items: map[string][]string{}}
	src.set("users/u1/tasks", "u1")
	src.set("users/u2/tasks", "u2")

	c := NewCollection[string](bus, slog.Default())
	defer c.Close()

	c.Bind(&Ref{Path: "users/u1/tasks"}, src.fetch("users/u1/tasks"))
	c.Ready(context.Background())
	if bus.SubscriberCount("users/u1/tasks") != 1 {
		t.Fatal("expected one subscription on u1")
	}

	c.Bind(&Ref{Path: "users/u2/tasks"}, src.fetch("users/u2/tasks"))
	if n := bus.SubscriberCount("users/u1/tasks"); n != 0 {
		t.Errorf("u1 subscriptions after rebind = %d, want 0", n)
	}
	if n := bus.SubscriberCount("users/u2/tasks"); n != 1 {
		t.Errorf("u2 subscriptions = %d, want 1", n)
	}

	c.Ready(context.Background())
	data, _ := c.Snapshot()
	if len(data) != 1 || data[0] != "u2" {
		t.Errorf("data = %v, want [u2]", data)
	}
}

func TestCollectionSameRefIsNoop(t *testing.T) {
	bus := NewLocalBus()
	src := &source{items: map[string][]string{"p": {"x"}}}

	c := NewCollection[string](bus, slog.Default())
	defer c.Close()
	c.Bind(&Ref{Path: "p"}, src.fetch("p"))
	c.Ready(context.Background())
	calls := src.calls.Load()

	c.Bind(&Ref{Path: "p"}, src.fetch("p"))
	if _, loading := c.Snapshot(); loading {
		t.Error("rebinding the same ref must not reset loading")
	}
	if bus.SubscriberCount("p") != 1 {
		t.Error("rebinding the same ref must not add a subscription")
	}
	if src.calls.Load() != calls {
		t.Error("rebinding the same ref must not refetch")
	}
}

func TestCollectionUnbindResetsLoading(t *testing.T) {
	bus := NewLocalBus()
	src := &source{items: map[string][]string{"p": {"x"}}}

	c := NewCollection[string](bus, slog.Default())
	c.Bind(&Ref{Path: "p"}, src.fetch("p"))
	c.Ready(context.Background())

	c.Bind(nil, nil)
	data, loading := c.Snapshot()
	if !loading || len(data) != 0 {
		t.Errorf("after unbind data=%v loading=%v, want empty and loading", data, loading)
	}
	if bus.SubscriberCount("p") != 0 {
		t.Error("unbind must cancel the subscription")
	}
}

func TestCollectionFetchErrorKeepsData(t *testing.T) {
	bus := NewLocalBus()
	src := &source{items: map[string][]string{"p": {"x"}}}

	c := NewCollection[string](bus, slog.Default())
	defer c.Close()
	c.Bind(&Ref{Path: "p"}, src.fetch("p"))
	c.Ready(context.Background())

	src.mu.Lock()
	src.err = errors.New("boom")
	src.mu.Unlock()
	bus.Publish(context.Background(), "p")

	waitFor(t, func() bool { return c.Err() != nil })
	data, _ := c.Snapshot()
	if len(data) != 1 || data[0] != "x" {
		t.Errorf("data = %v, want previous snapshot kept", data)
	}
}

func TestCollectionOnChange(t *testing.T) {
	bus := NewLocalBus()
	src := &source{items: map[string][]string{"p": {"x"}}}

	c := NewCollection[string](bus, slog.Default())
	defer c.Close()

	var changes atomic.Int32
	cancel := c.OnChange(func() { changes.Add(1) })

	c.Bind(&Ref{Path: "p"}, src.fetch("p"))
	waitFor(t, func() bool { return changes.Load() >= 2 })

	cancel()
	before := changes.Load()
	bus.Publish(context.Background(), "p")
	time.Sleep(20 * time.Millisecond)
	if changes.Load() != before {
		t.Error("listener called after cancel")
	}
}

func TestDocument(t *testing.T) {
	bus := NewLocalBus()
	var present atomic.Bool

	d := NewDocument[string](bus, slog.Default())
	defer d.Close()
	d.Bind(&Ref{Path: "users/u1"}, func(ctx context.Context) (*string, error) {
		if !present.Load() {
			return nil, nil
		}
		v := "profile"
		return &v, nil
	})
	d.Ready(context.Background())

	if v, loading := d.Snapshot(); v != nil || loading {
		t.Errorf("snapshot = %v, %v; want nil, false", v, loading)
	}

	present.Store(true)
	bus.Publish(context.Background(), "users/u1")
	waitFor(t, func() bool {
		v, _ := d.Snapshot()
		return v != nil && *v == "profile"
	})
}
