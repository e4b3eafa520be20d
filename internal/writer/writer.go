// Package writer applies store mutations off the caller's goroutine and
// reports failures to an injected Reporter.
package writer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dukerupert/zenith/internal/live"
)

type Operation string

const (
	OpCreate Operation = "create"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
)

// Error describes a failed write. It unwraps to the store error.
type Error struct {
	UserID              string
	Path                string
	Operation           Operation
	RequestResourceData any
	Err                 error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Operation, e.Path, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Reporter receives every failed write. It is called on the write's
// goroutine.
type Reporter func(ctx context.Context, err *Error)

// Write is a single mutation. Apply performs it against the store; on
// success every topic in Topics is published on the bus.
type Write struct {
	UserID string
	Path   string
	Op     Operation
	Data   any
	Topics []string
	Apply  func(ctx context.Context) error
}

type job struct {
	ctx  context.Context
	w    Write
	done chan error
}

// lane serializes the writes of one user so they start in call order.
type lane struct {
	pending []job
}

type Writer struct {
	bus      live.Bus
	reporter Reporter
	logger   *slog.Logger

	mu    sync.Mutex
	lanes map[string]*lane
	wg    sync.WaitGroup
}

// New returns a Writer. A nil reporter only logs failures.
func New(bus live.Bus, reporter Reporter, logger *slog.Logger) *Writer {
	return &Writer{
		bus:      bus,
		reporter: reporter,
		logger:   logger,
		lanes:    make(map[string]*lane),
	}
}

// Go queues w and returns immediately. The write is detached from ctx
// cancellation.
func (wr *Writer) Go(ctx context.Context, w Write) {
	wr.enqueue(job{ctx: context.WithoutCancel(ctx), w: w})
}

// Do queues w and waits for it to finish. If ctx ends first Do returns
// ctx.Err() and the write still runs to completion.
func (wr *Writer) Do(ctx context.Context, w Write) error {
	done := make(chan error, 1)
	wr.enqueue(job{ctx: context.WithoutCancel(ctx), w: w, done: done})

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Wait blocks until every queued write has finished.
func (wr *Writer) Wait() {
	wr.wg.Wait()
}

func (wr *Writer) enqueue(j job) {
	wr.wg.Add(1)

	wr.mu.Lock()
	l, running := wr.lanes[j.w.UserID]
	if !running {
		l = &lane{}
		wr.lanes[j.w.UserID] = l
	}
	l.pending = append(l.pending, j)
	wr.mu.Unlock()

	if !running {
		go wr.drain(j.w.UserID, l)
	}
}

func (wr *Writer) drain(userID string, l *lane) {
	for {
		wr.mu.Lock()
		if len(l.pending) == 0 {
			delete(wr.lanes, userID)
			wr.mu.Unlock()
			return
		}
		j := l.pending[0]
		l.pending = l.pending[1:]
		wr.mu.Unlock()

		err := wr.apply(j.ctx, j.w)
		if j.done != nil {
			j.done <- err
		}
		wr.wg.Done()
	}
}

func (wr *Writer) apply(ctx context.Context, w Write) error {
	if err := w.Apply(ctx); err != nil {
		werr := &Error{
			UserID:              w.UserID,
			Path:                w.Path,
			Operation:           w.Op,
			RequestResourceData: w.Data,
			Err:                 err,
		}
		wr.logger.Error("write failed",
			"user_id", w.UserID,
			"path", w.Path,
			"operation", string(w.Op),
			"error", err,
		)
		if wr.reporter != nil {
			wr.reporter(ctx, werr)
		}
		return werr
	}

	for _, topic := range w.Topics {
		if err := wr.bus.Publish(ctx, topic); err != nil {
			wr.logger.Warn("publish change failed", "topic", topic, "error", err)
		}
	}
	return nil
}
