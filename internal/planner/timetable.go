package planner

import (
	"context"
	"fmt"

	"github.com/dukerupert/zenith/internal/live"
	"github.com/dukerupert/zenith/internal/model"
	"github.com/dukerupert/zenith/internal/store"
	"github.com/dukerupert/zenith/internal/writer"
)

// Timetable is the weekly event list of one user, ordered by day then
// start slot.
type Timetable struct {
	scope
	d   *Deps
	col *live.Collection[model.TimetableEvent]
}

func newTimetable(d *Deps) *Timetable {
	return &Timetable{d: d, col: live.NewCollection[model.TimetableEvent](d.Bus, d.Logger)}
}

func (t *Timetable) bind(uid string) {
	t.setUser(uid)
	if uid == "" {
		t.col.Bind(nil, nil)
		return
	}
	t.col.Bind(&live.Ref{Path: store.TimetablePath(uid)}, func(ctx context.Context) ([]model.TimetableEvent, error) {
		return t.d.Timetable.ListByUser(ctx, uid)
	})
}

func (t *Timetable) List() ([]model.TimetableEvent, bool) {
	return t.col.Snapshot()
}

// SetEvents replaces every task-type event with events in one
// transaction. Custom events are kept.
func (t *Timetable) SetEvents(ctx context.Context, events []model.EventInput) ([]model.TimetableEvent, error) {
	return t.batch(ctx, events, func(ctx context.Context, uid string) ([]model.TimetableEvent, error) {
		return t.d.Timetable.ReplaceTaskEvents(ctx, uid, events)
	})
}

// AddCustomEvents inserts user-authored events.
func (t *Timetable) AddCustomEvents(ctx context.Context, events []model.EventInput) ([]model.TimetableEvent, error) {
	return t.batch(ctx, events, func(ctx context.Context, uid string) ([]model.TimetableEvent, error) {
		return t.d.Timetable.AddCustom(ctx, uid, events)
	})
}

func (t *Timetable) batch(ctx context.Context, events []model.EventInput, fn func(ctx context.Context, uid string) ([]model.TimetableEvent, error)) ([]model.TimetableEvent, error) {
	uid, err := t.user()
	if err != nil {
		return nil, err
	}

	var created []model.TimetableEvent
	err = t.d.Writer.Do(ctx, writer.Write{
		UserID: uid,
		Path:   store.TimetablePath(uid),
		Op:     writer.OpCreate,
		Data:   events,
		Topics: []string{store.TimetablePath(uid)},
		Apply: func(ctx context.Context) error {
			evs, err := fn(ctx, uid)
			created = evs
			return err
		},
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// DeleteCustomEvent removes one custom event. Task events cannot be
// removed individually.
func (t *Timetable) DeleteCustomEvent(ctx context.Context, id string) error {
	uid, err := t.user()
	if err != nil {
		return err
	}

	return t.d.Writer.Do(ctx, writer.Write{
		UserID: uid,
		Path:   store.EventPath(uid, id),
		Op:     writer.OpDelete,
		Topics: []string{store.TimetablePath(uid)},
		Apply: func(ctx context.Context) error {
			return t.d.Timetable.DeleteCustom(ctx, uid, id)
		},
	})
}

// ClearEvents removes the user's "task", "custom" or "all" events.
func (t *Timetable) ClearEvents(ctx context.Context, which string) error {
	var eventType model.EventType
	switch which {
	case "task":
		eventType = model.EventTypeTask
	case "custom":
		eventType = model.EventTypeCustom
	case "all":
	default:
		return fmt.Errorf("%w: %q", ErrInvalidScope, which)
	}

	uid, err := t.user()
	if err != nil {
		return err
	}

	return t.d.Writer.Do(ctx, writer.Write{
		UserID: uid,
		Path:   store.TimetablePath(uid),
		Op:     writer.OpDelete,
		Data:   map[string]string{"type": which},
		Topics: []string{store.TimetablePath(uid)},
		Apply: func(ctx context.Context) error {
			return t.d.Timetable.Clear(ctx, uid, eventType)
		},
	})
}
