package planner

import (
	"context"
	"fmt"

	"github.com/dukerupert/zenith/internal/live"
	"github.com/dukerupert/zenith/internal/model"
	"github.com/dukerupert/zenith/internal/store"
	"github.com/dukerupert/zenith/internal/writer"
)

// Tasks is the live task list of one user, sorted by deadline.
type Tasks struct {
	scope
	d   *Deps
	col *live.Collection[model.Task]
}

func newTasks(d *Deps) *Tasks {
	return &Tasks{d: d, col: live.NewCollection[model.Task](d.Bus, d.Logger)}
}

func (t *Tasks) bind(uid string) {
	t.setUser(uid)
	if uid == "" {
		t.col.Bind(nil, nil)
		return
	}
	t.col.Bind(&live.Ref{Path: store.TasksPath(uid)}, func(ctx context.Context) ([]model.Task, error) {
		return t.d.Tasks.ListByUser(ctx, uid)
	})
}

// List returns the current snapshot and whether it is still loading.
func (t *Tasks) List() ([]model.Task, bool) {
	return t.col.Snapshot()
}

// Get looks id up in the current snapshot.
func (t *Tasks) Get(id string) (model.Task, bool) {
	tasks, _ := t.col.Snapshot()
	for _, task := range tasks {
		if task.ID == id {
			return task, true
		}
	}
	return model.Task{}, false
}

// Add creates a task and waits for the write to finish.
func (t *Tasks) Add(ctx context.Context, in model.NewTask) (*model.Task, error) {
	uid, err := t.user()
	if err != nil {
		return nil, err
	}

	var created *model.Task
	err = t.d.Writer.Do(ctx, writer.Write{
		UserID: uid,
		Path:   store.TasksPath(uid),
		Op:     writer.OpCreate,
		Data:   in,
		Topics: []string{store.TasksPath(uid)},
		Apply: func(ctx context.Context) error {
			task, err := t.d.Tasks.Create(ctx, uid, in)
			created = task
			return err
		},
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// Update queues a partial update. Failures go to the writer's reporter.
func (t *Tasks) Update(ctx context.Context, id string, u model.TaskUpdate) error {
	uid, err := t.user()
	if err != nil {
		return err
	}
	if u.Empty() {
		return nil
	}

	t.d.Writer.Go(ctx, writer.Write{
		UserID: uid,
		Path:   store.TaskPath(uid, id),
		Op:     writer.OpUpdate,
		Data:   u,
		Topics: []string{store.TasksPath(uid)},
		Apply: func(ctx context.Context) error {
			return t.d.Tasks.Update(ctx, uid, id, u)
		},
	})
	return nil
}

// Toggle queues a flip of the task's completed flag. The task must be
// known; the flip itself is applied atomically by the store.
func (t *Tasks) Toggle(ctx context.Context, id string) error {
	uid, err := t.user()
	if err != nil {
		return err
	}

	task, ok := t.Get(id)
	if !ok {
		found, err := t.d.Tasks.GetByID(ctx, uid, id)
		if err != nil {
			return err
		}
		if found == nil {
			return fmt.Errorf("toggle task %s: %w", id, store.ErrNotFound)
		}
		task = *found
	}

	t.d.Writer.Go(ctx, writer.Write{
		UserID: uid,
		Path:   store.TaskPath(uid, id),
		Op:     writer.OpUpdate,
		Data:   map[string]bool{"completed": !task.Completed},
		Topics: []string{store.TasksPath(uid)},
		Apply: func(ctx context.Context) error {
			return t.d.Tasks.ToggleCompleted(ctx, uid, id)
		},
	})
	return nil
}

// Delete queues removal of the task.
func (t *Tasks) Delete(ctx context.Context, id string) error {
	uid, err := t.user()
	if err != nil {
		return err
	}

	t.d.Writer.Go(ctx, writer.Write{
		UserID: uid,
		Path:   store.TaskPath(uid, id),
		Op:     writer.OpDelete,
		Topics: []string{store.TasksPath(uid)},
		Apply: func(ctx context.Context) error {
			return t.d.Tasks.Delete(ctx, uid, id)
		},
	})
	return nil
}

// SetRoadmap caches a generated roadmap on the task.
func (t *Tasks) SetRoadmap(ctx context.Context, id string, r *model.Roadmap) error {
	uid, err := t.user()
	if err != nil {
		return err
	}

	return t.d.Writer.Do(ctx, writer.Write{
		UserID: uid,
		Path:   store.TaskPath(uid, id),
		Op:     writer.OpUpdate,
		Data:   r,
		Topics: []string{store.TasksPath(uid)},
		Apply: func(ctx context.Context) error {
			return t.d.Tasks.SetRoadmap(ctx, uid, id, r)
		},
	})
}
