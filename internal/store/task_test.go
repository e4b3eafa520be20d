package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dukerupert/zenith/internal/model"
)

func TestTaskCreateReadBack(t *testing.T) {
	s := NewTaskStore(setupTestDB(t))
	ctx := context.Background()

	deadline := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)
	created, err := s.Create(ctx, "u1", model.NewTask{Title: "Finish Math Homework", Deadline: deadline})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.Completed {
		t.Error("new task should not be completed")
	}

	tasks, err := s.ListByUser(ctx, "u1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(tasks) != 1 {
		t.Fatalf("len(tasks) = %d, want 1", len(tasks))
	}
	if tasks[0].Title != "Finish Math Homework" {
		t.Errorf("title = %q", tasks[0].Title)
	}
	if !tasks[0].Deadline.Equal(deadline) {
		t.Errorf("deadline = %v, want %v", tasks[0].Deadline, deadline)
	}
	if tasks[0].UserID != "u1" {
		t.Errorf("user_id = %q, want u1", tasks[0].UserID)
	}
}

func TestTaskListSortedAndScoped(t *testing.T) {
	s := NewTaskStore(setupTestDB(t))
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	s.Create(ctx, "u1", model.NewTask{Title: "late", Deadline: base.Add(48 * time.Hour)})
	s.Create(ctx, "u1", model.NewTask{Title: "early", Deadline: base})
	s.Create(ctx, "u2", model.NewTask{Title: "other user", Deadline: base})

	tasks, err := s.ListByUser(ctx, "u1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(tasks) != 2 {
		t.Fatalf("len(tasks) = %d, want 2", len(tasks))
	}
	if tasks[0].Title != "early" || tasks[1].Title != "late" {
		t.Errorf("order = %q, %q", tasks[0].Title, tasks[1].Title)
	}
}

func TestTaskUpdateToggleDelete(t *testing.T) {
	s := NewTaskStore(setupTestDB(t))
	ctx := context.Background()

	task, _ := s.Create(ctx, "u1", model.NewTask{Title: "a", Deadline: time.Now(), Subtasks: []string{"one"}})

	title := "renamed"
	newDeadline := time.Date(2026, 5, 1, 9, 30, 0, 0, time.UTC)
	subtasks := []string{"one", "two"}
	if err := s.Update(ctx, "u1", task.ID, model.TaskUpdate{Title: &title, Deadline: &newDeadline, Subtasks: &subtasks}); err != nil {
		t.Fatalf("update: %v", err)
	}

	got, _ := s.GetByID(ctx, "u1", task.ID)
	if got.Title != "renamed" || !got.Deadline.Equal(newDeadline) || len(got.Subtasks) != 2 {
		t.Errorf("after update = %+v", got)
	}

	if err := s.ToggleCompleted(ctx, "u1", task.ID); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	got, _ = s.GetByID(ctx, "u1", task.ID)
	if !got.Completed {
		t.Error("expected completed after toggle")
	}
	s.ToggleCompleted(ctx, "u1", task.ID)
	got, _ = s.GetByID(ctx, "u1", task.ID)
	if got.Completed {
		t.Error("expected not completed after second toggle")
	}

	if err := s.ToggleCompleted(ctx, "u2", task.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("toggle other user's task err = %v, want ErrNotFound", err)
	}

	if err := s.Delete(ctx, "u1", task.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	got, err := s.GetByID(ctx, "u1", task.ID)
	if err != nil || got != nil {
		t.Errorf("after delete = %+v, %v; want nil, nil", got, err)
	}
}

func TestTaskUpdateMissing(t *testing.T) {
	s := NewTaskStore(setupTestDB(t))
	title := "x"
	err := s.Update(context.Background(), "u1", "missing", model.TaskUpdate{Title: &title})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("update err = %v, want ErrNotFound", err)
	}

	err = s.Delete(context.Background(), "u1", "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("delete err = %v, want ErrNotFound", err)
	}
}

func TestTaskDeadlineOutsideNanosecondRange(t *testing.T) {
	s := NewTaskStore(setupTestDB(t))
	ctx := context.Background()

	deadlines := []time.Time{
		time.Date(2300, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC),
		time.Date(1600, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	for _, deadline := range deadlines {
		created, err := s.Create(ctx, "u1", model.NewTask{Title: "far", Deadline: deadline})
		if err != nil {
			t.Fatalf("create %v: %v", deadline, err)
		}
		got, err := s.GetByID(ctx, "u1", created.ID)
		if err != nil || got == nil {
			t.Fatalf("get %v = %+v, %v", deadline, got, err)
		}
		if !got.Deadline.Equal(deadline) {
			t.Errorf("deadline = %v, want %v", got.Deadline, deadline)
		}
	}
}

func TestTaskRoadmap(t *testing.T) {
	s := NewTaskStore(setupTestDB(t))
	ctx := context.Background()
	task, _ := s.Create(ctx, "u1", model.NewTask{Title: "thesis", Deadline: time.Now()})

	r := &model.Roadmap{
		Introduction: "intro",
		Milestones:   []model.Milestone{{Title: "Research", Emoji: "📚", Steps: []string{"read"}}},
		Conclusion:   "done",
	}
	if err := s.SetRoadmap(ctx, "u1", task.ID, r); err != nil {
		t.Fatalf("set roadmap: %v", err)
	}
	got, _ := s.GetByID(ctx, "u1", task.ID)
	if got.Roadmap == nil || got.Roadmap.Milestones[0].Emoji != "📚" {
		t.Errorf("roadmap = %+v", got.Roadmap)
	}
}
