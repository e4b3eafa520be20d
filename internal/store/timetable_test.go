package store

import (
	"context"
	"errors"
	"testing"

	"github.com/dukerupert/zenith/internal/model"
)

func countByType(events []model.TimetableEvent) (custom, task int) {
	for _, e := range events {
		switch e.Type {
		case model.EventTypeCustom:
			custom++
		case model.EventTypeTask:
			task++
		}
	}
	return custom, task
}

func TestReplaceTaskEventsKeepsCustom(t *testing.T) {
	s := NewTimetableStore(setupTestDB(t))
	ctx := context.Background()

	_, err := s.AddCustom(ctx, "u1", []model.EventInput{
		{Title: "Gym", Day: "Monday", StartTime: "8:00 AM", EndTime: "9:00 AM"},
	})
	if err != nil {
		t.Fatalf("add custom: %v", err)
	}

	first := []model.EventInput{
		{Title: "Study math", Day: "Tuesday", StartTime: "10:00 AM", EndTime: "11:00 AM"},
		{Title: "Essay", Day: "Wednesday", StartTime: "1:00 PM", EndTime: "2:00 PM"},
	}
	if _, err := s.ReplaceTaskEvents(ctx, "u1", first); err != nil {
		t.Fatalf("replace: %v", err)
	}

	second := []model.EventInput{
		{Title: "Physics", Day: "Friday", StartTime: "3:00 PM", EndTime: "4:00 PM"},
	}
	if _, err := s.ReplaceTaskEvents(ctx, "u1", second); err != nil {
		t.Fatalf("replace again: %v", err)
	}

	events, err := s.ListByUser(ctx, "u1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	custom, task := countByType(events)
	if custom != 1 || task != 1 {
		t.Fatalf("custom=%d task=%d, want 1 and 1", custom, task)
	}
	for _, e := range events {
		if e.Type == model.EventTypeTask && e.Title != "Physics" {
			t.Errorf("stale task event %q survived", e.Title)
		}
		if model.SlotIndex(e.StartTime) >= model.SlotIndex(e.EndTime) {
			t.Errorf("event %q has start >= end", e.Title)
		}
	}
}

func TestReplaceTaskEventsRejectsInvalidBatch(t *testing.T) {
	s := NewTimetableStore(setupTestDB(t))
	ctx := context.Background()

	s.ReplaceTaskEvents(ctx, "u1", []model.EventInput{
		{Title: "keep", Day: "Monday", StartTime: "9:00 AM", EndTime: "10:00 AM"},
	})

	_, err := s.ReplaceTaskEvents(ctx, "u1", []model.EventInput{
		{Title: "ok", Day: "Monday", StartTime: "9:00 AM", EndTime: "10:00 AM"},
		{Title: "bad", Day: "Monday", StartTime: "5:00 PM", EndTime: "4:00 PM"},
	})
	if err == nil {
		t.Fatal("expected error for inverted slot range")
	}

	events, _ := s.ListByUser(ctx, "u1")
	if len(events) != 1 || events[0].Title != "keep" {
		t.Errorf("failed replace must roll back, got %+v", events)
	}
}

func TestListOrderedByDayAndSlot(t *testing.T) {
	s := NewTimetableStore(setupTestDB(t))
	ctx := context.Background()

	s.AddCustom(ctx, "u1", []model.EventInput{
		{Title: "c", Day: "Wednesday", StartTime: "9:00 AM", EndTime: "10:00 AM"},
		{Title: "b", Day: "Monday", StartTime: "1:00 PM", EndTime: "2:00 PM"},
		{Title: "a", Day: "Monday", StartTime: "9:00 AM", EndTime: "10:00 AM"},
	})

	events, _ := s.ListByUser(ctx, "u1")
	var titles string
	for _, e := range events {
		titles += e.Title
	}
	if titles != "abc" {
		t.Errorf("order = %q, want abc", titles)
	}
}

func TestDeleteCustomAndClear(t *testing.T) {
	s := NewTimetableStore(setupTestDB(t))
	ctx := context.Background()

	custom, _ := s.AddCustom(ctx, "u1", []model.EventInput{
		{Title: "Gym", Day: "Monday", StartTime: "8:00 AM", EndTime: "9:00 AM"},
		{Title: "Piano", Day: "Tuesday", StartTime: "8:00 AM", EndTime: "9:00 AM"},
	})
	tasks, _ := s.ReplaceTaskEvents(ctx, "u1", []model.EventInput{
		{Title: "Study", Day: "Monday", StartTime: "10:00 AM", EndTime: "11:00 AM"},
	})

	if err := s.DeleteCustom(ctx, "u1", tasks[0].ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("deleting a task event as custom err = %v, want ErrNotFound", err)
	}
	if err := s.DeleteCustom(ctx, "u1", custom[0].ID); err != nil {
		t.Fatalf("delete custom: %v", err)
	}

	if err := s.Clear(ctx, "u1", model.EventTypeTask); err != nil {
		t.Fatalf("clear task: %v", err)
	}
	events, _ := s.ListByUser(ctx, "u1")
	c, tk := countByType(events)
	if c != 1 || tk != 0 {
		t.Errorf("custom=%d task=%d, want 1 and 0", c, tk)
	}

	if err := s.Clear(ctx, "u1", ""); err != nil {
		t.Fatalf("clear all: %v", err)
	}
	events, _ = s.ListByUser(ctx, "u1")
	if len(events) != 0 {
		t.Errorf("len(events) = %d, want 0", len(events))
	}
}
