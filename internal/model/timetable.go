package model

import (
	"fmt"
	"slices"
	"time"
)

type EventType string

const (
	EventTypeCustom EventType = "custom"
	EventTypeTask   EventType = "task"
)

// Days lists the weekday names a timetable event may fall on.
var Days = []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

// TimeSlots is the ordered set of hourly boundaries for timetable events.
var TimeSlots = []string{
	"8:00 AM", "9:00 AM", "10:00 AM", "11:00 AM", "12:00 PM",
	"1:00 PM", "2:00 PM", "3:00 PM", "4:00 PM", "5:00 PM",
	"6:00 PM", "7:00 PM", "8:00 PM",
}

// slotLayout parses entries of TimeSlots.
const slotLayout = "3:04 PM"

type TimetableEvent struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Title     string    `json:"title"`
	Day       string    `json:"day"`
	StartTime string    `json:"start_time"`
	EndTime   string    `json:"end_time"`
	Type      EventType `json:"type"`
	CreatedAt time.Time `json:"created_at"`
}

// EventInput is the user- or model-supplied part of a timetable event.
type EventInput struct {
	Title     string `json:"title" validate:"required,notblank"`
	Day       string `json:"day" validate:"required,weekday"`
	StartTime string `json:"start_time" validate:"required,timeslot"`
	EndTime   string `json:"end_time" validate:"required,timeslot"`
}

// SlotIndex returns the position of s in TimeSlots, or -1.
func SlotIndex(s string) int {
	return slices.Index(TimeSlots, s)
}

func ValidDay(day string) bool {
	return slices.Contains(Days, day)
}

func (e EventInput) SlotRange() (string, string) { return e.StartTime, e.EndTime }

// Validate checks the day and that the start slot precedes the end slot.
func (e EventInput) Validate() error {
	if e.Title == "" {
		return fmt.Errorf("title is required")
	}
	if !ValidDay(e.Day) {
		return fmt.Errorf("invalid day %q", e.Day)
	}
	start, end := SlotIndex(e.StartTime), SlotIndex(e.EndTime)
	if start < 0 {
		return fmt.Errorf("invalid start time %q", e.StartTime)
	}
	if end < 0 {
		return fmt.Errorf("invalid end time %q", e.EndTime)
	}
	if start >= end {
		return fmt.Errorf("start time %s must be before end time %s", e.StartTime, e.EndTime)
	}
	return nil
}

// StartsAt returns the wall-clock time the event starts on the date of ref,
// in ref's location.
func (e TimetableEvent) StartsAt(ref time.Time) (time.Time, error) {
	t, err := time.Parse(slotLayout, e.StartTime)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse start time: %w", err)
	}
	y, m, d := ref.Date()
	return time.Date(y, m, d, t.Hour(), t.Minute(), 0, 0, ref.Location()), nil
}
