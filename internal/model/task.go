package model

import "time"

type Task struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Deadline    time.Time `json:"deadline"`
	Completed   bool      `json:"completed"`
	Subtasks    []string  `json:"subtasks,omitempty"`
	Roadmap     *Roadmap  `json:"roadmap,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// NewTask holds the caller-supplied fields of a task being created.
type NewTask struct {
	Title       string
	Description string
	Deadline    time.Time
	Subtasks    []string
}

// TaskUpdate is a partial update; nil fields are left untouched.
type TaskUpdate struct {
	Title       *string    `json:"title,omitempty"`
	Description *string    `json:"description,omitempty"`
	Deadline    *time.Time `json:"deadline,omitempty"`
	Completed   *bool      `json:"completed,omitempty"`
	Subtasks    *[]string  `json:"subtasks,omitempty"`
}

// Empty reports whether the update changes nothing.
func (u TaskUpdate) Empty() bool {
	return u.Title == nil && u.Description == nil && u.Deadline == nil && u.Completed == nil && u.Subtasks == nil
}
