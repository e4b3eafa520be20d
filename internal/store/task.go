package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/dukerupert/zenith/internal/model"
	"github.com/google/uuid"
)

type TaskStore struct {
	db *sql.DB
}

func NewTaskStore(db *sql.DB) *TaskStore {
	return &TaskStore{db: db}
}

const taskCols = `id, user_id, title, description, deadline, completed, subtasks, roadmap, created_at`

func scanTask(s scanner) (*model.Task, error) {
	var t model.Task
	var deadline, createdAt Timestamp
	var completed int
	var subtasks string
	var roadmap sql.NullString

	err := s.Scan(&t.ID, &t.UserID, &t.Title, &t.Description, &deadline, &completed, &subtasks, &roadmap, &createdAt)
	if err != nil {
		return nil, err
	}

	t.Deadline = deadline.Time()
	t.CreatedAt = createdAt.Time()
	t.Completed = completed != 0
	if err := json.Unmarshal([]byte(subtasks), &t.Subtasks); err != nil {
		return nil, fmt.Errorf("decode subtasks: %w", err)
	}
	if len(t.Subtasks) == 0 {
		t.Subtasks = nil
	}
	if t.Roadmap, err = decodeRoadmap(roadmap); err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *TaskStore) Create(ctx context.Context, uid string, in model.NewTask) (*model.Task, error) {
	subtasks, err := encodeSubtasks(in.Subtasks)
	if err != nil {
		return nil, err
	}

	id := uuid.NewString()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO tasks (id, user_id, title, description, deadline, completed, subtasks, created_at) VALUES (?, ?, ?, ?, ?, 0, ?, ?)`,
		id, uid, in.Title, in.Description, FromTime(in.Deadline), subtasks, FromTime(time.Now()),
	)
	if err != nil {
		return nil, fmt.Errorf("insert task: %w", err)
	}
	return s.GetByID(ctx, uid, id)
}

func (s *TaskStore) GetByID(ctx context.Context, uid, id string) (*model.Task, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+taskCols+` FROM tasks WHERE id = ? AND user_id = ?`, id, uid)
	t, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	return t, nil
}

// ListByUser returns the user's tasks ordered by deadline, earliest first.
func (s *TaskStore) ListByUser(ctx context.Context, uid string) ([]model.Task, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+taskCols+` FROM tasks WHERE user_id = ? ORDER BY deadline ASC, created_at ASC`, uid)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	tasks := []model.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, *t)
	}
	return tasks, rows.Err()
}

// Update applies the non-nil fields of u. It returns ErrNotFound when the
// task does not exist.
func (s *TaskStore) Update(ctx context.Context, uid, id string, u model.TaskUpdate) error {
	var sets []string
	var args []any
	if u.Title != nil {
		sets = append(sets, "title = ?")
		args = append(args, *u.Title)
	}
	if u.Description != nil {
		sets = append(sets, "description = ?")
		args = append(args, *u.Description)
	}
	if u.Deadline != nil {
		sets = append(sets, "deadline = ?")
		args = append(args, FromTime(*u.Deadline))
	}
	if u.Completed != nil {
		sets = append(sets, "completed = ?")
		args = append(args, boolToInt(*u.Completed))
	}
	if u.Subtasks != nil {
		enc, err := encodeSubtasks(*u.Subtasks)
		if err != nil {
			return err
		}
		sets = append(sets, "subtasks = ?")
		args = append(args, enc)
	}
	if len(sets) == 0 {
		return nil
	}

	args = append(args, id, uid)
	result, err := s.db.ExecContext(ctx, `UPDATE tasks SET `+strings.Join(sets, ", ")+` WHERE id = ? AND user_id = ?`, args...)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	return requireAffected(result)
}

// ToggleCompleted flips the completed flag in a single statement so
// concurrent toggles never read a stale value.
func (s *TaskStore) ToggleCompleted(ctx context.Context, uid, id string) error {
	result, err := s.db.ExecContext(ctx, `UPDATE tasks SET completed = NOT completed WHERE id = ? AND user_id = ?`, id, uid)
	if err != nil {
		return fmt.Errorf("toggle task: %w", err)
	}
	return requireAffected(result)
}

func (s *TaskStore) SetRoadmap(ctx context.Context, uid, id string, r *model.Roadmap) error {
	enc, err := encodeRoadmap(r)
	if err != nil {
		return err
	}
	result, err := s.db.ExecContext(ctx, `UPDATE tasks SET roadmap = ? WHERE id = ? AND user_id = ?`, enc, id, uid)
	if err != nil {
		return fmt.Errorf("set task roadmap: %w", err)
	}
	return requireAffected(result)
}

func (s *TaskStore) Delete(ctx context.Context, uid, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ? AND user_id = ?`, id, uid)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	return requireAffected(result)
}

func encodeSubtasks(subtasks []string) (string, error) {
	if subtasks == nil {
		subtasks = []string{}
	}
	data, err := json.Marshal(subtasks)
	if err != nil {
		return "", fmt.Errorf("encode subtasks: %w", err)
	}
	return string(data), nil
}

func encodeRoadmap(r *model.Roadmap) (sql.NullString, error) {
	if r == nil {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(r)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("encode roadmap: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func decodeRoadmap(v sql.NullString) (*model.Roadmap, error) {
	if !v.Valid || v.String == "" {
		return nil, nil
	}
	var r model.Roadmap
	if err := json.Unmarshal([]byte(v.String), &r); err != nil {
		return nil, fmt.Errorf("decode roadmap: %w", err)
	}
	return &r, nil
}

func requireAffected(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
