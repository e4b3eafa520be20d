package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/zenith/internal/model"
	"github.com/google/uuid"
)

// GoalStore owns the goals of a mission. Every mutation also adjusts the
// parent mission's counters inside the same transaction, so a mission's
// derived progress never reflects a half-applied change.
type GoalStore struct {
	db *sql.DB
}

func NewGoalStore(db *sql.DB) *GoalStore {
	return &GoalStore{db: db}
}

const goalCols = `id, user_id, mission_id, title, description, completed, created_at`

func scanGoal(s scanner) (*model.Goal, error) {
	var g model.Goal
	var createdAt Timestamp
	var completed int

	err := s.Scan(&g.ID, &g.UserID, &g.MissionID, &g.Title, &g.Description, &completed, &createdAt)
	if err != nil {
		return nil, err
	}
	g.Completed = completed != 0
	g.CreatedAt = createdAt.Time()
	return &g, nil
}

func (s *GoalStore) ListByMission(ctx context.Context, uid, missionID string) ([]model.Goal, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+goalCols+` FROM goals WHERE user_id = ? AND mission_id = ? ORDER BY created_at ASC`,
		uid, missionID,
	)
	if err != nil {
		return nil, fmt.Errorf("list goals: %w", err)
	}
	defer rows.Close()

	goals := []model.Goal{}
	for rows.Next() {
		g, err := scanGoal(rows)
		if err != nil {
			return nil, fmt.Errorf("scan goal: %w", err)
		}
		goals = append(goals, *g)
	}
	return goals, rows.Err()
}

func (s *GoalStore) GetByID(ctx context.Context, uid, missionID, id string) (*model.Goal, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+goalCols+` FROM goals WHERE id = ? AND user_id = ? AND mission_id = ?`,
		id, uid, missionID,
	)
	g, err := scanGoal(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get goal: %w", err)
	}
	return g, nil
}

// Create inserts a goal and increments the mission's total_goals.
func (s *GoalStore) Create(ctx context.Context, uid, missionID string, in model.NewGoal) (*model.Goal, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`UPDATE missions SET total_goals = total_goals + 1 WHERE id = ? AND user_id = ?`,
		missionID, uid,
	)
	if err != nil {
		return nil, fmt.Errorf("increment total goals: %w", err)
	}
	if err := requireAffected(result); err != nil {
		return nil, err
	}

	g := &model.Goal{
		ID:          uuid.NewString(),
		UserID:      uid,
		MissionID:   missionID,
		Title:       in.Title,
		Description: in.Description,
	}
	createdAt := FromTime(time.Now())
	g.CreatedAt = createdAt.Time()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO goals (id, user_id, mission_id, title, description, completed, created_at) VALUES (?, ?, ?, ?, ?, 0, ?)`,
		g.ID, uid, missionID, g.Title, g.Description, createdAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert goal: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return g, nil
}

// Toggle flips the goal's completed flag and moves the mission's
// completed_goals by one in the same direction.
func (s *GoalStore) Toggle(ctx context.Context, uid, missionID, id string) (*model.Goal, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx,
		`SELECT `+goalCols+` FROM goals WHERE id = ? AND user_id = ? AND mission_id = ?`,
		id, uid, missionID,
	)
	g, err := scanGoal(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read goal: %w", err)
	}

	g.Completed = !g.Completed
	delta := -1
	if g.Completed {
		delta = 1
	}

	if _, err := tx.ExecContext(ctx, `UPDATE goals SET completed = ? WHERE id = ?`, boolToInt(g.Completed), id); err != nil {
		return nil, fmt.Errorf("update goal: %w", err)
	}
	result, err := tx.ExecContext(ctx,
		`UPDATE missions SET completed_goals = completed_goals + ? WHERE id = ? AND user_id = ?`,
		delta, missionID, uid,
	)
	if err != nil {
		return nil, fmt.Errorf("adjust completed goals: %w", err)
	}
	if err := requireAffected(result); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return g, nil
}

// Delete removes the goal, decrementing total_goals and, when the goal was
// completed, completed_goals.
func (s *GoalStore) Delete(ctx context.Context, uid, missionID, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var completed int
	err = tx.QueryRowContext(ctx,
		`SELECT completed FROM goals WHERE id = ? AND user_id = ? AND mission_id = ?`,
		id, uid, missionID,
	).Scan(&completed)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("read goal: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM goals WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete goal: %w", err)
	}
	_, err = tx.ExecContext(ctx,
		`UPDATE missions SET total_goals = total_goals - 1, completed_goals = completed_goals - ? WHERE id = ? AND user_id = ?`,
		completed, missionID, uid,
	)
	if err != nil {
		return fmt.Errorf("decrement goal counters: %w", err)
	}

	return tx.Commit()
}
