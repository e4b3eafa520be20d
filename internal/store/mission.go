package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/zenith/internal/model"
	"github.com/google/uuid"
)

type MissionStore struct {
	db *sql.DB
}

func NewMissionStore(db *sql.DB) *MissionStore {
	return &MissionStore{db: db}
}

const missionCols = `id, user_id, title, total_goals, completed_goals, roadmap, created_at`

func scanMission(s scanner) (*model.Mission, error) {
	var m model.Mission
	var createdAt Timestamp
	var roadmap sql.NullString

	err := s.Scan(&m.ID, &m.UserID, &m.Title, &m.TotalGoals, &m.CompletedGoals, &roadmap, &createdAt)
	if err != nil {
		return nil, err
	}

	m.CreatedAt = createdAt.Time()
	m.Progress = model.ComputeProgress(m.TotalGoals, m.CompletedGoals)
	if m.Roadmap, err = decodeRoadmap(roadmap); err != nil {
		return nil, err
	}
	return &m, nil
}

// Create inserts a mission with both goal counters at zero.
func (s *MissionStore) Create(ctx context.Context, uid, title string) (*model.Mission, error) {
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO missions (id, user_id, title, total_goals, completed_goals, created_at) VALUES (?, ?, ?, 0, 0, ?)`,
		id, uid, title, FromTime(time.Now()),
	)
	if err != nil {
		return nil, fmt.Errorf("insert mission: %w", err)
	}
	return s.GetByID(ctx, uid, id)
}

func (s *MissionStore) GetByID(ctx context.Context, uid, id string) (*model.Mission, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+missionCols+` FROM missions WHERE id = ? AND user_id = ?`, id, uid)
	m, err := scanMission(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get mission: %w", err)
	}
	return m, nil
}

// ListByUser returns the user's missions, newest first.
func (s *MissionStore) ListByUser(ctx context.Context, uid string) ([]model.Mission, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+missionCols+` FROM missions WHERE user_id = ? ORDER BY created_at DESC`, uid)
	if err != nil {
		return nil, fmt.Errorf("list missions: %w", err)
	}
	defer rows.Close()

	missions := []model.Mission{}
	for rows.Next() {
		m, err := scanMission(rows)
		if err != nil {
			return nil, fmt.Errorf("scan mission: %w", err)
		}
		missions = append(missions, *m)
	}
	return missions, rows.Err()
}

func (s *MissionStore) Update(ctx context.Context, uid, id string, u model.MissionUpdate) error {
	if u.Title == nil {
		return nil
	}
	result, err := s.db.ExecContext(ctx, `UPDATE missions SET title = ? WHERE id = ? AND user_id = ?`, *u.Title, id, uid)
	if err != nil {
		return fmt.Errorf("update mission: %w", err)
	}
	return requireAffected(result)
}

func (s *MissionStore) SetRoadmap(ctx context.Context, uid, id string, r *model.Roadmap) error {
	enc, err := encodeRoadmap(r)
	if err != nil {
		return err
	}
	result, err := s.db.ExecContext(ctx, `UPDATE missions SET roadmap = ? WHERE id = ? AND user_id = ?`, enc, id, uid)
	if err != nil {
		return fmt.Errorf("set mission roadmap: %w", err)
	}
	return requireAffected(result)
}

// DeleteCascade removes every goal of the mission and then the mission
// itself in one transaction. Either everything is deleted or nothing is.
// It returns ErrNotFound when the mission does not exist.
func (s *MissionStore) DeleteCascade(ctx context.Context, uid, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM goals WHERE mission_id = ? AND user_id = ?`, id, uid); err != nil {
		return fmt.Errorf("delete mission goals: %w", err)
	}
	result, err := tx.ExecContext(ctx, `DELETE FROM missions WHERE id = ? AND user_id = ?`, id, uid)
	if err != nil {
		return fmt.Errorf("delete mission: %w", err)
	}
	if err := requireAffected(result); err != nil {
		return err
	}
	return tx.Commit()
}
