package store

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"time"

	"github.com/dukerupert/zenith/internal/model"
	"github.com/google/uuid"
)

type TimetableStore struct {
	db *sql.DB
}

func NewTimetableStore(db *sql.DB) *TimetableStore {
	return &TimetableStore{db: db}
}

const eventCols = `id, user_id, title, day, start_time, end_time, type, created_at`

func scanEvent(s scanner) (*model.TimetableEvent, error) {
	var e model.TimetableEvent
	var createdAt Timestamp
	if err := s.Scan(&e.ID, &e.UserID, &e.Title, &e.Day, &e.StartTime, &e.EndTime, &e.Type, &createdAt); err != nil {
		return nil, err
	}
	e.CreatedAt = createdAt.Time()
	return &e, nil
}

// ListByUser returns the user's events ordered by weekday, then start slot.
func (s *TimetableStore) ListByUser(ctx context.Context, uid string) ([]model.TimetableEvent, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+eventCols+` FROM timetable_events WHERE user_id = ? ORDER BY created_at ASC`, uid)
	if err != nil {
		return nil, fmt.Errorf("list timetable events: %w", err)
	}
	defer rows.Close()

	events := []model.TimetableEvent{}
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan timetable event: %w", err)
		}
		events = append(events, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	slices.SortStableFunc(events, func(a, b model.TimetableEvent) int {
		if d := slices.Index(model.Days, a.Day) - slices.Index(model.Days, b.Day); d != 0 {
			return d
		}
		return model.SlotIndex(a.StartTime) - model.SlotIndex(b.StartTime)
	})
	return events, nil
}

// ReplaceTaskEvents deletes every task-type event of the user and inserts
// events in one transaction. Custom events are untouched.
func (s *TimetableStore) ReplaceTaskEvents(ctx context.Context, uid string, events []model.EventInput) ([]model.TimetableEvent, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM timetable_events WHERE user_id = ? AND type = ?`, uid, model.EventTypeTask); err != nil {
		return nil, fmt.Errorf("delete task events: %w", err)
	}
	created, err := insertEvents(ctx, tx, uid, model.EventTypeTask, events)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return created, nil
}

// AddCustom inserts user-authored events in one batch.
func (s *TimetableStore) AddCustom(ctx context.Context, uid string, events []model.EventInput) ([]model.TimetableEvent, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	created, err := insertEvents(ctx, tx, uid, model.EventTypeCustom, events)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return created, nil
}

// DeleteCustom removes a single custom event. Task events are only ever
// replaced wholesale and cannot be deleted individually.
func (s *TimetableStore) DeleteCustom(ctx context.Context, uid, id string) error {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM timetable_events WHERE id = ? AND user_id = ? AND type = ?`,
		id, uid, model.EventTypeCustom,
	)
	if err != nil {
		return fmt.Errorf("delete custom event: %w", err)
	}
	return requireAffected(result)
}

// Clear removes the user's events of the given type, or all of them when
// eventType is empty.
func (s *TimetableStore) Clear(ctx context.Context, uid string, eventType model.EventType) error {
	var err error
	if eventType == "" {
		_, err = s.db.ExecContext(ctx, `DELETE FROM timetable_events WHERE user_id = ?`, uid)
	} else {
		_, err = s.db.ExecContext(ctx, `DELETE FROM timetable_events WHERE user_id = ? AND type = ?`, uid, eventType)
	}
	if err != nil {
		return fmt.Errorf("clear timetable events: %w", err)
	}
	return nil
}

func insertEvents(ctx context.Context, tx *sql.Tx, uid string, eventType model.EventType, events []model.EventInput) ([]model.TimetableEvent, error) {
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO timetable_events (id, user_id, title, day, start_time, end_time, type, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return nil, fmt.Errorf("prepare insert event: %w", err)
	}
	defer stmt.Close()

	createdAt := FromTime(time.Now())
	created := make([]model.TimetableEvent, 0, len(events))
	for _, in := range events {
		if err := in.Validate(); err != nil {
			return nil, fmt.Errorf("invalid event: %w", err)
		}
		e := model.TimetableEvent{
			ID:        uuid.NewString(),
			UserID:    uid,
			Title:     in.Title,
			Day:       in.Day,
			StartTime: in.StartTime,
			EndTime:   in.EndTime,
			Type:      eventType,
			CreatedAt: createdAt.Time(),
		}
		if _, err := stmt.ExecContext(ctx, e.ID, uid, e.Title, e.Day, e.StartTime, e.EndTime, e.Type, createdAt); err != nil {
			return nil, fmt.Errorf("insert event: %w", err)
		}
		created = append(created, e)
	}
	return created, nil
}
