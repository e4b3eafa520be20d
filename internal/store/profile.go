package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/zenith/internal/model"
)

type ProfileStore struct {
	db *sql.DB
}

func NewProfileStore(db *sql.DB) *ProfileStore {
	return &ProfileStore{db: db}
}

func (s *ProfileStore) Get(ctx context.Context, uid string) (*model.Profile, error) {
	var p model.Profile
	var height, weight sql.NullFloat64
	var updatedAt Timestamp
	err := s.db.QueryRowContext(ctx,
		`SELECT user_id, name, email, class, height, weight, updated_at FROM user_profiles WHERE user_id = ?`, uid,
	).Scan(&p.UserID, &p.Name, &p.Email, &p.Class, &height, &weight, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}

	p.UpdatedAt = updatedAt.Time()
	if height.Valid {
		p.Height = &height.Float64
	}
	if weight.Valid {
		p.Weight = &weight.Float64
	}
	if p.Height != nil && p.Weight != nil {
		if bmi, ok := model.ComputeBMI(*p.Height, *p.Weight); ok {
			p.BMI = &bmi
		}
	}
	return &p, nil
}

// Merge creates the profile if needed and overwrites only the fields set
// in u.
func (s *ProfileStore) Merge(ctx context.Context, uid string, u model.ProfileUpdate) (*model.Profile, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO user_profiles (user_id, name, email, class, height, weight, updated_at)
		 VALUES (?1, COALESCE(?2, ''), COALESCE(?3, ''), COALESCE(?4, ''), ?5, ?6, ?7)
		 ON CONFLICT(user_id) DO UPDATE SET
		   name = COALESCE(?2, name),
		   email = COALESCE(?3, email),
		   class = COALESCE(?4, class),
		   height = COALESCE(?5, height),
		   weight = COALESCE(?6, weight),
		   updated_at = ?7`,
		uid, u.Name, u.Email, u.Class, u.Height, u.Weight, FromTime(time.Now()),
	)
	if err != nil {
		return nil, fmt.Errorf("merge profile: %w", err)
	}
	return s.Get(ctx, uid)
}
