package model

import (
	"math"
	"time"
)

// Profile is the per-user document stored at users/{uid}.
type Profile struct {
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Class     string    `json:"class"`
	Height    *float64  `json:"height,omitempty"`
	Weight    *float64  `json:"weight,omitempty"`
	BMI       *float64  `json:"bmi,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ProfileUpdate is merged into the stored profile; nil fields are kept.
type ProfileUpdate struct {
	Name   *string  `json:"name,omitempty"`
	Email  *string  `json:"email,omitempty" validate:"omitempty,email"`
	Class  *string  `json:"class,omitempty"`
	Height *float64 `json:"height,omitempty" validate:"omitempty,gt=0"`
	Weight *float64 `json:"weight,omitempty" validate:"omitempty,gt=0"`
}

// ComputeBMI returns weight (kg) / height (m)^2 rounded to one decimal.
// ok is false unless both measurements are positive.
func ComputeBMI(heightCM, weightKG float64) (bmi float64, ok bool) {
	if heightCM <= 0 || weightKG <= 0 {
		return 0, false
	}
	m := heightCM / 100
	return math.Round(weightKG/(m*m)*10) / 10, true
}
