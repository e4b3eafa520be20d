package model

import "time"

// Mission is a long-term objective broken into goals. Progress is derived
// from the goal counters and never stored.
type Mission struct {
	ID             string    `json:"id"`
	UserID         string    `json:"user_id"`
	Title          string    `json:"title"`
	TotalGoals     int       `json:"total_goals"`
	CompletedGoals int       `json:"completed_goals"`
	Progress       float64   `json:"progress"`
	Roadmap        *Roadmap  `json:"roadmap,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

type MissionUpdate struct {
	Title *string `json:"title,omitempty"`
}

type Goal struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	MissionID   string    `json:"mission_id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Completed   bool      `json:"completed"`
	CreatedAt   time.Time `json:"created_at"`
}

type NewGoal struct {
	Title       string
	Description string
}

// ComputeProgress returns completed/total as a percentage, or 0 for a
// mission without goals.
func ComputeProgress(total, completed int) float64 {
	if total <= 0 {
		return 0
	}
	return float64(completed) / float64(total) * 100
}
