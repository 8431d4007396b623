package domain

import "time"

// Task is an in-game assignment shown to players for a reward.
type Task struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Reward      int64     `json:"reward"`
	Link        string    `json:"link"`
	ImageURL    string    `json:"imageUrl"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"createdAt"`
}
