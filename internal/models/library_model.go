package models

import "time"

// Library is a pool of evergreen posts that share rotation and
// generation settings. Paused libraries are skipped by the scheduler.
type Library struct {
	ID          int64     `db:"id" json:"id"`
	UserID      int64     `db:"user_id" json:"user_id"`
	Name        string    `db:"name" json:"name"`
	Paused      bool      `db:"paused" json:"paused"`
	AutoRewrite bool      `db:"auto_rewrite" json:"auto_rewrite"`
	Platforms   string    `db:"platforms" json:"platforms"` // comma separated
	Tone        string    `db:"tone" json:"tone"`
	Length      string    `db:"length" json:"length"`
	Hashtags    string    `db:"hashtags" json:"hashtags"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}
