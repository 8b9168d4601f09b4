package models

import "time"

// WeeklySlot binds a library to a recurring (day, time) publication slot.
// DayOfWeek follows time.Weekday (0 = Sunday). TimeOfDay is "HH:MM" and
// slots fire on the top of the hour, so minutes are stored but unused by
// the hourly scheduler.
type WeeklySlot struct {
	ID        int64     `db:"id" json:"id"`
	UserID    int64     `db:"user_id" json:"user_id"`
	LibraryID int64     `db:"library_id" json:"library_id"`
	DayOfWeek int       `db:"day_of_week" json:"day_of_week"`
	TimeOfDay string    `db:"time_of_day" json:"time_of_day"`
	Platforms string    `db:"platforms" json:"platforms"` // comma separated, empty = default platform
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}
