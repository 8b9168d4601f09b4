package models

import "time"

// PublishRun is an idempotency claim for one slot in one hour bucket.
// The (slot_id, hour_bucket) pair is unique, so a duplicate cron trigger
// inside the same hour fails to claim and skips the slot.
type PublishRun struct {
	ID         int64     `db:"id" json:"id"`
	SlotID     int64     `db:"slot_id" json:"slot_id"`
	HourBucket string    `db:"hour_bucket" json:"hour_bucket"` // e.g. 2026-08-31T09
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
