package models

import (
	"database/sql"
	"time"
)

// Activity is an append-only audit record. Rows are never updated.
type Activity struct {
	ID        int64         `db:"id" json:"id"`
	UserID    int64         `db:"user_id" json:"user_id"`
	Kind      string        `db:"kind" json:"kind"`
	Message   string        `db:"message" json:"message"`
	PostID    sql.NullInt64 `db:"post_id" json:"post_id"`
	CreatedAt time.Time     `db:"created_at" json:"created_at"`
}

const (
	ActivityEvergreenPublished = "evergreen_published"
	ActivityEvergreenEmpty     = "evergreen_empty_library"
	ActivityPublishFailed      = "publish_failed"
	ActivityPostPublished      = "post_published"
	ActivityAccountConnected   = "account_connected"
	ActivityAccountRemoved     = "account_removed"
)
