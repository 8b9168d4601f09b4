package models

import (
	"database/sql"
	"time"
)

// Post is either an evergreen library item (LibraryID set) or a one-shot
// publish instance (LibraryID null). Instances created from a library item
// copy its content but never point back, so they can't re-enter rotation.
type Post struct {
	ID              int64         `db:"id" json:"id"`
	UserID          int64         `db:"user_id" json:"user_id"`
	LibraryID       sql.NullInt64 `db:"library_id" json:"library_id"`
	Content         string        `db:"content" json:"content"`
	Status          string        `db:"status" json:"status"`
	ScheduledTime   sql.NullTime  `db:"scheduled_time" json:"scheduled_time"`
	LastPublishedAt sql.NullTime  `db:"last_published_at" json:"last_published_at"`
	CreatedAt       time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time     `db:"updated_at" json:"updated_at"`
}

// PostPlatform assigns a post to a target platform, optionally overriding
// the shared content and media for that platform only.
type PostPlatform struct {
	PostID        int64  `db:"post_id" json:"post_id"`
	Platform      string `db:"platform" json:"platform"`
	Content       string `db:"content" json:"content"`
	MediaURLs     string `db:"media_urls" json:"media_urls"` // JSON array, empty = shared media
	PlatformPost  string `db:"platform_post_id" json:"platform_post_id"`
	ErrorMessage  string `db:"error_message" json:"error_message"`
}

type MediaAsset struct {
	ID        int64     `db:"id" json:"id"`
	UserID    int64     `db:"user_id" json:"user_id"`
	FileName  string    `db:"file_name" json:"file_name"`
	FileType  string    `db:"file_type" json:"file_type"`
	FileSize  int64     `db:"file_size" json:"file_size"`
	FileURL   string    `db:"file_url" json:"file_url"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

type PostMedia struct {
	PostID       int64     `db:"post_id" json:"post_id"`
	AssetID      int64     `db:"asset_id" json:"asset_id"`
	DisplayOrder int       `db:"display_order" json:"display_order"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

const (
	PostStatusEvergreen = "evergreen"
	PostStatusScheduled = "scheduled"
	PostStatusPublished = "published"
	PostStatusFailed    = "failed"
)
