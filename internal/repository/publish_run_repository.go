package repository

import (
	"context"
	"database/sql"
	"log/slog"
)

type PublishRunRepository interface {
	Claim(ctx context.Context, slotID int64, hourBucket string) (bool, error)
}

type publishRunRepository struct {
	db *sql.DB
}

func NewPublishRunRepository(db *sql.DB) PublishRunRepository {
	return &publishRunRepository{db: db}
}

// Claim records that slotID is being processed for the given hour
// bucket. The (slot_id, hour_bucket) pair is unique, so only the first
// caller in an hour wins; a duplicate cron trigger gets false and must
// skip the slot.
func (r *publishRunRepository) Claim(ctx context.Context, slotID int64, hourBucket string) (bool, error) {
	query := `
		INSERT INTO publish_runs (slot_id, hour_bucket)
		VALUES ($1, $2)
		ON CONFLICT (slot_id, hour_bucket) DO NOTHING
	`

	result, err := r.db.ExecContext(ctx, query, slotID, hourBucket)
	if err != nil {
		slog.Info(err.Error())
		return false, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		slog.Info(err.Error())
		return false, err
	}

	return affected == 1, nil
}
