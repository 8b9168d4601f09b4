package repository

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/postloop/postloop/internal/models"
)

type WeeklySlotRepository interface {
	Create(ctx context.Context, slot *models.WeeklySlot) (int64, error)
	GetByID(ctx context.Context, id int64) (*models.WeeklySlot, error)
	ListByUserID(ctx context.Context, userID int64) ([]*models.WeeklySlot, error)
	ListDue(ctx context.Context, dayOfWeek int, hour string) ([]*models.WeeklySlot, error)
	CheckByUserID(ctx context.Context, slotID, userID int64) (bool, error)
	Remove(ctx context.Context, id int64) error
}

type weeklySlotRepository struct {
	db *sql.DB
}

func NewWeeklySlotRepository(db *sql.DB) WeeklySlotRepository {
	return &weeklySlotRepository{db: db}
}

const weeklySlotColumns = `id, user_id, library_id, day_of_week, time_of_day, platforms, created_at, updated_at`

func (r *weeklySlotRepository) Create(ctx context.Context, slot *models.WeeklySlot) (int64, error) {
	query := `
		INSERT INTO weekly_slots (user_id, library_id, day_of_week, time_of_day, platforms)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`

	var id int64
	err := r.db.QueryRowContext(ctx, query, slot.UserID, slot.LibraryID, slot.DayOfWeek, slot.TimeOfDay, slot.Platforms).Scan(&id)
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}

	return id, nil
}

func (r *weeklySlotRepository) GetByID(ctx context.Context, id int64) (*models.WeeklySlot, error) {
	query := `SELECT ` + weeklySlotColumns + ` FROM weekly_slots WHERE id = $1`
	row := r.db.QueryRowContext(ctx, query, id)

	var slot models.WeeklySlot
	err := row.Scan(&slot.ID, &slot.UserID, &slot.LibraryID, &slot.DayOfWeek, &slot.TimeOfDay, &slot.Platforms, &slot.CreatedAt, &slot.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}

	return &slot, nil
}

func (r *weeklySlotRepository) ListByUserID(ctx context.Context, userID int64) ([]*models.WeeklySlot, error) {
	query := `SELECT ` + weeklySlotColumns + ` FROM weekly_slots WHERE user_id = $1 ORDER BY day_of_week, time_of_day`
	return r.list(ctx, query, userID)
}

// ListDue returns the slots matching the current weekday and hour whose
// library is not paused. hour is the top-of-hour string, e.g. "09:00".
func (r *weeklySlotRepository) ListDue(ctx context.Context, dayOfWeek int, hour string) ([]*models.WeeklySlot, error) {
	query := `SELECT ws.id, ws.user_id, ws.library_id, ws.day_of_week, ws.time_of_day, ws.platforms, ws.created_at, ws.updated_at
		FROM weekly_slots ws
		JOIN libraries l ON l.id = ws.library_id
		WHERE ws.day_of_week = $1
		AND split_part(ws.time_of_day, ':', 1) = split_part($2, ':', 1)
		AND l.paused = false`
	return r.list(ctx, query, dayOfWeek, hour)
}

func (r *weeklySlotRepository) list(ctx context.Context, query string, args ...interface{}) ([]*models.WeeklySlot, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var slots []*models.WeeklySlot
	for rows.Next() {
		var slot models.WeeklySlot
		err := rows.Scan(&slot.ID, &slot.UserID, &slot.LibraryID, &slot.DayOfWeek, &slot.TimeOfDay, &slot.Platforms, &slot.CreatedAt, &slot.UpdatedAt)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		slots = append(slots, &slot)
	}
	return slots, rows.Err()
}

func (r *weeklySlotRepository) CheckByUserID(ctx context.Context, slotID, userID int64) (bool, error) {
	query := "SELECT 1 FROM weekly_slots WHERE id = $1 AND user_id = $2"

	var result int
	err := r.db.QueryRowContext(ctx, query, slotID, userID).Scan(&result)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		slog.Info(err.Error())
		return false, err
	}

	return result == 1, nil
}

func (r *weeklySlotRepository) Remove(ctx context.Context, id int64) error {
	query := `DELETE FROM weekly_slots WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}
