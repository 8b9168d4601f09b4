package repository

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/postloop/postloop/internal/models"
)

type LibraryRepository interface {
	Create(ctx context.Context, library *models.Library) (int64, error)
	GetByID(ctx context.Context, id int64) (*models.Library, error)
	ListByUserID(ctx context.Context, userID int64) ([]*models.Library, error)
	Update(ctx context.Context, library *models.Library) error
	CheckByUserID(ctx context.Context, libraryID, userID int64) (bool, error)
	Remove(ctx context.Context, id int64) error
}

type libraryRepository struct {
	db *sql.DB
}

func NewLibraryRepository(db *sql.DB) LibraryRepository {
	return &libraryRepository{db: db}
}

const libraryColumns = `id, user_id, name, paused, auto_rewrite, platforms, tone, length, hashtags, created_at, updated_at`

func (r *libraryRepository) Create(ctx context.Context, library *models.Library) (int64, error) {
	query := `
		INSERT INTO libraries (user_id, name, paused, auto_rewrite, platforms, tone, length, hashtags)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`

	var id int64
	err := r.db.QueryRowContext(ctx, query,
		library.UserID, library.Name, library.Paused, library.AutoRewrite,
		library.Platforms, library.Tone, library.Length, library.Hashtags,
	).Scan(&id)
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}

	return id, nil
}

func (r *libraryRepository) GetByID(ctx context.Context, id int64) (*models.Library, error) {
	query := `SELECT ` + libraryColumns + ` FROM libraries WHERE id = $1`
	row := r.db.QueryRowContext(ctx, query, id)

	var library models.Library
	err := row.Scan(&library.ID, &library.UserID, &library.Name, &library.Paused, &library.AutoRewrite,
		&library.Platforms, &library.Tone, &library.Length, &library.Hashtags, &library.CreatedAt, &library.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}

	return &library, nil
}

func (r *libraryRepository) ListByUserID(ctx context.Context, userID int64) ([]*models.Library, error) {
	query := `SELECT ` + libraryColumns + ` FROM libraries WHERE user_id = $1 ORDER BY created_at`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var libraries []*models.Library
	for rows.Next() {
		var library models.Library
		err := rows.Scan(&library.ID, &library.UserID, &library.Name, &library.Paused, &library.AutoRewrite,
			&library.Platforms, &library.Tone, &library.Length, &library.Hashtags, &library.CreatedAt, &library.UpdatedAt)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		libraries = append(libraries, &library)
	}
	return libraries, rows.Err()
}

func (r *libraryRepository) Update(ctx context.Context, library *models.Library) error {
	query := `
		UPDATE libraries
		SET name = $2,
			paused = $3,
			auto_rewrite = $4,
			platforms = $5,
			tone = $6,
			length = $7,
			hashtags = $8,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = $1
	`
	_, err := r.db.ExecContext(ctx, query,
		library.ID, library.Name, library.Paused, library.AutoRewrite,
		library.Platforms, library.Tone, library.Length, library.Hashtags,
	)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *libraryRepository) CheckByUserID(ctx context.Context, libraryID, userID int64) (bool, error) {
	query := "SELECT 1 FROM libraries WHERE id = $1 AND user_id = $2"

	var result int
	err := r.db.QueryRowContext(ctx, query, libraryID, userID).Scan(&result)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		slog.Info(err.Error())
		return false, err
	}

	return result == 1, nil
}

func (r *libraryRepository) Remove(ctx context.Context, id int64) error {
	query := `DELETE FROM libraries WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}
