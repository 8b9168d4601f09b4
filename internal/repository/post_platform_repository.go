package repository

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/postloop/postloop/internal/models"
)

type PostPlatformRepository interface {
	Create(ctx context.Context, tx *sql.Tx, pp *models.PostPlatform) error
	Get(ctx context.Context, postID int64, platform string) (*models.PostPlatform, error)
	ListByPostID(ctx context.Context, postID int64) ([]*models.PostPlatform, error)
	SetResult(ctx context.Context, postID int64, platform, platformPostID, errorMessage string) error
}

type postPlatformRepository struct {
	db *sql.DB
}

func NewPostPlatformRepository(db *sql.DB) PostPlatformRepository {
	return &postPlatformRepository{db: db}
}

func (r *postPlatformRepository) Create(ctx context.Context, tx *sql.Tx, pp *models.PostPlatform) error {
	query := `
		INSERT INTO post_platforms (post_id, platform, content, media_urls)
		VALUES ($1, $2, $3, $4)
	`

	var err error
	if tx != nil {
		_, err = tx.ExecContext(ctx, query, pp.PostID, pp.Platform, pp.Content, pp.MediaURLs)
	} else {
		_, err = r.db.ExecContext(ctx, query, pp.PostID, pp.Platform, pp.Content, pp.MediaURLs)
	}
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *postPlatformRepository) Get(ctx context.Context, postID int64, platform string) (*models.PostPlatform, error) {
	query := `SELECT post_id, platform, content, media_urls, platform_post_id, error_message
		FROM post_platforms WHERE post_id = $1 AND platform = $2`
	row := r.db.QueryRowContext(ctx, query, postID, platform)

	var pp models.PostPlatform
	err := row.Scan(&pp.PostID, &pp.Platform, &pp.Content, &pp.MediaURLs, &pp.PlatformPost, &pp.ErrorMessage)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}

	return &pp, nil
}

func (r *postPlatformRepository) ListByPostID(ctx context.Context, postID int64) ([]*models.PostPlatform, error) {
	query := `SELECT post_id, platform, content, media_urls, platform_post_id, error_message
		FROM post_platforms WHERE post_id = $1`
	rows, err := r.db.QueryContext(ctx, query, postID)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var assignments []*models.PostPlatform
	for rows.Next() {
		var pp models.PostPlatform
		err := rows.Scan(&pp.PostID, &pp.Platform, &pp.Content, &pp.MediaURLs, &pp.PlatformPost, &pp.ErrorMessage)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		assignments = append(assignments, &pp)
	}
	return assignments, rows.Err()
}

func (r *postPlatformRepository) SetResult(ctx context.Context, postID int64, platform, platformPostID, errorMessage string) error {
	query := `
		UPDATE post_platforms
		SET platform_post_id = $3, error_message = $4
		WHERE post_id = $1 AND platform = $2
	`
	_, err := r.db.ExecContext(ctx, query, postID, platform, platformPostID, errorMessage)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}
