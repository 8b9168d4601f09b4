package repository

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/postloop/postloop/internal/models"
)

type PostRepository interface {
	GetByID(ctx context.Context, id int64) (*models.Post, error)
	Create(ctx context.Context, tx *sql.Tx, post *models.Post) (int64, error)
	ListByUserID(ctx context.Context, userID int64) ([]*models.Post, error)
	ListByLibraryID(ctx context.Context, libraryID int64) ([]*models.Post, error)
	NextEvergreen(ctx context.Context, libraryID int64) (*models.Post, error)
	Rotate(ctx context.Context, id int64, publishedAt time.Time) error
	UpdateStatus(ctx context.Context, status string, postID int64) error
	CheckByUserID(ctx context.Context, postID, userID int64) (bool, error)
	Remove(ctx context.Context, id int64) error
}

type postRepository struct {
	db *sql.DB
}

func NewPostRepository(db *sql.DB) PostRepository {
	return &postRepository{db: db}
}

const postColumns = `id, user_id, library_id, content, status, scheduled_time, last_published_at, created_at, updated_at`

func (r *postRepository) Create(ctx context.Context, tx *sql.Tx, post *models.Post) (int64, error) {
	query := `
		INSERT INTO posts (user_id, library_id, content, status, scheduled_time, last_published_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`

	var id int64
	var err error

	if tx != nil {
		err = tx.QueryRowContext(ctx, query, post.UserID, post.LibraryID, post.Content, post.Status, post.ScheduledTime, post.LastPublishedAt).Scan(&id)
	} else {
		err = r.db.QueryRowContext(ctx, query, post.UserID, post.LibraryID, post.Content, post.Status, post.ScheduledTime, post.LastPublishedAt).Scan(&id)
	}
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}

	return id, nil
}

func (r *postRepository) GetByID(ctx context.Context, id int64) (*models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts WHERE id = $1`
	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

// NextEvergreen picks the least-recently-published item in the library.
// Never-published items sort before everything else, so they always win
// against items that have already been rotated.
func (r *postRepository) NextEvergreen(ctx context.Context, libraryID int64) (*models.Post, error) {
	query := `SELECT ` + postColumns + `
		FROM posts
		WHERE library_id = $1
		ORDER BY last_published_at ASC NULLS FIRST, id ASC
		LIMIT 1`
	return r.scanOne(r.db.QueryRowContext(ctx, query, libraryID))
}

func (r *postRepository) scanOne(row *sql.Row) (*models.Post, error) {
	var post models.Post
	err := row.Scan(&post.ID, &post.UserID, &post.LibraryID, &post.Content, &post.Status,
		&post.ScheduledTime, &post.LastPublishedAt, &post.CreatedAt, &post.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}
	return &post, nil
}

func (r *postRepository) ListByUserID(ctx context.Context, userID int64) ([]*models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts WHERE user_id = $1 ORDER BY created_at DESC`
	return r.list(ctx, query, userID)
}

func (r *postRepository) ListByLibraryID(ctx context.Context, libraryID int64) ([]*models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts WHERE library_id = $1 ORDER BY last_published_at ASC NULLS FIRST, id ASC`
	return r.list(ctx, query, libraryID)
}

func (r *postRepository) list(ctx context.Context, query string, arg interface{}) ([]*models.Post, error) {
	rows, err := r.db.QueryContext(ctx, query, arg)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var posts []*models.Post
	for rows.Next() {
		var post models.Post
		err := rows.Scan(&post.ID, &post.UserID, &post.LibraryID, &post.Content, &post.Status,
			&post.ScheduledTime, &post.LastPublishedAt, &post.CreatedAt, &post.UpdatedAt)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		posts = append(posts, &post)
	}
	return posts, rows.Err()
}

// Rotate advances the item's rotation timestamp; the item itself stays
// in its library.
func (r *postRepository) Rotate(ctx context.Context, id int64, publishedAt time.Time) error {
	query := `UPDATE posts SET last_published_at = $2, updated_at = $2 WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id, publishedAt)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *postRepository) UpdateStatus(ctx context.Context, status string, postID int64) error {
	query := `
		UPDATE posts
		SET status = $1,
			updated_at = $2
		WHERE id = $3
	`
	_, err := r.db.ExecContext(ctx, query, status, time.Now(), postID)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *postRepository) CheckByUserID(ctx context.Context, postID, userID int64) (bool, error) {
	query := "SELECT 1 FROM posts WHERE id = $1 AND user_id = $2"

	var result int
	err := r.db.QueryRowContext(ctx, query, postID, userID).Scan(&result)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		slog.Info(err.Error())
		return false, err
	}

	return result == 1, nil
}

func (r *postRepository) Remove(ctx context.Context, id int64) error {
	query := `DELETE FROM posts WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}
