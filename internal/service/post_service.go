package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"time"

	"github.com/h2non/filetype"
	"github.com/h2non/filetype/types"
	"github.com/postloop/postloop/internal/models"
	"github.com/postloop/postloop/internal/platform"
	"github.com/postloop/postloop/internal/repository"
	"github.com/postloop/postloop/internal/transfer"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

type PostService interface {
	CreatePost(ctx context.Context, userID int64, pc *transfer.PostCreation, files []*multipart.FileHeader) (int64, time.Duration, error)
	List(ctx context.Context, userID int64) ([]*models.Post, error)
	PostInfo(ctx context.Context, postID, userID int64) (*models.Post, error)
	Remove(ctx context.Context, userID, postID int64) error
}

type postService struct {
	db       *sql.DB
	pr       repository.PostRepository
	pp       repository.PostPlatformRepository
	lr       repository.LibraryRepository
	ma       repository.MediaAssetRepository
	pm       repository.PostMediaRepository
	registry *platform.Registry
	r2       *R2Service
}

func NewPostService(
	db *sql.DB,
	pr repository.PostRepository,
	pp repository.PostPlatformRepository,
	lr repository.LibraryRepository,
	ma repository.MediaAssetRepository,
	pm repository.PostMediaRepository,
	registry *platform.Registry,
	r2 *R2Service) PostService {
	return &postService{
		db:       db,
		pr:       pr,
		pp:       pp,
		lr:       lr,
		ma:       ma,
		pm:       pm,
		registry: registry,
		r2:       r2,
	}
}

// CreatePost stores a post with its media and per-platform targets. If
// LibraryID is set the post joins that library's evergreen rotation and
// never gets a scheduled time; otherwise ScheduledTime decides when the
// queue worker picks it up. The returned duration is the enqueue delay.
func (s *postService) CreatePost(ctx context.Context, userID int64, pc *transfer.PostCreation, files []*multipart.FileHeader) (int64, time.Duration, error) {
	if pc == nil {
		err := errors.New("post creation data is nil")
		slog.Error(err.Error())
		return 0, 0, err
	}
	if pc.Content == "" {
		err := errors.New("content cannot be empty")
		slog.Info(err.Error())
		return 0, 0, err
	}

	platforms := SplitPlatforms(pc.Platforms)
	for _, p := range platforms {
		if _, err := s.registry.Get(p); err != nil {
			slog.Info(err.Error())
			return 0, 0, err
		}
	}

	var overrides map[string]string
	if pc.Overrides != "" {
		if err := json.Unmarshal([]byte(pc.Overrides), &overrides); err != nil {
			err = fmt.Errorf("invalid overrides format: %w", err)
			slog.Error(err.Error())
			return 0, 0, err
		}
	}

	post := models.Post{
		UserID:  userID,
		Content: pc.Content,
	}

	if pc.LibraryID != 0 {
		isValid, err := s.lr.CheckByUserID(ctx, pc.LibraryID, userID)
		if err != nil {
			return 0, 0, err
		}
		if !isValid {
			err = errors.New("Library doesn't exist")
			slog.Info(err.Error())
			return 0, 0, err
		}
		post.LibraryID = sql.NullInt64{Int64: pc.LibraryID, Valid: true}
		post.Status = models.PostStatusEvergreen
	} else {
		if len(platforms) == 0 {
			err := errors.New("no platforms selected")
			slog.Info(err.Error())
			return 0, 0, err
		}
		scheduledTime, err := time.Parse("2006-01-02T15:04", pc.ScheduledTime)
		if err != nil {
			err = fmt.Errorf("invalid scheduled time format: %w", err)
			slog.Error(err.Error())
			return 0, 0, err
		}
		post.ScheduledTime = sql.NullTime{Time: scheduledTime, Valid: true}
		post.Status = models.PostStatusScheduled
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return 0, 0, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		} else if err != nil {
			tx.Rollback()
		}
	}()

	postID, err := s.pr.Create(ctx, tx, &post)
	if err != nil {
		return 0, 0, fmt.Errorf("error creating post: %w", err)
	}

	for _, p := range platforms {
		assignment := models.PostPlatform{
			PostID:   postID,
			Platform: p,
			Content:  overrides[p],
		}
		if err = s.pp.Create(ctx, tx, &assignment); err != nil {
			return 0, 0, fmt.Errorf("error saving platform target: %w", err)
		}
	}

	if err = s.processFiles(ctx, tx, userID, postID, files); err != nil {
		return 0, 0, fmt.Errorf("error processing files: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return 0, 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	var delay time.Duration
	if post.ScheduledTime.Valid {
		delay = time.Until(post.ScheduledTime.Time)
		if delay < 0 {
			delay = 0
		}
	}

	return postID, delay, nil
}

func (s *postService) processFiles(ctx context.Context, tx *sql.Tx, userID, postID int64, files []*multipart.FileHeader) error {
	allowedTypes := map[string]struct{}{
		"mp4": {}, "mov": {}, "jpeg": {}, "png": {}, "jpg": {}, "gif": {},
	}

	for i, file := range files {
		fileContent, err := file.Open()
		if err != nil {
			return fmt.Errorf("error opening file: %w", err)
		}
		defer fileContent.Close()

		fileBytes, err := io.ReadAll(fileContent)
		if err != nil {
			return fmt.Errorf("error reading file content: %w", err)
		}

		fileType, err := filetype.Match(fileBytes)
		if err != nil || fileType == types.Unknown {
			return fmt.Errorf("unsupported file type: %w", err)
		}
		if _, ok := allowedTypes[fileType.Extension]; !ok {
			return fmt.Errorf("file type %s is not allowed", fileType.Extension)
		}

		assetID, err := s.saveFile(ctx, tx, userID, file.Filename, fileType.MIME.Value, fileBytes)
		if err != nil {
			return fmt.Errorf("error uploading file: %w", err)
		}

		postMedia := models.PostMedia{
			PostID:       postID,
			AssetID:      assetID,
			DisplayOrder: i,
		}
		if err := s.pm.Create(ctx, tx, &postMedia); err != nil {
			return fmt.Errorf("error saving media file: %w", err)
		}
	}
	return nil
}

func (s *postService) saveFile(ctx context.Context, tx *sql.Tx, userID int64, fileName, fileType string, file []byte) (int64, error) {
	key, err := gonanoid.New()
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}
	err = s.r2.UploadToR2(ctx, key, file, fileType)
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}

	ma := models.MediaAsset{
		UserID:   userID,
		FileName: fileName,
		FileType: fileType,
		FileSize: int64(len(file)),
		FileURL:  s.r2.PublicURL(key),
	}

	assetID, err := s.ma.Create(ctx, tx, &ma)
	if err != nil {
		return 0, err
	}

	return assetID, nil
}

func (s *postService) PostInfo(ctx context.Context, postID, userID int64) (*models.Post, error) {
	var err error

	if userID == 0 {
		err = errors.New("User is not valid")
		slog.Info(err.Error())
		return nil, err
	}

	if postID == 0 {
		err = errors.New("post id is not valid")
		slog.Info(err.Error())
		return nil, err
	}

	isValid, err := s.pr.CheckByUserID(ctx, postID, userID)
	if err != nil {
		return nil, err
	}

	if !isValid {
		err = errors.New("Post doesn't exist")
		slog.Info(err.Error())
		return nil, err
	}

	post, err := s.pr.GetByID(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("Error getting post info")
	}

	return post, nil
}

func (s *postService) List(ctx context.Context, userID int64) ([]*models.Post, error) {
	posts, err := s.pr.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("Error getting posts")
	}
	return posts, nil
}

func (s *postService) Remove(ctx context.Context, userID, postID int64) error {
	var err error

	if userID == 0 {
		err = errors.New("User is not valid")
		slog.Info(err.Error())
		return err
	}

	if postID == 0 {
		err = errors.New("post_id is not valid")
		slog.Info(err.Error())
		return err
	}

	isValid, err := s.pr.CheckByUserID(ctx, postID, userID)
	if err != nil {
		return err
	}

	if !isValid {
		err = errors.New("Post doesn't exist")
		slog.Info(err.Error())
		return err
	}

	err = s.pr.Remove(ctx, postID)
	if err != nil {
		return fmt.Errorf("Error removing post")
	}

	return nil
}
