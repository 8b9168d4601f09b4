package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/postloop/postloop/internal/models"
	"github.com/postloop/postloop/internal/repository"
	"github.com/postloop/postloop/internal/transfer"
)

type LibraryService interface {
	Create(ctx context.Context, userID int64, lc *transfer.LibraryCreation) (int64, error)
	LibraryInfo(ctx context.Context, userID, libraryID int64) (*models.Library, error)
	List(ctx context.Context, userID int64) ([]*models.Library, error)
	ListPosts(ctx context.Context, userID, libraryID int64) ([]*models.Post, error)
	Update(ctx context.Context, userID, libraryID int64, lu *transfer.LibraryUpdate) error
	Remove(ctx context.Context, userID, libraryID int64) error
}

type libraryService struct {
	lr repository.LibraryRepository
	pr repository.PostRepository
}

func NewLibraryService(lr repository.LibraryRepository, pr repository.PostRepository) LibraryService {
	return &libraryService{
		lr: lr,
		pr: pr,
	}
}

func (s *libraryService) Create(ctx context.Context, userID int64, lc *transfer.LibraryCreation) (int64, error) {
	var err error

	if lc == nil || lc.Name == "" {
		err = errors.New("library name cannot be empty")
		slog.Info(err.Error())
		return 0, err
	}

	library := models.Library{
		UserID:      userID,
		Name:        lc.Name,
		Platforms:   lc.Platforms,
		AutoRewrite: lc.AutoRewrite,
		Tone:        lc.Tone,
		Length:      lc.Length,
		Hashtags:    lc.Hashtags,
	}

	libraryID, err := s.lr.Create(ctx, &library)
	if err != nil {
		return 0, fmt.Errorf("Error creating library")
	}

	return libraryID, nil
}

func (s *libraryService) LibraryInfo(ctx context.Context, userID, libraryID int64) (*models.Library, error) {
	if err := s.checkOwner(ctx, userID, libraryID); err != nil {
		return nil, err
	}

	library, err := s.lr.GetByID(ctx, libraryID)
	if err != nil {
		return nil, fmt.Errorf("Error getting library info")
	}

	return library, nil
}

func (s *libraryService) List(ctx context.Context, userID int64) ([]*models.Library, error) {
	libraries, err := s.lr.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("Error getting libraries")
	}
	return libraries, nil
}

func (s *libraryService) ListPosts(ctx context.Context, userID, libraryID int64) ([]*models.Post, error) {
	if err := s.checkOwner(ctx, userID, libraryID); err != nil {
		return nil, err
	}

	posts, err := s.pr.ListByLibraryID(ctx, libraryID)
	if err != nil {
		return nil, fmt.Errorf("Error getting library posts")
	}
	return posts, nil
}

func (s *libraryService) Update(ctx context.Context, userID, libraryID int64, lu *transfer.LibraryUpdate) error {
	if lu == nil || lu.Name == "" {
		err := errors.New("library name cannot be empty")
		slog.Info(err.Error())
		return err
	}

	if err := s.checkOwner(ctx, userID, libraryID); err != nil {
		return err
	}

	library := models.Library{
		ID:          libraryID,
		UserID:      userID,
		Name:        lu.Name,
		Paused:      lu.Paused,
		Platforms:   lu.Platforms,
		AutoRewrite: lu.AutoRewrite,
		Tone:        lu.Tone,
		Length:      lu.Length,
		Hashtags:    lu.Hashtags,
	}

	if err := s.lr.Update(ctx, &library); err != nil {
		return fmt.Errorf("Error updating library")
	}
	return nil
}

func (s *libraryService) Remove(ctx context.Context, userID, libraryID int64) error {
	if err := s.checkOwner(ctx, userID, libraryID); err != nil {
		return err
	}

	if err := s.lr.Remove(ctx, libraryID); err != nil {
		return fmt.Errorf("Error removing library")
	}
	return nil
}

func (s *libraryService) checkOwner(ctx context.Context, userID, libraryID int64) error {
	var err error

	if userID == 0 {
		err = errors.New("UserID is not valid")
		slog.Info(err.Error())
		return err
	}

	if libraryID == 0 {
		err = errors.New("library id is not valid")
		slog.Info(err.Error())
		return err
	}

	isValid, err := s.lr.CheckByUserID(ctx, libraryID, userID)
	if err != nil {
		return err
	}

	if !isValid {
		err = errors.New("Library doesn't exist")
		slog.Info(err.Error())
		return err
	}

	return nil
}
