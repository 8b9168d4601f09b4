package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/postloop/postloop/internal/models"
	"github.com/postloop/postloop/internal/repository"
)

type ActivityService interface {
	List(ctx context.Context, userID int64, limit int) ([]*models.Activity, error)
}

type activityService struct {
	ar repository.ActivityRepository
}

func NewActivityService(ar repository.ActivityRepository) ActivityService {
	return &activityService{ar: ar}
}

func (s *activityService) List(ctx context.Context, userID int64, limit int) ([]*models.Activity, error) {
	if userID == 0 {
		err := errors.New("UserID is not valid")
		slog.Info(err.Error())
		return nil, err
	}

	activities, err := s.ar.ListByUserID(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("Error getting activities")
	}

	return activities, nil
}
