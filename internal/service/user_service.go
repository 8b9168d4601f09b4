package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/postloop/postloop/internal/models"
	"github.com/postloop/postloop/internal/repository"
)

type UserService interface {
	GetUserInfo(ctx context.Context, userID int64) (*models.User, error)
}

type userService struct {
	u repository.UserRepository
}

func NewUserService(u repository.UserRepository) UserService {
	return &userService{u: u}
}

func (s *userService) GetUserInfo(ctx context.Context, userID int64) (*models.User, error) {
	if userID == 0 {
		err := errors.New("UserID is not valid")
		slog.Info(err.Error())
		return nil, err
	}

	user, err := s.u.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("Error getting user info")
	}

	if user == nil {
		err = errors.New("User doesn't exist")
		slog.Info(err.Error())
		return nil, err
	}

	return user, nil
}
