package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/postloop/postloop/internal/models"
	"github.com/postloop/postloop/internal/repository"
	"github.com/postloop/postloop/internal/transfer"
)

type SlotService interface {
	Create(ctx context.Context, userID int64, sc *transfer.SlotCreation) (int64, error)
	List(ctx context.Context, userID int64) ([]*models.WeeklySlot, error)
	Remove(ctx context.Context, userID, slotID int64) error
}

type slotService struct {
	ws repository.WeeklySlotRepository
	lr repository.LibraryRepository
}

func NewSlotService(ws repository.WeeklySlotRepository, lr repository.LibraryRepository) SlotService {
	return &slotService{
		ws: ws,
		lr: lr,
	}
}

func (s *slotService) Create(ctx context.Context, userID int64, sc *transfer.SlotCreation) (int64, error) {
	var err error

	if sc == nil {
		err = errors.New("slot data is nil")
		slog.Info(err.Error())
		return 0, err
	}

	if sc.DayOfWeek < 0 || sc.DayOfWeek > 6 {
		err = errors.New("day of week must be between 0 and 6")
		slog.Info(err.Error())
		return 0, err
	}

	if !validTimeOfDay(sc.TimeOfDay) {
		err = errors.New("time of day must be HH:MM")
		slog.Info(err.Error())
		return 0, err
	}

	isValid, err := s.lr.CheckByUserID(ctx, sc.LibraryID, userID)
	if err != nil {
		return 0, err
	}
	if !isValid {
		err = errors.New("Library doesn't exist")
		slog.Info(err.Error())
		return 0, err
	}

	slot := models.WeeklySlot{
		UserID:    userID,
		LibraryID: sc.LibraryID,
		DayOfWeek: sc.DayOfWeek,
		TimeOfDay: sc.TimeOfDay,
		Platforms: sc.Platforms,
	}

	slotID, err := s.ws.Create(ctx, &slot)
	if err != nil {
		return 0, fmt.Errorf("Error creating slot")
	}

	return slotID, nil
}

func (s *slotService) List(ctx context.Context, userID int64) ([]*models.WeeklySlot, error) {
	slots, err := s.ws.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("Error getting slots")
	}
	return slots, nil
}

func (s *slotService) Remove(ctx context.Context, userID, slotID int64) error {
	var err error

	if userID == 0 {
		err = errors.New("UserID is not valid")
		slog.Info(err.Error())
		return err
	}

	if slotID == 0 {
		err = errors.New("slot id is not valid")
		slog.Info(err.Error())
		return err
	}

	isValid, err := s.ws.CheckByUserID(ctx, slotID, userID)
	if err != nil {
		return err
	}

	if !isValid {
		err = errors.New("Slot doesn't exist")
		slog.Info(err.Error())
		return err
	}

	if err = s.ws.Remove(ctx, slotID); err != nil {
		return fmt.Errorf("Error removing slot")
	}

	return nil
}

func validTimeOfDay(t string) bool {
	parts := strings.Split(t, ":")
	if len(parts) != 2 {
		return false
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return false
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return false
	}
	return true
}
