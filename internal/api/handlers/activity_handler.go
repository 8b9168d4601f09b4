package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/postloop/postloop/internal/service"
)

type ActivityHandler struct {
	s service.ActivityService
}

func NewActivityHandler(service service.ActivityService) *ActivityHandler {
	return &ActivityHandler{s: service}
}

func (h *ActivityHandler) ListActivities(c *fiber.Ctx) error {
	userID := GetUserID(c)
	limit := c.QueryInt("limit", 0)

	activities, err := h.s.List(c.Context(), userID, limit)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to list activities",
		})
	}

	return c.Status(fiber.StatusOK).JSON(activities)
}
