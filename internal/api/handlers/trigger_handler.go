package handlers

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"
	config "github.com/postloop/postloop/configs"
	"github.com/postloop/postloop/internal/scheduler"
)

// TriggerHandler exposes the rotation tick to an external cron caller.
// Triggering twice in the same hour is safe; already claimed slots are
// reported as skipped.
type TriggerHandler struct {
	cfg config.Config
	sch *scheduler.Scheduler
}

func NewTriggerHandler(cfg config.Config, sch *scheduler.Scheduler) *TriggerHandler {
	return &TriggerHandler{cfg: cfg, sch: sch}
}

func (h *TriggerHandler) RunRotation(c *fiber.Ctx) error {
	auth := c.Get("Authorization")
	if h.cfg.CronSecret == "" || auth != "Bearer "+h.cfg.CronSecret {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Invalid cron secret",
		})
	}

	summary, err := h.sch.Run(c.Context())
	if err != nil {
		slog.Info(err.Error())
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Rotation run failed",
		})
	}

	return c.Status(fiber.StatusOK).JSON(summary)
}
