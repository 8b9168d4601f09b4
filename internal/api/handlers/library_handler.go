package handlers

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/postloop/postloop/internal/service"
	"github.com/postloop/postloop/internal/transfer"
)

type LibraryHandler struct {
	s service.LibraryService
}

func NewLibraryHandler(service service.LibraryService) *LibraryHandler {
	return &LibraryHandler{s: service}
}

func (h *LibraryHandler) CreateLibrary(c *fiber.Ctx) error {
	userID := GetUserID(c)

	var lc transfer.LibraryCreation
	if err := c.BodyParser(&lc); err != nil {
		slog.Error(err.Error())
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to parse request body",
		})
	}

	libraryID, err := h.s.Create(c.Context(), userID, &lc)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"id": libraryID,
	})
}

func (h *LibraryHandler) ListLibraries(c *fiber.Ctx) error {
	userID := GetUserID(c)
	libraryID := c.QueryInt("id", 0)

	if libraryID != 0 {
		library, err := h.s.LibraryInfo(c.Context(), userID, int64(libraryID))
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Unable to get library",
			})
		}
		return c.Status(fiber.StatusOK).JSON(library)
	}

	libraries, err := h.s.List(c.Context(), userID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to list libraries",
		})
	}

	return c.Status(fiber.StatusOK).JSON(libraries)
}

func (h *LibraryHandler) ListLibraryPosts(c *fiber.Ctx) error {
	userID := GetUserID(c)
	libraryID := c.QueryInt("id", 0)

	posts, err := h.s.ListPosts(c.Context(), userID, int64(libraryID))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to list library posts",
		})
	}

	return c.Status(fiber.StatusOK).JSON(posts)
}

func (h *LibraryHandler) UpdateLibrary(c *fiber.Ctx) error {
	userID := GetUserID(c)
	libraryID := c.QueryInt("id", 0)

	var lu transfer.LibraryUpdate
	if err := c.BodyParser(&lu); err != nil {
		slog.Error(err.Error())
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to parse request body",
		})
	}

	if err := h.s.Update(c.Context(), userID, int64(libraryID), &lu); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to update library",
		})
	}

	return c.SendStatus(fiber.StatusOK)
}

func (h *LibraryHandler) RemoveLibrary(c *fiber.Ctx) error {
	userID := GetUserID(c)
	libraryID := c.QueryInt("id", 0)

	if err := h.s.Remove(c.Context(), userID, int64(libraryID)); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to remove library",
		})
	}

	return c.SendStatus(fiber.StatusOK)
}
