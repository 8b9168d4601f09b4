package handlers

import (
	"log/slog"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/hibiken/asynq"
	"github.com/postloop/postloop/internal/platform"
	"github.com/postloop/postloop/internal/queue"
	"github.com/postloop/postloop/internal/service"
	"github.com/postloop/postloop/internal/transfer"
)

type PostHandler struct {
	s           service.PostService
	q           *queue.Queue
	AsynqClient *asynq.Client
}

func NewPostHandler(service service.PostService, q *queue.Queue, asynqClient *asynq.Client) *PostHandler {
	return &PostHandler{s: service, q: q, AsynqClient: asynqClient}
}

func (h *PostHandler) CreatePost(c *fiber.Ctx) error {
	userID := GetUserID(c)
	form, err := c.MultipartForm()
	if err != nil {
		slog.Error(err.Error())
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to parse form",
		})
	}

	libraryID, _ := strconv.ParseInt(c.FormValue("library_id"), 10, 64)

	pc := transfer.PostCreation{
		Content:       c.FormValue("content"),
		Platforms:     c.FormValue("platforms"),
		LibraryID:     libraryID,
		ScheduledTime: c.FormValue("scheduled_time"),
		Overrides:     c.FormValue("overrides"),
	}

	files := form.File["files"]

	postID, delay, err := h.s.CreatePost(c.Context(), userID, &pc, files)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	// Library items wait for their rotation slot; only one-off posts
	// are handed to the delayed queue.
	if pc.LibraryID == 0 {
		err = queue.EnqueuePost(h.AsynqClient, queue.PublishPostPayload{PostID: postID}, delay)
		if err != nil {
			return c.Status(fiber.StatusOK).JSON(fiber.Map{
				"error": "Error scheduling post",
			})
		}
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"id":      postID,
		"message": "Post created successfully",
	})
}

// PublishNow pushes a post out immediately and maps the per-platform
// results to one HTTP status: any success is 200, otherwise 401 when the
// user has to log in to the platform again, 409 when the connection
// needs a re-authorization, 400 for pre-flight rejections and 502 when
// the platform itself failed.
func (h *PostHandler) PublishNow(c *fiber.Ctx) error {
	userID := GetUserID(c)
	postID := c.QueryInt("id", 0)
	if postID == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Missing post id",
		})
	}

	if _, err := h.s.PostInfo(c.Context(), int64(postID), userID); err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Post not found",
		})
	}

	outcomes, err := h.q.PublishPost(c.Context(), int64(postID))
	if err != nil {
		slog.Error(err.Error())
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	if outcomes == nil {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "Post already published",
		})
	}

	return c.Status(PublishStatus(outcomes)).JSON(fiber.Map{
		"results": outcomes,
	})
}

// PublishStatus picks the HTTP status for a set of publish outcomes.
// Partial success is success; among failures the most actionable kind
// wins: login beats reconnect beats validation beats remote error.
func PublishStatus(outcomes []transfer.PublishOutcome) int {
	if service.Succeeded(outcomes) {
		return fiber.StatusOK
	}

	status := fiber.StatusBadGateway
	for _, o := range outcomes {
		switch platform.ErrorKind(o.Kind) {
		case platform.KindAuthRequired, platform.KindAccountNotConnected:
			return fiber.StatusUnauthorized
		case platform.KindTokenExpiredNoRefresh, platform.KindRefreshFailed:
			status = fiber.StatusConflict
		case platform.KindValidation:
			if status == fiber.StatusBadGateway {
				status = fiber.StatusBadRequest
			}
		}
	}
	return status
}

func (h *PostHandler) ListPosts(c *fiber.Ctx) error {
	userId := GetUserID(c)
	postId := c.QueryInt("id", 0)

	if postId != 0 {
		post, err := h.s.PostInfo(c.Context(), int64(postId), userId)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Unable to list posts",
			})
		}

		return c.Status(fiber.StatusOK).JSON(post)
	}

	posts, err := h.s.List(c.Context(), userId)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to list posts",
		})
	}

	return c.Status(fiber.StatusOK).JSON(posts)
}

func (h *PostHandler) RemovePost(c *fiber.Ctx) error {
	userID := GetUserID(c)
	postID := c.QueryInt("id", 0)

	if err := h.s.Remove(c.Context(), userID, int64(postID)); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to remove post",
		})
	}

	return c.SendStatus(fiber.StatusOK)
}
