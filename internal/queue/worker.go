package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/postloop/postloop/internal/models"
	"github.com/postloop/postloop/internal/service"
	"github.com/postloop/postloop/internal/transfer"
)

func (j *Queue) HandlePublishPostTask(ctx context.Context, task *asynq.Task) error {
	var payload PublishPostPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return err
	}

	_, err := j.PublishPost(ctx, payload.PostID)
	return err
}

// PublishPost pushes a scheduled post out and records the result. The
// post stays in its current status when every platform fails, so the
// failure is visible instead of silently marked done. The per-platform
// outcomes, taxonomy kind included, are returned for interactive
// callers; an already-published post returns nil outcomes.
func (j *Queue) PublishPost(ctx context.Context, postID int64) ([]transfer.PublishOutcome, error) {
	post, err := j.pr.GetByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	if post == nil {
		return nil, errors.New("post doesn't exist")
	}
	if post.Status == models.PostStatusPublished {
		return nil, nil
	}

	outcomes, err := j.pub.PublishPost(ctx, postID)
	if err != nil {
		return nil, err
	}

	if service.Succeeded(outcomes) {
		if err := j.pr.UpdateStatus(ctx, models.PostStatusPublished, postID); err != nil {
			slog.Info(err.Error())
		}
		j.recordActivity(ctx, post, models.ActivityPostPublished, "Post published")
	} else {
		if err := j.pr.UpdateStatus(ctx, models.PostStatusFailed, postID); err != nil {
			slog.Info(err.Error())
		}
		j.recordActivity(ctx, post, models.ActivityPublishFailed, service.SummarizeFailures(outcomes))
	}

	return outcomes, nil
}

func (j *Queue) recordActivity(ctx context.Context, post *models.Post, kind, message string) {
	activity := models.Activity{
		UserID:  post.UserID,
		Kind:    kind,
		Message: message,
	}
	activity.PostID.Int64 = post.ID
	activity.PostID.Valid = true

	if _, err := j.ar.Create(ctx, &activity); err != nil {
		slog.Info(fmt.Sprintf("Error saving activity for PostID %d: %v", post.ID, err))
	}
}
