package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/postloop/postloop/internal/media"
	"github.com/postloop/postloop/internal/models"
	"github.com/postloop/postloop/internal/platform"
	"github.com/postloop/postloop/internal/repository"
	"github.com/postloop/postloop/internal/tokens"
	"github.com/postloop/postloop/internal/transfer"
)

// publishConcurrency caps how many platforms one post is pushed to at
// the same time.
const publishConcurrency = 3

type PublishService interface {
	PublishPost(ctx context.Context, postID int64) ([]transfer.PublishOutcome, error)
	PublishInstance(ctx context.Context, post *models.Post, platforms []string) ([]transfer.PublishOutcome, error)
}

type publishService struct {
	tm       tokens.Manager
	registry *platform.Registry
	resolver *media.Resolver
	pr       repository.PostRepository
	pp       repository.PostPlatformRepository
	pm       repository.PostMediaRepository
	ph       repository.PostingHistoryRepository
}

func NewPublishService(
	tm tokens.Manager,
	registry *platform.Registry,
	resolver *media.Resolver,
	pr repository.PostRepository,
	pp repository.PostPlatformRepository,
	pm repository.PostMediaRepository,
	ph repository.PostingHistoryRepository) PublishService {
	return &publishService{
		tm:       tm,
		registry: registry,
		resolver: resolver,
		pr:       pr,
		pp:       pp,
		pm:       pm,
		ph:       ph,
	}
}

// PublishPost publishes a stored post to every platform assigned to it.
func (s *publishService) PublishPost(ctx context.Context, postID int64) ([]transfer.PublishOutcome, error) {
	post, err := s.pr.GetByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	if post == nil {
		err = errors.New("post doesn't exist")
		slog.Info(err.Error())
		return nil, err
	}

	assignments, err := s.pp.ListByPostID(ctx, postID)
	if err != nil {
		return nil, err
	}
	if len(assignments) == 0 {
		err = errors.New("post has no platform targets")
		slog.Info(err.Error())
		return nil, err
	}

	platforms := make([]string, 0, len(assignments))
	for _, a := range assignments {
		platforms = append(platforms, a.Platform)
	}

	return s.PublishInstance(ctx, post, platforms)
}

// PublishInstance fans the post out to the given platforms. Platforms
// are independent: one failing never stops the others, and each result
// is persisted before the summary is returned.
func (s *publishService) PublishInstance(ctx context.Context, post *models.Post, platforms []string) ([]transfer.PublishOutcome, error) {
	if post == nil {
		return nil, errors.New("post is nil")
	}
	if len(platforms) == 0 {
		return nil, errors.New("no platforms to publish to")
	}

	sharedMedia, err := s.pm.ListURLsByPostID(ctx, post.ID)
	if err != nil {
		return nil, err
	}

	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		sem      = make(chan struct{}, publishConcurrency)
		outcomes = make([]transfer.PublishOutcome, 0, len(platforms))
	)

	for _, platformName := range platforms {
		wg.Add(1)
		sem <- struct{}{}

		go func(platformName string) {
			defer wg.Done()
			defer func() { <-sem }()

			outcome := s.publishOne(ctx, post, platformName, sharedMedia)

			mu.Lock()
			outcomes = append(outcomes, outcome)
			mu.Unlock()
		}(platformName)
	}

	wg.Wait()
	return outcomes, nil
}

func (s *publishService) publishOne(ctx context.Context, post *models.Post, platformName string, sharedMedia []string) transfer.PublishOutcome {
	outcome := transfer.PublishOutcome{Platform: platformName}

	platformPostID, err := s.attemptPublish(ctx, post, platformName, sharedMedia)
	if err != nil {
		outcome.Kind = string(platform.KindOf(err))
		outcome.Error = err.Error()
	} else {
		outcome.PlatformPostID = platformPostID
	}

	s.recordResult(ctx, post, outcome)
	return outcome
}

func (s *publishService) attemptPublish(ctx context.Context, post *models.Post, platformName string, sharedMedia []string) (string, error) {
	adapter, err := s.registry.Get(platformName)
	if err != nil {
		return "", err
	}

	content := post.Content
	mediaRefs := sharedMedia

	assignment, err := s.pp.Get(ctx, post.ID, platformName)
	if err != nil {
		return "", err
	}
	if assignment != nil {
		if assignment.Content != "" {
			content = assignment.Content
		}
		if assignment.MediaURLs != "" {
			var override []string
			if err := json.Unmarshal([]byte(assignment.MediaURLs), &override); err != nil {
				slog.Info(err.Error())
			} else if len(override) > 0 {
				mediaRefs = override
			}
		}
	}

	cred, err := s.tm.GetValidCredential(ctx, post.UserID, platformName)
	if err != nil {
		return "", err
	}

	assets, err := s.resolver.Resolve(ctx, mediaRefs, adapter.Limits().MaxAttachments())
	if err != nil {
		return "", platform.WrapError(platform.KindMediaFetchFailed, platformName, err)
	}

	return adapter.Publish(ctx, cred, platform.PostContent{Text: content}, assets)
}

// recordResult persists per-platform history. Failures here are logged
// and swallowed; the publish already happened.
func (s *publishService) recordResult(ctx context.Context, post *models.Post, outcome transfer.PublishOutcome) {
	history := models.PostingHistory{
		UserID:         post.UserID,
		PostID:         post.ID,
		Platform:       outcome.Platform,
		PlatformPostID: outcome.PlatformPostID,
		ErrorMessage:   outcome.Error,
	}
	if _, err := s.ph.Create(ctx, &history); err != nil {
		slog.Info(err.Error())
	}

	if err := s.pp.SetResult(ctx, post.ID, outcome.Platform, outcome.PlatformPostID, outcome.Error); err != nil {
		slog.Info(err.Error())
	}
}

// Succeeded reports whether at least one platform accepted the post.
func Succeeded(outcomes []transfer.PublishOutcome) bool {
	for _, o := range outcomes {
		if o.Error == "" {
			return true
		}
	}
	return false
}

// SummarizeFailures joins the failed platforms into one message.
func SummarizeFailures(outcomes []transfer.PublishOutcome) string {
	var failed []string
	for _, o := range outcomes {
		if o.Error != "" {
			failed = append(failed, fmt.Sprintf("%s: %s", o.Platform, o.Error))
		}
	}
	if len(failed) == 0 {
		return ""
	}
	msg := failed[0]
	for _, f := range failed[1:] {
		msg += "; " + f
	}
	return msg
}
