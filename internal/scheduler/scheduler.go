package scheduler

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	config "github.com/postloop/postloop/configs"
	"github.com/postloop/postloop/internal/models"
	"github.com/postloop/postloop/internal/repository"
	"github.com/postloop/postloop/internal/rewrite"
	"github.com/postloop/postloop/internal/service"
	"github.com/postloop/postloop/internal/transfer"
)

// slotConcurrency caps how many due slots are processed at once per tick.
const slotConcurrency = 5

const (
	OutcomePublished    = "published"
	OutcomeFailed       = "failed"
	OutcomeEmptyLibrary = "empty_library"
	OutcomeSkipped      = "skipped"
)

// Scheduler runs the evergreen rotation: on every top-of-hour tick it
// finds the weekly slots due right now, picks the stalest post from each
// slot's library, republishes it as a detached one-off instance and
// moves the original to the back of the rotation.
type Scheduler struct {
	cfg      config.Config
	ws       repository.WeeklySlotRepository
	lr       repository.LibraryRepository
	pr       repository.PostRepository
	pp       repository.PostPlatformRepository
	pm       repository.PostMediaRepository
	ar       repository.ActivityRepository
	runs     repository.PublishRunRepository
	rewriter rewrite.Rewriter
	pub      service.PublishService

	now func() time.Time
}

func New(
	cfg config.Config,
	ws repository.WeeklySlotRepository,
	lr repository.LibraryRepository,
	pr repository.PostRepository,
	pp repository.PostPlatformRepository,
	pm repository.PostMediaRepository,
	ar repository.ActivityRepository,
	runs repository.PublishRunRepository,
	rewriter rewrite.Rewriter,
	pub service.PublishService) *Scheduler {
	return &Scheduler{
		cfg:      cfg,
		ws:       ws,
		lr:       lr,
		pr:       pr,
		pp:       pp,
		pm:       pm,
		ar:       ar,
		runs:     runs,
		rewriter: rewriter,
		pub:      pub,
		now:      time.Now,
	}
}

// Run processes every slot due in the current hour and reports what
// happened to each. A slot already claimed for this hour, by an earlier
// duplicate trigger, is skipped.
func (s *Scheduler) Run(ctx context.Context) (*transfer.RotationSummary, error) {
	now := s.now()
	day := int(now.Weekday())
	hour := now.Format("15:04")
	hourBucket := now.Format("2006-01-02T15")

	slots, err := s.ws.ListDue(ctx, day, hour)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}

	summary := &transfer.RotationSummary{Details: []transfer.SlotOutcome{}}
	if len(slots) == 0 {
		return summary, nil
	}

	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		sem = make(chan struct{}, slotConcurrency)
	)

	for _, slot := range slots {
		wg.Add(1)
		sem <- struct{}{}

		go func(slot *models.WeeklySlot) {
			defer wg.Done()
			defer func() { <-sem }()

			outcome := s.processSlot(ctx, slot, hourBucket, now)

			mu.Lock()
			summary.Details = append(summary.Details, outcome)
			if outcome.Outcome != OutcomeSkipped {
				summary.Processed++
			}
			mu.Unlock()
		}(slot)
	}

	wg.Wait()
	return summary, nil
}

func (s *Scheduler) processSlot(ctx context.Context, slot *models.WeeklySlot, hourBucket string, now time.Time) transfer.SlotOutcome {
	outcome := transfer.SlotOutcome{SlotID: slot.ID, LibraryID: slot.LibraryID}

	claimed, err := s.runs.Claim(ctx, slot.ID, hourBucket)
	if err != nil {
		slog.Info(err.Error())
		outcome.Outcome = OutcomeFailed
		outcome.Message = err.Error()
		return outcome
	}
	if !claimed {
		outcome.Outcome = OutcomeSkipped
		outcome.Message = "already processed this hour"
		return outcome
	}

	library, err := s.lr.GetByID(ctx, slot.LibraryID)
	if err != nil {
		slog.Info(err.Error())
		outcome.Outcome = OutcomeFailed
		outcome.Message = err.Error()
		return outcome
	}
	if library == nil || library.Paused {
		outcome.Outcome = OutcomeSkipped
		outcome.Message = "library missing or paused"
		return outcome
	}

	item, err := s.pr.NextEvergreen(ctx, library.ID)
	if err != nil {
		slog.Info(err.Error())
		outcome.Outcome = OutcomeFailed
		outcome.Message = err.Error()
		return outcome
	}
	if item == nil {
		outcome.Outcome = OutcomeEmptyLibrary
		outcome.Message = "library has no posts"
		s.recordActivity(ctx, slot.UserID, models.ActivityEvergreenEmpty, fmt.Sprintf("Library %s had nothing to publish", library.Name), 0)
		return outcome
	}

	platforms := service.SplitPlatforms(slot.Platforms)
	if len(platforms) == 0 {
		platforms = service.SplitPlatforms(library.Platforms)
	}
	if len(platforms) == 0 {
		platforms = []string{s.cfg.DefaultPlatform}
	}

	content := item.Content
	rewritten := false
	if library.AutoRewrite && s.rewriter != nil {
		fresh, err := s.rewriter.Rewrite(ctx, content, rewrite.Options{
			Platform: platforms[0],
			Tone:     library.Tone,
			Length:   library.Length,
			Hashtags: library.Hashtags != "",
		})
		if err != nil {
			// Rewrite is best effort; the original text still publishes.
			slog.Info(err.Error())
		} else {
			content = fresh
			rewritten = true
		}
	}

	instance, err := s.createInstance(ctx, item, content, platforms)
	if err != nil {
		slog.Info(err.Error())
		outcome.Outcome = OutcomeFailed
		outcome.Message = err.Error()
		return outcome
	}
	outcome.PostID = instance.ID

	outcomes, err := s.pub.PublishInstance(ctx, instance, platforms)
	if err != nil {
		slog.Info(err.Error())
		outcome.Outcome = OutcomeFailed
		outcome.Message = err.Error()
		return outcome
	}

	// The item rotates to the back regardless of the publish result;
	// the hour-bucket claim is what prevents duplicate attempts, not
	// the queue position.
	if err := s.pr.Rotate(ctx, item.ID, now); err != nil {
		slog.Info(err.Error())
	}

	if service.Succeeded(outcomes) {
		if err := s.pr.UpdateStatus(ctx, models.PostStatusPublished, instance.ID); err != nil {
			slog.Info(err.Error())
		}
		outcome.Outcome = OutcomePublished
		message := fmt.Sprintf("Published from library %s", library.Name)
		if rewritten {
			message += " (auto-rewritten)"
		}
		s.recordActivity(ctx, slot.UserID, models.ActivityEvergreenPublished, message, instance.ID)
	} else {
		if err := s.pr.UpdateStatus(ctx, models.PostStatusFailed, instance.ID); err != nil {
			slog.Info(err.Error())
		}
		outcome.Outcome = OutcomeFailed
		outcome.Message = service.SummarizeFailures(outcomes)
		s.recordActivity(ctx, slot.UserID, models.ActivityPublishFailed, outcome.Message, instance.ID)
	}

	return outcome
}

// createInstance copies the library item into a detached one-off post.
// The copy has no library id, so it can never re-enter the rotation,
// and it keeps the item's media and matching platform overrides.
func (s *Scheduler) createInstance(ctx context.Context, item *models.Post, content string, platforms []string) (*models.Post, error) {
	instance := &models.Post{
		UserID:  item.UserID,
		Content: content,
		Status:  models.PostStatusScheduled,
	}

	instanceID, err := s.pr.Create(ctx, nil, instance)
	if err != nil {
		return nil, err
	}
	instance.ID = instanceID

	if err := s.pm.CopyToPost(ctx, nil, item.ID, instanceID); err != nil {
		return nil, err
	}

	overrides, err := s.pp.ListByPostID(ctx, item.ID)
	if err != nil {
		return nil, err
	}
	byPlatform := make(map[string]*models.PostPlatform, len(overrides))
	for _, o := range overrides {
		byPlatform[o.Platform] = o
	}

	for _, p := range platforms {
		assignment := models.PostPlatform{
			PostID:   instanceID,
			Platform: p,
		}
		if o, ok := byPlatform[p]; ok {
			assignment.Content = o.Content
			assignment.MediaURLs = o.MediaURLs
		}
		if err := s.pp.Create(ctx, nil, &assignment); err != nil {
			return nil, err
		}
	}

	return instance, nil
}

func (s *Scheduler) recordActivity(ctx context.Context, userID int64, kind, message string, postID int64) {
	activity := models.Activity{
		UserID:  userID,
		Kind:    kind,
		Message: message,
	}
	if postID != 0 {
		activity.PostID = sql.NullInt64{Int64: postID, Valid: true}
	}
	if _, err := s.ar.Create(ctx, &activity); err != nil {
		slog.Info(err.Error())
	}
}
