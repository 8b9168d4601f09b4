package job

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/postloop/postloop/internal/models"
	"github.com/postloop/postloop/internal/repository"
	"github.com/postloop/postloop/internal/tokens"
)

// TokenRefreshJob sweeps connections whose tokens expire soon and
// refreshes them before a publish has to. Accounts the token manager
// already refreshed are skipped inside the manager's per-connection lock.
type TokenRefreshJob struct {
	sr repository.SocialAccountRepository
	tm tokens.Manager
}

func NewTokenRefreshJob(sr repository.SocialAccountRepository, tm tokens.Manager) *TokenRefreshJob {
	return &TokenRefreshJob{
		sr: sr,
		tm: tm,
	}
}

func (c *TokenRefreshJob) RefreshTokens() {
	ctx := context.Background()

	currentTime := time.Now()
	horizon := currentTime.Add(tokens.SweepHorizon)

	accounts, err := c.sr.ListExpiring(ctx, currentTime, horizon)
	if err != nil {
		slog.Info(err.Error())
		return
	}

	var wg sync.WaitGroup

	concurrencyLimit := 10
	semaphore := make(chan struct{}, concurrencyLimit)

	for _, acc := range accounts {
		wg.Add(1)
		semaphore <- struct{}{}

		go func(acc *models.SocialAccount) {
			defer wg.Done()
			defer func() { <-semaphore }()

			if err := c.tm.RefreshAccount(ctx, acc); err != nil {
				slog.Info("Unable to refresh tokens for " + acc.Platform)
			}
		}(acc)
	}

	wg.Wait()
}
