package tokens

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	config "github.com/postloop/postloop/configs"
	"github.com/postloop/postloop/internal/models"
	"github.com/postloop/postloop/internal/platform"
	"github.com/postloop/postloop/internal/repository"
	"github.com/postloop/postloop/pkg/utils"
)

// refreshMargin is how far before the stored expiry a token is treated
// as stale. Anything inside the margin is refreshed before use so a
// publish never goes out with a token about to die mid-request.
const refreshMargin = 5 * time.Minute

// SweepHorizon is how far ahead the proactive background sweep looks.
// It is wider than the on-demand margin so a token listed by the sweep
// is actually refreshed instead of being re-listed until its last
// minutes.
const SweepHorizon = 30 * time.Minute

type Manager interface {
	GetValidCredential(ctx context.Context, userID int64, platformName string) (*platform.Credential, error)
	RefreshAccount(ctx context.Context, account *models.SocialAccount) error
}

type manager struct {
	cfg        config.Config
	sa         repository.SocialAccountRepository
	strategies map[string]RefreshStrategy

	// locks holds one mutex per connection id so concurrent publishes
	// against the same account perform at most one refresh.
	locks sync.Map

	now func() time.Time
}

func NewManager(cfg config.Config, sa repository.SocialAccountRepository, client *http.Client) Manager {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &manager{
		cfg: cfg,
		sa:  sa,
		strategies: map[string]RefreshStrategy{
			platform.Facebook:  newFacebookStrategy(cfg, client),
			platform.Instagram: newInstagramStrategy(client),
			platform.LinkedIn:  newLinkedinStrategy(cfg, client),
			platform.TikTok:    newTiktokStrategy(cfg, client),
			platform.Bluesky:   newBlueskyStrategy(cfg, client),
		},
		now: time.Now,
	}
}

// GetValidCredential loads the user's connection for the platform and
// returns a credential whose access token is guaranteed fresh for at
// least the refresh margin, refreshing and persisting first if needed.
func (m *manager) GetValidCredential(ctx context.Context, userID int64, platformName string) (*platform.Credential, error) {
	account, err := m.sa.GetByUserPlatform(ctx, userID, platformName)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	if account == nil {
		return nil, platform.NewError(platform.KindAccountNotConnected, platformName, "no connected account")
	}
	if account.AccountStatus != models.AccountStatusActive {
		return nil, platform.NewError(platform.KindAuthRequired, platformName, "account needs to be reconnected")
	}

	if m.stale(account.TokenExpiresAt, refreshMargin) {
		account, err = m.refreshLocked(ctx, account, refreshMargin)
		if err != nil {
			return nil, err
		}
	}

	return m.credential(account)
}

// RefreshAccount proactively refreshes one connection. Used by the
// background expiry sweep; accounts another caller already refreshed
// are skipped once the lock is acquired.
func (m *manager) RefreshAccount(ctx context.Context, account *models.SocialAccount) error {
	if account == nil {
		return nil
	}
	_, err := m.refreshLocked(ctx, account, SweepHorizon)
	return err
}

func (m *manager) stale(expiresAt time.Time, margin time.Duration) bool {
	if expiresAt.IsZero() {
		return false
	}
	return m.now().Add(margin).After(expiresAt)
}

// refreshLocked serializes refreshes per connection. The account row is
// re-read inside the lock so a refresh finished by another goroutine is
// observed instead of repeated.
func (m *manager) refreshLocked(ctx context.Context, account *models.SocialAccount, margin time.Duration) (*models.SocialAccount, error) {
	v, _ := m.locks.LoadOrStore(account.ID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	defer mu.Unlock()

	current, err := m.sa.GetByID(ctx, account.ID)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	if current == nil {
		return nil, platform.NewError(platform.KindAccountNotConnected, account.Platform, "account no longer exists")
	}
	if !m.stale(current.TokenExpiresAt, margin) {
		return current, nil
	}

	strategy, ok := m.strategies[current.Platform]
	if !ok {
		return nil, fmt.Errorf("no refresh strategy for platform %s", current.Platform)
	}

	in, err := m.refreshInput(current)
	if err != nil {
		return nil, err
	}
	if in.RefreshToken == "" && (current.Platform == platform.TikTok || current.Platform == platform.Bluesky) {
		m.markReconnect(ctx, current)
		return nil, platform.NewError(platform.KindTokenExpiredNoRefresh, current.Platform, "token expired and no refresh token is stored")
	}

	result, err := strategy.Refresh(ctx, in)
	if err != nil {
		slog.Info(err.Error())
		// Only a platform that rejected the grant outright puts the
		// connection into the reconnect state. A transport failure or a
		// 5xx leaves it active for the next caller to retry.
		if platform.IsTerminalAuth(err) {
			m.markReconnect(ctx, current)
			return nil, err
		}
		return nil, fmt.Errorf("refreshing %s token: %w", current.Platform, err)
	}

	encryptedAccess, err := utils.Encrypt([]byte(result.AccessToken), []byte(m.cfg.SecretKey))
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	encryptedRefresh := ""
	if result.RefreshToken != "" {
		encryptedRefresh, err = utils.Encrypt([]byte(result.RefreshToken), []byte(m.cfg.SecretKey))
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
	}

	if err := m.sa.SetToken(ctx, current.ID, encryptedAccess, encryptedRefresh, result.ExpiresAt); err != nil {
		slog.Info(err.Error())
		return nil, err
	}

	current.AccessToken = encryptedAccess
	if encryptedRefresh != "" {
		current.RefreshToken = encryptedRefresh
	}
	current.TokenExpiresAt = result.ExpiresAt
	return current, nil
}

func (m *manager) markReconnect(ctx context.Context, account *models.SocialAccount) {
	if err := m.sa.SetStatus(ctx, account.ID, models.AccountStatusReconnectNeeded); err != nil {
		slog.Info(err.Error())
	}
}

// refreshInput decrypts the stored secrets of the connection.
func (m *manager) refreshInput(account *models.SocialAccount) (RefreshInput, error) {
	in := RefreshInput{}

	access, err := utils.Decrypt(account.AccessToken, []byte(m.cfg.SecretKey))
	if err != nil {
		slog.Info(err.Error())
		return in, err
	}
	in.AccessToken = access

	if account.RefreshToken != "" {
		refresh, err := utils.Decrypt(account.RefreshToken, []byte(m.cfg.SecretKey))
		if err != nil {
			slog.Info(err.Error())
			return in, err
		}
		in.RefreshToken = refresh
	}

	if signer, err := m.signer(account); err != nil {
		return in, err
	} else if signer != nil {
		in.Signer = signer
	}
	return in, nil
}

func (m *manager) credential(account *models.SocialAccount) (*platform.Credential, error) {
	access, err := utils.Decrypt(account.AccessToken, []byte(m.cfg.SecretKey))
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}

	cred := &platform.Credential{
		Platform:    account.Platform,
		AccountID:   account.AccountID,
		AccountName: account.AccountName,
		AccessToken: access,
	}

	signer, err := m.signer(account)
	if err != nil {
		return nil, err
	}
	cred.Signer = signer
	return cred, nil
}

func (m *manager) signer(account *models.SocialAccount) (platform.RequestSigner, error) {
	if account.Platform != platform.Bluesky {
		return nil, nil
	}
	if account.CredentialBlob == "" {
		return nil, platform.NewError(platform.KindAuthRequired, account.Platform, "connection has no signing key, reconnect the account")
	}
	exported, err := utils.Decrypt(account.CredentialBlob, []byte(m.cfg.SecretKey))
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	key, err := ImportDPoPKey(exported)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	return key, nil
}
