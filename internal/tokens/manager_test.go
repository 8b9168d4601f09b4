package tokens

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	config "github.com/postloop/postloop/configs"
	"github.com/postloop/postloop/internal/models"
	"github.com/postloop/postloop/internal/platform"
	"github.com/postloop/postloop/pkg/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecretKey = "0123456789abcdef0123456789abcdef"

// fakeAccountRepo keeps one account in memory behind a mutex so the
// concurrency test can hammer it from several goroutines.
type fakeAccountRepo struct {
	mu      sync.Mutex
	account *models.SocialAccount

	setTokenCalls  int
	setStatusCalls int
	lastStatus     string
}

func (r *fakeAccountRepo) Upsert(ctx context.Context, sa *models.SocialAccount) (int64, error) {
	return 0, errors.New("not implemented")
}

func (r *fakeAccountRepo) GetByID(ctx context.Context, id int64) (*models.SocialAccount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.account == nil || r.account.ID != id {
		return nil, nil
	}
	copied := *r.account
	return &copied, nil
}

func (r *fakeAccountRepo) GetByUserPlatform(ctx context.Context, userID int64, platformName string) (*models.SocialAccount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.account == nil || r.account.UserID != userID || r.account.Platform != platformName {
		return nil, nil
	}
	copied := *r.account
	return &copied, nil
}

func (r *fakeAccountRepo) ListByUserID(ctx context.Context, userID int64) ([]*models.SocialAccount, error) {
	return nil, nil
}

func (r *fakeAccountRepo) ListInfoByUserID(ctx context.Context, userID int64) ([]*models.SocialAccount, error) {
	return nil, nil
}

func (r *fakeAccountRepo) ListExpiring(ctx context.Context, initialTime, finalTime time.Time) ([]*models.SocialAccount, error) {
	return nil, nil
}

func (r *fakeAccountRepo) CheckByUserID(ctx context.Context, accountID, userID int64) (bool, error) {
	return false, nil
}

func (r *fakeAccountRepo) SetToken(ctx context.Context, id int64, accessToken, refreshToken string, expiresAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.setTokenCalls++
	r.account.AccessToken = accessToken
	if refreshToken != "" {
		r.account.RefreshToken = refreshToken
	}
	r.account.TokenExpiresAt = expiresAt
	return nil
}

func (r *fakeAccountRepo) SetStatus(ctx context.Context, id int64, status string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.setStatusCalls++
	r.lastStatus = status
	r.account.AccountStatus = status
	return nil
}

func (r *fakeAccountRepo) Remove(ctx context.Context, id int64) error { return nil }

type fakeStrategy struct {
	mu     sync.Mutex
	calls  int
	result RefreshResult
	err    error
}

func (s *fakeStrategy) Refresh(ctx context.Context, in RefreshInput) (*RefreshResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	result := s.result
	return &result, nil
}

func (s *fakeStrategy) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func encryptOrFail(t *testing.T, plaintext string) string {
	t.Helper()
	out, err := utils.Encrypt([]byte(plaintext), []byte(testSecretKey))
	require.NoError(t, err)
	return out
}

func testAccount(t *testing.T, platformName string, expiresAt time.Time) *models.SocialAccount {
	return &models.SocialAccount{
		ID:             7,
		UserID:         1,
		Platform:       platformName,
		AccountID:      "acct1",
		AccountName:    "Test Account",
		AccessToken:    encryptOrFail(t, "access-plain"),
		RefreshToken:   encryptOrFail(t, "refresh-plain"),
		TokenExpiresAt: expiresAt,
		AccountStatus:  models.AccountStatusActive,
	}
}

func newTestManager(repo *fakeAccountRepo, strategy RefreshStrategy, platformName string, now time.Time) *manager {
	return &manager{
		cfg:        config.Config{SecretKey: testSecretKey},
		sa:         repo,
		strategies: map[string]RefreshStrategy{platformName: strategy},
		now:        func() time.Time { return now },
	}
}

func TestGetValidCredentialFreshToken(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	repo := &fakeAccountRepo{account: testAccount(t, platform.Facebook, now.Add(2*time.Hour))}
	strategy := &fakeStrategy{}
	m := newTestManager(repo, strategy, platform.Facebook, now)

	cred, err := m.GetValidCredential(context.Background(), 1, platform.Facebook)
	require.NoError(t, err)
	assert.Equal(t, "access-plain", cred.AccessToken)
	assert.Equal(t, "acct1", cred.AccountID)
	assert.Nil(t, cred.Signer)
	assert.Zero(t, strategy.callCount(), "fresh tokens are handed out without a refresh")
}

func TestGetValidCredentialRefreshesStaleToken(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	repo := &fakeAccountRepo{account: testAccount(t, platform.Facebook, now.Add(time.Minute))}
	strategy := &fakeStrategy{result: RefreshResult{
		AccessToken: "access-new",
		ExpiresAt:   now.Add(48 * time.Hour),
	}}
	m := newTestManager(repo, strategy, platform.Facebook, now)

	cred, err := m.GetValidCredential(context.Background(), 1, platform.Facebook)
	require.NoError(t, err)
	assert.Equal(t, "access-new", cred.AccessToken)
	assert.Equal(t, 1, strategy.callCount())
	assert.Equal(t, 1, repo.setTokenCalls)

	// An empty refresh half from the provider keeps the stored one.
	stored, err := utils.Decrypt(repo.account.RefreshToken, []byte(testSecretKey))
	require.NoError(t, err)
	assert.Equal(t, "refresh-plain", stored)
}

func TestGetValidCredentialConcurrentRefreshesOnce(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	repo := &fakeAccountRepo{account: testAccount(t, platform.TikTok, now.Add(time.Minute))}
	strategy := &fakeStrategy{result: RefreshResult{
		AccessToken:  "access-new",
		RefreshToken: "refresh-new",
		ExpiresAt:    now.Add(24 * time.Hour),
	}}
	m := newTestManager(repo, strategy, platform.TikTok, now)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cred, err := m.GetValidCredential(context.Background(), 1, platform.TikTok)
			assert.NoError(t, err)
			assert.Equal(t, "access-new", cred.AccessToken)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, strategy.callCount(), "the re-read inside the lock absorbs the other callers")
	assert.Equal(t, 1, repo.setTokenCalls)
}

func TestGetValidCredentialNotConnected(t *testing.T) {
	now := time.Now()
	repo := &fakeAccountRepo{}
	m := newTestManager(repo, &fakeStrategy{}, platform.Facebook, now)

	_, err := m.GetValidCredential(context.Background(), 1, platform.Facebook)
	require.Error(t, err)
	assert.Equal(t, platform.KindAccountNotConnected, platform.KindOf(err))
}

func TestGetValidCredentialInactiveAccount(t *testing.T) {
	now := time.Now()
	account := testAccount(t, platform.Facebook, now.Add(2*time.Hour))
	account.AccountStatus = models.AccountStatusReconnectNeeded
	repo := &fakeAccountRepo{account: account}
	m := newTestManager(repo, &fakeStrategy{}, platform.Facebook, now)

	_, err := m.GetValidCredential(context.Background(), 1, platform.Facebook)
	require.Error(t, err)
	assert.Equal(t, platform.KindAuthRequired, platform.KindOf(err))
}

func TestRefreshMissingRefreshTokenMarksReconnect(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	account := testAccount(t, platform.TikTok, now.Add(time.Minute))
	account.RefreshToken = ""
	repo := &fakeAccountRepo{account: account}
	strategy := &fakeStrategy{}
	m := newTestManager(repo, strategy, platform.TikTok, now)

	_, err := m.GetValidCredential(context.Background(), 1, platform.TikTok)
	require.Error(t, err)
	assert.Equal(t, platform.KindTokenExpiredNoRefresh, platform.KindOf(err))
	assert.True(t, platform.IsTerminalAuth(err))
	assert.Zero(t, strategy.callCount())
	assert.Equal(t, models.AccountStatusReconnectNeeded, repo.lastStatus)
}

func TestRefreshRejectionMarksReconnect(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	repo := &fakeAccountRepo{account: testAccount(t, platform.LinkedIn, now.Add(time.Minute))}
	strategy := &fakeStrategy{err: platform.NewError(platform.KindRefreshFailed, platform.LinkedIn, "token endpoint returned 400: invalid_grant")}
	m := newTestManager(repo, strategy, platform.LinkedIn, now)

	_, err := m.GetValidCredential(context.Background(), 1, platform.LinkedIn)
	require.Error(t, err)
	assert.Equal(t, platform.KindRefreshFailed, platform.KindOf(err))
	assert.Equal(t, models.AccountStatusReconnectNeeded, repo.lastStatus)
	assert.Zero(t, repo.setTokenCalls)
}

func TestTransientRefreshErrorKeepsAccountActive(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	repo := &fakeAccountRepo{account: testAccount(t, platform.LinkedIn, now.Add(time.Minute))}
	strategy := &fakeStrategy{err: errors.New("context deadline exceeded")}
	m := newTestManager(repo, strategy, platform.LinkedIn, now)

	_, err := m.GetValidCredential(context.Background(), 1, platform.LinkedIn)
	require.Error(t, err)
	assert.False(t, platform.IsTerminalAuth(err))
	assert.Zero(t, repo.setStatusCalls, "a network blip must not force a reconnect")
	assert.NotEqual(t, models.AccountStatusReconnectNeeded, repo.lastStatus)
	assert.Equal(t, models.AccountStatusActive, repo.account.AccountStatus)
}

func TestRefreshAccountSkipsFreshRow(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	repo := &fakeAccountRepo{account: testAccount(t, platform.Facebook, now.Add(2*time.Hour))}
	strategy := &fakeStrategy{}
	m := newTestManager(repo, strategy, platform.Facebook, now)

	require.NoError(t, m.RefreshAccount(context.Background(), repo.account))
	assert.Zero(t, strategy.callCount())
}

func TestRefreshAccountUsesSweepHorizon(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	// 20 minutes out: fresh for an on-demand caller, stale for the sweep.
	repo := &fakeAccountRepo{account: testAccount(t, platform.Facebook, now.Add(20*time.Minute))}
	strategy := &fakeStrategy{result: RefreshResult{
		AccessToken: "access-new",
		ExpiresAt:   now.Add(48 * time.Hour),
	}}
	m := newTestManager(repo, strategy, platform.Facebook, now)

	_, err := m.GetValidCredential(context.Background(), 1, platform.Facebook)
	require.NoError(t, err)
	assert.Zero(t, strategy.callCount())

	require.NoError(t, m.RefreshAccount(context.Background(), repo.account))
	assert.Equal(t, 1, strategy.callCount())
	assert.Equal(t, 1, repo.setTokenCalls)
}
