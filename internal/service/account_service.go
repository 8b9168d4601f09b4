package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	config "github.com/postloop/postloop/configs"
	"github.com/postloop/postloop/internal/models"
	"github.com/postloop/postloop/internal/platform"
	"github.com/postloop/postloop/internal/repository"
	"github.com/postloop/postloop/internal/tokens"
	"github.com/postloop/postloop/internal/transfer"
	"github.com/postloop/postloop/pkg/utils"
)

const (
	FACEBOOK_AUTH_URL  = "https://www.facebook.com/v19.0/dialog/oauth"
	INSTAGRAM_AUTH_URL = "https://www.instagram.com/oauth/authorize"
	LINKEDIN_AUTH_URL  = "https://www.linkedin.com/oauth/v2/authorization"
	TIKTOK_AUTH_URL    = "https://www.tiktok.com/v2/auth/authorize"
)

type AccountService interface {
	GetAuthURL(ctx context.Context, platformName, tokenString string) string
	ConnectCallback(ctx context.Context, userID int64, platformName, code string) error
	ConnectBluesky(ctx context.Context, userID int64, bc *transfer.BlueskyConnect) error
	List(ctx context.Context, userID int64) ([]*models.SocialAccount, error)
	Delete(ctx context.Context, userID, accountID int64) error
}

type accountService struct {
	cfg    config.Config
	sa     repository.SocialAccountRepository
	ar     repository.ActivityRepository
	client *http.Client
}

func NewAccountService(cfg config.Config, sa repository.SocialAccountRepository, ar repository.ActivityRepository, client *http.Client) AccountService {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &accountService{
		cfg:    cfg,
		sa:     sa,
		ar:     ar,
		client: client,
	}
}

func (s *accountService) GetAuthURL(ctx context.Context, platformName, tokenString string) string {
	switch platformName {
	case platform.Facebook:
		params := url.Values{}
		params.Add("client_id", s.cfg.FacebookClientID)
		params.Add("redirect_uri", s.cfg.FacebookRedirectURI)
		params.Add("scope", "pages_manage_posts,pages_read_engagement,publish_to_groups")
		params.Add("response_type", "code")
		params.Add("state", tokenString)
		return fmt.Sprintf("%s?%s", FACEBOOK_AUTH_URL, params.Encode())

	case platform.Instagram:
		params := url.Values{}
		params.Add("client_id", s.cfg.InstagramClientID)
		params.Add("scope", "instagram_business_basic,instagram_business_content_publish")
		params.Add("response_type", "code")
		params.Add("redirect_uri", s.cfg.InstagramRedirectURI)
		params.Add("state", tokenString)
		return fmt.Sprintf("%s?%s", INSTAGRAM_AUTH_URL, params.Encode())

	case platform.LinkedIn:
		params := url.Values{}
		params.Add("client_id", s.cfg.LinkedinClientID)
		params.Add("redirect_uri", s.cfg.LinkedinRedirectURI)
		params.Add("scope", "openid profile email w_member_social")
		params.Add("response_type", "code")
		params.Add("state", tokenString)
		return fmt.Sprintf("%s?%s", LINKEDIN_AUTH_URL, params.Encode())

	case platform.TikTok:
		params := url.Values{}
		params.Add("client_key", s.cfg.TiktokClientKey)
		params.Add("scope", "user.info.basic,user.info.profile,video.publish,video.upload")
		params.Add("response_type", "code")
		params.Add("redirect_uri", s.cfg.TiktokRedirectURI)
		params.Add("state", tokenString)
		return fmt.Sprintf("%s?%s", TIKTOK_AUTH_URL, params.Encode())

	default:
		return ""
	}
}

func (s *accountService) ConnectCallback(ctx context.Context, userID int64, platformName, code string) error {
	var err error

	if code == "" {
		err = errors.New("code is empty")
		slog.Info(err.Error())
		return err
	}

	var account *models.SocialAccount

	switch platformName {
	case platform.Facebook:
		account, err = s.connectFacebook(ctx, code)
	case platform.Instagram:
		account, err = s.connectInstagram(ctx, code)
	case platform.LinkedIn:
		account, err = s.connectLinkedin(ctx, code)
	case platform.TikTok:
		account, err = s.connectTiktok(ctx, code)
	default:
		err = fmt.Errorf("unknown platform: %s", platformName)
		slog.Info(err.Error())
	}
	if err != nil {
		return err
	}

	account.UserID = userID
	account.Platform = platformName
	account.AccountStatus = models.AccountStatusActive

	if err = s.saveAccount(ctx, account); err != nil {
		return err
	}

	s.recordActivity(ctx, userID, models.ActivityAccountConnected, fmt.Sprintf("Connected %s account %s", platformName, account.AccountName))
	return nil
}

// connectFacebook trades the code for a short-lived token, then
// exchanges that for a long-lived one.
func (s *accountService) connectFacebook(ctx context.Context, code string) (*models.SocialAccount, error) {
	params := url.Values{}
	params.Set("client_id", s.cfg.FacebookClientID)
	params.Set("client_secret", s.cfg.FacebookClientSecret)
	params.Set("redirect_uri", s.cfg.FacebookRedirectURI)
	params.Set("code", code)

	var short transfer.FacebookTokenResponse
	if err := s.getJSON(ctx, "https://graph.facebook.com/v19.0/oauth/access_token?"+params.Encode(), "", &short); err != nil {
		return nil, err
	}

	exchange := url.Values{}
	exchange.Set("grant_type", "fb_exchange_token")
	exchange.Set("client_id", s.cfg.FacebookClientID)
	exchange.Set("client_secret", s.cfg.FacebookClientSecret)
	exchange.Set("fb_exchange_token", short.AccessToken)

	var long transfer.FacebookTokenResponse
	if err := s.getJSON(ctx, "https://graph.facebook.com/v19.0/oauth/access_token?"+exchange.Encode(), "", &long); err != nil {
		return nil, err
	}

	var info transfer.FacebookUserInfo
	infoURL := fmt.Sprintf("https://graph.facebook.com/v19.0/me?fields=id,name,picture&access_token=%s", url.QueryEscape(long.AccessToken))
	if err := s.getJSON(ctx, infoURL, "", &info); err != nil {
		return nil, err
	}

	return &models.SocialAccount{
		AccountID:      info.ID,
		AccountName:    info.Name,
		ProfilePicture: info.Picture.Data.URL,
		AccessToken:    long.AccessToken,
		TokenExpiresAt: GetExpiresAt(int(long.ExpiresIn)),
	}, nil
}

func (s *accountService) connectInstagram(ctx context.Context, code string) (*models.SocialAccount, error) {
	data := url.Values{}
	data.Set("client_id", s.cfg.InstagramClientID)
	data.Set("client_secret", s.cfg.InstagramClientSecret)
	data.Set("grant_type", "authorization_code")
	data.Set("redirect_uri", s.cfg.InstagramRedirectURI)
	data.Set("code", code)

	var short transfer.InstagramOAuthToken
	if err := s.postForm(ctx, "https://api.instagram.com/oauth/access_token", data, &short); err != nil {
		return nil, err
	}

	exchangeURL := fmt.Sprintf("https://graph.instagram.com/access_token?grant_type=ig_exchange_token&client_secret=%s&access_token=%s",
		url.QueryEscape(s.cfg.InstagramClientSecret), url.QueryEscape(short.AccessToken))

	var long transfer.InstagramLongLivedToken
	if err := s.getJSON(ctx, exchangeURL, "", &long); err != nil {
		return nil, err
	}

	var info transfer.InstagramUserInfo
	infoURL := fmt.Sprintf("https://graph.instagram.com/v21.0/me?fields=id,username,name,profile_picture_url&access_token=%s", url.QueryEscape(long.AccessToken))
	if err := s.getJSON(ctx, infoURL, "", &info); err != nil {
		return nil, err
	}

	return &models.SocialAccount{
		AccountID:       info.UserID,
		AccountName:     info.Name,
		AccountUsername: info.Username,
		ProfilePicture:  info.ProfilePicture,
		AccessToken:     long.AccessToken,
		TokenExpiresAt:  GetExpiresAt(int(long.ExpiresIn)),
	}, nil
}

func (s *accountService) connectLinkedin(ctx context.Context, code string) (*models.SocialAccount, error) {
	data := url.Values{}
	data.Set("grant_type", "authorization_code")
	data.Set("code", code)
	data.Set("redirect_uri", s.cfg.LinkedinRedirectURI)
	data.Set("client_id", s.cfg.LinkedinClientID)
	data.Set("client_secret", s.cfg.LinkedinClientSecret)

	var token transfer.LinkedinTokenResponse
	if err := s.postForm(ctx, "https://www.linkedin.com/oauth/v2/accessToken", data, &token); err != nil {
		return nil, err
	}

	var info transfer.LinkedinUserInfo
	if err := s.getJSON(ctx, "https://api.linkedin.com/v2/userinfo", token.AccessToken, &info); err != nil {
		return nil, err
	}

	return &models.SocialAccount{
		AccountID:      info.Sub,
		AccountName:    info.Name,
		ProfilePicture: info.Picture,
		AccessToken:    token.AccessToken,
		RefreshToken:   token.RefreshToken,
		TokenExpiresAt: GetExpiresAt(int(token.ExpiresIn)),
	}, nil
}

func (s *accountService) connectTiktok(ctx context.Context, code string) (*models.SocialAccount, error) {
	data := url.Values{}
	data.Set("client_key", s.cfg.TiktokClientKey)
	data.Set("client_secret", s.cfg.TiktokClientSecret)
	data.Set("code", code)
	data.Set("grant_type", "authorization_code")
	data.Set("redirect_uri", s.cfg.TiktokRedirectURI)

	var token transfer.TiktokTokenResponse
	if err := s.postForm(ctx, "https://open.tiktokapis.com/v2/oauth/token/", data, &token); err != nil {
		return nil, err
	}
	if token.AccessToken == "" {
		return nil, errors.New("tiktok token exchange returned no token")
	}

	var info transfer.TiktokUserResponse
	infoURL := "https://open.tiktokapis.com/v2/user/info/?fields=open_id,avatar_url,display_name,username"
	if err := s.getJSON(ctx, infoURL, token.AccessToken, &info); err != nil {
		return nil, err
	}

	return &models.SocialAccount{
		AccountID:       token.OpenID,
		AccountName:     info.Data.User.DisplayName,
		AccountUsername: info.Data.User.Username,
		ProfilePicture:  info.Data.User.AvatarURL,
		AccessToken:     token.AccessToken,
		RefreshToken:    token.RefreshToken,
		TokenExpiresAt:  GetExpiresAt(token.ExpiresIn),
	}, nil
}

// ConnectBluesky opens a session with the user's app password and
// generates the signing keypair every later request is proven with.
// The password itself is never stored.
func (s *accountService) ConnectBluesky(ctx context.Context, userID int64, bc *transfer.BlueskyConnect) error {
	var err error

	if bc == nil || bc.Handle == "" || bc.AppPassword == "" {
		err = errors.New("handle and app password are required")
		slog.Info(err.Error())
		return err
	}

	body, err := json.Marshal(map[string]string{
		"identifier": bc.Handle,
		"password":   bc.AppPassword,
	})
	if err != nil {
		return err
	}

	endpoint := strings.TrimSuffix(s.cfg.BlueskyPDSURL, "/") + "/xrpc/com.atproto.server.createSession"
	req, err := http.NewRequestWithContext(ctx, "POST", endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		err = fmt.Errorf("createSession returned %d: %s", resp.StatusCode, raw)
		slog.Info(err.Error())
		return err
	}

	var session transfer.BlueskySession
	if err = json.NewDecoder(resp.Body).Decode(&session); err != nil {
		slog.Info(err.Error())
		return err
	}

	key, err := tokens.GenerateDPoPKey()
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	exported, err := key.Export()
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	encryptedKey, err := utils.Encrypt([]byte(exported), []byte(s.cfg.SecretKey))
	if err != nil {
		slog.Info(err.Error())
		return err
	}

	account := &models.SocialAccount{
		UserID:          userID,
		Platform:        platform.Bluesky,
		AccountID:       session.DID,
		AccountName:     session.Handle,
		AccountUsername: session.Handle,
		AccessToken:     session.AccessJwt,
		RefreshToken:    session.RefreshJwt,
		TokenExpiresAt:  time.Now().Add(2 * time.Hour),
		CredentialBlob:  encryptedKey,
		AccountStatus:   models.AccountStatusActive,
	}

	if err = s.saveAccount(ctx, account); err != nil {
		return err
	}

	s.recordActivity(ctx, userID, models.ActivityAccountConnected, fmt.Sprintf("Connected bluesky account %s", session.Handle))
	return nil
}

// saveAccount encrypts the secrets and upserts the connection row.
// CredentialBlob arrives already encrypted.
func (s *accountService) saveAccount(ctx context.Context, account *models.SocialAccount) error {
	encryptedAccess, err := utils.Encrypt([]byte(account.AccessToken), []byte(s.cfg.SecretKey))
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	account.AccessToken = encryptedAccess

	if account.RefreshToken != "" {
		encryptedRefresh, err := utils.Encrypt([]byte(account.RefreshToken), []byte(s.cfg.SecretKey))
		if err != nil {
			slog.Info(err.Error())
			return err
		}
		account.RefreshToken = encryptedRefresh
	}

	if _, err = s.sa.Upsert(ctx, account); err != nil {
		slog.Info(err.Error())
		return fmt.Errorf("Error saving social account")
	}
	return nil
}

func (s *accountService) List(ctx context.Context, userID int64) ([]*models.SocialAccount, error) {
	var err error

	if userID == 0 {
		err = errors.New("UserID is not valid")
		slog.Info(err.Error())
		return nil, err
	}

	accounts, err := s.sa.ListInfoByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("Error getting social accounts")
	}

	return accounts, nil
}

func (s *accountService) Delete(ctx context.Context, userID, accountID int64) error {
	var err error

	if userID == 0 {
		err = errors.New("UserID is not valid")
		slog.Info(err.Error())
		return err
	}

	if accountID == 0 {
		err = errors.New("AccountID is not valid")
		slog.Info(err.Error())
		return err
	}

	isValid, err := s.sa.CheckByUserID(ctx, accountID, userID)
	if err != nil {
		return err
	}

	if !isValid {
		err = errors.New("Social account doesn't exist")
		slog.Info(err.Error())
		return err
	}

	accountInfo, err := s.sa.GetByID(ctx, accountID)
	if err != nil {
		return fmt.Errorf("Unable to get social account info")
	}

	decryptedAccessToken, err := utils.Decrypt(accountInfo.AccessToken, []byte(s.cfg.SecretKey))
	if err != nil {
		return err
	}

	switch accountInfo.Platform {
	case platform.TikTok:
		if err = s.revokeTiktokAccess(ctx, decryptedAccessToken); err != nil {
			slog.Info(err.Error())
		}
	case platform.Facebook, platform.Instagram:
		if err = s.revokeGraphAccess(ctx, accountInfo.Platform, accountInfo.AccountID, decryptedAccessToken); err != nil {
			slog.Info(err.Error())
		}
	}
	// linkedin and bluesky tokens simply age out

	err = s.sa.Remove(ctx, accountID)
	if err != nil {
		return fmt.Errorf("Error removing social account")
	}

	s.recordActivity(ctx, userID, models.ActivityAccountRemoved, fmt.Sprintf("Removed %s account %s", accountInfo.Platform, accountInfo.AccountName))
	return nil
}

func (s *accountService) revokeTiktokAccess(ctx context.Context, accessToken string) error {
	data := url.Values{}
	data.Set("client_key", s.cfg.TiktokClientKey)
	data.Set("client_secret", s.cfg.TiktokClientSecret)
	data.Set("token", accessToken)

	req, err := http.NewRequestWithContext(ctx, "POST", "https://open.tiktokapis.com/v2/oauth/revoke/", strings.NewReader(data.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to revoke token, status code: %d", resp.StatusCode)
	}
	return nil
}

func (s *accountService) revokeGraphAccess(ctx context.Context, platformName, accountID, accessToken string) error {
	host := "graph.facebook.com/v19.0"
	if platformName == platform.Instagram {
		host = "graph.instagram.com/v21.0"
	}
	endpoint := fmt.Sprintf("https://%s/%s/permissions?access_token=%s", host, accountID, url.QueryEscape(accessToken))

	req, err := http.NewRequestWithContext(ctx, "DELETE", endpoint, nil)
	if err != nil {
		return err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to revoke token, status code: %d", resp.StatusCode)
	}
	return nil
}

func (s *accountService) recordActivity(ctx context.Context, userID int64, kind, message string) {
	_, err := s.ar.Create(ctx, &models.Activity{
		UserID:  userID,
		Kind:    kind,
		Message: message,
	})
	if err != nil {
		slog.Info(err.Error())
	}
}

func (s *accountService) getJSON(ctx context.Context, endpoint, bearer string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return err
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		err = fmt.Errorf("unexpected response status %d: %s", resp.StatusCode, raw)
		slog.Info(err.Error())
		return err
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

func (s *accountService) postForm(ctx context.Context, endpoint string, data url.Values, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, "POST", endpoint, strings.NewReader(data.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.client.Do(req)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		err = fmt.Errorf("unexpected response status %d: %s", resp.StatusCode, raw)
		slog.Info(err.Error())
		return err
	}

	return json.NewDecoder(resp.Body).Decode(out)
}
