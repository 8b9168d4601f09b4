package tokens

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	config "github.com/postloop/postloop/configs"
	"github.com/postloop/postloop/internal/platform"
	"github.com/postloop/postloop/internal/transfer"
)

// RefreshInput carries the decrypted credentials a strategy may need.
// Access-only schemes exchange the current access token; rotating-pair
// schemes consume the refresh token and hand back a new pair.
type RefreshInput struct {
	AccessToken  string
	RefreshToken string
	Signer       platform.RequestSigner
}

// RefreshResult is what a refresh protocol produced. An empty
// RefreshToken means the existing one is retained (access-only
// rotation).
type RefreshResult struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

type RefreshStrategy interface {
	Refresh(ctx context.Context, in RefreshInput) (*RefreshResult, error)
}

// --- facebook: long-lived token exchange, access-only ---

type facebookStrategy struct {
	client       *http.Client
	clientID     string
	clientSecret string
	TokenURL     string
}

func newFacebookStrategy(cfg config.Config, client *http.Client) *facebookStrategy {
	return &facebookStrategy{
		client:       client,
		clientID:     cfg.FacebookClientID,
		clientSecret: cfg.FacebookClientSecret,
		TokenURL:     "https://graph.facebook.com/v19.0/oauth/access_token",
	}
}

func (s *facebookStrategy) Refresh(ctx context.Context, in RefreshInput) (*RefreshResult, error) {
	if in.AccessToken == "" {
		return nil, platform.NewError(platform.KindTokenExpiredNoRefresh, platform.Facebook, "no token available to exchange")
	}

	params := url.Values{}
	params.Set("grant_type", "fb_exchange_token")
	params.Set("client_id", s.clientID)
	params.Set("client_secret", s.clientSecret)
	params.Set("fb_exchange_token", in.AccessToken)

	var result transfer.FacebookTokenResponse
	if err := getJSON(ctx, s.client, s.TokenURL+"?"+params.Encode(), platform.Facebook, &result); err != nil {
		return nil, err
	}
	if result.AccessToken == "" {
		return nil, fmt.Errorf("facebook token exchange returned no token")
	}

	return &RefreshResult{
		AccessToken: result.AccessToken,
		ExpiresAt:   time.Now().Add(time.Second * time.Duration(result.ExpiresIn)),
	}, nil
}

// --- instagram: long-lived token refresh, access-only ---

type instagramStrategy struct {
	client   *http.Client
	TokenURL string
}

func newInstagramStrategy(client *http.Client) *instagramStrategy {
	return &instagramStrategy{
		client:   client,
		TokenURL: "https://graph.instagram.com/refresh_access_token",
	}
}

func (s *instagramStrategy) Refresh(ctx context.Context, in RefreshInput) (*RefreshResult, error) {
	if in.AccessToken == "" {
		return nil, platform.NewError(platform.KindTokenExpiredNoRefresh, platform.Instagram, "no token available to refresh")
	}

	endpoint := fmt.Sprintf("%s?grant_type=ig_refresh_token&access_token=%s", s.TokenURL, in.AccessToken)

	var result struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := getJSON(ctx, s.client, endpoint, platform.Instagram, &result); err != nil {
		return nil, err
	}
	if result.AccessToken == "" {
		return nil, fmt.Errorf("instagram refresh returned no token")
	}

	return &RefreshResult{
		AccessToken: result.AccessToken,
		ExpiresAt:   time.Now().Add(time.Second * time.Duration(result.ExpiresIn)),
	}, nil
}

// --- linkedin: refresh token grant, access-only rotation ---

type linkedinStrategy struct {
	client       *http.Client
	clientID     string
	clientSecret string
	TokenURL     string
}

func newLinkedinStrategy(cfg config.Config, client *http.Client) *linkedinStrategy {
	return &linkedinStrategy{
		client:       client,
		clientID:     cfg.LinkedinClientID,
		clientSecret: cfg.LinkedinClientSecret,
		TokenURL:     "https://www.linkedin.com/oauth/v2/accessToken",
	}
}

func (s *linkedinStrategy) Refresh(ctx context.Context, in RefreshInput) (*RefreshResult, error) {
	if in.RefreshToken == "" {
		return nil, platform.NewError(platform.KindTokenExpiredNoRefresh, platform.LinkedIn, "no refresh token stored")
	}

	data := url.Values{}
	data.Set("grant_type", "refresh_token")
	data.Set("refresh_token", in.RefreshToken)
	data.Set("client_id", s.clientID)
	data.Set("client_secret", s.clientSecret)

	var result transfer.LinkedinTokenResponse
	if err := postFormJSON(ctx, s.client, s.TokenURL, platform.LinkedIn, data, &result); err != nil {
		return nil, err
	}
	if result.AccessToken == "" {
		return nil, fmt.Errorf("linkedin refresh returned no token")
	}

	return &RefreshResult{
		AccessToken: result.AccessToken,
		ExpiresAt:   time.Now().Add(time.Second * time.Duration(result.ExpiresIn)),
	}, nil
}

// --- tiktok: rotating pair, both halves replaced on every refresh ---

type tiktokStrategy struct {
	client       *http.Client
	clientKey    string
	clientSecret string
	TokenURL     string
}

func newTiktokStrategy(cfg config.Config, client *http.Client) *tiktokStrategy {
	return &tiktokStrategy{
		client:       client,
		clientKey:    cfg.TiktokClientKey,
		clientSecret: cfg.TiktokClientSecret,
		TokenURL:     "https://open.tiktokapis.com/v2/oauth/token/",
	}
}

func (s *tiktokStrategy) Refresh(ctx context.Context, in RefreshInput) (*RefreshResult, error) {
	if in.RefreshToken == "" {
		return nil, platform.NewError(platform.KindTokenExpiredNoRefresh, platform.TikTok, "no refresh token stored")
	}

	data := url.Values{}
	data.Set("client_key", s.clientKey)
	data.Set("client_secret", s.clientSecret)
	data.Set("grant_type", "refresh_token")
	data.Set("refresh_token", in.RefreshToken)

	var result transfer.TiktokTokenResponse
	if err := postFormJSON(ctx, s.client, s.TokenURL, platform.TikTok, data, &result); err != nil {
		return nil, err
	}
	if result.AccessToken == "" || result.RefreshToken == "" {
		return nil, fmt.Errorf("tiktok refresh returned an incomplete token pair")
	}

	return &RefreshResult{
		AccessToken:  result.AccessToken,
		RefreshToken: result.RefreshToken,
		ExpiresAt:    time.Now().Add(time.Second * time.Duration(result.ExpiresIn)),
	}, nil
}

// --- bluesky: rotating pair, every call proof-of-possession signed ---

type blueskyStrategy struct {
	client *http.Client
	PDSURL string
}

func newBlueskyStrategy(cfg config.Config, client *http.Client) *blueskyStrategy {
	return &blueskyStrategy{
		client: client,
		PDSURL: strings.TrimSuffix(cfg.BlueskyPDSURL, "/"),
	}
}

func (s *blueskyStrategy) Refresh(ctx context.Context, in RefreshInput) (*RefreshResult, error) {
	if in.RefreshToken == "" {
		return nil, platform.NewError(platform.KindTokenExpiredNoRefresh, platform.Bluesky, "no refresh token stored")
	}
	if in.Signer == nil {
		return nil, platform.NewError(platform.KindRefreshFailed, platform.Bluesky, "connection has no proof-of-possession key")
	}

	req, err := http.NewRequestWithContext(ctx, "POST", s.PDSURL+"/xrpc/com.atproto.server.refreshSession", nil)
	if err != nil {
		return nil, err
	}
	// The refresh call itself authenticates with the refresh credential.
	if err := in.Signer.Sign(req, in.RefreshToken); err != nil {
		return nil, err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		msg := fmt.Sprintf("refreshSession returned %d: %s", resp.StatusCode, body)
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return nil, platform.NewError(platform.KindRefreshFailed, platform.Bluesky, msg)
		}
		return nil, errors.New(msg)
	}

	var session transfer.BlueskySession
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		return nil, fmt.Errorf("failed to decode session response: %w", err)
	}
	if session.AccessJwt == "" || session.RefreshJwt == "" {
		return nil, fmt.Errorf("refreshSession returned an incomplete token pair")
	}

	return &RefreshResult{
		AccessToken:  session.AccessJwt,
		RefreshToken: session.RefreshJwt,
		ExpiresAt:    jwtExpiry(session.AccessJwt, 2*time.Hour),
	}, nil
}

// jwtExpiry reads the exp claim without verifying; the token comes from
// the platform over TLS and is only used to schedule the next refresh.
func jwtExpiry(tokenString string, fallback time.Duration) time.Time {
	parser := jwt.NewParser()
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(tokenString, claims); err == nil {
		if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
			return exp.Time
		}
	}
	return time.Now().Add(fallback)
}

func getJSON(ctx context.Context, client *http.Client, endpoint, platformName string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return err
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := checkTokenResponse(resp, platformName); err != nil {
		return err
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

func postFormJSON(ctx context.Context, client *http.Client, endpoint, platformName string, data url.Values, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, "POST", endpoint, strings.NewReader(data.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := checkTokenResponse(resp, platformName); err != nil {
		return err
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

// checkTokenResponse separates the platform rejecting the grant (4xx,
// terminal, the user has to reconnect) from the platform being
// unavailable (5xx, transient, left untyped so it is retried).
func checkTokenResponse(resp *http.Response, platformName string) error {
	if resp.StatusCode == http.StatusOK {
		return nil
	}
	body, _ := io.ReadAll(resp.Body)
	msg := fmt.Sprintf("token endpoint returned %d: %s", resp.StatusCode, body)
	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		return platform.NewError(platform.KindRefreshFailed, platformName, msg)
	}
	return errors.New(msg)
}
