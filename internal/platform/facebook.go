package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/postloop/postloop/internal/media"
	"github.com/postloop/postloop/internal/transfer"
)

// FacebookAdapter publishes to a page feed with a single authenticated
// write. Multiple images are pre-uploaded as unpublished photos and
// attached to one feed call; a single image goes out as one combined
// photo call.
type FacebookAdapter struct {
	client  *http.Client
	BaseURL string
}

func NewFacebookAdapter(client *http.Client) *FacebookAdapter {
	return &FacebookAdapter{
		client:  client,
		BaseURL: "https://graph.facebook.com/v19.0",
	}
}

func (a *FacebookAdapter) Name() string { return Facebook }

func (a *FacebookAdapter) Limits() Limits {
	return Limits{MaxImages: 10, MaxVideos: 0}
}

func (a *FacebookAdapter) Publish(ctx context.Context, cred *Credential, content PostContent, assets []media.Asset) (string, error) {
	if err := validateAssets(Facebook, a.Limits(), assets); err != nil {
		return "", err
	}

	switch len(assets) {
	case 0:
		return a.textPost(ctx, cred, content.Text)
	case 1:
		return a.singlePhotoPost(ctx, cred, content.Text, assets[0])
	default:
		return a.multiPhotoPost(ctx, cred, content.Text, assets)
	}
}

func (a *FacebookAdapter) textPost(ctx context.Context, cred *Credential, message string) (string, error) {
	form := url.Values{}
	form.Set("message", message)
	form.Set("access_token", cred.AccessToken)

	var result transfer.FacebookFeedResponse
	if err := a.postForm(ctx, fmt.Sprintf("%s/%s/feed", a.BaseURL, cred.AccountID), form, &result); err != nil {
		return "", err
	}
	if result.ID == "" {
		return "", NewError(KindPlatformRejected, Facebook, "no post id returned")
	}
	return result.ID, nil
}

func (a *FacebookAdapter) singlePhotoPost(ctx context.Context, cred *Credential, message string, asset media.Asset) (string, error) {
	form := url.Values{}
	form.Set("url", asset.URL)
	form.Set("caption", message)
	form.Set("access_token", cred.AccessToken)

	var result transfer.FacebookPhotoResponse
	if err := a.postForm(ctx, fmt.Sprintf("%s/%s/photos", a.BaseURL, cred.AccountID), form, &result); err != nil {
		return "", err
	}
	if result.PostID != "" {
		return result.PostID, nil
	}
	if result.ID == "" {
		return "", NewError(KindPlatformRejected, Facebook, "no post id returned")
	}
	return result.ID, nil
}

// multiPhotoPost uploads every image as an unpublished photo first, then
// attaches all of them to one feed call. Any failed upload aborts the
// whole publish; there is no partial posting.
func (a *FacebookAdapter) multiPhotoPost(ctx context.Context, cred *Credential, message string, assets []media.Asset) (string, error) {
	photoIDs := make([]string, 0, len(assets))
	for _, asset := range assets {
		form := url.Values{}
		form.Set("url", asset.URL)
		form.Set("published", "false")
		form.Set("access_token", cred.AccessToken)

		var result transfer.FacebookPhotoResponse
		if err := a.postForm(ctx, fmt.Sprintf("%s/%s/photos", a.BaseURL, cred.AccountID), form, &result); err != nil {
			return "", err
		}
		if result.ID == "" {
			return "", NewError(KindPlatformRejected, Facebook, "no photo id returned for pre-upload")
		}
		photoIDs = append(photoIDs, result.ID)
	}

	form := url.Values{}
	form.Set("message", message)
	form.Set("access_token", cred.AccessToken)
	for i, id := range photoIDs {
		form.Set(fmt.Sprintf("attached_media[%d]", i), fmt.Sprintf(`{"media_fbid":"%s"}`, id))
	}

	var result transfer.FacebookFeedResponse
	if err := a.postForm(ctx, fmt.Sprintf("%s/%s/feed", a.BaseURL, cred.AccountID), form, &result); err != nil {
		return "", err
	}
	if result.ID == "" {
		return "", NewError(KindPlatformRejected, Facebook, "no post id returned")
	}
	return result.ID, nil
}

func (a *FacebookAdapter) postForm(ctx context.Context, endpoint string, form url.Values, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, "POST", endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return WrapError(KindPlatformRejected, Facebook, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := a.client.Do(req)
	if err != nil {
		return WrapError(KindPlatformRejected, Facebook, err)
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return WrapError(KindPlatformRejected, Facebook, fmt.Errorf("error parsing response: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		msg := fmt.Sprintf("unexpected status code %d", resp.StatusCode)
		if fe := facebookError(out); fe != nil && fe.Message != "" {
			msg = fe.Message
		}
		return NewError(KindPlatformRejected, Facebook, msg)
	}
	return nil
}

func facebookError(out interface{}) *transfer.FacebookError {
	switch v := out.(type) {
	case *transfer.FacebookPhotoResponse:
		return v.Error
	case *transfer.FacebookFeedResponse:
		return v.Error
	}
	return nil
}
