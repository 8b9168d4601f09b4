package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/postloop/postloop/internal/media"
	"github.com/postloop/postloop/internal/transfer"
)

const (
	igStatusFinished   = "FINISHED"
	igStatusError      = "ERROR"
	igStatusInProgress = "IN_PROGRESS"
)

// InstagramAdapter creates one or more media containers, waits for the
// asynchronous processing of video containers with a bounded poll, and
// then issues the publish call referencing the container id.
type InstagramAdapter struct {
	client       *http.Client
	BaseURL      string
	PollAttempts int
	PollDelay    time.Duration
}

func NewInstagramAdapter(client *http.Client) *InstagramAdapter {
	return &InstagramAdapter{
		client:       client,
		BaseURL:      "https://graph.instagram.com/v21.0",
		PollAttempts: 20,
		PollDelay:    3 * time.Second,
	}
}

func (a *InstagramAdapter) Name() string { return Instagram }

func (a *InstagramAdapter) Limits() Limits {
	// One video or up to ten images, never both in one post.
	return Limits{MaxImages: 10, MaxVideos: 1, AllowMixed: false}
}

func (a *InstagramAdapter) Publish(ctx context.Context, cred *Credential, content PostContent, assets []media.Asset) (string, error) {
	if err := validateAssets(Instagram, a.Limits(), assets); err != nil {
		return "", err
	}
	if len(assets) == 0 {
		return "", NewError(KindValidation, Instagram, "at least one attachment is required")
	}

	var containerID string
	var err error
	if len(assets) == 1 {
		containerID, err = a.singleContainer(ctx, cred, content.Text, assets[0])
	} else {
		containerID, err = a.carouselContainer(ctx, cred, content.Text, assets)
	}
	if err != nil {
		return "", err
	}

	return a.publishContainer(ctx, cred, containerID)
}

func (a *InstagramAdapter) singleContainer(ctx context.Context, cred *Credential, caption string, asset media.Asset) (string, error) {
	payload := map[string]interface{}{
		"caption":      caption,
		"access_token": cred.AccessToken,
	}
	if asset.IsVideo() {
		payload["media_type"] = "VIDEO"
		payload["video_url"] = asset.URL
	} else {
		payload["image_url"] = asset.URL
	}

	containerID, err := a.createContainer(ctx, cred, payload)
	if err != nil {
		return "", err
	}

	if asset.IsVideo() {
		if err := a.waitForContainer(ctx, cred, containerID); err != nil {
			return "", err
		}
	}
	return containerID, nil
}

// carouselContainer creates each child container, waiting on video
// children, then one parent container referencing all child ids.
func (a *InstagramAdapter) carouselContainer(ctx context.Context, cred *Credential, caption string, assets []media.Asset) (string, error) {
	childIDs := make([]string, 0, len(assets))
	for _, asset := range assets {
		payload := map[string]interface{}{
			"is_carousel_item": true,
			"access_token":     cred.AccessToken,
		}
		if asset.IsVideo() {
			payload["media_type"] = "VIDEO"
			payload["video_url"] = asset.URL
		} else {
			payload["image_url"] = asset.URL
		}

		childID, err := a.createContainer(ctx, cred, payload)
		if err != nil {
			return "", err
		}
		if asset.IsVideo() {
			if err := a.waitForContainer(ctx, cred, childID); err != nil {
				return "", err
			}
		}
		childIDs = append(childIDs, childID)
	}

	parentPayload := map[string]interface{}{
		"media_type":   "CAROUSEL",
		"caption":      caption,
		"children":     strings.Join(childIDs, ","),
		"access_token": cred.AccessToken,
	}
	return a.createContainer(ctx, cred, parentPayload)
}

func (a *InstagramAdapter) createContainer(ctx context.Context, cred *Credential, payload map[string]interface{}) (string, error) {
	endpoint := fmt.Sprintf("%s/%s/media", a.BaseURL, cred.AccountID)

	body, err := json.Marshal(payload)
	if err != nil {
		return "", WrapError(KindPlatformRejected, Instagram, err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", endpoint, bytes.NewBuffer(body))
	if err != nil {
		return "", WrapError(KindPlatformRejected, Instagram, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return "", WrapError(KindPlatformRejected, Instagram, err)
	}
	defer resp.Body.Close()

	var result transfer.InstagramContainerResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", WrapError(KindPlatformRejected, Instagram, fmt.Errorf("error parsing response: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		msg := fmt.Sprintf("unexpected status code %d", resp.StatusCode)
		if result.Error != nil && result.Error.Message != "" {
			msg = result.Error.Message
		}
		return "", NewError(KindPlatformRejected, Instagram, msg)
	}
	if result.ID == "" {
		return "", NewError(KindPlatformRejected, Instagram, "no container id returned")
	}
	return result.ID, nil
}

// waitForContainer polls the container status field until it reaches
// FINISHED. The poll is bounded: PollAttempts tries, PollDelay apart.
func (a *InstagramAdapter) waitForContainer(ctx context.Context, cred *Credential, containerID string) error {
	endpoint := fmt.Sprintf("%s/%s?fields=status_code&access_token=%s", a.BaseURL, containerID, cred.AccessToken)

	for attempt := 0; attempt < a.PollAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return WrapError(KindProcessingTimeout, Instagram, ctx.Err())
			case <-time.After(a.PollDelay):
			}
		}

		req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
		if err != nil {
			return WrapError(KindPlatformRejected, Instagram, err)
		}
		resp, err := a.client.Do(req)
		if err != nil {
			return WrapError(KindPlatformRejected, Instagram, err)
		}

		var status transfer.InstagramStatusResponse
		err = json.NewDecoder(resp.Body).Decode(&status)
		resp.Body.Close()
		if err != nil {
			return WrapError(KindPlatformRejected, Instagram, fmt.Errorf("error parsing status response: %w", err))
		}

		switch status.StatusCode {
		case igStatusFinished:
			return nil
		case igStatusError:
			msg := "container processing failed"
			if status.Error != nil && status.Error.Message != "" {
				msg = status.Error.Message
			}
			return NewError(KindPlatformRejected, Instagram, msg)
		}
	}

	return NewError(KindProcessingTimeout, Instagram, fmt.Sprintf("container %s not finished after %d attempts", containerID, a.PollAttempts))
}

func (a *InstagramAdapter) publishContainer(ctx context.Context, cred *Credential, containerID string) (string, error) {
	endpoint := fmt.Sprintf("%s/%s/media_publish", a.BaseURL, cred.AccountID)

	payload := map[string]string{
		"creation_id":  containerID,
		"access_token": cred.AccessToken,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", WrapError(KindPlatformRejected, Instagram, err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", endpoint, bytes.NewBuffer(body))
	if err != nil {
		return "", WrapError(KindPlatformRejected, Instagram, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return "", WrapError(KindPlatformRejected, Instagram, err)
	}
	defer resp.Body.Close()

	var result transfer.InstagramPublishResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", WrapError(KindPlatformRejected, Instagram, fmt.Errorf("error parsing response: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		msg := fmt.Sprintf("unexpected status code %d", resp.StatusCode)
		if result.Error != nil && result.Error.Message != "" {
			msg = result.Error.Message
		}
		return "", NewError(KindPlatformRejected, Instagram, msg)
	}
	if result.ID == "" {
		return "", NewError(KindPlatformRejected, Instagram, "no media id returned")
	}
	return result.ID, nil
}
