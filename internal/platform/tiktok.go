package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/postloop/postloop/internal/media"
	"github.com/postloop/postloop/internal/transfer"
)

// TikTokAdapter initializes an upload session describing the total size
// and chunking, PUTs the raw bytes with explicit Content-Range framing,
// and treats initiation success as the durable outcome. TikTok finishes
// processing out of band; the adapter does not wait for availability.
type TikTokAdapter struct {
	client  *http.Client
	BaseURL string
}

func NewTikTokAdapter(client *http.Client) *TikTokAdapter {
	return &TikTokAdapter{
		client:  client,
		BaseURL: "https://open.tiktokapis.com",
	}
}

func (a *TikTokAdapter) Name() string { return TikTok }

func (a *TikTokAdapter) Limits() Limits {
	return Limits{MaxImages: 0, MaxVideos: 1, NeedsVideo: true}
}

func (a *TikTokAdapter) Publish(ctx context.Context, cred *Credential, content PostContent, assets []media.Asset) (string, error) {
	if err := validateAssets(TikTok, a.Limits(), assets); err != nil {
		return "", err
	}
	video := assets[0]

	publishID, uploadURL, err := a.initUpload(ctx, cred, content.Text, int64(len(video.Data)))
	if err != nil {
		return "", err
	}

	if err := a.uploadChunk(ctx, uploadURL, video); err != nil {
		return "", err
	}

	return publishID, nil
}

func (a *TikTokAdapter) initUpload(ctx context.Context, cred *Credential, title string, size int64) (string, string, error) {
	initReq := transfer.TiktokInitRequest{
		PostInfo: transfer.TiktokPostInfo{
			Title:                 title,
			PrivacyLevel:          "PUBLIC_TO_EVERYONE",
			VideoCoverTimestampMs: 1000,
		},
		SourceInfo: transfer.TiktokSourceInfo{
			Source:          "FILE_UPLOAD",
			VideoSize:       size,
			ChunkSize:       size,
			TotalChunkCount: 1,
		},
	}

	body, err := json.Marshal(initReq)
	if err != nil {
		return "", "", WrapError(KindPlatformRejected, TikTok, err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", a.BaseURL+"/v2/post/publish/video/init/", bytes.NewBuffer(body))
	if err != nil {
		return "", "", WrapError(KindPlatformRejected, TikTok, err)
	}
	req.Header.Set("Authorization", "Bearer "+cred.AccessToken)
	req.Header.Set("Content-Type", "application/json; charset=UTF-8")

	resp, err := a.client.Do(req)
	if err != nil {
		return "", "", WrapError(KindPlatformRejected, TikTok, err)
	}
	defer resp.Body.Close()

	var result transfer.TiktokInitResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", "", WrapError(KindPlatformRejected, TikTok, fmt.Errorf("error parsing init response: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		msg := result.Error.Message
		if msg == "" {
			msg = fmt.Sprintf("upload init returned %d", resp.StatusCode)
		}
		return "", "", NewError(KindPlatformRejected, TikTok, msg)
	}
	if result.Data.PublishID == "" || result.Data.UploadURL == "" {
		return "", "", NewError(KindPlatformRejected, TikTok, "upload init returned no publish id or upload url")
	}
	return result.Data.PublishID, result.Data.UploadURL, nil
}

func (a *TikTokAdapter) uploadChunk(ctx context.Context, uploadURL string, video media.Asset) error {
	size := int64(len(video.Data))

	req, err := http.NewRequestWithContext(ctx, "PUT", uploadURL, bytes.NewReader(video.Data))
	if err != nil {
		return WrapError(KindPlatformRejected, TikTok, err)
	}
	req.Header.Set("Content-Type", video.MIME)
	req.Header.Set("Content-Length", fmt.Sprintf("%d", size))
	req.Header.Set("Content-Range", fmt.Sprintf("bytes 0-%d/%d", size-1, size))

	resp, err := a.client.Do(req)
	if err != nil {
		return WrapError(KindPlatformRejected, TikTok, err)
	}
	defer resp.Body.Close()

	// 201 for a final chunk, 206 for a partial one.
	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusPartialContent && resp.StatusCode != http.StatusOK {
		return NewError(KindPlatformRejected, TikTok, fmt.Sprintf("chunk upload returned %d", resp.StatusCode))
	}
	return nil
}
