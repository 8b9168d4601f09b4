package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/postloop/postloop/internal/media"
	"github.com/postloop/postloop/internal/transfer"
)

// LinkedInAdapter runs the two-phase upload protocol: register an upload
// slot for each image, PUT the raw bytes to the returned write-once URL,
// then reference the asset URNs in a single ugcPosts call. A failed image
// upload fails the whole publish; there is no silent text-only fallback.
type LinkedInAdapter struct {
	client  *http.Client
	BaseURL string
}

func NewLinkedInAdapter(client *http.Client) *LinkedInAdapter {
	return &LinkedInAdapter{
		client:  client,
		BaseURL: "https://api.linkedin.com",
	}
}

func (a *LinkedInAdapter) Name() string { return LinkedIn }

func (a *LinkedInAdapter) Limits() Limits {
	return Limits{MaxImages: 9, MaxVideos: 0}
}

func (a *LinkedInAdapter) Publish(ctx context.Context, cred *Credential, content PostContent, assets []media.Asset) (string, error) {
	if err := validateAssets(LinkedIn, a.Limits(), assets); err != nil {
		return "", err
	}

	author := fmt.Sprintf("urn:li:person:%s", cred.AccountID)

	assetURNs := make([]string, 0, len(assets))
	for _, asset := range assets {
		urn, err := a.uploadImage(ctx, cred, author, asset)
		if err != nil {
			return "", err
		}
		assetURNs = append(assetURNs, urn)
	}

	return a.createPost(ctx, cred, author, content.Text, assetURNs)
}

// uploadImage is phases one and two: register the slot, then PUT the
// bytes to the write-once URL it returns.
func (a *LinkedInAdapter) uploadImage(ctx context.Context, cred *Credential, author string, asset media.Asset) (string, error) {
	registerReq := transfer.LinkedinRegisterUploadRequest{
		RegisterUploadRequest: transfer.LinkedinRegisterUpload{
			Recipes: []string{"urn:li:digitalmediaRecipe:feedshare-image"},
			Owner:   author,
			ServiceRelationships: []transfer.LinkedinServiceRelationship{
				{RelationshipType: "OWNER", Identifier: "urn:li:userGeneratedContent"},
			},
		},
	}

	body, err := json.Marshal(registerReq)
	if err != nil {
		return "", WrapError(KindPlatformRejected, LinkedIn, err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", a.BaseURL+"/v2/assets?action=registerUpload", bytes.NewBuffer(body))
	if err != nil {
		return "", WrapError(KindPlatformRejected, LinkedIn, err)
	}
	req.Header.Set("Authorization", "Bearer "+cred.AccessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return "", WrapError(KindPlatformRejected, LinkedIn, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", NewError(KindPlatformRejected, LinkedIn, fmt.Sprintf("registerUpload returned %d: %s", resp.StatusCode, respBody))
	}

	var registered transfer.LinkedinRegisterUploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&registered); err != nil {
		return "", WrapError(KindPlatformRejected, LinkedIn, fmt.Errorf("error parsing registerUpload response: %w", err))
	}

	uploadURL := registered.Value.UploadMechanism.MediaUploadHTTPRequest.UploadURL
	assetURN := registered.Value.Asset
	if uploadURL == "" || assetURN == "" {
		return "", NewError(KindPlatformRejected, LinkedIn, "registerUpload returned no upload url or asset")
	}

	putReq, err := http.NewRequestWithContext(ctx, "PUT", uploadURL, bytes.NewReader(asset.Data))
	if err != nil {
		return "", WrapError(KindPlatformRejected, LinkedIn, err)
	}
	putReq.Header.Set("Authorization", "Bearer "+cred.AccessToken)
	putReq.Header.Set("Content-Type", asset.MIME)

	putResp, err := a.client.Do(putReq)
	if err != nil {
		return "", WrapError(KindPlatformRejected, LinkedIn, err)
	}
	defer putResp.Body.Close()

	if putResp.StatusCode != http.StatusCreated && putResp.StatusCode != http.StatusOK {
		return "", NewError(KindPlatformRejected, LinkedIn, fmt.Sprintf("image upload returned %d", putResp.StatusCode))
	}

	return assetURN, nil
}

// createPost is phase three: reference the uploaded assets in the post.
func (a *LinkedInAdapter) createPost(ctx context.Context, cred *Credential, author, text string, assetURNs []string) (string, error) {
	shareContent := transfer.LinkedinShareContent{
		ShareCommentary:    transfer.LinkedinShareText{Text: text},
		ShareMediaCategory: "NONE",
	}
	if len(assetURNs) > 0 {
		shareContent.ShareMediaCategory = "IMAGE"
		for _, urn := range assetURNs {
			shareContent.Media = append(shareContent.Media, transfer.LinkedinShareMedia{
				Status: "READY",
				Media:  urn,
			})
		}
	}

	post := transfer.LinkedinUGCPost{
		Author:         author,
		LifecycleState: "PUBLISHED",
		SpecificContent: map[string]transfer.LinkedinShareContent{
			"com.linkedin.ugc.ShareContent": shareContent,
		},
		Visibility: map[string]string{
			"com.linkedin.ugc.MemberNetworkVisibility": "PUBLIC",
		},
	}

	body, err := json.Marshal(post)
	if err != nil {
		return "", WrapError(KindPlatformRejected, LinkedIn, err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", a.BaseURL+"/v2/ugcPosts", bytes.NewBuffer(body))
	if err != nil {
		return "", WrapError(KindPlatformRejected, LinkedIn, err)
	}
	req.Header.Set("Authorization", "Bearer "+cred.AccessToken)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Restli-Protocol-Version", "2.0.0")

	resp, err := a.client.Do(req)
	if err != nil {
		return "", WrapError(KindPlatformRejected, LinkedIn, err)
	}
	defer resp.Body.Close()

	var result transfer.LinkedinUGCPostResponse
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", WrapError(KindPlatformRejected, LinkedIn, err)
	}
	if len(respBody) > 0 {
		if err := json.Unmarshal(respBody, &result); err != nil {
			return "", WrapError(KindPlatformRejected, LinkedIn, fmt.Errorf("error parsing ugcPosts response: %w", err))
		}
	}

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		msg := result.Message
		if msg == "" {
			msg = fmt.Sprintf("ugcPosts returned %d", resp.StatusCode)
		}
		return "", NewError(KindPlatformRejected, LinkedIn, msg)
	}

	postID := result.ID
	if postID == "" {
		postID = resp.Header.Get("X-Restli-Id")
	}
	if postID == "" {
		return "", NewError(KindPlatformRejected, LinkedIn, "no post id returned")
	}
	return postID, nil
}
