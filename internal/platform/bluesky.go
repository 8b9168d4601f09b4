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

// BlueskyAdapter resolves the account's storage host from its DID via a
// directory lookup, uploads image blobs ahead of the post, then creates
// the post record on that host. Every call is signed with the
// connection's proof-of-possession keypair.
type BlueskyAdapter struct {
	client       *http.Client
	DirectoryURL string
}

func NewBlueskyAdapter(client *http.Client, directoryURL string) *BlueskyAdapter {
	if directoryURL == "" {
		directoryURL = "https://plc.directory"
	}
	return &BlueskyAdapter{client: client, DirectoryURL: directoryURL}
}

func (a *BlueskyAdapter) Name() string { return Bluesky }

func (a *BlueskyAdapter) Limits() Limits {
	return Limits{MaxImages: 4, MaxVideos: 0}
}

func (a *BlueskyAdapter) Publish(ctx context.Context, cred *Credential, content PostContent, assets []media.Asset) (string, error) {
	if err := validateAssets(Bluesky, a.Limits(), assets); err != nil {
		return "", err
	}
	if cred.Signer == nil {
		return "", NewError(KindAuthRequired, Bluesky, "connection has no proof-of-possession key")
	}

	pdsHost, err := a.resolvePDS(ctx, cred.AccountID)
	if err != nil {
		return "", err
	}

	var embed *transfer.BlueskyEmbed
	if len(assets) > 0 {
		embed = &transfer.BlueskyEmbed{Type: "app.bsky.embed.images"}
		for _, asset := range assets {
			blob, err := a.uploadBlob(ctx, cred, pdsHost, asset)
			if err != nil {
				return "", err
			}
			embed.Images = append(embed.Images, transfer.BlueskyImageEmbed{Image: blob})
		}
	}

	return a.createRecord(ctx, cred, pdsHost, content.Text, embed)
}

// resolvePDS looks the DID up in the directory and returns the personal
// data server endpoint the record has to be written to.
func (a *BlueskyAdapter) resolvePDS(ctx context.Context, did string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", fmt.Sprintf("%s/%s", a.DirectoryURL, did), nil)
	if err != nil {
		return "", WrapError(KindPlatformRejected, Bluesky, err)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return "", WrapError(KindPlatformRejected, Bluesky, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", NewError(KindPlatformRejected, Bluesky, fmt.Sprintf("directory lookup for %s returned %d", did, resp.StatusCode))
	}

	var doc transfer.BlueskyDIDDocument
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return "", WrapError(KindPlatformRejected, Bluesky, fmt.Errorf("error parsing DID document: %w", err))
	}

	for _, svc := range doc.Service {
		if svc.Type == "AtprotoPersonalDataServer" || strings.HasSuffix(svc.ID, "#atproto_pds") {
			return strings.TrimSuffix(svc.ServiceEndpoint, "/"), nil
		}
	}
	return "", NewError(KindPlatformRejected, Bluesky, fmt.Sprintf("DID document for %s has no pds service", did))
}

func (a *BlueskyAdapter) uploadBlob(ctx context.Context, cred *Credential, pdsHost string, asset media.Asset) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, "POST", pdsHost+"/xrpc/com.atproto.repo.uploadBlob", bytes.NewReader(asset.Data))
	if err != nil {
		return nil, WrapError(KindPlatformRejected, Bluesky, err)
	}
	req.Header.Set("Content-Type", asset.MIME)
	if err := cred.Signer.Sign(req, cred.AccessToken); err != nil {
		return nil, WrapError(KindAuthRequired, Bluesky, err)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, WrapError(KindPlatformRejected, Bluesky, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, NewError(KindPlatformRejected, Bluesky, fmt.Sprintf("blob upload returned %d", resp.StatusCode))
	}

	var result transfer.BlueskyBlobResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, WrapError(KindPlatformRejected, Bluesky, fmt.Errorf("error parsing blob response: %w", err))
	}
	if len(result.Blob) == 0 {
		return nil, NewError(KindPlatformRejected, Bluesky, "no blob returned")
	}
	return result.Blob, nil
}

func (a *BlueskyAdapter) createRecord(ctx context.Context, cred *Credential, pdsHost, text string, embed *transfer.BlueskyEmbed) (string, error) {
	record := transfer.BlueskyCreateRecordRequest{
		Repo:       cred.AccountID,
		Collection: "app.bsky.feed.post",
		Record: transfer.BlueskyPostRecord{
			Type:      "app.bsky.feed.post",
			Text:      text,
			CreatedAt: time.Now().UTC().Format(time.RFC3339),
			Embed:     embed,
		},
	}

	body, err := json.Marshal(record)
	if err != nil {
		return "", WrapError(KindPlatformRejected, Bluesky, err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", pdsHost+"/xrpc/com.atproto.repo.createRecord", bytes.NewBuffer(body))
	if err != nil {
		return "", WrapError(KindPlatformRejected, Bluesky, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if err := cred.Signer.Sign(req, cred.AccessToken); err != nil {
		return "", WrapError(KindAuthRequired, Bluesky, err)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return "", WrapError(KindPlatformRejected, Bluesky, err)
	}
	defer resp.Body.Close()

	var result transfer.BlueskyCreateRecordResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", WrapError(KindPlatformRejected, Bluesky, fmt.Errorf("error parsing createRecord response: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		msg := result.Message
		if msg == "" {
			msg = fmt.Sprintf("createRecord returned %d", resp.StatusCode)
		}
		return "", NewError(KindPlatformRejected, Bluesky, msg)
	}
	if result.URI == "" {
		return "", NewError(KindPlatformRejected, Bluesky, "no record uri returned")
	}
	return result.URI, nil
}
