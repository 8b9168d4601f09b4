package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/postloop/postloop/internal/media"
	"github.com/postloop/postloop/internal/transfer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// headerSigner stamps requests the way the real proof-of-possession
// signer does, without any cryptography.
type headerSigner struct {
	calls int
}

func (s *headerSigner) Sign(req *http.Request, accessToken string) error {
	s.calls++
	req.Header.Set("Authorization", "DPoP "+accessToken)
	req.Header.Set("DPoP", "proof")
	return nil
}

func TestBlueskySignerRequired(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	defer server.Close()

	adapter := NewBlueskyAdapter(server.Client(), server.URL)

	cred := &Credential{Platform: Bluesky, AccountID: "did:plc:abc", AccessToken: "tok"}
	_, err := adapter.Publish(context.Background(), cred, PostContent{Text: "hi"}, nil)
	require.Error(t, err)
	assert.Equal(t, KindAuthRequired, KindOf(err))
	assert.Zero(t, calls, "no network traffic without a signer")
}

func TestBlueskyTextPost(t *testing.T) {
	signer := &headerSigner{}

	var pds *httptest.Server
	pds = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/xrpc/com.atproto.repo.createRecord", r.URL.Path)
		assert.Equal(t, "DPoP tok", r.Header.Get("Authorization"))
		assert.Equal(t, "proof", r.Header.Get("DPoP"))

		var record transfer.BlueskyCreateRecordRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&record))
		assert.Equal(t, "did:plc:abc", record.Repo)
		assert.Equal(t, "app.bsky.feed.post", record.Collection)
		assert.Equal(t, "app.bsky.feed.post", record.Record.Type)
		assert.Equal(t, "hello sky", record.Record.Text)
		assert.NotEmpty(t, record.Record.CreatedAt)
		assert.Nil(t, record.Record.Embed)

		fmt.Fprint(w, `{"uri":"at://did:plc:abc/app.bsky.feed.post/3k1","cid":"bafy1"}`)
	}))
	defer pds.Close()

	directory := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/did:plc:abc", r.URL.Path)
		fmt.Fprintf(w, `{"id":"did:plc:abc","service":[{"id":"#atproto_pds","type":"AtprotoPersonalDataServer","serviceEndpoint":"%s"}]}`, pds.URL)
	}))
	defer directory.Close()

	adapter := NewBlueskyAdapter(http.DefaultClient, directory.URL)

	cred := &Credential{Platform: Bluesky, AccountID: "did:plc:abc", AccessToken: "tok", Signer: signer}
	postID, err := adapter.Publish(context.Background(), cred, PostContent{Text: "hello sky"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "at://did:plc:abc/app.bsky.feed.post/3k1", postID)
	assert.Equal(t, 1, signer.calls)
}

func TestBlueskyImagePostUploadsBlobs(t *testing.T) {
	signer := &headerSigner{}
	imageData := []byte("png bytes")

	var order []string
	pds := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/xrpc/com.atproto.repo.uploadBlob":
			order = append(order, "blob")
			assert.Equal(t, "image/png", r.Header.Get("Content-Type"))
			body, err := io.ReadAll(r.Body)
			require.NoError(t, err)
			assert.Equal(t, imageData, body)
			fmt.Fprint(w, `{"blob":{"$type":"blob","ref":{"$link":"bafyblob"},"mimeType":"image/png","size":9}}`)
		case "/xrpc/com.atproto.repo.createRecord":
			order = append(order, "record")
			var record transfer.BlueskyCreateRecordRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&record))
			require.NotNil(t, record.Record.Embed)
			assert.Equal(t, "app.bsky.embed.images", record.Record.Embed.Type)
			require.Len(t, record.Record.Embed.Images, 1)
			assert.Contains(t, string(record.Record.Embed.Images[0].Image), "bafyblob")
			fmt.Fprint(w, `{"uri":"at://did:plc:abc/app.bsky.feed.post/3k2","cid":"bafy2"}`)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer pds.Close()

	directory := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"id":"did:plc:abc","service":[{"id":"#atproto_pds","type":"AtprotoPersonalDataServer","serviceEndpoint":"%s"}]}`, pds.URL)
	}))
	defer directory.Close()

	adapter := NewBlueskyAdapter(http.DefaultClient, directory.URL)

	cred := &Credential{Platform: Bluesky, AccountID: "did:plc:abc", AccessToken: "tok", Signer: signer}
	assets := []media.Asset{{URL: "https://cdn.example.com/a.png", Data: imageData, MIME: "image/png"}}
	postID, err := adapter.Publish(context.Background(), cred, PostContent{Text: "with image"}, assets)
	require.NoError(t, err)
	assert.Equal(t, "at://did:plc:abc/app.bsky.feed.post/3k2", postID)
	assert.Equal(t, []string{"blob", "record"}, order)
	assert.Equal(t, 2, signer.calls)
}

func TestBlueskyMissingPDSService(t *testing.T) {
	directory := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"id":"did:plc:abc","service":[{"id":"#other","type":"SomethingElse","serviceEndpoint":"https://x"}]}`)
	}))
	defer directory.Close()

	adapter := NewBlueskyAdapter(directory.Client(), directory.URL)

	cred := &Credential{Platform: Bluesky, AccountID: "did:plc:abc", AccessToken: "tok", Signer: &headerSigner{}}
	_, err := adapter.Publish(context.Background(), cred, PostContent{Text: "hi"}, nil)
	require.Error(t, err)
	assert.Equal(t, KindPlatformRejected, KindOf(err))
	assert.Contains(t, err.Error(), "no pds service")
}

func TestBlueskyRejectsVideo(t *testing.T) {
	var calls int
	directory := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	defer directory.Close()

	adapter := NewBlueskyAdapter(directory.Client(), directory.URL)

	cred := &Credential{Platform: Bluesky, AccountID: "did:plc:abc", AccessToken: "tok", Signer: &headerSigner{}}
	assets := []media.Asset{{URL: "https://cdn.example.com/a.mp4", Data: []byte("x"), MIME: "video/mp4"}}
	_, err := adapter.Publish(context.Background(), cred, PostContent{Text: "hi"}, assets)
	require.Error(t, err)
	assert.Equal(t, KindValidation, KindOf(err))
	assert.Zero(t, calls)
}
