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

func linkedinCred() *Credential {
	return &Credential{
		Platform:    LinkedIn,
		AccountID:   "member1",
		AccessToken: "tok",
	}
}

func TestLinkedInTextOnlyPost(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v2/ugcPosts", r.URL.Path)
		assert.Equal(t, "2.0.0", r.Header.Get("X-Restli-Protocol-Version"))
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))

		var post transfer.LinkedinUGCPost
		require.NoError(t, json.NewDecoder(r.Body).Decode(&post))
		assert.Equal(t, "urn:li:person:member1", post.Author)
		content := post.SpecificContent["com.linkedin.ugc.ShareContent"]
		assert.Equal(t, "NONE", content.ShareMediaCategory)
		assert.Equal(t, "hi linkedin", content.ShareCommentary.Text)

		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"id":"urn:li:ugcPost:1"}`)
	}))
	defer server.Close()

	adapter := NewLinkedInAdapter(server.Client())
	adapter.BaseURL = server.URL

	postID, err := adapter.Publish(context.Background(), linkedinCred(), PostContent{Text: "hi linkedin"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "urn:li:ugcPost:1", postID)
}

func TestLinkedInImageUploadFlow(t *testing.T) {
	imageData := []byte("png bytes")

	var order []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v2/assets":
			order = append(order, "register")
			assert.Equal(t, "registerUpload", r.URL.Query().Get("action"))
			fmt.Fprintf(w, `{"value":{"asset":"urn:li:digitalmediaAsset:abc","uploadMechanism":{"com.linkedin.digitalmedia.uploading.MediaUploadHttpRequest":{"uploadUrl":"%s/put-here"}}}}`, "http://"+r.Host)
		case "/put-here":
			order = append(order, "put")
			assert.Equal(t, "PUT", r.Method)
			body, err := io.ReadAll(r.Body)
			require.NoError(t, err)
			assert.Equal(t, imageData, body)
			w.WriteHeader(http.StatusCreated)
		case "/v2/ugcPosts":
			order = append(order, "post")
			var post transfer.LinkedinUGCPost
			require.NoError(t, json.NewDecoder(r.Body).Decode(&post))
			content := post.SpecificContent["com.linkedin.ugc.ShareContent"]
			assert.Equal(t, "IMAGE", content.ShareMediaCategory)
			require.Len(t, content.Media, 1)
			assert.Equal(t, "urn:li:digitalmediaAsset:abc", content.Media[0].Media)

			w.Header().Set("X-Restli-Id", "urn:li:ugcPost:2")
			w.WriteHeader(http.StatusCreated)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer server.Close()

	adapter := NewLinkedInAdapter(server.Client())
	adapter.BaseURL = server.URL

	assets := []media.Asset{{URL: "https://cdn.example.com/a.png", Data: imageData, MIME: "image/png"}}
	postID, err := adapter.Publish(context.Background(), linkedinCred(), PostContent{Text: "with image"}, assets)
	require.NoError(t, err)
	assert.Equal(t, "urn:li:ugcPost:2", postID)
	assert.Equal(t, []string{"register", "put", "post"}, order)
}

func TestLinkedInFailedUploadAbortsPost(t *testing.T) {
	var postCalls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v2/assets":
			fmt.Fprintf(w, `{"value":{"asset":"urn:li:digitalmediaAsset:abc","uploadMechanism":{"com.linkedin.digitalmedia.uploading.MediaUploadHttpRequest":{"uploadUrl":"%s/put-here"}}}}`, "http://"+r.Host)
		case "/put-here":
			w.WriteHeader(http.StatusInternalServerError)
		case "/v2/ugcPosts":
			postCalls++
		}
	}))
	defer server.Close()

	adapter := NewLinkedInAdapter(server.Client())
	adapter.BaseURL = server.URL

	assets := []media.Asset{{URL: "https://cdn.example.com/a.png", Data: []byte("x"), MIME: "image/png"}}
	_, err := adapter.Publish(context.Background(), linkedinCred(), PostContent{Text: "with image"}, assets)
	require.Error(t, err)
	assert.Equal(t, KindPlatformRejected, KindOf(err))
	assert.Zero(t, postCalls, "no text-only fallback after a failed image upload")
}
