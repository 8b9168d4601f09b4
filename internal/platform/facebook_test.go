package platform

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/postloop/postloop/internal/media"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func facebookCred() *Credential {
	return &Credential{
		Platform:    Facebook,
		AccountID:   "page123",
		AccessToken: "tok",
	}
}

func TestFacebookTextPost(t *testing.T) {
	var calls []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, r.URL.Path)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "hello world", r.FormValue("message"))
		assert.Equal(t, "tok", r.FormValue("access_token"))
		fmt.Fprint(w, `{"id":"page123_987"}`)
	}))
	defer server.Close()

	adapter := NewFacebookAdapter(server.Client())
	adapter.BaseURL = server.URL

	postID, err := adapter.Publish(context.Background(), facebookCred(), PostContent{Text: "hello world"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "page123_987", postID)
	assert.Equal(t, []string{"/page123/feed"}, calls)
}

func TestFacebookSinglePhotoPrefersPostID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/page123/photos", r.URL.Path)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "https://cdn.example.com/a.jpg", r.FormValue("url"))
		assert.Equal(t, "caption", r.FormValue("caption"))
		fmt.Fprint(w, `{"id":"photo1","post_id":"page123_111"}`)
	}))
	defer server.Close()

	adapter := NewFacebookAdapter(server.Client())
	adapter.BaseURL = server.URL

	assets := []media.Asset{{URL: "https://cdn.example.com/a.jpg", MIME: "image/jpeg"}}
	postID, err := adapter.Publish(context.Background(), facebookCred(), PostContent{Text: "caption"}, assets)
	require.NoError(t, err)
	assert.Equal(t, "page123_111", postID)
}

func TestFacebookMultiPhotoPreUploadsUnpublished(t *testing.T) {
	var photoCalls, feedCalls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		switch r.URL.Path {
		case "/page123/photos":
			photoCalls++
			assert.Equal(t, "false", r.FormValue("published"))
			fmt.Fprintf(w, `{"id":"photo%d"}`, photoCalls)
		case "/page123/feed":
			feedCalls++
			assert.Equal(t, `{"media_fbid":"photo1"}`, r.FormValue("attached_media[0]"))
			assert.Equal(t, `{"media_fbid":"photo2"}`, r.FormValue("attached_media[1]"))
			fmt.Fprint(w, `{"id":"page123_222"}`)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer server.Close()

	adapter := NewFacebookAdapter(server.Client())
	adapter.BaseURL = server.URL

	assets := []media.Asset{
		{URL: "https://cdn.example.com/a.jpg", MIME: "image/jpeg"},
		{URL: "https://cdn.example.com/b.jpg", MIME: "image/jpeg"},
	}
	postID, err := adapter.Publish(context.Background(), facebookCred(), PostContent{Text: "two"}, assets)
	require.NoError(t, err)
	assert.Equal(t, "page123_222", postID)
	assert.Equal(t, 2, photoCalls)
	assert.Equal(t, 1, feedCalls)
}

func TestFacebookFailedPreUploadAbortsPublish(t *testing.T) {
	var feedCalls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/page123/photos":
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprint(w, `{"error":{"message":"bad image"}}`)
		case "/page123/feed":
			feedCalls++
		}
	}))
	defer server.Close()

	adapter := NewFacebookAdapter(server.Client())
	adapter.BaseURL = server.URL

	assets := []media.Asset{
		{URL: "https://cdn.example.com/a.jpg", MIME: "image/jpeg"},
		{URL: "https://cdn.example.com/b.jpg", MIME: "image/jpeg"},
	}
	_, err := adapter.Publish(context.Background(), facebookCred(), PostContent{Text: "two"}, assets)
	require.Error(t, err)
	assert.Equal(t, KindPlatformRejected, KindOf(err))
	assert.Contains(t, err.Error(), "bad image")
	assert.Zero(t, feedCalls)
}

func TestFacebookRejectsVideo(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	defer server.Close()

	adapter := NewFacebookAdapter(server.Client())
	adapter.BaseURL = server.URL

	assets := []media.Asset{{URL: "https://cdn.example.com/a.mp4", MIME: "video/mp4"}}
	_, err := adapter.Publish(context.Background(), facebookCred(), PostContent{Text: "vid"}, assets)
	require.Error(t, err)
	assert.Equal(t, KindValidation, KindOf(err))
	assert.Zero(t, calls, "validation failures must not reach the network")
}
