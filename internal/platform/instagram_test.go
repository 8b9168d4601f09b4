package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/postloop/postloop/internal/media"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func instagramCred() *Credential {
	return &Credential{
		Platform:    Instagram,
		AccountID:   "ig42",
		AccessToken: "tok",
	}
}

func newInstagramTestAdapter(server *httptest.Server) *InstagramAdapter {
	adapter := NewInstagramAdapter(server.Client())
	adapter.BaseURL = server.URL
	adapter.PollAttempts = 3
	adapter.PollDelay = time.Millisecond
	return adapter
}

func TestInstagramImagePublishSkipsPolling(t *testing.T) {
	var calls []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, r.URL.Path)
		switch r.URL.Path {
		case "/ig42/media":
			var payload map[string]interface{}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
			assert.Equal(t, "https://cdn.example.com/a.jpg", payload["image_url"])
			fmt.Fprint(w, `{"id":"c1"}`)
		case "/ig42/media_publish":
			var payload map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
			assert.Equal(t, "c1", payload["creation_id"])
			fmt.Fprint(w, `{"id":"m1"}`)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer server.Close()

	adapter := newInstagramTestAdapter(server)

	assets := []media.Asset{{URL: "https://cdn.example.com/a.jpg", MIME: "image/jpeg"}}
	mediaID, err := adapter.Publish(context.Background(), instagramCred(), PostContent{Text: "pic"}, assets)
	require.NoError(t, err)
	assert.Equal(t, "m1", mediaID)
	assert.Equal(t, []string{"/ig42/media", "/ig42/media_publish"}, calls)
}

func TestInstagramVideoWaitsForFinished(t *testing.T) {
	var statusCalls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ig42/media":
			fmt.Fprint(w, `{"id":"c2"}`)
		case "/ig42/c2":
			statusCalls++
			if statusCalls < 2 {
				fmt.Fprint(w, `{"status_code":"IN_PROGRESS"}`)
			} else {
				fmt.Fprint(w, `{"status_code":"FINISHED"}`)
			}
		case "/ig42/media_publish":
			assert.Equal(t, 2, statusCalls, "publish must wait for processing")
			fmt.Fprint(w, `{"id":"m2"}`)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer server.Close()

	adapter := newInstagramTestAdapter(server)

	assets := []media.Asset{{URL: "https://cdn.example.com/a.mp4", MIME: "video/mp4"}}
	mediaID, err := adapter.Publish(context.Background(), instagramCred(), PostContent{Text: "vid"}, assets)
	require.NoError(t, err)
	assert.Equal(t, "m2", mediaID)
}

func TestInstagramPollTimeout(t *testing.T) {
	var publishCalls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ig42/media":
			fmt.Fprint(w, `{"id":"c3"}`)
		case "/ig42/c3":
			fmt.Fprint(w, `{"status_code":"IN_PROGRESS"}`)
		case "/ig42/media_publish":
			publishCalls++
		}
	}))
	defer server.Close()

	adapter := newInstagramTestAdapter(server)

	assets := []media.Asset{{URL: "https://cdn.example.com/a.mp4", MIME: "video/mp4"}}
	_, err := adapter.Publish(context.Background(), instagramCred(), PostContent{Text: "vid"}, assets)
	require.Error(t, err)
	assert.Equal(t, KindProcessingTimeout, KindOf(err))
	assert.Zero(t, publishCalls, "a timed out container must never be published")
}

func TestInstagramContainerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ig42/media":
			fmt.Fprint(w, `{"id":"c4"}`)
		case "/ig42/c4":
			fmt.Fprint(w, `{"status_code":"ERROR","error":{"message":"transcode failed"}}`)
		}
	}))
	defer server.Close()

	adapter := newInstagramTestAdapter(server)

	assets := []media.Asset{{URL: "https://cdn.example.com/a.mp4", MIME: "video/mp4"}}
	_, err := adapter.Publish(context.Background(), instagramCred(), PostContent{Text: "vid"}, assets)
	require.Error(t, err)
	assert.Equal(t, KindPlatformRejected, KindOf(err))
	assert.Contains(t, err.Error(), "transcode failed")
}

func TestInstagramCarouselChildren(t *testing.T) {
	var containers []map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ig42/media":
			var payload map[string]interface{}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
			containers = append(containers, payload)
			fmt.Fprintf(w, `{"id":"c%d"}`, len(containers))
		case "/ig42/media_publish":
			fmt.Fprint(w, `{"id":"m5"}`)
		}
	}))
	defer server.Close()

	adapter := newInstagramTestAdapter(server)

	assets := []media.Asset{
		{URL: "https://cdn.example.com/a.jpg", MIME: "image/jpeg"},
		{URL: "https://cdn.example.com/b.jpg", MIME: "image/jpeg"},
	}
	mediaID, err := adapter.Publish(context.Background(), instagramCred(), PostContent{Text: "album"}, assets)
	require.NoError(t, err)
	assert.Equal(t, "m5", mediaID)

	require.Len(t, containers, 3)
	assert.Equal(t, true, containers[0]["is_carousel_item"])
	assert.Equal(t, true, containers[1]["is_carousel_item"])
	assert.Equal(t, "CAROUSEL", containers[2]["media_type"])
	assert.Equal(t, "c1,c2", containers[2]["children"])
}

func TestInstagramMixedMediaRejected(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	defer server.Close()

	adapter := newInstagramTestAdapter(server)

	assets := []media.Asset{
		{URL: "https://cdn.example.com/a.jpg", MIME: "image/jpeg"},
		{URL: "https://cdn.example.com/a.mp4", MIME: "video/mp4"},
	}
	_, err := adapter.Publish(context.Background(), instagramCred(), PostContent{Text: "mix"}, assets)
	require.Error(t, err)
	assert.Equal(t, KindValidation, KindOf(err))
	assert.Zero(t, calls, "validation failures must not reach the network")
}
