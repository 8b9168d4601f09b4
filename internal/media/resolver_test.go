package media

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pngHeader is enough magic bytes for filetype to recognise a PNG.
var pngHeader = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A, 0, 0, 0, 0}

func TestResolveDownloadsAll(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "payload for %s", r.URL.Path)
	}))
	defer server.Close()

	resolver := NewResolver(server.Client())

	refs := []string{server.URL + "/a.jpg", server.URL + "/b.jpg"}
	assets, err := resolver.Resolve(context.Background(), refs, 0)
	require.NoError(t, err)
	require.Len(t, assets, 2)
	assert.Equal(t, refs[0], assets[0].URL)
	assert.Equal(t, []byte("payload for /a.jpg"), assets[0].Data)
}

func TestResolveTruncatesToLimit(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		fmt.Fprint(w, "x")
	}))
	defer server.Close()

	resolver := NewResolver(server.Client())

	refs := []string{server.URL + "/1.jpg", server.URL + "/2.jpg", server.URL + "/3.jpg"}
	assets, err := resolver.Resolve(context.Background(), refs, 2)
	require.NoError(t, err)
	assert.Len(t, assets, 2)
	assert.Equal(t, 2, calls, "references past the limit are never fetched")
}

func TestResolveFailsFast(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/bad.jpg" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		fmt.Fprint(w, "x")
	}))
	defer server.Close()

	resolver := NewResolver(server.Client())

	refs := []string{server.URL + "/ok.jpg", server.URL + "/bad.jpg", server.URL + "/later.jpg"}
	assets, err := resolver.Resolve(context.Background(), refs, 0)
	require.Error(t, err)
	assert.Nil(t, assets)
	assert.Contains(t, err.Error(), "unexpected status 404")
}

func TestSniffMIMEPrefersMagicBytes(t *testing.T) {
	// Content type and extension both lie; the bytes win.
	mime := sniffMIME(pngHeader, "video/mp4", "https://cdn.example.com/file.mp4")
	assert.Equal(t, "image/png", mime)
}

func TestSniffMIMEUsesContentType(t *testing.T) {
	mime := sniffMIME([]byte("not a real file"), "video/mp4; charset=binary", "https://cdn.example.com/file")
	assert.Equal(t, "video/mp4", mime)
}

func TestSniffMIMESkipsOctetStream(t *testing.T) {
	mime := sniffMIME([]byte("not a real file"), "application/octet-stream", "https://cdn.example.com/clip.mov?sig=abc")
	assert.Equal(t, "video/quicktime", mime)
}

func TestSniffMIMEDefaultsToJPEG(t *testing.T) {
	mime := sniffMIME([]byte("not a real file"), "", "https://cdn.example.com/mystery")
	assert.Equal(t, "image/jpeg", mime)
}

func TestAssetKindHelpers(t *testing.T) {
	assert.True(t, Asset{MIME: "video/mp4"}.IsVideo())
	assert.False(t, Asset{MIME: "video/mp4"}.IsImage())
	assert.True(t, Asset{MIME: "image/png"}.IsImage())
}
