package media

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"strings"

	"github.com/h2non/filetype"
	"github.com/h2non/filetype/types"
)

// Asset is a downloaded attachment ready to hand to a platform adapter.
type Asset struct {
	URL  string
	Data []byte
	MIME string
}

func (a Asset) IsVideo() bool {
	return strings.HasPrefix(a.MIME, "video/")
}

func (a Asset) IsImage() bool {
	return strings.HasPrefix(a.MIME, "image/")
}

type Resolver struct {
	client *http.Client
}

func NewResolver(client *http.Client) *Resolver {
	if client == nil {
		client = http.DefaultClient
	}
	return &Resolver{client: client}
}

// Resolve downloads each attachment reference, keeping at most limit of
// them. Any single failed download aborts the whole resolve.
func (r *Resolver) Resolve(ctx context.Context, refs []string, limit int) ([]Asset, error) {
	if limit > 0 && len(refs) > limit {
		refs = refs[:limit]
	}

	assets := make([]Asset, 0, len(refs))
	for _, ref := range refs {
		asset, err := r.fetch(ctx, ref)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		assets = append(assets, asset)
	}
	return assets, nil
}

func (r *Resolver) fetch(ctx context.Context, ref string) (Asset, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", ref, nil)
	if err != nil {
		return Asset{}, fmt.Errorf("error creating request for %s: %w", ref, err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return Asset{}, fmt.Errorf("error downloading %s: %w", ref, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Asset{}, fmt.Errorf("unexpected status %d downloading %s", resp.StatusCode, ref)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return Asset{}, fmt.Errorf("error reading %s: %w", ref, err)
	}

	mime := sniffMIME(data, resp.Header.Get("Content-Type"), ref)

	return Asset{URL: ref, Data: data, MIME: mime}, nil
}

// sniffMIME prefers magic bytes, then a specific transport content type,
// then the URL's file extension. Ambiguous image-like references fall
// back to a generic image type.
func sniffMIME(data []byte, contentType, ref string) string {
	if kind, err := filetype.Match(data); err == nil && kind != types.Unknown {
		return kind.MIME.Value
	}

	if contentType != "" {
		ct := strings.TrimSpace(strings.Split(contentType, ";")[0])
		if ct != "" && ct != "application/octet-stream" && ct != "binary/octet-stream" {
			return ct
		}
	}

	return mimeFromExtension(ref)
}

func mimeFromExtension(ref string) string {
	ext := strings.ToLower(path.Ext(strings.Split(ref, "?")[0]))
	switch ext {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	case ".mp4":
		return "video/mp4"
	case ".mov":
		return "video/quicktime"
	default:
		return "image/jpeg"
	}
}
