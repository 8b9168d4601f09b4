package platform

import (
	"context"
	"fmt"
	"net/http"

	"github.com/postloop/postloop/internal/media"
)

// RequestSigner binds an outgoing API call to connection-scoped key
// material. Platforms without proof-of-possession leave it nil.
type RequestSigner interface {
	Sign(req *http.Request, accessToken string) error
}

// Credential is a ready-to-use token handed out by the token lifecycle
// manager. AccessToken is already decrypted.
type Credential struct {
	Platform    string
	AccountID   string
	AccountName string
	AccessToken string
	Signer      RequestSigner
}

// PostContent is the platform-agnostic content for a single publish.
type PostContent struct {
	Text string
}

// Adapter publishes one post to one platform and returns the
// platform-assigned post identifier.
type Adapter interface {
	Name() string
	Limits() Limits
	Publish(ctx context.Context, cred *Credential, content PostContent, assets []media.Asset) (string, error)
}

// Limits are the pre-flight attachment rules enforced before any network
// call is made.
type Limits struct {
	MaxImages  int
	MaxVideos  int
	AllowMixed bool
	NeedsVideo bool
}

// MaxAttachments is the ceiling the media resolver truncates to before
// the adapter runs.
func (l Limits) MaxAttachments() int {
	n := l.MaxImages
	if l.MaxVideos > n {
		n = l.MaxVideos
	}
	return n
}

func validateAssets(name string, limits Limits, assets []media.Asset) error {
	var images, videos int
	for _, a := range assets {
		if a.IsVideo() {
			videos++
		} else {
			images++
		}
	}

	if videos > 0 && images > 0 && !limits.AllowMixed {
		return NewError(KindValidation, name, "mixing video and image attachments is not supported")
	}
	if videos > limits.MaxVideos {
		return NewError(KindValidation, name, fmt.Sprintf("at most %d video attachments allowed, got %d", limits.MaxVideos, videos))
	}
	if images > limits.MaxImages {
		return NewError(KindValidation, name, fmt.Sprintf("at most %d image attachments allowed, got %d", limits.MaxImages, images))
	}
	if limits.NeedsVideo && videos == 0 {
		return NewError(KindValidation, name, "a video attachment is required")
	}
	return nil
}
