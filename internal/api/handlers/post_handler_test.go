package handlers

import (
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"

	"github.com/postloop/postloop/internal/platform"
	"github.com/postloop/postloop/internal/transfer"
)

func failed(kind platform.ErrorKind) transfer.PublishOutcome {
	return transfer.PublishOutcome{
		Platform: string(platform.LinkedIn),
		Kind:     string(kind),
		Error:    "publish failed",
	}
}

func TestPublishStatus(t *testing.T) {
	tests := []struct {
		name     string
		outcomes []transfer.PublishOutcome
		want     int
	}{
		{
			name:     "all platforms succeeded",
			outcomes: []transfer.PublishOutcome{{Platform: "linkedin", PlatformPostID: "urn:li:share:1"}},
			want:     fiber.StatusOK,
		},
		{
			name: "partial success still returns ok",
			outcomes: []transfer.PublishOutcome{
				{Platform: "bluesky", PlatformPostID: "at://did:plc:abc/app.bsky.feed.post/1"},
				failed(platform.KindPlatformRejected),
			},
			want: fiber.StatusOK,
		},
		{
			name:     "auth required maps to unauthorized",
			outcomes: []transfer.PublishOutcome{failed(platform.KindAuthRequired)},
			want:     fiber.StatusUnauthorized,
		},
		{
			name:     "missing connection maps to unauthorized",
			outcomes: []transfer.PublishOutcome{failed(platform.KindAccountNotConnected)},
			want:     fiber.StatusUnauthorized,
		},
		{
			name:     "dead refresh token asks for a reconnect",
			outcomes: []transfer.PublishOutcome{failed(platform.KindRefreshFailed)},
			want:     fiber.StatusConflict,
		},
		{
			name:     "expired token without refresh asks for a reconnect",
			outcomes: []transfer.PublishOutcome{failed(platform.KindTokenExpiredNoRefresh)},
			want:     fiber.StatusConflict,
		},
		{
			name:     "validation failure is the caller's fault",
			outcomes: []transfer.PublishOutcome{failed(platform.KindValidation)},
			want:     fiber.StatusBadRequest,
		},
		{
			name:     "platform rejection is a bad gateway",
			outcomes: []transfer.PublishOutcome{failed(platform.KindPlatformRejected)},
			want:     fiber.StatusBadGateway,
		},
		{
			name:     "untyped failure is a bad gateway",
			outcomes: []transfer.PublishOutcome{{Platform: "tiktok", Error: "connection reset"}},
			want:     fiber.StatusBadGateway,
		},
		{
			name: "reconnect outranks validation",
			outcomes: []transfer.PublishOutcome{
				failed(platform.KindValidation),
				failed(platform.KindRefreshFailed),
			},
			want: fiber.StatusConflict,
		},
		{
			name: "login outranks everything else",
			outcomes: []transfer.PublishOutcome{
				failed(platform.KindRefreshFailed),
				failed(platform.KindAuthRequired),
			},
			want: fiber.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PublishStatus(tt.outcomes))
		})
	}
}
