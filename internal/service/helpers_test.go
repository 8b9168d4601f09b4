package service

import (
	"testing"

	"github.com/postloop/postloop/internal/transfer"
	"github.com/stretchr/testify/assert"
)

func TestSplitPlatforms(t *testing.T) {
	assert.Equal(t, []string{"facebook", "bluesky"}, SplitPlatforms("facebook, bluesky"))
	assert.Equal(t, []string{"tiktok"}, SplitPlatforms(",tiktok,,"))
	assert.Nil(t, SplitPlatforms(""))
	assert.Nil(t, SplitPlatforms(" , "))
}

func TestSucceeded(t *testing.T) {
	assert.False(t, Succeeded(nil))
	assert.False(t, Succeeded([]transfer.PublishOutcome{
		{Platform: "facebook", Error: "token expired"},
	}))
	assert.True(t, Succeeded([]transfer.PublishOutcome{
		{Platform: "facebook", Error: "token expired"},
		{Platform: "bluesky", PlatformPostID: "at://x"},
	}))
}

func TestSummarizeFailures(t *testing.T) {
	assert.Empty(t, SummarizeFailures([]transfer.PublishOutcome{
		{Platform: "facebook", PlatformPostID: "fb1"},
	}))
	assert.Equal(t, "facebook: token expired; tiktok: spam detected", SummarizeFailures([]transfer.PublishOutcome{
		{Platform: "facebook", Error: "token expired"},
		{Platform: "bluesky", PlatformPostID: "at://x"},
		{Platform: "tiktok", Error: "spam detected"},
	}))
}
