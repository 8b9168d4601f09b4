package tokens

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	config "github.com/postloop/postloop/configs"
	"github.com/postloop/postloop/internal/platform"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLinkedinRefreshRotatesAccessToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.FormValue("grant_type"))
		assert.Equal(t, "refresh-plain", r.FormValue("refresh_token"))
		fmt.Fprint(w, `{"access_token":"access-new","expires_in":5184000}`)
	}))
	defer server.Close()

	s := newLinkedinStrategy(config.Config{}, server.Client())
	s.TokenURL = server.URL

	result, err := s.Refresh(context.Background(), RefreshInput{AccessToken: "old", RefreshToken: "refresh-plain"})
	require.NoError(t, err)
	assert.Equal(t, "access-new", result.AccessToken)
	assert.Empty(t, result.RefreshToken, "linkedin keeps the stored refresh token")
}

func TestRefreshGrantRejectionIsTerminal(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":"invalid_grant"}`)
	}))
	defer server.Close()

	s := newLinkedinStrategy(config.Config{}, server.Client())
	s.TokenURL = server.URL

	_, err := s.Refresh(context.Background(), RefreshInput{RefreshToken: "revoked"})
	require.Error(t, err)
	assert.Equal(t, platform.KindRefreshFailed, platform.KindOf(err))
	assert.True(t, platform.IsTerminalAuth(err))
}

func TestTokenEndpointOutageIsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	s := newTiktokStrategy(config.Config{}, server.Client())
	s.TokenURL = server.URL

	_, err := s.Refresh(context.Background(), RefreshInput{RefreshToken: "still-good"})
	require.Error(t, err)
	assert.Empty(t, string(platform.KindOf(err)), "a 5xx stays untyped so the caller retries")
	assert.False(t, platform.IsTerminalAuth(err))
}

func TestTiktokRefreshRequiresBothHalves(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"access_token":"access-new","expires_in":86400}`)
	}))
	defer server.Close()

	s := newTiktokStrategy(config.Config{}, server.Client())
	s.TokenURL = server.URL

	_, err := s.Refresh(context.Background(), RefreshInput{RefreshToken: "r1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "incomplete token pair")
}
