package vk_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trackdl/internal/config"
	"trackdl/internal/vk"
)

func newTestClient(serverURL string) *vk.Client {
	cfg := config.Default()
	cfg.VK.APIBaseURL = serverURL
	cfg.VK.AccessToken = "token"
	return vk.NewClient(cfg, nil)
}

func TestResolveTrack_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/method/audio.getById", r.URL.Path)
		query := r.URL.Query()
		assert.Equal(t, "-123_456", query.Get("audios"))
		assert.Equal(t, "token", query.Get("access_token"))
		assert.Equal(t, config.DefaultAPIVersion, query.Get("v"))

		fmt.Fprint(w, `{"response":[{"artist":"Artist","title":"Title","url":"https://cdn.example.com/audio/index.m3u8","duration":183}]}`)
	}))
	defer server.Close()

	track, err := newTestClient(server.URL).ResolveTrack(context.Background(), -123, 456)
	require.NoError(t, err)

	assert.Equal(t, "Artist", track.Artist)
	assert.Equal(t, "Title", track.Title)
	assert.Equal(t, "https://cdn.example.com/audio/index.m3u8", track.URL)
	assert.Equal(t, 183, track.Duration)
}

func TestResolveTrack_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"error":{"error_code":15,"error_msg":"Access denied"}}`)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).ResolveTrack(context.Background(), 1, 2)

	var resErr *vk.ResolutionError
	require.ErrorAs(t, err, &resErr)
	assert.Equal(t, 15, resErr.Code)
	assert.Contains(t, resErr.Error(), "Access denied")
}

func TestResolveTrack_EmptyResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"response":[]}`)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).ResolveTrack(context.Background(), 1, 2)

	var resErr *vk.ResolutionError
	require.ErrorAs(t, err, &resErr)
	assert.Contains(t, resErr.Error(), "no playable URL")
}

func TestResolveTrack_NoURL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"response":[{"artist":"Artist","title":"Title","url":"","duration":10}]}`)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).ResolveTrack(context.Background(), 1, 2)

	var resErr *vk.ResolutionError
	assert.ErrorAs(t, err, &resErr)
}

func TestResolveTrack_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).ResolveTrack(context.Background(), 1, 2)

	var resErr *vk.ResolutionError
	require.ErrorAs(t, err, &resErr)
	assert.Contains(t, resErr.Error(), "404")
}
