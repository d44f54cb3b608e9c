package hls_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trackdl/internal/hls"
)

func TestFetcher_Success(t *testing.T) {
	var gotAgent string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAgent = r.Header.Get("User-Agent")
		fmt.Fprint(w, "segment data")
	}))
	defer server.Close()

	fetcher := hls.NewFetcher(nil, nil, "test-agent")
	data, err := fetcher.Fetch(context.Background(), server.URL)

	require.NoError(t, err)
	assert.Equal(t, "segment data", string(data))
	assert.Equal(t, "test-agent", gotAgent)
}

func TestFetcher_NonOKStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	fetcher := hls.NewFetcher(nil, nil, "")
	_, err := fetcher.Fetch(context.Background(), server.URL)

	var fetchErr *hls.FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, http.StatusNotFound, fetchErr.StatusCode)
	assert.Equal(t, server.URL, fetchErr.URL)
}

func TestFetcher_TransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // connection refused from here on

	fetcher := hls.NewFetcher(nil, nil, "")
	_, err := fetcher.Fetch(context.Background(), server.URL)

	var fetchErr *hls.FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Error(t, fetchErr.Err)
}

func TestFetcher_ContextDeadline(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	fetcher := hls.NewFetcher(nil, nil, "")
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := fetcher.Fetch(ctx, server.URL)
	assert.True(t, errors.Is(err, context.DeadlineExceeded), "expected deadline error, got %v", err)
}
