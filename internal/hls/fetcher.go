package hls

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"trackdl/internal/logger"
)

// FetchError reports a segment, key or playlist fetch that did not yield a
// usable body: either a transport failure (Err set) or a non-200 response
// (StatusCode set).
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("fetch %s: unexpected status %d", e.URL, e.StatusCode)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Fetcher performs single HTTP GET requests for playlist documents, media
// segments and decryption keys. It carries no retry or concurrency logic;
// both belong to its callers.
type Fetcher struct {
	httpClient *http.Client
	logger     logger.Logger
	userAgent  string
}

// NewFetcher creates a fetcher. A nil client gets a default with a response
// header timeout; per-request deadlines come from the caller's context.
func NewFetcher(client *http.Client, log logger.Logger, userAgent string) *Fetcher {
	if client == nil {
		client = &http.Client{
			Transport: &http.Transport{
				ResponseHeaderTimeout: 30 * time.Second,
			},
		}
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Fetcher{
		httpClient: client,
		logger:     log,
		userAgent:  userAgent,
	}
}

// Fetch performs one GET against url and returns the full response body.
// Any status other than 200 is a *FetchError.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	f.logger.Debugf("Fetching %s", url)
	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &FetchError{URL: url, StatusCode: resp.StatusCode}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}

	return data, nil
}
