package vk

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"trackdl/internal/config"
	"trackdl/internal/logger"
	"trackdl/internal/models"
)

// ResolutionError reports a track identifier that could not be mapped to a
// playable playlist URL. It is fatal to the job: no fetch work starts.
type ResolutionError struct {
	OwnerID int64
	AudioID int64
	Code    int
	Message string
	Err     error
}

func (e *ResolutionError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("cannot resolve track %d_%d: %v", e.OwnerID, e.AudioID, e.Err)
	case e.Message != "":
		return fmt.Sprintf("cannot resolve track %d_%d: API error %d: %s", e.OwnerID, e.AudioID, e.Code, e.Message)
	default:
		return fmt.Sprintf("cannot resolve track %d_%d", e.OwnerID, e.AudioID)
	}
}

func (e *ResolutionError) Unwrap() error {
	return e.Err
}

// retryLogger adapts our Logger to the retryablehttp LeveledLogger
// interface. Retry chatter goes to debug, real problems keep their level.
type retryLogger struct {
	log logger.Logger
}

func (l *retryLogger) Error(msg string, keysAndValues ...interface{}) {
	l.log.Errorf("%s %v", msg, keysAndValues)
}

func (l *retryLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.log.Warnf("%s %v", msg, keysAndValues)
}

func (l *retryLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debugf("%s %v", msg, keysAndValues)
}

func (l *retryLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.log.Debugf("%s %v", msg, keysAndValues)
}

// Client resolves track identifiers against the VK audio API.
type Client struct {
	httpClient *http.Client
	logger     logger.Logger
	baseURL    string
	token      string
	version    string
	userAgent  string
}

// NewClient creates an API client from the configuration. Requests retry
// transient failures with backoff; resolution is cheap and idempotent.
func NewClient(cfg *config.Config, log logger.Logger) *Client {
	if log == nil {
		log = logger.Nop()
	}

	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = 3
	retryClient.RetryWaitMin = 500 * time.Millisecond
	retryClient.RetryWaitMax = 5 * time.Second
	retryClient.Logger = &retryLogger{log: log}

	return &Client{
		httpClient: retryClient.StandardClient(),
		logger:     log,
		baseURL:    strings.TrimSuffix(cfg.VK.APIBaseURL, "/"),
		token:      cfg.VK.AccessToken,
		version:    cfg.VK.APIVersion,
		userAgent:  cfg.UserAgent,
	}
}

// apiEnvelope matches the API's response wrapper: either a response array
// or an error object, never both.
type apiEnvelope struct {
	Response []struct {
		Artist   string `json:"artist"`
		Title    string `json:"title"`
		URL      string `json:"url"`
		Duration int    `json:"duration"`
	} `json:"response"`
	Error *struct {
		Code    int    `json:"error_code"`
		Message string `json:"error_msg"`
	} `json:"error"`
}

// ResolveTrack maps an owner id and audio id to the track's playlist URL
// and metadata. Owner ids are negative for group-owned tracks.
func (c *Client) ResolveTrack(ctx context.Context, ownerID, audioID int64) (*models.Track, error) {
	query := url.Values{}
	query.Set("audios", fmt.Sprintf("%d_%d", ownerID, audioID))
	query.Set("access_token", c.token)
	query.Set("v", c.version)
	endpoint := fmt.Sprintf("%s/method/audio.getById?%s", c.baseURL, query.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, &ResolutionError{OwnerID: ownerID, AudioID: audioID, Err: err}
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	c.logger.Debugf("Resolving track %d_%d", ownerID, audioID)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &ResolutionError{OwnerID: ownerID, AudioID: audioID, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &ResolutionError{
			OwnerID: ownerID,
			AudioID: audioID,
			Err:     fmt.Errorf("unexpected status %d", resp.StatusCode),
		}
	}

	var envelope apiEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, &ResolutionError{
			OwnerID: ownerID,
			AudioID: audioID,
			Err:     fmt.Errorf("failed to decode API response: %w", err),
		}
	}

	if envelope.Error != nil {
		return nil, &ResolutionError{
			OwnerID: ownerID,
			AudioID: audioID,
			Code:    envelope.Error.Code,
			Message: envelope.Error.Message,
		}
	}
	if len(envelope.Response) == 0 || envelope.Response[0].URL == "" {
		return nil, &ResolutionError{
			OwnerID: ownerID,
			AudioID: audioID,
			Message: "no playable URL in response",
		}
	}

	item := envelope.Response[0]
	return &models.Track{
		Artist:   item.Artist,
		Title:    item.Title,
		URL:      item.URL,
		Duration: item.Duration,
	}, nil
}
