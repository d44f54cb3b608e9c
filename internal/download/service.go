package download

import (
	"context"
	"fmt"
	"os"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"github.com/schollz/progressbar/v3"

	"trackdl/internal/config"
	"trackdl/internal/hls"
	"trackdl/internal/logger"
	"trackdl/internal/models"
	"trackdl/internal/store"
	"trackdl/internal/transcode"
)

// Resolver maps a track identifier to a playable playlist URL and
// metadata.
type Resolver interface {
	ResolveTrack(ctx context.Context, ownerID, audioID int64) (*models.Track, error)
}

// Service runs one download job end to end: resolve, fetch playlist,
// assemble segments, write the raw stream, transcode, clean up.
type Service struct {
	cfg          *config.Config
	logger       logger.Logger
	resolver     Resolver
	fetcher      *hls.Fetcher
	store        *store.Writer
	transcoder   transcode.Transcoder
	showProgress bool
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithFetcher replaces the default segment fetcher.
func WithFetcher(f *hls.Fetcher) ServiceOption {
	return func(s *Service) {
		if f != nil {
			s.fetcher = f
		}
	}
}

// WithTranscoder replaces the default ffmpeg transcoder.
func WithTranscoder(t transcode.Transcoder) ServiceOption {
	return func(s *Service) {
		if t != nil {
			s.transcoder = t
		}
	}
}

// WithProgress toggles the interactive progress bar.
func WithProgress(enabled bool) ServiceOption {
	return func(s *Service) {
		s.showProgress = enabled
	}
}

// NewService wires a download service from the configuration.
func NewService(cfg *config.Config, log logger.Logger, resolver Resolver, opts ...ServiceOption) *Service {
	if log == nil {
		log = logger.Nop()
	}
	s := &Service{
		cfg:          cfg,
		logger:       log,
		resolver:     resolver,
		fetcher:      hls.NewFetcher(nil, log, cfg.UserAgent),
		store:        store.NewWriter(cfg.SaveDir),
		transcoder:   transcode.NewFFmpeg(transcode.WithBinary(cfg.FFmpeg.Binary)),
		showProgress: true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DownloadTrack downloads one track and returns the destination path.
// Jobs sharing a save directory serialize on a file lock, since they share
// the temporary stream file.
func (s *Service) DownloadTrack(ctx context.Context, ownerID, audioID int64) (string, error) {
	if err := s.store.EnsureDir(); err != nil {
		return "", err
	}

	lock := flock.New(s.store.LockPath())
	if err := lock.Lock(); err != nil {
		return "", fmt.Errorf("failed to lock save dir: %w", err)
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			s.logger.Warnf("Failed to release save dir lock: %v", err)
		}
	}()

	jobID := uuid.NewString()[:8]
	s.logger.Infof("Job %s: resolving track %d_%d", jobID, ownerID, audioID)

	track, err := s.resolver.ResolveTrack(ctx, ownerID, audioID)
	if err != nil {
		return "", err
	}
	s.logger.Infof("Job %s: resolved %q by %q (%ds)", jobID, track.Title, track.Artist, track.Duration)

	destination := s.store.DestinationPath(track.Artist, track.Title)
	if err := s.store.CheckDestination(destination); err != nil {
		return "", err
	}

	descriptors, err := hls.LoadPlaylist(ctx, s.fetcher, track.URL)
	if err != nil {
		return "", err
	}
	s.logger.Infof("Job %s: playlist has %d segments", jobID, len(descriptors))

	opts := []hls.Option{
		hls.WithConcurrency(s.cfg.Download.Concurrency),
		hls.WithSegmentTimeout(s.cfg.Download.SegmentTimeout),
		hls.WithStrictMode(s.cfg.Download.Strict),
	}
	if s.showProgress && len(descriptors) > 0 {
		bar := progressbar.NewOptions(len(descriptors),
			progressbar.OptionSetDescription(fmt.Sprintf("%s - %s", track.Artist, track.Title)),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionClearOnFinish(),
		)
		opts = append(opts, hls.WithSegmentCallback(func(models.SegmentResult, error) {
			_ = bar.Add(1)
		}))
	}

	assembler := hls.NewAssembler(s.fetcher, s.logger, opts...)
	data, err := assembler.Assemble(ctx, descriptors, track.URL)
	if err != nil {
		return "", fmt.Errorf("assembly failed: %w", err)
	}

	tempPath, err := s.store.WriteTemp(data)
	if err != nil {
		return "", err
	}
	defer func() {
		if err := s.store.RemoveTemp(); err != nil {
			s.logger.Warnf("Job %s: %v", jobID, err)
		}
	}()

	if err := s.transcoder.Convert(ctx, tempPath, destination); err != nil {
		return "", fmt.Errorf("transcode failed: %w", err)
	}

	s.logger.Infof("Job %s: wrote %s", jobID, destination)
	return destination, nil
}
