package transcode

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

var commandContext = exec.CommandContext

// Transcoder converts a raw assembled media file into the distribution
// format.
type Transcoder interface {
	Convert(ctx context.Context, inputPath, outputPath string) error
}

// Option configures the ffmpeg client.
type Option func(*FFmpeg)

// WithBinary overrides the default binary name.
func WithBinary(binary string) Option {
	return func(f *FFmpeg) {
		if binary != "" {
			f.binary = binary
		}
	}
}

// FFmpeg wraps the ffmpeg command line tool.
type FFmpeg struct {
	binary string
}

// NewFFmpeg constructs an ffmpeg client using defaults.
func NewFFmpeg(opts ...Option) *FFmpeg {
	f := &FFmpeg{binary: "ffmpeg"}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Convert remuxes the raw MPEG-TS audio stream at inputPath into
// outputPath without re-encoding. A non-zero exit surfaces as an error
// carrying ffmpeg's stderr.
func (f *FFmpeg) Convert(ctx context.Context, inputPath, outputPath string) error {
	if inputPath == "" {
		return errors.New("input path required")
	}
	if outputPath == "" {
		return errors.New("output path required")
	}

	args := []string{
		"-hide_banner",
		"-loglevel", "error",
		"-i", inputPath,
		"-vn",
		"-acodec", "copy",
		"-y", outputPath,
	}

	cmd := commandContext(ctx, f.binary, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("%s failed: %w: %s", f.binary, err, msg)
		}
		return fmt.Errorf("%s failed: %w", f.binary, err)
	}
	return nil
}
