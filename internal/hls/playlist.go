package hls

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/grafov/m3u8"

	"trackdl/internal/models"
)

// ErrNotMediaPlaylist is returned when the playlist URL points at a master
// playlist. Variant selection is out of scope; the resolver is expected to
// hand out a media playlist directly.
var ErrNotMediaPlaylist = errors.New("playlist is not a media playlist")

// LoadPlaylist fetches and parses a media playlist into segment
// descriptors with contiguous indices starting at zero. Encryption keys
// declared with EXT-X-KEY carry forward to following segments until
// replaced; METHOD=NONE clears the active key. Key URIs are resolved
// against the playlist URL, segment URIs are kept as written and resolved
// later by the assembler.
func LoadPlaylist(ctx context.Context, fetcher *Fetcher, playlistURL string) ([]models.SegmentDescriptor, error) {
	data, err := fetcher.Fetch(ctx, playlistURL)
	if err != nil {
		return nil, fmt.Errorf("failed to load playlist: %w", err)
	}

	playlist, listType, err := m3u8.DecodeFrom(bytes.NewReader(data), false)
	if err != nil {
		return nil, fmt.Errorf("failed to parse playlist %s: %w", playlistURL, err)
	}
	if listType != m3u8.MEDIA {
		return nil, ErrNotMediaPlaylist
	}
	media, ok := playlist.(*m3u8.MediaPlaylist)
	if !ok {
		return nil, ErrNotMediaPlaylist
	}

	base, err := url.Parse(playlistURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse playlist URL %s: %w", playlistURL, err)
	}

	// The active key comes only from EXT-X-KEY tags seen while walking;
	// the parser's playlist-level key must not be used as a seed, or
	// segments before the first tag would be mislabeled as encrypted.
	var activeKey *m3u8.Key
	descriptors := make([]models.SegmentDescriptor, 0, media.Count())
	for _, seg := range media.Segments {
		if seg == nil {
			// The parser preallocates its segment slice; trailing
			// entries are nil.
			continue
		}
		if seg.Key != nil {
			activeKey = seg.Key
		}

		keyURI := ""
		if activeKey != nil && activeKey.Method == "AES-128" && activeKey.URI != "" {
			keyURI, err = resolveURL(base, activeKey.URI)
			if err != nil {
				return nil, fmt.Errorf("segment %d: %w", len(descriptors), err)
			}
		}

		descriptors = append(descriptors, models.SegmentDescriptor{
			Index:  len(descriptors),
			URI:    seg.URI,
			KeyURI: keyURI,
		})
	}

	return descriptors, nil
}

// resolveURL resolves a possibly relative reference against a base URL.
// For a bare file name this substitutes the base's final path component,
// which is the resolution rule media playlists use for relative segment
// references. Absolute references pass through unchanged.
func resolveURL(base *url.URL, ref string) (string, error) {
	parsed, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("failed to parse reference %q: %w", ref, err)
	}
	return base.ResolveReference(parsed).String(), nil
}
