package models

// Track is the metadata returned by the playlist resolver for one audio
// track, including the playable HLS playlist URL.
type Track struct {
	Artist string
	Title  string
	// URL is the resolved media playlist locator.
	URL string
	// Duration is the track length in seconds.
	Duration int
}
