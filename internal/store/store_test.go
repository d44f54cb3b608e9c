package store_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trackdl/internal/store"
)

func TestDestinationPath(t *testing.T) {
	writer := store.NewWriter("/music")

	tests := []struct {
		artist, title, want string
	}{
		{"My Artist", "Some Song", "My_Artist_Some_Song.mp3"},
		{"AC/DC", "Back In Black", "AC-DC_Back_In_Black.mp3"},
		{"", "Song", "unknown_Song.mp3"},
		{"  Spaced  ", "Song", "Spaced_Song.mp3"},
	}
	for _, tt := range tests {
		assert.Equal(t, filepath.Join("/music", tt.want), writer.DestinationPath(tt.artist, tt.title))
	}
}

func TestCheckDestination(t *testing.T) {
	dir := t.TempDir()
	writer := store.NewWriter(dir)

	missing := filepath.Join(dir, "missing.mp3")
	assert.NoError(t, writer.CheckDestination(missing))

	taken := filepath.Join(dir, "taken.mp3")
	require.NoError(t, os.WriteFile(taken, []byte("x"), 0o644))

	err := writer.CheckDestination(taken)
	var existsErr *store.DestinationExistsError
	require.ErrorAs(t, err, &existsErr)
	assert.Equal(t, taken, existsErr.Path)
}

func TestWriteAndRemoveTemp(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "music")
	writer := store.NewWriter(dir)

	path, err := writer.WriteTemp([]byte("raw stream"))
	require.NoError(t, err)
	assert.Equal(t, writer.TempPath(), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "raw stream", string(data))

	require.NoError(t, writer.RemoveTemp())
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	// Removing an already removed temp file is not an error.
	assert.NoError(t, writer.RemoveTemp())
}
