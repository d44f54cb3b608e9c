package store

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// tempFileName is the fixed name of the raw assembled stream inside the
// save directory. One job at a time owns it; the download service holds a
// file lock around the whole job.
const tempFileName = "temp.ts"

// DestinationExistsError reports an output path collision. It is raised
// before any fetch work begins, so a collision costs no network traffic.
type DestinationExistsError struct {
	Path string
}

func (e *DestinationExistsError) Error() string {
	return fmt.Sprintf("destination %s already exists", e.Path)
}

// Writer is the persistence sink: it owns the save directory, the
// temporary raw stream file and the final destination naming.
type Writer struct {
	saveDir string
}

// NewWriter creates a writer rooted at saveDir. The directory is created
// lazily on first write.
func NewWriter(saveDir string) *Writer {
	return &Writer{saveDir: saveDir}
}

// SaveDir returns the configured save directory.
func (w *Writer) SaveDir() string {
	return w.saveDir
}

// LockPath returns the path of the per-directory job lock file.
func (w *Writer) LockPath() string {
	return filepath.Join(w.saveDir, ".trackdl.lock")
}

// TempPath returns the path of the temporary raw stream file.
func (w *Writer) TempPath() string {
	return filepath.Join(w.saveDir, tempFileName)
}

// DestinationPath builds the final output path for a track.
func (w *Writer) DestinationPath(artist, title string) string {
	name := sanitizeName(artist) + "_" + sanitizeName(title) + ".mp3"
	return filepath.Join(w.saveDir, name)
}

// CheckDestination returns a *DestinationExistsError when path is already
// taken.
func (w *Writer) CheckDestination(path string) error {
	_, err := os.Stat(path)
	switch {
	case err == nil:
		return &DestinationExistsError{Path: path}
	case errors.Is(err, fs.ErrNotExist):
		return nil
	default:
		return fmt.Errorf("failed to stat %s: %w", path, err)
	}
}

// EnsureDir creates the save directory if it does not exist yet.
func (w *Writer) EnsureDir() error {
	if err := os.MkdirAll(w.saveDir, 0o755); err != nil {
		return fmt.Errorf("failed to create save dir %s: %w", w.saveDir, err)
	}
	return nil
}

// WriteTemp writes the assembled byte stream to the temporary file and
// returns its path.
func (w *Writer) WriteTemp(data []byte) (string, error) {
	if err := w.EnsureDir(); err != nil {
		return "", err
	}
	path := w.TempPath()
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	return path, nil
}

// RemoveTemp deletes the temporary file. Removing a file that was never
// written is not an error.
func (w *Writer) RemoveTemp() error {
	err := os.Remove(w.TempPath())
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove %s: %w", w.TempPath(), err)
	}
	return nil
}

// sanitizeName makes a metadata string safe for use in a file name:
// spaces become underscores, path separators become dashes.
func sanitizeName(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "unknown"
	}
	s = strings.ReplaceAll(s, " ", "_")
	s = strings.ReplaceAll(s, "/", "-")
	s = strings.ReplaceAll(s, "\\", "-")
	return s
}
