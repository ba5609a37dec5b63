// Package playlist writes an HLS VOD playlist that lists a season's merged
// outputs in episode order, so players can treat the season as one stream.
package playlist

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/grafov/m3u8"

	"dramamerge/internal/fileutil"
	"dramamerge/internal/textutil"
)

// Entry is one merged output to list.
type Entry struct {
	Path    string
	Seconds float64
	Title   string
}

// FileName returns the playlist name for a season, `{title}_S{season:02}.m3u8`.
func FileName(title string, season int) string {
	safe := textutil.SanitizeFileName(title)
	if safe == "" {
		safe = "untitled"
	}
	if season <= 0 {
		season = 1
	}
	return fmt.Sprintf("%s_S%02d.m3u8", safe, season)
}

// Write encodes entries as a closed VOD media playlist in dir and returns its
// path. URIs are relative to dir when the entry lives beneath it. An existing
// playlist is replaced atomically.
func Write(dir, title string, season int, entries []Entry) (string, error) {
	if len(entries) == 0 {
		return "", errors.New("playlist has no entries")
	}
	pl, err := m3u8.NewMediaPlaylist(0, uint(len(entries)))
	if err != nil {
		return "", fmt.Errorf("new media playlist: %w", err)
	}
	pl.MediaType = m3u8.VOD
	for _, e := range entries {
		if e.Seconds <= 0 {
			return "", fmt.Errorf("entry %s has no duration", e.Path)
		}
		if err := pl.Append(relativeURI(dir, e.Path), e.Seconds, e.Title); err != nil {
			return "", fmt.Errorf("append %s: %w", e.Path, err)
		}
	}
	pl.Close()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create playlist dir: %w", err)
	}
	target := filepath.Join(dir, FileName(title, season))
	tmp, err := os.CreateTemp(dir, ".playlist-*.m3u8")
	if err != nil {
		return "", fmt.Errorf("create temp playlist: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(pl.Encode().Bytes()); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("write playlist: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("close playlist: %w", err)
	}
	if err := fileutil.ReplaceFile(tmpPath, target); err != nil {
		return "", fmt.Errorf("finalize playlist: %w", err)
	}
	return target, nil
}

func relativeURI(dir, path string) string {
	rel, err := filepath.Rel(dir, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}
