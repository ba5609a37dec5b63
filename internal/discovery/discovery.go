// Package discovery lists media files in a work directory and orders them
// into playback order.
package discovery

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"dramamerge/internal/naming"
	"dramamerge/internal/services"
)

const stageName = "discover"

// SourceFile is one input media file. Duration and Size are zero until the
// file has been probed.
type SourceFile struct {
	Path     string          `json:"path"`
	Name     string          `json:"name"`
	Key      naming.OrderKey `json:"-"`
	Parsed   naming.Parsed   `json:"-"`
	Duration time.Duration   `json:"duration"`
	Size     int64           `json:"size"`
}

// Discover lists dir non-recursively and returns the regular, non-hidden files
// whose extension is in extensions, in playback order. It returns an error
// wrapping services.ErrNoMediaFiles when nothing qualifies.
func Discover(dir string, extensions []string) ([]SourceFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, stageName, "read directory", dir, err)
	}

	paths := make([]string, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		path := filepath.Join(dir, name)
		if !isRegular(entry, path) {
			continue
		}
		paths = append(paths, path)
	}

	files, err := Order(paths, extensions)
	if err != nil {
		return nil, err
	}
	return files, nil
}

// Order filters paths to recognized media extensions and sorts them by
// OrderKey, then filename, then full path, which makes the order total.
func Order(paths []string, extensions []string) ([]SourceFile, error) {
	allowed := make(map[string]struct{}, len(extensions))
	for _, ext := range extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		allowed[ext] = struct{}{}
	}

	files := make([]SourceFile, 0, len(paths))
	seen := make(map[string]struct{}, len(paths))
	for _, path := range paths {
		if _, dup := seen[path]; dup {
			continue
		}
		seen[path] = struct{}{}
		name := filepath.Base(path)
		if _, ok := allowed[strings.ToLower(filepath.Ext(name))]; !ok {
			continue
		}
		parsed := naming.ParseFileName(name)
		files = append(files, SourceFile{Path: path, Name: name, Key: parsed.Key, Parsed: parsed})
	}
	if len(files) == 0 {
		return nil, services.Wrap(services.ErrNoMediaFiles, stageName, "filter extensions",
			fmt.Sprintf("no files matching %s", strings.Join(sortedKeys(allowed), " ")), nil)
	}

	slices.SortFunc(files, Compare)
	return files, nil
}

// Compare orders two source files by key, filename, and path.
func Compare(a, b SourceFile) int {
	if c := a.Key.Compare(b.Key); c != 0 {
		return c
	}
	if c := strings.Compare(a.Name, b.Name); c != 0 {
		return c
	}
	return strings.Compare(a.Path, b.Path)
}

// DuplicateKeys returns one key per episode number shared by more than one
// file. Such files are still ordered deterministically by name; callers log
// them so the tiebreak is visible.
func DuplicateKeys(files []SourceFile) []naming.OrderKey {
	var dups []naming.OrderKey
	for i := 1; i < len(files); i++ {
		if !sameNumber(files[i-1], files[i]) {
			continue
		}
		if n := len(dups); n > 0 && sameNumber(SourceFile{Key: dups[n-1]}, files[i]) {
			continue
		}
		dups = append(dups, files[i-1].Key)
	}
	return dups
}

func sameNumber(a, b SourceFile) bool {
	return a.Key.HasNumber && b.Key.HasNumber && a.Key.Season == b.Key.Season && a.Key.Numeric == b.Key.Numeric
}

func isRegular(entry os.DirEntry, path string) bool {
	if entry.Type().IsRegular() {
		return true
	}
	if entry.Type()&os.ModeSymlink == 0 {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for key := range set {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	return keys
}
