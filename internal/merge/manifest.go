package merge

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// writeManifest creates a concat demuxer list in dir and returns its path.
// The caller removes the file.
func writeManifest(dir string, paths []string) (string, error) {
	f, err := os.CreateTemp(dir, ".concat-*.txt")
	if err != nil {
		return "", fmt.Errorf("create manifest: %w", err)
	}
	name := f.Name()

	var b strings.Builder
	b.WriteString("ffconcat version 1.0\n")
	for _, path := range paths {
		abs, err := filepath.Abs(path)
		if err != nil {
			_ = f.Close()
			_ = os.Remove(name)
			return "", fmt.Errorf("resolve %s: %w", path, err)
		}
		b.WriteString(manifestLine(abs))
		b.WriteByte('\n')
	}

	if _, err := f.WriteString(b.String()); err != nil {
		_ = f.Close()
		_ = os.Remove(name)
		return "", fmt.Errorf("write manifest: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(name)
		return "", fmt.Errorf("close manifest: %w", err)
	}
	return name, nil
}

// manifestLine quotes path for the concat demuxer. Embedded single quotes
// close the quoted string, emit an escaped quote, and reopen it.
func manifestLine(path string) string {
	return "file '" + strings.ReplaceAll(path, "'", `'\''`) + "'"
}
