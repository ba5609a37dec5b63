package naming

import (
	"fmt"
	"strings"

	"dramamerge/internal/textutil"
)

// DefaultExtension is used when OutputName receives a blank extension.
const DefaultExtension = ".mp4"

// untitled replaces titles that sanitize to nothing.
const untitled = "untitled"

// OutputName formats the merged filename for the segment at index:
// {title}_S{season:02}E{episodeStart+index:02}{ext}. Values wider than two
// digits are printed in full.
func OutputName(title string, season, episodeStart, index int, ext string) string {
	safe := textutil.SanitizeFileName(title)
	if safe == "" {
		safe = untitled
	}
	return fmt.Sprintf("%s_S%02dE%02d%s", safe, season, episodeStart+index, NormalizeExtension(ext))
}

// NormalizeExtension lowercases ext, adds a leading dot, and substitutes
// DefaultExtension for blank input.
func NormalizeExtension(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext == "" || ext == "." {
		return DefaultExtension
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}
