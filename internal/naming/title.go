package naming

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/moistari/rls"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"dramamerge/internal/textutil"
)

var (
	bookTitlePattern   = regexp.MustCompile(`《([^》]+)》`)
	bracketPattern     = regexp.MustCompile(`\[[^\]]*\]|【[^】]*】|\([^)]*\)|（[^）]*）|「[^」]*」`)
	separatorReplacer  = strings.NewReplacer(".", " ", "_", " ", "-", " ", "·", " ", "+", " ", "&", " ")
	latinSeasonPattern = regexp.MustCompile(`(?i)\b(?:s\d{1,2}(?:e\d{1,4})?|season\s*\d{1,2})\b`)
	titleCaser         = cases.Title(language.Und)
)

// noiseTokens are release markers removed from directory names before a
// title is derived. Entries are compared case-insensitively.
var noiseTokens = map[string]struct{}{
	"web": {}, "webdl": {}, "web-dl": {}, "webrip": {}, "hdtv": {}, "bluray": {}, "bdrip": {},
	"dvdrip": {}, "hdrip": {}, "remux": {}, "x264": {}, "x265": {}, "h264": {}, "h265": {},
	"hevc": {}, "avc": {}, "aac": {}, "ac3": {}, "flac": {}, "ddp": {}, "hdr": {}, "uhd": {},
	"4k": {}, "2k": {}, "1080p": {}, "720p": {}, "2160p": {}, "480p": {}, "10bit": {},
	"complete": {}, "全集": {}, "完结": {}, "完整版": {}, "国语": {}, "粤语": {}, "中字": {},
	"中英字幕": {}, "双语": {}, "高清": {}, "超清": {}, "蓝光": {}, "未删减": {}, "短剧": {},
}

// DeriveTitle extracts a candidate series title from a directory name. It
// prefers text inside 《》, then the release-name title for Latin names, and
// otherwise strips bracketed tags, season markers, digits, and release noise
// and keeps the first remaining token. The boolean is false when nothing
// usable remains.
func DeriveTitle(dirName string) (string, bool) {
	folded := strings.TrimSpace(textutil.Fold(dirName))
	if folded == "" {
		return "", false
	}

	if m := bookTitlePattern.FindStringSubmatch(folded); m != nil {
		if title := strings.TrimSpace(m[1]); title != "" {
			return title, true
		}
	}

	stripped := strings.TrimSpace(bracketPattern.ReplaceAllString(folded, " "))
	if stripped == "" {
		return "", false
	}

	if !containsHan(stripped) {
		if title := latinTitle(stripped); title != "" {
			return title, true
		}
		return "", false
	}

	cleaned := cjkSeasonPattern.ReplaceAllString(stripped, " ")
	cleaned = cjkEpisodePattern.ReplaceAllString(cleaned, " ")
	cleaned = latinSeasonPattern.ReplaceAllString(cleaned, " ")
	for _, token := range strings.Fields(separatorReplacer.Replace(cleaned)) {
		if isNoiseToken(token) {
			continue
		}
		token = strings.TrimFunc(token, func(r rune) bool {
			return unicode.IsDigit(r) || unicode.IsPunct(r) || unicode.IsSymbol(r)
		})
		token = strings.Map(func(r rune) rune {
			if unicode.IsDigit(r) {
				return -1
			}
			return r
		}, token)
		if token == "" || isNoiseToken(token) {
			continue
		}
		return token, true
	}
	return "", false
}

// latinTitle parses a scene-style release name and returns its title with
// all-lowercase titles converted to title case.
func latinTitle(value string) string {
	release := rls.ParseString(value)
	title := strings.TrimSpace(release.Title)
	if title == "" {
		words := make([]string, 0, 4)
		for _, token := range strings.Fields(separatorReplacer.Replace(value)) {
			if isNoiseToken(token) || strings.IndexFunc(token, unicode.IsLetter) < 0 {
				continue
			}
			words = append(words, token)
		}
		title = strings.Join(words, " ")
	}
	if title == "" {
		return ""
	}
	if title == strings.ToLower(title) {
		title = titleCaser.String(title)
	}
	return title
}

// SeasonHint reports a season number embedded in a directory name such as
// "Show.S02", "Show Season 2", or "剧名第二季".
func SeasonHint(dirName string) (int, bool) {
	parsed := ParseName(dirName)
	if parsed.HasSeason && parsed.Season > 0 {
		return parsed.Season, true
	}
	folded := textutil.Fold(dirName)
	if containsHan(folded) {
		return 0, false
	}
	if release := rls.ParseString(folded); release.Series > 0 {
		return release.Series, true
	}
	return 0, false
}

func isNoiseToken(token string) bool {
	_, ok := noiseTokens[strings.ToLower(token)]
	return ok
}

func containsHan(value string) bool {
	for _, r := range value {
		if unicode.Is(unicode.Han, r) {
			return true
		}
	}
	return false
}
