package naming

import (
	"cmp"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"dramamerge/internal/textutil"
)

// OrderKey is the sort key derived from a file name. Keys carrying a number
// sort before keys without one; numbered keys order by season, then number,
// and compare equal when both match so callers break the tie on the raw
// filename. Text, the folded lowercased name, orders keys without a number.
type OrderKey struct {
	Season    int
	Numeric   int
	HasNumber bool
	Text      string
}

// Compare returns -1, 0, or +1 depending on whether k sorts before, equal to,
// or after other.
func (k OrderKey) Compare(other OrderKey) int {
	if k.HasNumber != other.HasNumber {
		if k.HasNumber {
			return -1
		}
		return 1
	}
	if k.HasNumber {
		if c := cmp.Compare(k.Season, other.Season); c != 0 {
			return c
		}
		return cmp.Compare(k.Numeric, other.Numeric)
	}
	return strings.Compare(k.Text, other.Text)
}

func (k OrderKey) String() string {
	if !k.HasNumber {
		return "text:" + k.Text
	}
	if k.Season > 0 {
		return "S" + strconv.Itoa(k.Season) + "#" + strconv.Itoa(k.Numeric)
	}
	return "#" + strconv.Itoa(k.Numeric)
}

// Parsed is the result of ParseName.
type Parsed struct {
	Key        OrderKey
	Season     int
	Episode    int
	HasSeason  bool
	HasEpisode bool
}

var (
	seasonEpisodePattern = regexp.MustCompile(`(?i)(?:^|[^a-z0-9])s(\d{1,2})[ ._-]?e(\d{1,4})(?:[^0-9]|$)`)
	crossPattern         = regexp.MustCompile(`(?i)(?:^|[^a-z0-9])(\d{1,2})x(\d{1,3})(?:[^0-9a-z]|$)`)
	cjkSeasonPattern     = regexp.MustCompile(`第\s*([0-9零〇一二两三四五六七八九十百]+)\s*[季部]`)
	cjkEpisodePattern    = regexp.MustCompile(`第\s*([0-9零〇一二两三四五六七八九十百千]+)\s*[集话話回期]`)
	episodePattern       = regexp.MustCompile(`(?i)(?:^|[^a-z])(?:episode|ep|e)[ ._-]?(\d{1,4})(?:[^0-9]|$)`)
	seasonPattern        = regexp.MustCompile(`(?i)(?:^|[^a-z])(?:season|s)[ ._-]?(\d{1,2})(?:[^0-9a-z]|$)`)
	digitRunPattern      = regexp.MustCompile(`\d+`)

	// Tokens whose digits never denote an episode.
	noiseDigitPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\d{3,4}\s*x\s*\d{3,4}`),
		regexp.MustCompile(`(?i)(?:^|[^0-9])(?:480|576|720|1080|1440|2160|4320)[pi]`),
		regexp.MustCompile(`(?i)(?:^|[^0-9])[248]k(?:[^a-z]|$)`),
		regexp.MustCompile(`(?i)[xh]\.?26[45]`),
		regexp.MustCompile(`(?i)\d{1,2}\s*bit`),
		regexp.MustCompile(`(?i)(?:aac|ac3|ddp?|dts|eac3|flac|truehd|opus|mp3)\s*\d(?:\.\d)?`),
	}
	yearPattern = regexp.MustCompile(`^(?:19|20)\d\d$`)
)

// ParseFileName strips the extension from name before calling ParseName so
// container suffixes such as "mp4" never contribute digits.
func ParseFileName(name string) Parsed {
	base := filepath.Base(name)
	if ext := filepath.Ext(base); ext != "" && ext != base {
		base = strings.TrimSuffix(base, ext)
	}
	return ParseName(base)
}

// ParseName extracts an ordering key and optional season/episode hints. It
// never fails; names without usable digits produce a text-only key.
//
// Detection order: SxxEyy, NxM, CJK season plus episode markers, a separate
// season marker (S2, Season 2) followed by an episode prefix (EP, E,
// Episode), and finally the longest plain digit run.
// Resolution, codec, bit depth, audio channel, and year digits are only used
// when no other digits exist.
func ParseName(name string) Parsed {
	folded := textutil.Fold(strings.TrimSpace(name))
	out := Parsed{Key: OrderKey{Text: strings.ToLower(folded)}}

	if m := seasonEpisodePattern.FindStringSubmatch(folded); m != nil {
		out.setSeason(atoi(m[1]))
		out.setEpisode(atoi(m[2]))
		return out.finish()
	}
	if m := crossPattern.FindStringSubmatch(folded); m != nil {
		out.setSeason(atoi(m[1]))
		out.setEpisode(atoi(m[2]))
		return out.finish()
	}

	remaining := folded
	if loc := cjkSeasonPattern.FindStringSubmatchIndex(remaining); loc != nil {
		if n, ok := parseCJKNumber(remaining[loc[2]:loc[3]]); ok {
			out.setSeason(n)
		}
		remaining = blank(remaining, loc[0], loc[1])
	}
	if m := cjkEpisodePattern.FindStringSubmatch(remaining); m != nil {
		if n, ok := parseCJKNumber(m[1]); ok {
			out.setEpisode(n)
			return out.finish()
		}
	}
	if !out.HasSeason {
		if loc := seasonPattern.FindStringSubmatchIndex(remaining); loc != nil {
			out.setSeason(atoi(remaining[loc[2]:loc[3]]))
			remaining = blank(remaining, loc[0], loc[1])
		}
	}
	if m := episodePattern.FindStringSubmatch(remaining); m != nil {
		out.setEpisode(atoi(m[1]))
		return out.finish()
	}

	if n, ok := bestDigitRun(remaining); ok {
		out.setEpisode(n)
	}
	return out.finish()
}

func (p *Parsed) setSeason(n int) {
	p.Season = n
	p.HasSeason = true
}

func (p *Parsed) setEpisode(n int) {
	p.Episode = n
	p.HasEpisode = true
}

func (p Parsed) finish() Parsed {
	if p.HasEpisode {
		p.Key.HasNumber = true
		p.Key.Numeric = p.Episode
		p.Key.Season = p.Season
	}
	return p
}

// bestDigitRun returns the longest digit run outside noise tokens, ties going
// to the first occurrence. Noise and year runs are considered only when
// nothing else qualifies.
func bestDigitRun(value string) (int, bool) {
	cleaned := value
	for _, pattern := range noiseDigitPatterns {
		for _, loc := range pattern.FindAllStringIndex(cleaned, -1) {
			cleaned = blank(cleaned, loc[0], loc[1])
		}
	}

	if n, ok := longestRun(cleaned, true); ok {
		return n, true
	}
	if n, ok := longestRun(value, false); ok {
		return n, true
	}
	return 0, false
}

func longestRun(value string, skipYears bool) (int, bool) {
	best := ""
	for _, run := range digitRunPattern.FindAllString(value, -1) {
		if skipYears && yearPattern.MatchString(run) {
			continue
		}
		if len(run) > len(best) {
			best = run
		}
	}
	if best == "" {
		return 0, false
	}
	// Runs longer than int range are treated as opaque text.
	n, err := strconv.Atoi(best)
	if err != nil {
		return 0, false
	}
	return n, true
}

// blank replaces value[start:end] with spaces of the same byte length so
// later index arithmetic stays valid and digit runs on either side never join.
func blank(value string, start, end int) string {
	return value[:start] + strings.Repeat(" ", end-start) + value[end:]
}

func atoi(value string) int {
	n, _ := strconv.Atoi(value)
	return n
}

var cjkDigits = map[rune]int{
	'零': 0, '〇': 0, '一': 1, '二': 2, '两': 2, '三': 3, '四': 4,
	'五': 5, '六': 6, '七': 7, '八': 8, '九': 9,
}

var cjkUnits = map[rune]int{'十': 10, '百': 100, '千': 1000}

// parseCJKNumber converts ASCII digits or Chinese numerals such as
// "十二", "二十三", or "一百零五" to an integer.
func parseCJKNumber(value string) (int, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	if n, err := strconv.Atoi(value); err == nil {
		return n, true
	}
	total, current := 0, 0
	seen := false
	for len(value) > 0 {
		r, size := utf8.DecodeRuneInString(value)
		value = value[size:]
		if d, ok := cjkDigits[r]; ok {
			current = d
			seen = true
			continue
		}
		if unit, ok := cjkUnits[r]; ok {
			if current == 0 {
				current = 1
			}
			total += current * unit
			current = 0
			seen = true
			continue
		}
		if r >= '0' && r <= '9' {
			current = current*10 + int(r-'0')
			seen = true
			continue
		}
		return 0, false
	}
	if !seen {
		return 0, false
	}
	return total + current, true
}
