package testsupport

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
)

// DefaultProbeSeconds is reported by FakeFFprobe for files without an entry.
const DefaultProbeSeconds = 60.0

// FakeFFprobe writes an ffprobe replacement into dir and returns its path.
// It reports 1920x1080 h264/aac streams, the duration listed for the file's
// base name in durations (DefaultProbeSeconds otherwise), and the file's real
// size. Base names listed with a negative duration make the probe fail.
func FakeFFprobe(t testing.TB, dir string, durations map[string]float64) string {
	t.Helper()

	var cases strings.Builder
	names := make([]string, 0, len(durations))
	for name := range durations {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		seconds := durations[name]
		if seconds < 0 {
			fmt.Fprintf(&cases, "  %s) echo 'Invalid data found when processing input' >&2; exit 1;;\n", shellQuote(name))
			continue
		}
		fmt.Fprintf(&cases, "  %s) dur=%g;;\n", shellQuote(name), seconds)
	}

	script := `#!/bin/sh
for last; do :; done
name=$(basename "$last")
dur=` + fmt.Sprintf("%g", DefaultProbeSeconds) + `
case "$name" in
` + cases.String() + `  *) ;;
esac
size=$(wc -c < "$last" | tr -d ' ')
printf '{"streams":[{"index":0,"codec_type":"video","codec_name":"h264","width":1920,"height":1080,"r_frame_rate":"25/1"},{"index":1,"codec_type":"audio","codec_name":"aac"}],"format":{"duration":"%s","size":"%s"}}\n' "$dur" "$size"
`
	return writeScript(t, dir, "ffprobe", script)
}

// FFmpegBehavior configures FakeFFmpeg.
type FFmpegBehavior struct {
	// FailOn lists substrings; an output path containing one makes the run exit 1.
	FailOn []string
	// SkipOutputOn lists substrings; a matching output is never written but the run exits 0.
	SkipOutputOn []string
	// Sleep delays the run, in seconds, before any output is written.
	Sleep string
}

// FakeFFmpeg writes an ffmpeg replacement into dir and returns its path. It
// reads the concat manifest passed with -i, appends each listed file to the
// output path (the final argument), and logs the manifest entries to
// ffmpeg.log next to the script.
func FakeFFmpeg(t testing.TB, dir string, behavior FFmpegBehavior) string {
	t.Helper()

	var pre strings.Builder
	if behavior.Sleep != "" {
		fmt.Fprintf(&pre, "sleep %s\n", behavior.Sleep)
	}
	for _, marker := range behavior.FailOn {
		fmt.Fprintf(&pre, "case \"$out\" in *%s*) echo 'simulated concat failure' >&2; exit 1;; esac\n", shellPattern(marker))
	}
	for _, marker := range behavior.SkipOutputOn {
		fmt.Fprintf(&pre, "case \"$out\" in *%s*) exit 0;; esac\n", shellPattern(marker))
	}

	logPath := filepath.Join(dir, "ffmpeg.log")
	script := `#!/bin/sh
manifest=""
prev=""
for arg; do
  if [ "$prev" = "-i" ]; then manifest="$arg"; fi
  prev="$arg"
done
out="$prev"
` + pre.String() + `: > "$out"
sed -n "s/^file '\(.*\)'$/\1/p" "$manifest" | while IFS= read -r f; do
  cat "$f" >> "$out"
  echo "$(basename "$out") $f" >> ` + shellQuote(logPath) + `
done
`
	return writeScript(t, dir, "ffmpeg", script)
}

// FFmpegLog returns the lines logged by a FakeFFmpeg installed in dir.
func FFmpegLog(t testing.TB, dir string) []string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, "ffmpeg.log"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		t.Fatalf("read ffmpeg log: %v", err)
	}
	return strings.Split(strings.TrimRight(string(data), "\n"), "\n")
}

func writeScript(t testing.TB, dir, name, body string) string {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", dir, err)
	}
	target := filepath.Join(dir, name)
	if err := os.WriteFile(target, []byte(body), 0o755); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return target
}

func shellQuote(value string) string {
	return "'" + strings.ReplaceAll(value, "'", `'\''`) + "'"
}

// shellPattern escapes glob metacharacters so marker matches literally.
func shellPattern(value string) string {
	var b strings.Builder
	for _, r := range value {
		switch r {
		case '*', '?', '[', ']', '\\', '"', '$', '`', ' ':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
