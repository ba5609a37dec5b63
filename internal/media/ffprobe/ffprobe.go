package ffprobe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"
)

// Result represents the parsed output from an ffprobe inspection.
type Result struct {
	Streams []Stream `json:"streams"`
	Format  Format   `json:"format"`
	raw     []byte
}

// Stream describes a single stream in the media container.
type Stream struct {
	Index        int    `json:"index"`
	CodecName    string `json:"codec_name"`
	CodecType    string `json:"codec_type"`
	CodecTag     string `json:"codec_tag_string"`
	Duration     string `json:"duration"`
	BitRate      string `json:"bit_rate"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	PixFmt       string `json:"pix_fmt"`
	RFrameRate   string `json:"r_frame_rate"`
	AvgFrameRate string `json:"avg_frame_rate"`
	SampleRate   string `json:"sample_rate"`
	Channels     int    `json:"channels"`
}

// Format captures container-level metadata extracted by ffprobe.
type Format struct {
	Filename   string `json:"filename"`
	NBStreams  int    `json:"nb_streams"`
	Duration   string `json:"duration"`
	Size       string `json:"size"`
	BitRate    string `json:"bit_rate"`
	FormatName string `json:"format_name"`
}

// Inspect executes ffprobe against the provided path and decodes the JSON response.
// Diagnostics written to stderr are kept out of the JSON payload and reported
// only when the command fails.
func Inspect(ctx context.Context, binary string, path string) (Result, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffprobe"
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return Result{}, errors.New("ffprobe inspect: empty path")
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, binary, "-v", "error", "-hide_banner", "-show_format", "-show_streams", "-of", "json", "--", path)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Result{}, fmt.Errorf("ffprobe inspect: %w", ctxErr)
		}
		return Result{}, fmt.Errorf("ffprobe inspect: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	return Parse(stdout.Bytes())
}

// Parse decodes an ffprobe JSON payload.
func Parse(payload []byte) (Result, error) {
	var result Result
	if err := json.Unmarshal(payload, &result); err != nil {
		return Result{}, fmt.Errorf("ffprobe parse: %w", err)
	}
	result.raw = append([]byte(nil), payload...)
	return result, nil
}

// RawJSON returns the raw ffprobe JSON payload.
func (r Result) RawJSON() []byte {
	return append([]byte(nil), r.raw...)
}

// VideoStreamCount returns the number of video streams discovered.
func (r Result) VideoStreamCount() int {
	return r.countStreams("video")
}

// AudioStreamCount returns the number of audio streams discovered.
func (r Result) AudioStreamCount() int {
	return r.countStreams("audio")
}

func (r Result) countStreams(kind string) int {
	count := 0
	for _, stream := range r.Streams {
		if strings.EqualFold(stream.CodecType, kind) {
			count++
		}
	}
	return count
}

// FirstStream returns the first stream of the given codec type.
func (r Result) FirstStream(kind string) (Stream, bool) {
	for _, stream := range r.Streams {
		if strings.EqualFold(stream.CodecType, kind) {
			return stream, true
		}
	}
	return Stream{}, false
}

// DurationSeconds returns the container duration in seconds. When the
// container omits it (common for MPEG-TS and FLV), the longest stream
// duration is used. Unparseable values yield NaN and absent values yield 0.
func (r Result) DurationSeconds() float64 {
	if strings.TrimSpace(r.Format.Duration) != "" {
		return parseFloat(r.Format.Duration)
	}
	longest := 0.0
	for _, stream := range r.Streams {
		if d := parseFloat(stream.Duration); !math.IsNaN(d) && d > longest {
			longest = d
		}
	}
	return longest
}

// SizeBytes returns the reported container size in bytes, or 0 when unavailable.
func (r Result) SizeBytes() int64 {
	size := parseFloat(r.Format.Size)
	if math.IsNaN(size) || size < 0 {
		return 0
	}
	return int64(size)
}

// BitRate returns the container bitrate in bits per second, or 0 when unavailable.
func (r Result) BitRate() int64 {
	rate := parseFloat(r.Format.BitRate)
	if math.IsNaN(rate) || rate < 0 {
		return 0
	}
	return int64(rate)
}

// Signature lists the stream parameters that must match across inputs for
// ffmpeg's concat demuxer to copy streams without re-encoding.
type Signature struct {
	Width      int
	Height     int
	FrameRate  string
	VideoCodec string
	AudioCodec string
}

// Signature extracts the concat-relevant parameters from the first video and
// audio streams. Missing streams leave the corresponding fields empty.
func (r Result) Signature() Signature {
	var sig Signature
	if video, ok := r.FirstStream("video"); ok {
		sig.Width = video.Width
		sig.Height = video.Height
		sig.VideoCodec = strings.ToLower(strings.TrimSpace(video.CodecName))
		sig.FrameRate = NormalizeFrameRate(video.RFrameRate)
		if sig.FrameRate == "" {
			sig.FrameRate = NormalizeFrameRate(video.AvgFrameRate)
		}
	}
	if audio, ok := r.FirstStream("audio"); ok {
		sig.AudioCodec = strings.ToLower(strings.TrimSpace(audio.CodecName))
	}
	return sig
}

// Diff returns the names of fields that differ between s and other. A field
// missing on either side (no audio stream, unknown frame rate) is not
// compared.
func (s Signature) Diff(other Signature) []string {
	var fields []string
	if s.Width > 0 && s.Height > 0 && other.Width > 0 && other.Height > 0 &&
		(s.Width != other.Width || s.Height != other.Height) {
		fields = append(fields, "resolution")
	}
	if differs(s.FrameRate, other.FrameRate) {
		fields = append(fields, "frame_rate")
	}
	if differs(s.VideoCodec, other.VideoCodec) {
		fields = append(fields, "video_codec")
	}
	if differs(s.AudioCodec, other.AudioCodec) {
		fields = append(fields, "audio_codec")
	}
	return fields
}

func differs(a, b string) bool {
	return a != "" && b != "" && a != b
}

func (s Signature) String() string {
	return fmt.Sprintf("%dx%d@%s %s/%s", s.Width, s.Height, s.FrameRate, s.VideoCodec, s.AudioCodec)
}

// NormalizeFrameRate converts ffprobe rationals such as "30000/1001" into a
// decimal string rounded to three places. "0/0" and blank input yield "".
func NormalizeFrameRate(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	num, den, found := strings.Cut(value, "/")
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return ""
	}
	d := 1.0
	if found {
		d, err = strconv.ParseFloat(den, 64)
		if err != nil || d == 0 {
			return ""
		}
	}
	if n <= 0 {
		return ""
	}
	return strconv.FormatFloat(math.Round(n/d*1000)/1000, 'f', -1, 64)
}

func parseFloat(value string) float64 {
	cleaned := strings.TrimSpace(value)
	if cleaned == "" {
		return 0
	}
	if parsed, err := strconv.ParseFloat(cleaned, 64); err == nil {
		return parsed
	}
	return math.NaN()
}
