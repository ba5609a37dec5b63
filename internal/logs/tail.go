package logs

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"dramamerge/internal/logging"
)

// Filter reports whether a log line should be shown.
type Filter func(line string) bool

// JobFilter keeps lines that mention jobID. An empty ID keeps everything.
func JobFilter(jobID string) Filter {
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return nil
	}
	return func(line string) bool { return strings.Contains(line, jobID) }
}

// Latest returns the newest daily log file in dir. Daily names sort
// chronologically, so the lexically greatest match wins.
func Latest(dir string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, logging.LogFilePattern))
	if err != nil {
		return "", fmt.Errorf("list log files: %w", err)
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("no log files in %s", dir)
	}
	slices.Sort(matches)
	return matches[len(matches)-1], nil
}

// Last returns up to limit of the final lines in path that pass keep, and
// the offset just past the last complete line. A missing file yields no
// lines and offset 0.
func Last(path string, limit int, keep Filter) ([]string, int64, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, 0, nil
		}
		return nil, 0, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	if limit <= 0 {
		info, err := file.Stat()
		if err != nil {
			return nil, 0, fmt.Errorf("stat log file: %w", err)
		}
		return nil, info.Size(), nil
	}

	ring := make([]string, 0, limit)
	next := 0
	var offset int64
	reader := bufio.NewReaderSize(file, 64*1024)
	for {
		line, err := reader.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, 0, fmt.Errorf("read log file: %w", err)
		}
		if !strings.HasSuffix(line, "\n") {
			break
		}
		offset += int64(len(line))
		text := strings.TrimRight(line, "\r\n")
		if keep != nil && !keep(text) {
			continue
		}
		if len(ring) < limit {
			ring = append(ring, text)
		} else {
			ring[next] = text
		}
		next = (next + 1) % limit
	}

	if len(ring) < limit {
		return ring, offset, nil
	}
	lines := make([]string, 0, limit)
	lines = append(lines, ring[next:]...)
	lines = append(lines, ring[:next]...)
	return lines, offset, nil
}

// Follow polls path every poll interval starting at offset and passes each
// newly completed line that passes keep to emit. A file that shrinks is read
// again from the start. Follow returns nil once ctx ends.
func Follow(ctx context.Context, path string, offset int64, poll time.Duration, keep Filter, emit func(string)) error {
	if poll <= 0 {
		poll = 250 * time.Millisecond
	}
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		lines, next, err := readComplete(path, offset)
		if err != nil {
			return err
		}
		offset = next
		for _, line := range lines {
			if keep == nil || keep(line) {
				emit(line)
			}
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// readComplete returns the complete lines after offset. A trailing line
// without a newline is left for the next read.
func readComplete(path string, offset int64) ([]string, int64, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, 0, nil
		}
		return nil, offset, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, offset, fmt.Errorf("stat log file: %w", err)
	}
	if info.Size() < offset {
		offset = 0
	}
	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return nil, offset, fmt.Errorf("seek log file: %w", err)
	}
	data, err := io.ReadAll(file)
	if err != nil {
		return nil, offset, fmt.Errorf("read log file: %w", err)
	}
	end := bytes.LastIndexByte(data, '\n')
	if end < 0 {
		return nil, offset, nil
	}
	chunk := string(data[:end])
	lines := strings.Split(chunk, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSuffix(line, "\r")
	}
	return lines, offset + int64(end) + 1, nil
}
