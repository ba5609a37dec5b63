package logging

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
)

// Keys whose integer values are byte counts. The console handler shows them
// in IEC units; the JSON handler keeps the raw number.
var byteKeys = map[string]struct{}{
	"size_bytes":  {},
	"output_size": {},
	"max_size":    {},
	"free_bytes":  {},
}

func isByteKey(key string) bool {
	if _, ok := byteKeys[key]; ok {
		return true
	}
	return strings.HasSuffix(key, "_bytes")
}

// attrString renders subject fields (component, job, stage, segment) without
// quoting.
func attrString(v slog.Value) string {
	v = v.Resolve()
	switch v.Kind() {
	case slog.KindString:
		return v.String()
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			return err.Error()
		}
		return fmt.Sprint(v.Any())
	default:
		return formatValue("", v)
	}
}

func formatValue(key string, v slog.Value) string {
	v = v.Resolve()
	switch v.Kind() {
	case slog.KindInt64:
		n := v.Int64()
		if n > 0 && isByteKey(key) {
			return quoteIfNeeded(humanize.IBytes(uint64(n)))
		}
		return strconv.FormatInt(n, 10)
	case slog.KindUint64:
		n := v.Uint64()
		if n > 0 && isByteKey(key) {
			return quoteIfNeeded(humanize.IBytes(n))
		}
		return strconv.FormatUint(n, 10)
	case slog.KindBool:
		return strconv.FormatBool(v.Bool())
	case slog.KindFloat64:
		return strconv.FormatFloat(v.Float64(), 'f', -1, 64)
	case slog.KindDuration:
		return formatDuration(v.Duration())
	case slog.KindTime:
		return formatTimestamp(v.Time())
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			return quoteIfNeeded(err.Error())
		}
		return quoteIfNeeded(fmt.Sprint(v.Any()))
	default:
		return quoteIfNeeded(v.String())
	}
}

func quoteIfNeeded(s string) string {
	if needsQuotes(s) {
		return strconv.Quote(s)
	}
	return s
}

func needsQuotes(s string) bool {
	if s == "" {
		return true
	}
	for _, r := range s {
		if r <= ' ' || r == '=' || r == '"' {
			return true
		}
	}
	return false
}
