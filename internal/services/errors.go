package services

import (
	"errors"
	"fmt"
	"strings"
)

// Job-level markers abort a job before any external tool runs. Segment-level
// markers are recorded per segment and never abort siblings on their own.
var (
	ErrNoMediaFiles         = errors.New("no media files")
	ErrMetadataUnresolved   = errors.New("metadata unresolved")
	ErrMetadataLookupFailed = errors.New("metadata lookup failed")
	ErrParseAmbiguous       = errors.New("parse ambiguous")
	ErrMergeFailed          = errors.New("merge failed")
	ErrCancelled            = errors.New("cancelled")

	ErrExternalTool  = errors.New("external tool error")
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
	ErrTimeout       = errors.New("timeout")
)

// Status strings persisted in reports and job history.
const (
	StatusSucceeded            = "succeeded"
	StatusNoMediaFiles         = "no_media_files"
	StatusMetadataUnresolved   = "metadata_unresolved"
	StatusMetadataLookupFailed = "metadata_lookup_failed"
	StatusMergeFailed          = "merge_failed"
	StatusCancelled            = "cancelled"
	StatusTimeout              = "timeout"
	StatusExternalTool         = "external_tool_error"
	StatusValidation           = "validation_error"
	StatusConfiguration        = "configuration_error"
	StatusFailed               = "failed"
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later status classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrExternalTool
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Classify maps an error to the status string recorded for it. Cancellation
// wins over every other marker so an aborted merge is never reported as a
// tool failure.
func Classify(err error) string {
	switch {
	case err == nil:
		return StatusSucceeded
	case errors.Is(err, ErrCancelled):
		return StatusCancelled
	case errors.Is(err, ErrNoMediaFiles):
		return StatusNoMediaFiles
	case errors.Is(err, ErrMetadataUnresolved):
		return StatusMetadataUnresolved
	case errors.Is(err, ErrMetadataLookupFailed):
		return StatusMetadataLookupFailed
	case errors.Is(err, ErrMergeFailed):
		return StatusMergeFailed
	case errors.Is(err, ErrTimeout):
		return StatusTimeout
	case errors.Is(err, ErrExternalTool):
		return StatusExternalTool
	case errors.Is(err, ErrValidation):
		return StatusValidation
	case errors.Is(err, ErrConfiguration):
		return StatusConfiguration
	default:
		return StatusFailed
	}
}

// IsJobFatal reports whether err must stop a job before merging starts.
func IsJobFatal(err error) bool {
	if err == nil {
		return false
	}
	return !errors.Is(err, ErrMergeFailed) && !errors.Is(err, ErrCancelled)
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
