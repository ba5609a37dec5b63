package merge

import (
	"fmt"
	"strings"

	"dramamerge/internal/media/ffprobe"
)

// StreamInfo pairs a source file with its probed stream signature.
type StreamInfo struct {
	Name      string
	Signature ffprobe.Signature
}

// InconsistencyError reports inputs whose stream parameters differ from the
// first file of a segment. Stream copy cannot join such inputs reliably.
type InconsistencyError struct {
	Reference StreamInfo
	Mismatch  []Mismatch
}

// Mismatch names one differing file and the fields that differ.
type Mismatch struct {
	Name      string
	Signature ffprobe.Signature
	Fields    []string
}

func (e *InconsistencyError) Error() string {
	parts := make([]string, 0, len(e.Mismatch))
	for _, m := range e.Mismatch {
		parts = append(parts, fmt.Sprintf("%s (%s: %s)", m.Name, strings.Join(m.Fields, ","), m.Signature))
	}
	return fmt.Sprintf("stream parameters differ from %s (%s): %s",
		e.Reference.Name, e.Reference.Signature, strings.Join(parts, "; "))
}

// CheckConsistency compares every input against the first. It returns nil
// for fewer than two inputs.
func CheckConsistency(inputs []StreamInfo) error {
	if len(inputs) < 2 {
		return nil
	}
	ref := inputs[0]
	var mismatches []Mismatch
	for _, in := range inputs[1:] {
		if fields := ref.Signature.Diff(in.Signature); len(fields) > 0 {
			mismatches = append(mismatches, Mismatch{Name: in.Name, Signature: in.Signature, Fields: fields})
		}
	}
	if len(mismatches) == 0 {
		return nil
	}
	return &InconsistencyError{Reference: ref, Mismatch: mismatches}
}
