package metadata

import (
	"fmt"
	"strings"

	"dramamerge/internal/services"
	"dramamerge/internal/textutil"
)

// SeriesMetadata is the resolved naming tuple for one job. It is immutable
// once resolution finishes.
type SeriesMetadata struct {
	Title        string `json:"title"`
	Season       int    `json:"season"`
	EpisodeStart int    `json:"episode_start"`
}

// Source records where the resolved title came from.
type Source string

const (
	SourceExplicit     Source = "explicit"
	SourceSearch       Source = "search"
	SourceDerived      Source = "derived"
	SourceRawDirectory Source = "raw_directory"
)

// Candidate is one ranked search result.
type Candidate struct {
	ID           int64  `json:"id,omitempty"`
	Name         string `json:"name"`
	OriginalName string `json:"original_name,omitempty"`
	Year         int    `json:"year,omitempty"`
}

func (c Candidate) String() string {
	label := c.Name
	if c.OriginalName != "" && c.OriginalName != c.Name {
		label += " / " + c.OriginalName
	}
	if c.Year > 0 {
		label += fmt.Sprintf(" (%d)", c.Year)
	}
	if c.ID > 0 {
		label += fmt.Sprintf(" [id %d]", c.ID)
	}
	return label
}

// ResolutionKind tags a search outcome.
type ResolutionKind int

const (
	NotFound ResolutionKind = iota
	Resolved
	Ambiguous
)

func (k ResolutionKind) String() string {
	switch k {
	case Resolved:
		return "resolved"
	case Ambiguous:
		return "ambiguous"
	default:
		return "not_found"
	}
}

// Resolution is the tagged result of ranking search candidates. Title and
// Match are set only for Resolved; Candidates is set for Ambiguous.
type Resolution struct {
	Kind       ResolutionKind
	Title      string
	Match      Candidate
	Candidates []Candidate
}

// Select ranks candidates for query. A match is confident when exactly one
// candidate exists, or when the top candidate's name equals the query after
// normalization and the runner-up's does not.
func Select(query string, candidates []Candidate) Resolution {
	switch len(candidates) {
	case 0:
		return Resolution{Kind: NotFound}
	case 1:
		return Resolution{Kind: Resolved, Title: candidates[0].Name, Match: candidates[0]}
	}
	want := textutil.NormalizeForComparison(query)
	if want != "" && nameMatches(candidates[0], want) && !nameMatches(candidates[1], want) {
		return Resolution{Kind: Resolved, Title: candidates[0].Name, Match: candidates[0]}
	}
	out := make([]Candidate, len(candidates))
	copy(out, candidates)
	return Resolution{Kind: Ambiguous, Candidates: out}
}

func nameMatches(c Candidate, normalized string) bool {
	if textutil.NormalizeForComparison(c.Name) == normalized {
		return true
	}
	return c.OriginalName != "" && textutil.NormalizeForComparison(c.OriginalName) == normalized
}

// AmbiguousError reports a search that returned several plausible series.
// The caller should retry with an explicit title.
type AmbiguousError struct {
	Query      string
	Candidates []Candidate
}

func (e *AmbiguousError) Error() string {
	names := make([]string, 0, len(e.Candidates))
	for _, c := range e.Candidates {
		names = append(names, c.String())
	}
	return fmt.Sprintf("metadata unresolved: %d candidates for %q, pass an explicit title: %s",
		len(e.Candidates), e.Query, strings.Join(names, "; "))
}

func (e *AmbiguousError) Unwrap() error { return services.ErrMetadataUnresolved }
