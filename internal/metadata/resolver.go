package metadata

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"dramamerge/internal/logging"
	"dramamerge/internal/naming"
	"dramamerge/internal/services"
)

const stageName = "metadata"

// Request carries the caller's directory name and optional overrides. Nil
// season or episode means "not supplied".
type Request struct {
	DirName string
	Title   string
	Season  *int
	Episode *int
}

// Outcome describes how metadata was resolved.
type Outcome struct {
	Metadata     SeriesMetadata `json:"metadata"`
	Source       Source         `json:"source"`
	Query        string         `json:"query,omitempty"`
	Match        *Candidate     `json:"match,omitempty"`
	Candidates   []Candidate    `json:"candidates,omitempty"`
	FallbackUsed bool           `json:"fallback_used"`
	// LookupErr is the degraded search failure, if any.
	LookupErr error `json:"-"`
}

// Resolver turns a Request into SeriesMetadata.
type Resolver struct {
	searcher      Searcher
	allowFallback bool
	logger        *slog.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithSearcher sets the search backend. A nil searcher disables lookup.
func WithSearcher(s Searcher) Option {
	return func(r *Resolver) { r.searcher = s }
}

// WithRawDirectoryFallback controls whether the raw directory name may be
// used as the title when no candidate can be derived.
func WithRawDirectoryFallback(allow bool) Option {
	return func(r *Resolver) { r.allowFallback = allow }
}

// WithLogger sets the resolver logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewResolver builds a resolver. Raw directory fallback is enabled by default.
func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{allowFallback: true, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = logging.NewComponentLogger(r.logger, "metadata")
	return r
}

// Resolve produces SeriesMetadata for req. It returns an *AmbiguousError when
// search yields several plausible series, and an error marked
// services.ErrMetadataUnresolved when no title can be derived and fallback is
// disabled. Search failures degrade to the derived title and are reported on
// Outcome.LookupErr.
func (r *Resolver) Resolve(ctx context.Context, req Request) (Outcome, error) {
	logger := logging.WithContext(ctx, r.logger)
	season, episode := r.numbering(req)

	if title := strings.TrimSpace(req.Title); title != "" {
		logger.Info("metadata supplied by caller",
			logging.String("title", title),
			logging.Int("season", season),
			logging.Int("episode_start", episode),
		)
		return Outcome{
			Metadata: SeriesMetadata{Title: title, Season: season, EpisodeStart: episode},
			Source:   SourceExplicit,
		}, nil
	}

	derived, ok := naming.DeriveTitle(req.DirName)
	if !ok {
		raw := strings.TrimSpace(req.DirName)
		if !r.allowFallback || raw == "" {
			return Outcome{}, services.Wrap(services.ErrMetadataUnresolved, stageName, "derive title",
				"no title could be derived from "+quoteOrEmpty(raw)+" and raw directory fallback is disabled", nil)
		}
		logging.WarnWithContext(logger, "using raw directory name as title", "metadata_fallback",
			logging.String("dir_name", raw),
			logging.String(logging.FieldErrorHint, "pass --title to choose the series name"),
			logging.String(logging.FieldImpact, "output files are named after the directory"),
		)
		return Outcome{
			Metadata:     SeriesMetadata{Title: raw, Season: season, EpisodeStart: episode},
			Source:       SourceRawDirectory,
			FallbackUsed: true,
		}, nil
	}

	out := Outcome{
		Metadata: SeriesMetadata{Title: derived, Season: season, EpisodeStart: episode},
		Source:   SourceDerived,
		Query:    derived,
	}
	if r.searcher == nil {
		logger.Info("metadata derived from directory name", logging.String("title", derived))
		return out, nil
	}

	candidates, err := r.searcher.Search(ctx, derived)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Outcome{}, services.Wrap(services.ErrCancelled, stageName, "search", "lookup cancelled", ctxErr)
		}
		out.LookupErr = services.Wrap(services.ErrMetadataLookupFailed, stageName, "search", "query "+derived, err)
		logging.WarnWithContext(logger, "metadata lookup failed; using derived title", "metadata_lookup_failed",
			logging.String("query", derived),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check network access or tmdb settings"),
			logging.String(logging.FieldImpact, "title taken from directory name"),
		)
		return out, nil
	}

	res := Select(derived, candidates)
	switch res.Kind {
	case Resolved:
		match := res.Match
		out.Metadata.Title = res.Title
		out.Source = SourceSearch
		out.Match = &match
		logger.Info("metadata resolved by search",
			logging.String("query", derived),
			logging.String("title", res.Title),
			logging.Int64("tmdb_id", match.ID),
			logging.Int("candidates", len(candidates)),
		)
		return out, nil
	case Ambiguous:
		out.Candidates = res.Candidates
		logger.Info("metadata search ambiguous",
			logging.String("query", derived),
			logging.Int("candidates", len(res.Candidates)),
		)
		return out, &AmbiguousError{Query: derived, Candidates: res.Candidates}
	default:
		logger.Info("metadata search found nothing; using derived title", logging.String("query", derived))
		return out, nil
	}
}

func (r *Resolver) numbering(req Request) (season, episode int) {
	season, episode = 1, 1
	if req.Season != nil && *req.Season > 0 {
		season = *req.Season
	} else if strings.TrimSpace(req.Title) == "" {
		if hint, ok := naming.SeasonHint(req.DirName); ok && hint > 0 {
			season = hint
		}
	}
	if req.Episode != nil && *req.Episode > 0 {
		episode = *req.Episode
	}
	return season, episode
}

// IsAmbiguous reports whether err carries an *AmbiguousError.
func IsAmbiguous(err error) (*AmbiguousError, bool) {
	var amb *AmbiguousError
	if errors.As(err, &amb) {
		return amb, true
	}
	return nil, false
}

func quoteOrEmpty(s string) string {
	if s == "" {
		return "an empty directory name"
	}
	return "\"" + s + "\""
}
