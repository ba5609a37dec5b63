// Package metadata resolves the series title, season, and first episode
// number for a merge job.
//
// An explicit title short-circuits resolution. Otherwise a candidate title is
// derived from the directory name and checked against a Searcher (the TMDB API
// when a key is configured, else the TMDB website). Search outcomes are tagged
// Resolved, Ambiguous, or NotFound so callers handle each case explicitly. The
// resolver never picks among ties: an ambiguous search surfaces an
// AmbiguousError listing the candidates.
package metadata
