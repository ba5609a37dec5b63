// Package tmdb provides the minimal TMDB API client used for series title
// resolution.
//
// It authenticates requests and exposes TV search, show details, season
// details, and season credits. Responses are strongly typed so the resolver can
// rank them. Options allow tests to supply custom HTTP clients without
// modifying production code.
package tmdb
