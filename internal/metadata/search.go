package metadata

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"dramamerge/internal/config"
	"dramamerge/internal/metadata/tmdb"
	"dramamerge/internal/metadata/tmdbweb"
)

// Searcher returns ranked series candidates for a title query.
type Searcher interface {
	Search(ctx context.Context, query string) ([]Candidate, error)
}

// SearchFunc adapts a function to Searcher.
type SearchFunc func(ctx context.Context, query string) ([]Candidate, error)

func (f SearchFunc) Search(ctx context.Context, query string) ([]Candidate, error) {
	return f(ctx, query)
}

// APISearcher searches the TMDB REST API.
type APISearcher struct {
	Client tmdb.Searcher
}

func (s APISearcher) Search(ctx context.Context, query string) ([]Candidate, error) {
	if s.Client == nil {
		return nil, errors.New("tmdb client unavailable")
	}
	resp, err := s.Client.SearchTV(ctx, query, tmdb.SearchOptions{})
	if err != nil {
		return nil, err
	}
	out := make([]Candidate, 0, len(resp.Results))
	for _, show := range resp.Results {
		if strings.TrimSpace(show.Name) == "" {
			continue
		}
		out = append(out, Candidate{
			ID:           show.ID,
			Name:         strings.TrimSpace(show.Name),
			OriginalName: strings.TrimSpace(show.OriginalName),
			Year:         show.Year(),
		})
	}
	return out, nil
}

// WebSearcher scrapes the TMDB website search page.
type WebSearcher struct {
	Client *tmdbweb.Client
}

func (s WebSearcher) Search(ctx context.Context, query string) ([]Candidate, error) {
	if s.Client == nil {
		return nil, errors.New("tmdb web client unavailable")
	}
	results, err := s.Client.Search(ctx, query)
	if err != nil {
		return nil, err
	}
	out := make([]Candidate, 0, len(results))
	for _, r := range results {
		out = append(out, Candidate{ID: r.ID, Name: r.Name, Year: r.Year})
	}
	return out, nil
}

type cacheEntry struct {
	candidates []Candidate
	expires    time.Time
}

// CachedSearcher memoizes results per normalized query and spaces upstream
// calls by a minimum interval.
type CachedSearcher struct {
	next       Searcher
	cache      map[string]cacheEntry
	cacheTTL   time.Duration
	rateLimit  time.Duration
	mu         sync.Mutex
	lastLookup time.Time
}

// NewCachedSearcher wraps next with a 10 minute cache and a 250ms rate limit.
func NewCachedSearcher(next Searcher) *CachedSearcher {
	return &CachedSearcher{
		next:       next,
		cache:      make(map[string]cacheEntry),
		cacheTTL:   10 * time.Minute,
		rateLimit:  250 * time.Millisecond,
		lastLookup: time.Unix(0, 0),
	}
}

func (s *CachedSearcher) Search(ctx context.Context, query string) ([]Candidate, error) {
	if s == nil || s.next == nil {
		return nil, errors.New("searcher unavailable")
	}
	key := strings.ToLower(strings.TrimSpace(query))
	now := time.Now()

	s.mu.Lock()
	if entry, ok := s.cache[key]; ok && now.Before(entry.expires) {
		out := entry.candidates
		s.mu.Unlock()
		return out, nil
	}
	wait := s.rateLimit - now.Sub(s.lastLookup)
	if wait > 0 {
		s.mu.Unlock()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
		s.mu.Lock()
	}
	s.lastLookup = time.Now()
	s.mu.Unlock()

	out, err := s.next.Search(ctx, query)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.cache[key] = cacheEntry{candidates: out, expires: time.Now().Add(s.cacheTTL)}
	s.mu.Unlock()
	return out, nil
}

// NewSearcherFromConfig picks the TMDB API when a key is configured, else the
// website fallback when enabled. It returns nil when search is disabled or no
// backend is available.
func NewSearcherFromConfig(cfg *config.Config) (Searcher, error) {
	if cfg == nil || !cfg.Metadata.SearchEnabled {
		return nil, nil
	}
	if key := strings.TrimSpace(cfg.TMDB.APIKey); key != "" {
		client, err := tmdb.New(key, cfg.TMDB.BaseURL, cfg.TMDB.Language)
		if err != nil {
			return nil, fmt.Errorf("tmdb client: %w", err)
		}
		return NewCachedSearcher(APISearcher{Client: client}), nil
	}
	if cfg.TMDB.WebFallback {
		client, err := tmdbweb.New(cfg.TMDB.WebBaseURL, cfg.TMDB.Language)
		if err != nil {
			return nil, fmt.Errorf("tmdb web client: %w", err)
		}
		return NewCachedSearcher(WebSearcher{Client: client}), nil
	}
	return nil, nil
}
