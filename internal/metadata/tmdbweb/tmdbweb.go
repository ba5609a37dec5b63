// Package tmdbweb scrapes the public TMDB TV search page. It is the keyless
// fallback used when no API key is configured.
package tmdbweb

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// maxPageBytes bounds how much of a search page is read.
const maxPageBytes = 4 << 20

// Candidate is one TV result scraped from the search page.
type Candidate struct {
	ID   int64
	Name string
	Year int
	URL  string
}

// Client fetches and parses TMDB web search pages.
type Client struct {
	baseURL    string
	language   string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// New creates a scraper rooted at baseURL.
func New(baseURL, language string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("tmdb web base url required")
	}
	c := &Client{
		baseURL:    baseURL,
		language:   strings.TrimSpace(language),
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Search fetches {base}/search/tv?query=... and returns the TV candidates in
// page order.
func (c *Client) Search(ctx context.Context, query string) ([]Candidate, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.New("query must not be empty")
	}
	params := url.Values{}
	params.Set("query", query)
	if c.language != "" {
		params.Set("language", c.language)
	}
	searchURL := c.baseURL + "/search/tv?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "text/html")
	if c.language != "" {
		req.Header.Set("Accept-Language", c.language)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", searchURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: http %d", searchURL, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return nil, fmt.Errorf("read search page: %w", err)
	}
	return Parse(body, c.baseURL)
}

// Parse extracts TV candidates from a search page. Duplicate IDs are
// collapsed to their first occurrence.
func Parse(page []byte, baseURL string) ([]Candidate, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(page)))
	if err != nil {
		return nil, fmt.Errorf("parse search page: %w", err)
	}

	var out []Candidate
	seen := make(map[int64]struct{})
	doc.Find("a.result").Each(func(_ int, link *goquery.Selection) {
		href, _ := link.Attr("href")
		id := showID(href)
		if id == 0 {
			return
		}
		if kind, ok := link.Attr("data-media-type"); ok && kind != "tv" {
			return
		}
		name := strings.TrimSpace(link.Find("h2").First().Text())
		if name == "" {
			name = strings.TrimSpace(link.Text())
		}
		if name == "" {
			return
		}
		if _, dup := seen[id]; dup {
			return
		}
		seen[id] = struct{}{}

		card := link.Closest(".card")
		year := releaseYear(strings.TrimSpace(card.Find(".release_date").First().Text()))
		out = append(out, Candidate{
			ID:   id,
			Name: name,
			Year: year,
			URL:  resolveURL(baseURL, href),
		})
	})
	return out, nil
}

// showID returns the numeric id from an href like /tv/12345-some-slug.
func showID(href string) int64 {
	path := href
	if u, err := url.Parse(href); err == nil {
		path = u.Path
	}
	rest, ok := strings.CutPrefix(path, "/tv/")
	if !ok {
		return 0
	}
	end := 0
	for end < len(rest) && rest[end] >= '0' && rest[end] <= '9' {
		end++
	}
	id, err := strconv.ParseInt(rest[:end], 10, 64)
	if err != nil {
		return 0
	}
	return id
}

func releaseYear(text string) int {
	for i := 0; i+4 <= len(text); i++ {
		if y, err := strconv.Atoi(text[i : i+4]); err == nil && y >= 1900 && y <= 2099 {
			return y
		}
	}
	return 0
}

func resolveURL(base, href string) string {
	b, err := url.Parse(base + "/")
	if err != nil {
		return href
	}
	r, err := url.Parse(href)
	if err != nil {
		return href
	}
	return b.ResolveReference(r).String()
}
