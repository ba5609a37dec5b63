package tmdb_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"dramamerge/internal/metadata/tmdb"
)

func TestNewRequiresAPIKey(t *testing.T) {
	if _, err := tmdb.New("", "https://example.com", "zh-CN"); err == nil {
		t.Fatal("expected error when api key missing")
	}
	if _, err := tmdb.New("key", " ", "zh-CN"); err == nil {
		t.Fatal("expected error when base url missing")
	}
}

func TestSearchTVSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search/tv" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("api_key") != "key" || q.Get("query") != "狂飙" || q.Get("language") != "zh-CN" {
			t.Errorf("unexpected query %q", r.URL.RawQuery)
		}
		if q.Get("first_air_date_year") != "2023" {
			t.Errorf("expected year filter, got %q", r.URL.RawQuery)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"page":1,"results":[{"id":7,"name":"狂飙","original_name":"狂飙","first_air_date":"2023-01-14"}],"total_results":1}`))
	}))
	t.Cleanup(server.Close)

	client, err := tmdb.New("key", server.URL+"/", "zh-CN")
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	resp, err := client.SearchTV(context.Background(), " 狂飙 ", tmdb.SearchOptions{Year: 2023})
	if err != nil {
		t.Fatalf("SearchTV returned error: %v", err)
	}
	if len(resp.Results) != 1 || resp.Results[0].Name != "狂飙" || resp.Results[0].Year() != 2023 {
		t.Fatalf("unexpected response: %#v", resp)
	}
}

func TestSearchTVHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"status_code":7}`))
	}))
	t.Cleanup(server.Close)

	client, err := tmdb.New("key", server.URL, "")
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	_, err = client.SearchTV(context.Background(), "fail", tmdb.SearchOptions{})
	var statusErr *tmdb.StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected StatusError 401, got %v", err)
	}
}

func TestSearchTVEmptyQuery(t *testing.T) {
	client, err := tmdb.New("key", "https://example.com", "")
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if _, err := client.SearchTV(context.Background(), "  ", tmdb.SearchOptions{}); err == nil {
		t.Fatal("expected error for empty query")
	}
}

func TestDetailsSeasonAndCredits(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/tv/7", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":7,"name":"狂飙","number_of_seasons":1,"number_of_episodes":39,"seasons":[{"season_number":1,"episode_count":39,"air_date":"2023-01-14"}]}`))
	})
	mux.HandleFunc("/tv/7/season/1", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":70,"season_number":1,"episodes":[{"episode_number":1,"name":"第1集"},{"episode_number":2,"name":"第2集"}]}`))
	})
	mux.HandleFunc("/tv/7/season/1/credits", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"cast":[{"id":1,"name":"张译","character":"安欣","order":0}]}`))
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	client, err := tmdb.New("key", server.URL, "zh-CN")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := context.Background()

	show, err := client.GetTVDetails(ctx, 7)
	if err != nil || show.NumberOfEpisodes != 39 || len(show.Seasons) != 1 {
		t.Fatalf("GetTVDetails = %#v, %v", show, err)
	}
	season, err := client.GetSeasonDetails(ctx, 7, 1)
	if err != nil || len(season.Episodes) != 2 {
		t.Fatalf("GetSeasonDetails = %#v, %v", season, err)
	}
	credits, err := client.GetSeasonCredits(ctx, 7, 1)
	if err != nil || len(credits.Cast) != 1 || credits.Cast[0].Character != "安欣" {
		t.Fatalf("GetSeasonCredits = %#v, %v", credits, err)
	}
	if _, err := client.GetTVDetails(ctx, 0); err == nil {
		t.Fatal("expected error for invalid id")
	}
}
