package metadata

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"dramamerge/internal/metadata/tmdb"
)

// SeasonInfo summarizes one season of a show.
type SeasonInfo struct {
	Number       int    `json:"number"`
	Name         string `json:"name,omitempty"`
	EpisodeCount int    `json:"episode_count"`
	AirDate      string `json:"air_date,omitempty"`
}

// ShowDetails is the season listing shown by `resolve --details`.
type ShowDetails struct {
	ID       int64        `json:"id"`
	Name     string       `json:"name"`
	Seasons  []SeasonInfo `json:"seasons"`
	Episodes []string     `json:"episodes,omitempty"`
	Cast     []string     `json:"cast,omitempty"`
}

// maxCast bounds the cast names kept in ShowDetails.
const maxCast = 8

// LookupDetails fetches the season list for showID. When season > 0 the
// episode titles and cast of that season are included as well.
func LookupDetails(ctx context.Context, client tmdb.Searcher, showID int64, season int) (*ShowDetails, error) {
	if client == nil {
		return nil, errors.New("tmdb client unavailable")
	}
	show, err := client.GetTVDetails(ctx, showID)
	if err != nil {
		return nil, fmt.Errorf("tv details: %w", err)
	}
	out := &ShowDetails{ID: show.ID, Name: show.Name}
	for _, s := range show.Seasons {
		out.Seasons = append(out.Seasons, SeasonInfo{
			Number:       s.SeasonNumber,
			Name:         s.Name,
			EpisodeCount: s.EpisodeCount,
			AirDate:      s.AirDate,
		})
	}
	sort.SliceStable(out.Seasons, func(i, j int) bool { return out.Seasons[i].Number < out.Seasons[j].Number })

	if season <= 0 {
		return out, nil
	}
	sd, err := client.GetSeasonDetails(ctx, showID, season)
	if err != nil {
		return nil, fmt.Errorf("season %d details: %w", season, err)
	}
	for _, ep := range sd.Episodes {
		out.Episodes = append(out.Episodes, fmt.Sprintf("E%02d %s", ep.EpisodeNumber, ep.Name))
	}
	credits, err := client.GetSeasonCredits(ctx, showID, season)
	if err != nil {
		return nil, fmt.Errorf("season %d credits: %w", season, err)
	}
	cast := credits.Cast
	sort.SliceStable(cast, func(i, j int) bool { return cast[i].Order < cast[j].Order })
	for i, member := range cast {
		if i == maxCast {
			break
		}
		out.Cast = append(out.Cast, member.Name)
	}
	return out, nil
}
