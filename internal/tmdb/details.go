package tmdb

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"chanplan/internal/models"
)

// maxCastNames keeps only top billing. Full TMDB cast lists run to
// hundreds of entries that no criterion will ever match against.
const maxCastNames = 10

type namedItem struct {
	Name string `json:"name"`
}

type castMember struct {
	Name  string `json:"name"`
	Order int    `json:"order"`
}

type keywordsBlock struct {
	// Movies list keywords under "keywords", TV under "results".
	Keywords []namedItem `json:"keywords"`
	Results  []namedItem `json:"results"`
}

type releaseDate struct {
	Certification string `json:"certification"`
}

type releaseDatesResult struct {
	CountryCode  string        `json:"iso_3166_1"`
	ReleaseDates []releaseDate `json:"release_dates"`
}

type contentRatingResult struct {
	CountryCode string `json:"iso_3166_1"`
	Rating      string `json:"rating"`
}

// titleResponse covers both movie and TV detail payloads; each decode
// populates only the fields its endpoint returns.
type titleResponse struct {
	ID                  int64         `json:"id"`
	Genres              []namedItem   `json:"genres"`
	ProductionCompanies []namedItem   `json:"production_companies"`
	BelongsToCollection *namedItem    `json:"belongs_to_collection"`
	VoteAverage         float64       `json:"vote_average"`
	VoteCount           int           `json:"vote_count"`
	Budget              int64         `json:"budget"`
	Revenue             int64         `json:"revenue"`
	Keywords            keywordsBlock `json:"keywords"`
	Credits             struct {
		Cast []castMember `json:"cast"`
	} `json:"credits"`
	ReleaseDates struct {
		Results []releaseDatesResult `json:"results"`
	} `json:"release_dates"`
	ContentRatings struct {
		Results []contentRatingResult `json:"results"`
	} `json:"content_ratings"`
}

// MovieDetails returns enrichment metadata for one movie, serving repeat
// lookups from the hot cache.
func (c *Client) MovieDetails(ctx context.Context, id int64) (*models.ContentMeta, error) {
	return c.details(ctx, "movie", id, false)
}

// TVDetails returns enrichment metadata for one show. Episodes resolve
// through their show's id, so every episode of a series shares this entry.
func (c *Client) TVDetails(ctx context.Context, id int64) (*models.ContentMeta, error) {
	return c.details(ctx, "tv", id, false)
}

// Details dispatches on content type: movies hit the movie endpoint,
// everything else the TV endpoint.
func (c *Client) Details(ctx context.Context, contentType models.ContentType, id int64) (*models.ContentMeta, error) {
	return c.details(ctx, endpointFor(contentType), id, false)
}

// Refresh fetches from the network even when the hot cache holds an entry,
// replacing it on success. Used by the cache modes that re-enrich.
func (c *Client) Refresh(ctx context.Context, contentType models.ContentType, id int64) (*models.ContentMeta, error) {
	return c.details(ctx, endpointFor(contentType), id, true)
}

func endpointFor(contentType models.ContentType) string {
	if contentType == models.ContentTypeMovie {
		return "movie"
	}
	return "tv"
}

func (c *Client) details(ctx context.Context, endpoint string, id int64, bypassHot bool) (*models.ContentMeta, error) {
	key := fmt.Sprintf("tmdb:%s:%d", endpoint, id)
	if !bypassHot && c.hot != nil {
		if meta, ok := c.hot.Get(key); ok {
			return meta, nil
		}
	}

	params := url.Values{}
	if endpoint == "movie" {
		params.Set("append_to_response", "keywords,credits,release_dates")
	} else {
		// TV certifications live under content_ratings, not release_dates.
		params.Set("append_to_response", "keywords,credits,content_ratings")
	}
	if c.language != "" {
		params.Set("language", c.language)
	}

	body, err := c.do(ctx, fmt.Sprintf("/%s/%d", endpoint, id), params)
	if err != nil {
		return nil, err
	}

	var resp titleResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, models.DependencyError("tmdb: decoding %s %d: %w", endpoint, id, err)
	}

	meta := resp.toMeta()
	if c.hot != nil {
		c.hot.Set(key, meta, hotTTL)
	}
	return meta, nil
}

func (r *titleResponse) toMeta() *models.ContentMeta {
	meta := &models.ContentMeta{
		Genres:    names(r.Genres),
		Keywords:  names(r.keywords()),
		Studios:   names(r.ProductionCompanies),
		Actors:    castNames(r.Credits.Cast),
		AgeRating: r.certification(),
		Rating:    r.VoteAverage,
		VoteCount: r.VoteCount,
		Budget:    r.Budget,
		Revenue:   r.Revenue,
		TMDBID:    r.ID,
	}
	if r.BelongsToCollection != nil && r.BelongsToCollection.Name != "" {
		meta.Collections = []string{r.BelongsToCollection.Name}
	}
	return meta
}

func (r *titleResponse) keywords() []namedItem {
	if len(r.Keywords.Keywords) > 0 {
		return r.Keywords.Keywords
	}
	return r.Keywords.Results
}

// certification picks the US rating when present, otherwise the first
// non-empty one.
func (r *titleResponse) certification() string {
	var fallback string
	for _, res := range r.ReleaseDates.Results {
		for _, rd := range res.ReleaseDates {
			if rd.Certification == "" {
				continue
			}
			if res.CountryCode == "US" {
				return rd.Certification
			}
			if fallback == "" {
				fallback = rd.Certification
			}
		}
	}
	for _, res := range r.ContentRatings.Results {
		if res.Rating == "" {
			continue
		}
		if res.CountryCode == "US" {
			return res.Rating
		}
		if fallback == "" {
			fallback = res.Rating
		}
	}
	return fallback
}

func names(items []namedItem) []string {
	if len(items) == 0 {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if item.Name != "" {
			out = append(out, item.Name)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func castNames(cast []castMember) []string {
	if len(cast) == 0 {
		return nil
	}
	limit := len(cast)
	if limit > maxCastNames {
		limit = maxCastNames
	}
	out := make([]string, 0, limit)
	for _, member := range cast[:limit] {
		if member.Name != "" {
			out = append(out, member.Name)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
