package plex

import (
	"context"
	"encoding/xml"
	"fmt"

	"chanplan/internal/httputil"
	"chanplan/internal/models"
)

type detailsContainer struct {
	XMLName xml.Name    `xml:"MediaContainer"`
	Videos  []detailXML `xml:"Video"`
}

type detailXML struct {
	RatingKey        string    `xml:"ratingKey,attr"`
	Type             string    `xml:"type,attr"`
	Title            string    `xml:"title,attr"`
	GrandparentTitle string    `xml:"grandparentTitle,attr"`
	ParentIndex      string    `xml:"parentIndex,attr"`
	Index            string    `xml:"index,attr"`
	Year             string    `xml:"year,attr"`
	Duration         string    `xml:"duration,attr"`
	ContentRating    string    `xml:"contentRating,attr"`
	Rating           string    `xml:"rating,attr"`
	Studio           string    `xml:"studio,attr"`
	LibrarySectionID string    `xml:"librarySectionID,attr"`
	Guids            []guidXML `xml:"Guid"`
	Genres           []tagXML  `xml:"Genre"`
	Collections      []tagXML  `xml:"Collection"`
	Roles            []tagXML  `xml:"Role"`
}

// GetItemDetails fetches the full metadata record for one item. The detail
// endpoint returns fields the listing omits: collections, cast, ratings.
func (s *Server) GetItemDetails(ctx context.Context, itemID string) (*models.PoolItem, error) {
	body, err := s.fetch(ctx, s.url+"/library/metadata/"+itemID, httputil.MaxResponseBody)
	if err != nil {
		return nil, err
	}

	var container detailsContainer
	if err := xml.Unmarshal(body, &container); err != nil {
		return nil, models.DependencyError("plex %s: parsing details: %w", s.serverName, err)
	}
	if len(container.Videos) == 0 {
		return nil, fmt.Errorf("item %s: %w", itemID, models.ErrNotFound)
	}

	item := container.Videos[0]
	content := models.Content{
		ID:          s.contentID(item.RatingKey),
		ExternalKey: item.RatingKey,
		LibraryID:   item.LibrarySectionID,
		Title: displayTitle(itemXML{
			Title:            item.Title,
			GrandparentTitle: item.GrandparentTitle,
			ParentIndex:      item.ParentIndex,
			Index:            item.Index,
		}),
		Type:           contentType(item.Type),
		DurationMillis: atoi64(item.Duration),
		Year:           atoi(item.Year),
		TMDBID:         tmdbIDFromGuids(item.Guids),
		Genres:         tagList(item.Genres),
		ContentRating:  item.ContentRating,
	}

	meta := &models.ContentMeta{
		Genres:      tagList(item.Genres),
		Collections: tagList(item.Collections),
		Actors:      tagList(item.Roles),
		AgeRating:   item.ContentRating,
		Rating:      atof(item.Rating),
		TMDBID:      tmdbIDFromGuids(item.Guids),
	}
	if item.Studio != "" {
		meta.Studios = []string{item.Studio}
	}

	return &models.PoolItem{Content: content, Meta: meta}, nil
}
