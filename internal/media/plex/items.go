package plex

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/url"
	"slices"
	"strconv"

	"chanplan/internal/mediautil"
	"chanplan/internal/models"
)

// Plex numeric type filters for library listings.
const (
	plexTypeMovie   = "1"
	plexTypeEpisode = "4"
)

const (
	itemBatchSize = 200
	// maxItemsBody bounds a single listing page. Library pages carry full
	// attribute sets for every item, so this is far above the 2 MiB default.
	maxItemsBody = 50 << 20
)

type itemsContainer struct {
	XMLName   xml.Name  `xml:"MediaContainer"`
	TotalSize int       `xml:"totalSize,attr"`
	Videos    []itemXML `xml:"Video"`
}

type itemXML struct {
	RatingKey        string    `xml:"ratingKey,attr"`
	Type             string    `xml:"type,attr"`
	Title            string    `xml:"title,attr"`
	GrandparentTitle string    `xml:"grandparentTitle,attr"`
	ParentIndex      string    `xml:"parentIndex,attr"`
	Index            string    `xml:"index,attr"`
	Year             string    `xml:"year,attr"`
	Duration         string    `xml:"duration,attr"`
	ContentRating    string    `xml:"contentRating,attr"`
	Guids            []guidXML `xml:"Guid"`
	Genres           []tagXML  `xml:"Genre"`
}

// GetLibraryItems returns the playable items of one library section: movies
// and episodes. Shows and seasons are containers, not schedulable content,
// so they are never listed.
func (s *Server) GetLibraryItems(ctx context.Context, libraryID string) ([]models.Content, error) {
	movies, err := s.fetchItems(ctx, libraryID, plexTypeMovie)
	if err != nil {
		return nil, fmt.Errorf("fetch movies: %w", err)
	}

	episodes, err := s.fetchItems(ctx, libraryID, plexTypeEpisode)
	if err != nil {
		return nil, fmt.Errorf("fetch episodes: %w", err)
	}

	items := slices.Concat(movies, episodes)
	if items == nil {
		return []models.Content{}, nil
	}
	return items, nil
}

func (s *Server) fetchItems(ctx context.Context, libraryID, typeFilter string) ([]models.Content, error) {
	var all []models.Content
	var total int
	offset := 0

	for {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		items, totalCount, err := s.fetchItemsBatch(ctx, libraryID, typeFilter, offset, itemBatchSize)
		if err != nil {
			return nil, err
		}
		if total == 0 {
			total = totalCount
		}

		if len(items) == 0 {
			break
		}

		all = append(all, items...)
		offset += len(items)
		mediautil.SendProgress(ctx, mediautil.SyncProgress{
			Phase:   mediautil.PhaseItems,
			Current: offset,
			Total:   total,
			Library: libraryID,
		})

		if len(items) < itemBatchSize {
			break
		}
	}

	return all, nil
}

func (s *Server) fetchItemsBatch(ctx context.Context, libraryID, typeFilter string, offset, batchSize int) ([]models.Content, int, error) {
	u, err := url.Parse(s.url + "/library/sections/" + url.PathEscape(libraryID) + "/all")
	if err != nil {
		return nil, 0, fmt.Errorf("parse URL: %w", err)
	}
	q := u.Query()
	q.Set("type", typeFilter)
	q.Set("includeGuids", "1")
	q.Set("X-Plex-Container-Start", strconv.Itoa(offset))
	q.Set("X-Plex-Container-Size", strconv.Itoa(batchSize))
	u.RawQuery = q.Encode()

	body, err := s.fetch(ctx, u.String(), maxItemsBody)
	if err != nil {
		return nil, 0, err
	}

	var container itemsContainer
	if err := xml.Unmarshal(body, &container); err != nil {
		return nil, 0, models.DependencyError("plex %s: parsing items: %w", s.serverName, err)
	}

	items := make([]models.Content, 0, len(container.Videos))
	for _, item := range container.Videos {
		items = append(items, s.toContent(item, libraryID))
	}
	return items, container.TotalSize, nil
}

func (s *Server) toContent(item itemXML, libraryID string) models.Content {
	return models.Content{
		ID:             s.contentID(item.RatingKey),
		ExternalKey:    item.RatingKey,
		LibraryID:      libraryID,
		Title:          displayTitle(item),
		Type:           contentType(item.Type),
		DurationMillis: atoi64(item.Duration),
		Year:           atoi(item.Year),
		TMDBID:         tmdbIDFromGuids(item.Guids),
		Genres:         tagList(item.Genres),
		ContentRating:  item.ContentRating,
	}
}

// displayTitle prefixes episode titles with their series and SxxEyy position
// so schedule listings read naturally.
func displayTitle(item itemXML) string {
	if item.GrandparentTitle == "" {
		return item.Title
	}
	season, episode := atoi(item.ParentIndex), atoi(item.Index)
	if season > 0 || episode > 0 {
		return fmt.Sprintf("%s - S%02dE%02d - %s", item.GrandparentTitle, season, episode, item.Title)
	}
	return item.GrandparentTitle + " - " + item.Title
}
