package plex

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/url"

	"chanplan/internal/httputil"
	"chanplan/internal/models"
)

type sectionsContainer struct {
	XMLName     xml.Name  `xml:"MediaContainer"`
	Directories []section `xml:"Directory"`
}

type section struct {
	Key   string `xml:"key,attr"`
	Title string `xml:"title,attr"`
	Type  string `xml:"type,attr"`
}

type countContainer struct {
	XMLName   xml.Name `xml:"MediaContainer"`
	Size      int      `xml:"size,attr"`
	TotalSize int      `xml:"totalSize,attr"`
}

func (s *Server) GetLibraries(ctx context.Context) ([]models.Library, error) {
	body, err := s.fetch(ctx, s.url+"/library/sections", httputil.MaxResponseBody)
	if err != nil {
		return nil, err
	}

	var sections sectionsContainer
	if err := xml.Unmarshal(body, &sections); err != nil {
		return nil, models.DependencyError("plex %s: parsing sections: %w", s.serverName, err)
	}

	libraries := make([]models.Library, 0, len(sections.Directories))
	for _, dir := range sections.Directories {
		lib := models.Library{
			ID:       dir.Key,
			ServerID: s.serverID,
			Name:     dir.Title,
			Type:     libraryType(dir.Type),
		}

		count, err := s.countItems(ctx, dir.Key, playableType(dir.Type))
		if err != nil {
			return nil, fmt.Errorf("counting library %s: %w", dir.Title, err)
		}
		lib.ItemCount = count

		libraries = append(libraries, lib)
	}

	return libraries, nil
}

// countItems asks for a zero-size page, which carries the total without any
// item payload.
func (s *Server) countItems(ctx context.Context, sectionKey, typeFilter string) (int, error) {
	u, err := url.Parse(s.url + "/library/sections/" + url.PathEscape(sectionKey) + "/all")
	if err != nil {
		return 0, err
	}
	q := u.Query()
	q.Set("X-Plex-Container-Start", "0")
	q.Set("X-Plex-Container-Size", "0")
	if typeFilter != "" {
		q.Set("type", typeFilter)
	}
	u.RawQuery = q.Encode()

	body, err := s.fetch(ctx, u.String(), httputil.MaxResponseBody)
	if err != nil {
		return 0, err
	}

	var cc countContainer
	if err := xml.Unmarshal(body, &cc); err != nil {
		return 0, models.DependencyError("plex %s: parsing count: %w", s.serverName, err)
	}

	if cc.TotalSize > 0 {
		return cc.TotalSize, nil
	}
	return cc.Size, nil
}

func libraryType(t string) models.LibraryType {
	switch t {
	case "movie":
		return models.LibraryTypeMovie
	case "show":
		return models.LibraryTypeShow
	default:
		return models.LibraryTypeOther
	}
}

// playableType maps a section type to the item type filter that yields
// schedulable entries: episodes for show sections, movies otherwise.
func playableType(sectionType string) string {
	if sectionType == "show" {
		return plexTypeEpisode
	}
	return plexTypeMovie
}
