// Package plex implements the catalog source contract against the Plex
// Media Server HTTP API. All endpoints speak XML MediaContainer documents.
package plex

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"chanplan/internal/httputil"
	"chanplan/internal/metrics"
	"chanplan/internal/models"
)

type Server struct {
	serverID   int64
	serverName string
	url        string
	token      string
	client     *http.Client
}

func New(srv *models.MediaServer) *Server {
	return &Server{
		serverID:   srv.ID,
		serverName: srv.Name,
		url:        strings.TrimRight(srv.URL, "/"),
		token:      srv.APIKey,
		client:     httputil.NewClient(),
	}
}

func (s *Server) Name() string            { return s.serverName }
func (s *Server) Type() models.ServerType { return models.ServerTypePlex }
func (s *Server) ServerID() int64         { return s.serverID }

func (s *Server) TestConnection(ctx context.Context) error {
	_, err := s.fetch(ctx, s.url+"/identity", httputil.MaxResponseBody)
	return err
}

// fetch performs an authenticated GET and returns the body, capped at
// maxBody bytes. Transport and status failures come back as dependency
// errors so callers can map them to the right boundary behavior.
func (s *Server) fetch(ctx context.Context, url string, maxBody int64) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-Plex-Token", s.token)
	req.Header.Set("Accept", "application/xml")

	reqStart := time.Now()
	resp, err := s.client.Do(req)
	metrics.ObserveExternalRequest("plex", time.Since(reqStart))
	if err != nil {
		return nil, models.DependencyError("plex %s: %w", s.serverName, err)
	}
	defer httputil.DrainBody(resp)

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("plex %s: %w", s.serverName, models.ErrNotFound)
	}
	if resp.StatusCode == http.StatusUnauthorized {
		return nil, models.ConfigError("plex %s: token rejected", s.serverName)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, models.DependencyError("plex %s: status %d", s.serverName, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, models.DependencyError("plex %s: reading response: %w", s.serverName, err)
	}
	return body, nil
}

// contentID builds the stable catalog id for an item on this server. The
// rating key alone is only unique per server.
func (s *Server) contentID(ratingKey string) string {
	return fmt.Sprintf("plex-%d-%s", s.serverID, ratingKey)
}

// guidXML is one external identifier reference, e.g. "tmdb://10386".
type guidXML struct {
	ID string `xml:"id,attr"`
}

// tagXML covers the tag-attribute elements Plex uses for genres,
// collections, and similar lists.
type tagXML struct {
	Tag string `xml:"tag,attr"`
}

func tmdbIDFromGuids(guids []guidXML) int64 {
	for _, g := range guids {
		if strings.HasPrefix(g.ID, "tmdb://") {
			return atoi64(strings.TrimPrefix(g.ID, "tmdb://"))
		}
	}
	return 0
}

func tagList(tags []tagXML) []string {
	if len(tags) == 0 {
		return nil
	}
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if t.Tag != "" {
			out = append(out, t.Tag)
		}
	}
	return out
}

func contentType(plexType string) models.ContentType {
	switch plexType {
	case "movie":
		return models.ContentTypeMovie
	case "episode":
		return models.ContentTypeEpisode
	case "clip":
		return models.ContentTypeClip
	case "trailer":
		return models.ContentTypeTrailer
	case "short":
		return models.ContentTypeShort
	default:
		return models.ContentTypeOther
	}
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

func atoi64(s string) int64 {
	n, _ := strconv.ParseInt(s, 10, 64)
	return n
}

func atof(s string) float64 {
	f, _ := strconv.ParseFloat(s, 64)
	return f
}
