package media

import (
	"chanplan/internal/httputil"
	"chanplan/internal/media/plex"
	"chanplan/internal/models"
)

// NewContentServer builds a breaker-guarded client for a stored server
// record. The record's API key must already be decrypted.
func NewContentServer(srv *models.MediaServer) (ContentServer, error) {
	if err := httputil.ValidateIntegrationURL(srv.URL); err != nil {
		return nil, models.ConfigError("server %s: %v", srv.Name, err)
	}
	switch srv.Type {
	case models.ServerTypePlex:
		return WithBreaker(plex.New(srv)), nil
	default:
		return nil, models.ConfigError("unsupported server type %q", srv.Type)
	}
}
