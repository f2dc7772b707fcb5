// Package version polls the release feed and reports whether a newer
// build is available.
package version

import (
	"context"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"chanplan/internal/httputil"
	"chanplan/internal/log"
)

const releaseFeed = "https://api.github.com/repos/chanplan/chanplan/releases/latest"

const pollEvery = 6 * time.Hour

// Info is the version state served by the API.
type Info struct {
	Current         string `json:"version"`
	Latest          string `json:"latest_version,omitempty"`
	UpdateAvailable bool   `json:"update_available"`
	ReleaseURL      string `json:"release_url,omitempty"`
}

type releasePayload struct {
	TagName string `json:"tag_name"`
	HTMLURL string `json:"html_url"`
}

// Checker polls the release feed and keeps the last observation.
type Checker struct {
	current string
	feedURL string
	client  *http.Client
	log     zerolog.Logger

	mu   sync.RWMutex
	info Info
}

// NewChecker builds a checker for the running version. Set
// CHANPLAN_RELEASE_URL to point the poll somewhere else; tests do.
func NewChecker(currentVersion string) *Checker {
	feed := releaseFeed
	if u := os.Getenv("CHANPLAN_RELEASE_URL"); u != "" {
		feed = u
	}
	current := strings.TrimPrefix(currentVersion, "v")
	return &Checker{
		current: current,
		feedURL: feed,
		client:  httputil.NewClientWithTimeout(httputil.ExtendedTimeout),
		log:     log.WithComponent("version"),
		info:    Info{Current: current},
	}
}

// Start polls immediately, then every six hours. Blocks until ctx is
// cancelled.
func (c *Checker) Start(ctx context.Context) {
	c.pollOnce(ctx)
	ticker := time.NewTicker(pollEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.pollOnce(ctx)
		}
	}
}

// Info returns the last observed version state.
func (c *Checker) Info() Info {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.info
}

func (c *Checker) pollOnce(ctx context.Context) {
	// Development builds have nothing meaningful to compare against.
	if c.current == "dev" {
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.feedURL, nil)
	if err != nil {
		c.log.Warn().Err(err).Msg("release poll")
		return
	}
	req.Header.Set("User-Agent", "ChanPlan/"+c.current)

	resp, err := c.client.Do(req)
	if err != nil {
		c.log.Warn().Err(err).Msg("release poll")
		return
	}
	defer httputil.DrainBody(resp)

	if resp.StatusCode != http.StatusOK {
		c.log.Warn().Int("status", resp.StatusCode).Msg("release poll: unexpected status")
		return
	}

	var release releasePayload
	if err := httputil.DecodeJSONLimited(resp, &release); err != nil {
		c.log.Warn().Err(err).Msg("release poll: decoding payload")
		return
	}
	c.observe(strings.TrimPrefix(release.TagName, "v"), release.HTMLURL)
}

// observe records one release observation and recomputes the served state.
func (c *Checker) observe(latest, url string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.info = Info{
		Current:         c.current,
		Latest:          latest,
		ReleaseURL:      url,
		UpdateAvailable: c.current != "dev" && newerThan(latest, c.current),
	}
}

// newerThan reports whether version a is strictly newer than b. Numeric
// parts compare numerically; pre-release and build suffixes are ignored.
func newerThan(a, b string) bool {
	av, bv := versionParts(a), versionParts(b)
	for i := range av {
		if av[i] != bv[i] {
			return av[i] > bv[i]
		}
	}
	return false
}

// versionParts extracts the major.minor.patch triple from a dotted
// version string. Missing or non-numeric parts read as zero.
func versionParts(v string) [3]int {
	if i := strings.IndexAny(v, "-+"); i != -1 {
		v = v[:i]
	}
	var parts [3]int
	for i, p := range strings.Split(v, ".") {
		if i >= len(parts) {
			break
		}
		parts[i], _ = strconv.Atoi(p)
	}
	return parts
}
