// Package catalog assembles the content pool a generation run draws from
// and keeps the stored catalog in sync with the media servers.
package catalog

import (
	"context"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"chanplan/internal/log"
	"chanplan/internal/models"
	"chanplan/internal/store"
)

// enrichConcurrency bounds parallel TMDB lookups. The client is rate
// limited anyway; this just keeps goroutine counts flat on big catalogs.
const enrichConcurrency = 4

// Enricher resolves rich metadata for one title by TMDB id. Details may
// serve from caches; Refresh always fetches.
type Enricher interface {
	Details(ctx context.Context, contentType models.ContentType, id int64) (*models.ContentMeta, error)
	Refresh(ctx context.Context, contentType models.ContentType, id int64) (*models.ContentMeta, error)
}

// Builder turns a profile's libraries into the pool of scorable items.
type Builder struct {
	store    *store.Store
	enricher Enricher
	log      zerolog.Logger
}

// NewBuilder creates a pool builder. enricher may be nil; cache modes that
// want TMDB then degrade to server-side fields, except tmdb_only which
// errors.
func NewBuilder(st *store.Store, enricher Enricher) *Builder {
	return &Builder{store: st, enricher: enricher, log: log.WithComponent("catalog")}
}

// BuildPool lists the profile's libraries and attaches metadata per the
// requested cache mode. An empty library filter draws from the whole
// catalog.
func (b *Builder) BuildPool(ctx context.Context, profile *models.Profile, mode models.CacheMode) ([]models.PoolItem, error) {
	if !mode.Valid() {
		return nil, models.ConfigError("invalid cacheMode %q", mode)
	}

	switch mode {
	case models.CacheModeNone:
		return b.barePool(profile.Libraries)
	case models.CacheModePlexOnly:
		return b.listingPool(profile.Libraries)
	case models.CacheModeCacheOnly:
		return b.store.ListContentWithMeta(profile.Libraries)
	case models.CacheModeTMDBOnly:
		return b.freshPool(ctx, profile.Libraries)
	default:
		return b.mergedPool(ctx, profile.Libraries, mode == models.CacheModeEnrichCache)
	}
}

func (b *Builder) barePool(libraryIDs []string) ([]models.PoolItem, error) {
	contents, err := b.store.ListContent(libraryIDs)
	if err != nil {
		return nil, err
	}
	items := make([]models.PoolItem, len(contents))
	for i := range contents {
		items[i] = models.PoolItem{Content: contents[i]}
	}
	return items, nil
}

func (b *Builder) listingPool(libraryIDs []string) ([]models.PoolItem, error) {
	contents, err := b.store.ListContent(libraryIDs)
	if err != nil {
		return nil, err
	}
	items := make([]models.PoolItem, len(contents))
	for i := range contents {
		items[i] = models.PoolItem{Content: contents[i], Meta: listingMeta(&contents[i])}
	}
	return items, nil
}

// freshPool serves tmdb_only: every resolvable item is fetched from the
// network, ignoring both the hot cache and stored metadata, and nothing is
// written back.
func (b *Builder) freshPool(ctx context.Context, libraryIDs []string) ([]models.PoolItem, error) {
	if b.enricher == nil {
		return nil, models.ConfigError("cacheMode tmdb_only requires a configured TMDB key")
	}

	contents, err := b.store.ListContent(libraryIDs)
	if err != nil {
		return nil, err
	}

	items := make([]models.PoolItem, len(contents))
	var wants []int
	for i := range contents {
		items[i] = models.PoolItem{Content: contents[i]}
		if contents[i].TMDBID != 0 {
			wants = append(wants, i)
		}
	}
	if err := b.enrich(ctx, items, wants, true, false); err != nil {
		return nil, err
	}
	fillListingMeta(items)
	return items, nil
}

// mergedPool serves full and enrich_cache: stored metadata first, TMDB for
// what is missing (or for everything when refresh is set), server-side
// listing fields as the last resort. Fetched metadata is persisted.
func (b *Builder) mergedPool(ctx context.Context, libraryIDs []string, refresh bool) ([]models.PoolItem, error) {
	items, err := b.store.ListContentWithMeta(libraryIDs)
	if err != nil {
		return nil, err
	}

	if b.enricher != nil {
		var wants []int
		for i := range items {
			if items[i].Content.TMDBID != 0 && (refresh || items[i].Meta == nil) {
				wants = append(wants, i)
			}
		}
		if err := b.enrich(ctx, items, wants, refresh, true); err != nil {
			return nil, err
		}
	}
	fillListingMeta(items)
	return items, nil
}

// enrich resolves TMDB metadata for the given indexes in place. Lookup
// failures leave an item's existing metadata and never fail the build;
// only cancellation aborts.
func (b *Builder) enrich(ctx context.Context, items []models.PoolItem, idx []int, refresh, persist bool) error {
	if len(idx) == 0 {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(enrichConcurrency)
	for _, i := range idx {
		g.Go(func() error {
			item := &items[i]
			var meta *models.ContentMeta
			var err error
			if refresh {
				meta, err = b.enricher.Refresh(gctx, item.Content.Type, item.Content.TMDBID)
			} else {
				meta, err = b.enricher.Details(gctx, item.Content.Type, item.Content.TMDBID)
			}
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				b.log.Warn().Err(err).Str("content", item.Content.ID).Msg("enrichment failed")
				return nil
			}
			item.Meta = meta
			if persist {
				if err := b.store.SetContentMeta(item.Content.ID, meta); err != nil {
					b.log.Warn().Err(err).Str("content", item.Content.ID).Msg("persisting metadata failed")
				}
			}
			return nil
		})
	}
	return g.Wait()
}

// listingMeta builds metadata from what the server listing itself carried,
// or nil when it carried nothing so criteria score neutral.
func listingMeta(c *models.Content) *models.ContentMeta {
	if len(c.Genres) == 0 && c.ContentRating == "" && c.TMDBID == 0 {
		return nil
	}
	return &models.ContentMeta{
		Genres:    c.Genres,
		AgeRating: c.ContentRating,
		TMDBID:    c.TMDBID,
	}
}

func fillListingMeta(items []models.PoolItem) {
	for i := range items {
		if items[i].Meta == nil {
			items[i].Meta = listingMeta(&items[i].Content)
		}
	}
}
