package catalog

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"chanplan/internal/log"
	"chanplan/internal/media"
	"chanplan/internal/mediautil"
	"chanplan/internal/metrics"
	"chanplan/internal/models"
	"chanplan/internal/store"
)

// Factory builds a client for a stored server record. Tests substitute
// fakes here.
type Factory func(*models.MediaServer) (media.ContentServer, error)

// Syncer refreshes the stored catalog from the configured media servers.
type Syncer struct {
	store   *store.Store
	factory Factory
	log     zerolog.Logger
}

// NewSyncer creates a catalog syncer. A nil factory uses the real media
// clients.
func NewSyncer(st *store.Store, factory Factory) *Syncer {
	if factory == nil {
		factory = media.NewContentServer
	}
	return &Syncer{store: st, factory: factory, log: log.WithComponent("sync")}
}

// SyncReport summarizes one server's catalog refresh.
type SyncReport struct {
	ServerID  int64     `json:"serverId"`
	Server    string    `json:"server"`
	Libraries int       `json:"libraries"`
	Synced    int       `json:"synced"`
	Pruned    int64     `json:"pruned"`
	StartedAt time.Time `json:"startedAt"`
	TookMs    int64     `json:"tookMs"`
}

// SyncServer refreshes one server's catalog: lists its libraries, upserts
// every playable item, then prunes rows the sync did not touch.
func (s *Syncer) SyncServer(ctx context.Context, srv *models.MediaServer) (*SyncReport, error) {
	client, err := s.factory(srv)
	if err != nil {
		return nil, err
	}

	// The prune cutoff and the upsert stamps must share a zone so the
	// stored text timestamps compare chronologically.
	started := time.Now().UTC()

	libs, err := client.GetLibraries(ctx)
	if err != nil {
		s.failProgress(ctx, err)
		return nil, fmt.Errorf("listing libraries: %w", err)
	}
	mediautil.SendProgress(ctx, mediautil.SyncProgress{
		Phase: mediautil.PhaseLibraries,
		Total: len(libs),
	})

	report := &SyncReport{
		ServerID:  srv.ID,
		Server:    srv.Name,
		Libraries: len(libs),
		StartedAt: started,
	}
	for _, lib := range libs {
		items, err := client.GetLibraryItems(ctx, lib.ID)
		if err != nil {
			s.failProgress(ctx, err)
			return nil, fmt.Errorf("library %s: %w", lib.Name, err)
		}
		n, err := s.store.UpsertContent(ctx, srv.ID, items)
		if err != nil {
			s.failProgress(ctx, err)
			return nil, fmt.Errorf("storing library %s: %w", lib.Name, err)
		}
		report.Synced += n
	}

	mediautil.SendProgress(ctx, mediautil.SyncProgress{Phase: mediautil.PhasePruning})
	pruned, err := s.store.DeleteStaleContent(srv.ID, started)
	if err != nil {
		s.failProgress(ctx, err)
		return nil, fmt.Errorf("pruning stale content: %w", err)
	}
	report.Pruned = pruned
	report.TookMs = time.Since(started).Milliseconds()

	if count, err := s.store.CountContent(srv.ID); err == nil {
		metrics.SetCatalogSize(srv.Name, count)
	}

	mediautil.SendProgress(ctx, mediautil.SyncProgress{
		Phase:  mediautil.PhaseDone,
		Synced: report.Synced,
		Pruned: int(pruned),
	})
	s.log.Info().
		Int64("server_id", srv.ID).
		Str("server", srv.Name).
		Int("libraries", report.Libraries).
		Int("synced", report.Synced).
		Int64("pruned", pruned).
		Int64("took_ms", report.TookMs).
		Msg("catalog sync complete")
	return report, nil
}

// SyncAll refreshes every enabled server, continuing past individual
// failures. The joined error reports which servers failed.
func (s *Syncer) SyncAll(ctx context.Context) ([]SyncReport, error) {
	servers, err := s.store.ListEnabledServers()
	if err != nil {
		return nil, err
	}

	var reports []SyncReport
	var errs []error
	for i := range servers {
		if ctx.Err() != nil {
			return reports, ctx.Err()
		}
		report, err := s.SyncServer(ctx, &servers[i])
		if err != nil {
			s.log.Error().Err(err).Str("server", servers[i].Name).Msg("catalog sync failed")
			errs = append(errs, fmt.Errorf("%s: %w", servers[i].Name, err))
			continue
		}
		reports = append(reports, *report)
	}
	return reports, errors.Join(errs...)
}

// EnrichMissing resolves metadata for catalog items that carry a TMDB id
// but no stored enrichment yet, and persists what it finds. Items without
// an id are skipped; failed lookups are logged and retried on a later
// pass. Returns the number enriched.
func (s *Syncer) EnrichMissing(ctx context.Context, enricher Enricher, limit int) (int, error) {
	if enricher == nil {
		return 0, nil
	}

	batch, err := s.store.ListContentMissingMeta(limit)
	if err != nil {
		return 0, err
	}

	var enriched atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(enrichConcurrency)
	for i := range batch {
		c := &batch[i]
		if c.TMDBID == 0 {
			continue
		}
		g.Go(func() error {
			meta, err := enricher.Details(gctx, c.Type, c.TMDBID)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				s.log.Warn().Err(err).Str("content", c.ID).Msg("enrichment failed")
				return nil
			}
			if err := s.store.SetContentMeta(c.ID, meta); err != nil {
				s.log.Warn().Err(err).Str("content", c.ID).Msg("persisting metadata failed")
				return nil
			}
			mediautil.SendProgress(gctx, mediautil.SyncProgress{
				Phase:   mediautil.PhaseEnriching,
				Current: int(enriched.Add(1)),
				Total:   len(batch),
			})
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return int(enriched.Load()), err
	}
	return int(enriched.Load()), nil
}

func (s *Syncer) failProgress(ctx context.Context, err error) {
	mediautil.SendProgress(ctx, mediautil.SyncProgress{
		Phase: mediautil.PhaseError,
		Error: err.Error(),
	})
}
