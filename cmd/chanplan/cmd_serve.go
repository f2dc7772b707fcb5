package main

import (
	"context"
	"fmt"
	stdlog "log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"chanplan/internal/auth"
	"chanplan/internal/cache"
	"chanplan/internal/catalog"
	"chanplan/internal/config"
	"chanplan/internal/crypto"
	"chanplan/internal/jobs"
	"chanplan/internal/log"
	"chanplan/internal/media"
	"chanplan/internal/models"
	"chanplan/internal/scheduler"
	"chanplan/internal/server"
	"chanplan/internal/store"
	"chanplan/internal/tmdb"
	"chanplan/internal/version"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP service (the default when no command is given)",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log.Configure(log.Config{Level: cfg.LogLevel, Console: cfg.LogConsole})
	logger := log.WithComponent("main")

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := seedSettings(st, cfg); err != nil {
		return err
	}

	authSvc := auth.New(st)
	if cfg.AdminAPIKey != "" {
		if err := authSvc.SetKey(cfg.AdminAPIKey); err != nil {
			return err
		}
	}
	if on, err := authSvc.Enabled(); err == nil && on {
		logger.Info().Msg("API key authentication enabled")
	} else {
		logger.Warn().Msg("no admin API key configured, API is open")
	}

	hot := newHotCache(cfg, logger)
	defer hot.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	checker := version.NewChecker(appVersion)
	go checker.Start(ctx)

	coord := jobs.New()

	opts := []server.Option{
		server.WithAuth(authSvc),
		server.WithLocation(cfg.Location()),
		server.WithCache(hot),
		server.WithVersionChecker(checker),
	}
	if cfg.CORSOrigin != "" {
		opts = append(opts, server.WithCORSOrigin(cfg.CORSOrigin))
	}
	srv := server.NewServer(st, coord, opts...)

	// Scheduled runs flow through the same job path as manual ones.
	syncer := catalog.NewSyncer(st, media.NewContentServer)
	schedOpts := []scheduler.Option{scheduler.WithLocation(cfg.Location()), scheduler.WithJobs(coord)}
	if enricher := storedEnricher(st, hot); enricher != nil {
		schedOpts = append(schedOpts, scheduler.WithEnricher(enricher))
	}
	sched := scheduler.New(st, syncer, func(ctx context.Context, rs *models.RunSchedule) {
		req := rs.Request
		req.ChannelID = rs.ChannelID
		if _, err := srv.StartRun(req); err != nil {
			logger.Error().Err(err).Int64("schedule", rs.ID).Msg("scheduled run failed to start")
		}
	}, schedOpts...)
	sched.Start(ctx)
	defer sched.Stop()

	holder := config.NewHolder(cfg, configPath)
	holder.OnReload(func(next config.Config) {
		if lvl, err := zerolog.ParseLevel(next.LogLevel); err == nil {
			zerolog.SetGlobalLevel(lvl)
		}
	})
	if err := holder.Watch(ctx); err != nil {
		logger.Warn().Err(err).Msg("config watch unavailable")
	}
	defer holder.Stop()

	base := log.Base()
	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
		// net/http logs handshake and accept errors on its own; route
		// them through the structured logger.
		ErrorLog: stdlog.New(&base, "", 0),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.ListenAddr).Str("version", appVersion).Msg("chanplan listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("shutdown error")
	}
	return nil
}

// openStore opens the database (creating its directory), arms the
// encryptor when a key is configured, and applies migrations.
func openStore(cfg config.Config) (*store.Store, error) {
	if dir := filepath.Dir(cfg.DBPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}

	var opts []store.Option
	if cfg.EncryptionKey != "" {
		enc, err := crypto.NewEncryptor(cfg.EncryptionKey)
		if err != nil {
			return nil, err
		}
		opts = append(opts, store.WithEncryptor(enc))
	}

	st, err := store.New(cfg.DBPath, opts...)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := st.Migrate(cfg.MigrationsDir); err != nil {
		st.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return st, nil
}

// seedSettings copies configured credentials into settings rows that are
// still empty. Values managed through the API afterwards win over the
// file on later boots.
func seedSettings(st *store.Store, cfg config.Config) error {
	if cfg.TMDB.APIKey != "" {
		cur, err := st.GetTMDBConfig()
		if err != nil {
			return err
		}
		if cur.APIKey == "" {
			if err := st.SetTMDBConfig(store.TMDBConfig{APIKey: cfg.TMDB.APIKey, Language: cfg.TMDB.Language}); err != nil {
				return err
			}
		}
	}
	if cfg.Sink.URL != "" {
		cur, err := st.GetSinkConfig()
		if err != nil {
			return err
		}
		if cur.URL == "" {
			if err := st.SetSinkConfig(store.SinkConfig{URL: cfg.Sink.URL, APIKey: cfg.Sink.Token}); err != nil {
				return err
			}
		}
	}
	if cfg.Suggest.BaseURL != "" {
		cur, err := st.GetSuggestConfig()
		if err != nil {
			return err
		}
		if cur.URL == "" {
			if err := st.SetSuggestConfig(store.SuggestConfig{
				URL:    cfg.Suggest.BaseURL,
				APIKey: cfg.Suggest.APIKey,
				Model:  cfg.Suggest.Model,
			}); err != nil {
				return err
			}
		}
	}
	return nil
}

// newHotCache picks the Redis backend when an address is configured and
// falls back to process memory otherwise.
func newHotCache(cfg config.Config, logger zerolog.Logger) cache.Cache {
	if cfg.RedisAddr == "" {
		return cache.NewMemory(5 * time.Minute)
	}
	c, err := cache.NewRedis(cache.RedisConfig{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("redis unavailable, using memory cache")
		return cache.NewMemory(5 * time.Minute)
	}
	return c
}

// storedEnricher builds a TMDB client from the stored key; nil when no
// key is configured, which degrades pool builds to library data.
func storedEnricher(st *store.Store, hot cache.Cache) catalog.Enricher {
	cfg, err := st.GetTMDBConfig()
	if err != nil || cfg.APIKey == "" {
		return nil
	}
	c := tmdb.New(cfg.APIKey, hot)
	if cfg.Language != "" {
		c.SetLanguage(cfg.Language)
	}
	return c
}
