package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/felo/mail-render/internal/config"
	"github.com/felo/mail-render/internal/db"
	"github.com/felo/mail-render/internal/handlers"
	"github.com/felo/mail-render/internal/logging"
	"github.com/felo/mail-render/internal/pipeline"
	"github.com/felo/mail-render/web"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	log := logging.New(cfg.Log.Level, cfg.Log.Pretty)

	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("server failed")
	}
}

func run(cfg *config.Config, log zerolog.Logger) error {
	database, err := db.Open(cfg.DB.Path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer database.Close()
	log.Info().Str("path", cfg.DB.Path).Msg("database opened")

	processor, err := pipeline.FromConfig(cfg, log)
	if err != nil {
		return err
	}

	h := handlers.New(database, cfg, processor, log)
	if err := h.LoadTemplates(web.Assets); err != nil {
		return fmt.Errorf("failed to load templates: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Cache.Enabled {
		cache := db.NewRenderCache(database, cfg.Cache.TTL)
		h.WithCache(cache)
		go purgeLoop(ctx, cache, cfg.Cache.PurgeInterval, log)
	}

	srv := &http.Server{
		Addr:         cfg.Address(),
		Handler:      h.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("url", cfg.URL()).Int("workers", processor.Concurrency()).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}
	log.Info().Msg("shutting down gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	log.Info().Msg("server stopped")
	return nil
}

// purgeLoop drops expired renders until ctx is cancelled
func purgeLoop(ctx context.Context, cache *db.RenderCache, every time.Duration, log zerolog.Logger) {
	if every <= 0 {
		return
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := cache.PurgeExpired()
			if err != nil {
				log.Warn().Err(err).Msg("render cache purge failed")
				continue
			}
			if n > 0 {
				log.Debug().Int64("rows", n).Msg("purged expired renders")
			}
		}
	}
}
