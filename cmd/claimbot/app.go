package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/tbourn/claimbot/internal/config"
	"github.com/tbourn/claimbot/internal/danbooru"
	"github.com/tbourn/claimbot/internal/discord"
	httpapi "github.com/tbourn/claimbot/internal/http"
	"github.com/tbourn/claimbot/internal/http/middleware"
	"github.com/tbourn/claimbot/internal/observability"
	"github.com/tbourn/claimbot/internal/repo"
	"github.com/tbourn/claimbot/internal/services"
)

const (
	sweepInterval   = 30 * time.Second
	shutdownTimeout = 10 * time.Second
)

// openStore builds the document store selected by cfg. The returned close
// function is never nil.
func openStore(cfg config.Config) (repo.Store, func() error, error) {
	switch cfg.StoreDriver {
	case config.StoreSQLite:
		s, err := repo.NewSQLiteStore(cfg.DBPath)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite store: %w", err)
		}
		return s, s.Close, nil
	default:
		return repo.NewFileStore(cfg.ClaimsFile, cfg.CollectionsFile), func() error { return nil }, nil
	}
}

// loadLedger loads both documents, backfills message ids on old records and
// reports disagreements between the stores. A corrupt document aborts startup.
func loadLedger(ctx context.Context, s repo.Store) (*services.Ledger, error) {
	ledger, err := services.LoadLedger(ctx, s)
	if err != nil {
		return nil, fmt.Errorf("load ledger: %w", err)
	}
	n, err := ledger.BackfillMessageIDs(ctx)
	if err != nil {
		log.Error().Err(err).Msg("message id backfill not saved")
	}
	if n > 0 {
		log.Info().Int("records", n).Msg("backfilled message ids on old records")
	}
	for _, inc := range services.CheckConsistency(ledger) {
		log.Warn().
			Str("kind", inc.Kind).
			Str("message_id", inc.MessageID).
			Str("user_id", inc.UserID).
			Str("image", inc.Image).
			Msg("claims and collections disagree; run `claimbot claims check --fix`")
	}
	return ledger, nil
}

// serve runs the bot, the ops HTTP server and the session sweeper until a
// signal arrives or one of them fails.
func serve(parent context.Context, cfg config.Config) error {
	if err := cfg.ValidateBot(); err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownOTel(sctx); err != nil {
			log.Warn().Err(err).Msg("otel shutdown")
		}
	}()

	store, closeStore, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeStore(); err != nil {
			log.Warn().Err(err).Msg("close store")
		}
	}()

	ledger, err := loadLedger(ctx, store)
	if err != nil {
		return err
	}
	claims := services.NewClaimService(ledger)
	browser := services.NewBrowser(ledger, cfg.BrowserIdleTimeout)
	events := services.NewDispatcher(claims, browser)

	dg, err := discord.NewSession(cfg.DiscordToken)
	if err != nil {
		return err
	}
	bot := discord.NewBot(discord.Options{
		Session:      dg,
		Fetcher:      danbooru.New(cfg.Danbooru),
		Events:       events,
		Offers:       services.NewOfferBook(cfg.OfferCapacity),
		Limiter:      middleware.NewRateLimiter(cfg.CommandRPS, cfg.CommandBurst, nil),
		Prefix:       cfg.CommandPrefix,
		FetchTimeout: cfg.Danbooru.Timeout,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return bot.Run(gctx, dg) })
	g.Go(func() error { return browser.Run(gctx, sweepInterval) })
	if cfg.HTTPEnabled {
		srv := newHTTPServer(cfg, httpapi.Deps{
			Events:      events,
			Claims:      ledger.Registry,
			Collections: ledger.Collections,
		})
		g.Go(func() error { return runHTTP(gctx, srv) })
	}

	log.Info().
		Str("version", version).
		Str("store", cfg.StoreDriver).
		Bool("http", cfg.HTTPEnabled).
		Int("claims", ledger.Registry.Len()).
		Msg("claimbot starting")

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info().Msg("claimbot stopped")
	return nil
}

func newHTTPServer(cfg config.Config, deps httpapi.Deps) *http.Server {
	gin.SetMode(cfg.GinMode)
	r := gin.New()
	httpapi.RegisterRoutes(r, deps, cfg)
	return &http.Server{
		Addr:              net.JoinHostPort(cfg.HTTPHost, cfg.Port),
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}
}

// runHTTP serves until ctx is done, then drains in-flight requests.
func runHTTP(ctx context.Context, srv *http.Server) error {
	errc := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("http listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err, ok := <-errc:
		if ok {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}
