package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/tbourn/go-group-bot/internal/config"
	httpapi "github.com/tbourn/go-group-bot/internal/http"
	"github.com/tbourn/go-group-bot/internal/observability"
	"github.com/tbourn/go-group-bot/internal/repo"
)

const (
	shutdownGrace = 10 * time.Second
	purgeInterval = time.Hour
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the gateway and ops HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			observability.SetupLogging(cfg.LogLevel, cfg.LogPretty, os.Stdout)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, opts.settingsPath)
		},
	}
}

func serve(ctx context.Context, cfg config.Config, settingsPath string) error {
	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		return err
	}
	defer func() {
		if err := observability.ShutdownWithin(shutdownOTel, 5*time.Second); err != nil {
			log.Warn().Err(err).Msg("otel shutdown")
		}
	}()

	a, err := wireApp(ctx, cfg, settingsPath)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.close(); err != nil {
			log.Warn().Err(err).Msg("db close")
		}
	}()

	gin.SetMode(cfg.GinMode)
	r := gin.New()
	httpapi.RegisterRoutes(r, httpapi.Deps{
		DB:         a.db,
		Dispatcher: a.dispatcher,
		Roster:     a.roster,
		Fortune:    a.fortune,
		Lottery:    a.lottery,
	}, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().
			Str("addr", srv.Addr).
			Str("store", cfg.Store.Backend).
			Str("timezone", cfg.Bot.TimeZone).
			Int("lottery_chances", cfg.Bot.LotteryChances).
			Str("version", version).
			Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		log.Info().Msg("shutting down")
		return srv.Shutdown(sctx)
	})
	g.Go(func() error {
		purgeEvents(gctx, a, purgeInterval)
		return nil
	})
	return g.Wait()
}

// purgeEvents deletes expired processed events every interval until ctx is
// done.
func purgeEvents(ctx context.Context, a *app, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			n, err := repo.PurgeExpiredEvents(ctx, a.db, now.UTC())
			if err != nil {
				log.Warn().Err(err).Msg("purge expired events")
				continue
			}
			if n > 0 {
				log.Debug().Int64("deleted", n).Msg("purged expired events")
			}
		}
	}
}
