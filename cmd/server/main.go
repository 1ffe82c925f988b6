package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	router "github.com/dkeye/tandem/internal/adapters/http"
	"github.com/dkeye/tandem/internal/adapters/persistence"
	wsignal "github.com/dkeye/tandem/internal/adapters/signal"
	"github.com/dkeye/tandem/internal/app"
	"github.com/dkeye/tandem/internal/auth"
	"github.com/dkeye/tandem/internal/config"
	"github.com/dkeye/tandem/internal/domain"
	"github.com/dkeye/tandem/internal/notify"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	// Human-friendly output for terminal; in production you may want JSON only.
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Error().Err(err).Msg("failed to load config")
	}

	gateway := app.NewGateway()
	rooms := app.NewRegistry()
	msgRouter := app.NewRouter(gateway, rooms)
	store := persistence.NewClient(cfg.APIBase, auth.ServiceTokenSource([]byte(cfg.Secret), "tandem-server", time.Hour))
	limiter := wsignal.NewMessageRateLimiter(cfg.MessageLimit, cfg.MessageInterval)

	// The alerter needs the controller for channel pushes; the closure
	// resolves the cycle.
	var ctl *wsignal.Controller
	dedup := notify.NewDeduplicator(cfg.DedupWindow, store, notify.ChannelAlerter{
		Send: func(u domain.UserID, v any) { ctl.SendToUser(u, v) },
	})
	ctl = wsignal.NewController(gateway, rooms, msgRouter, dedup, store, limiter, cfg.ReadLimit)

	go rooms.RunSweeper(ctx, cfg.SweepInterval, cfg.RoomIdleAfter)

	r := router.SetupRouter(ctx, cfg, ctl, rooms)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("Tandem server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited gracefully")
}
