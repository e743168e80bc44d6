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

	router "github.com/ralten/Argus/internal/adapters/http"
	"github.com/ralten/Argus/internal/adapters/render"
	"github.com/ralten/Argus/internal/adapters/rtc"
	exchange "github.com/ralten/Argus/internal/adapters/signal"
	"github.com/ralten/Argus/internal/app/preview"
	"github.com/ralten/Argus/internal/config"
	"github.com/ralten/Argus/internal/core"
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
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}

	hub := render.NewHub()
	sdpExchange := exchange.NewClient(cfg.SignalTimeout)

	webrtcCfg := rtc.ConfigFor(cfg.ICEServers)
	ctrl := preview.NewController(preview.Options{
		Dial: func(sid core.SessionID) (core.MediaConnection, error) {
			return rtc.New(webrtcCfg, sid)
		},
		Exchange:      sdpExchange,
		Target:        hub,
		Status:        hub.PushStatus,
		GatherTimeout: cfg.GatherTimeout,
		ControlLabel:  cfg.ControlLabel,
	})

	r := router.SetupRouter(ctx, cfg, ctrl, hub)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("Argus preview server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	ctrl.Stop()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited gracefully")
}
