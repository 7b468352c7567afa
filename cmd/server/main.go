package main

import (
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/revempire/revchat/internal/relay"
)

func main() {
	cfg, err := relay.NewConfigFromEnv()
	if err != nil {
		panic(err)
	}
	relay.SetConfig(cfg)

	var logger zerolog.Logger
	if cfg.IsDevelopment() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
			With().
			Timestamp().
			Logger()
	} else {
		logger = zerolog.New(os.Stdout).
			With().
			Timestamp().
			Logger()
	}

	registry := relay.NewRegistry()
	hub := relay.NewHub(registry, logger)
	go hub.Run()

	router := relay.NewRouter(hub, registry, logger)
	srv := relay.CreateServer(cfg.Port, router)

	go func() {
		logger.Info().
			Str("addr", cfg.Port).
			Str("env", cfg.Env).
			Msg("starting RevChat relay")

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down")

	if err := relay.ShutdownServer(srv, cfg.ShutdownTimeout, logger); err != nil {
		logger.Warn().Err(err).Msg("forced HTTP shutdown")
	}
	if err := hub.Shutdown(cfg.ShutdownTimeout); err != nil {
		logger.Warn().Err(err).Msg("hub shutdown incomplete")
	}

	logger.Info().Msg("server stopped")
}
