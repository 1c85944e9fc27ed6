package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/witslabs/quizwall/go/internal/bus"
	"github.com/witslabs/quizwall/go/internal/dbconfig"
	"github.com/witslabs/quizwall/go/internal/notify"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if os.Getenv("LOG_PRETTY") != "" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	config, err := loadConfig(getEnv("CONFIG_PATH", ""))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	database, err := setupDatabase()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer database.Close()

	natsCfg := bus.DefaultNATSConfig()
	natsCfg.URL = getEnv("NATS_URL", natsCfg.URL)
	broadcaster, err := bus.NewNATSBroadcaster(natsCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to NATS")
	}
	defer broadcaster.Close()

	services := setupServices(database, config, broadcaster)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go services.Manager.Start(ctx)

	if err := services.Consumer.Start(func(topic string, fn func(bus.Event)) error {
		_, err := broadcaster.Subscribe(topic, fn)
		return err
	}); err != nil {
		log.Fatal().Err(err).Msg("failed to subscribe to quiz events")
	}

	if err := services.Registry.Sync(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to start drivers")
	}

	notifyCfg := notify.DefaultConfig()
	notifyCfg.DatabaseURL = dbconfig.NewConfigFromEnv().DSN()
	listener, err := notify.NewListener(services.Registry, broadcaster, notifyCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to start change listener")
	}
	go func() {
		if err := listener.Start(ctx); err != nil {
			log.Error().Err(err).Msg("change listener stopped")
		}
	}()

	server := setupServer(services)
	go func() {
		log.Info().Str("addr", server.Addr).Msg("server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down")

	cancel()
	services.Registry.Shutdown()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown failed")
	}
}
