package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/turfwar/go/clients/session_client"
	"github.com/mcdev12/turfwar/go/internal/config"
	"github.com/mcdev12/turfwar/go/internal/viewport"
	"github.com/mcdev12/turfwar/go/internal/world"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	// Setup logging
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load(os.Getenv("TURF_CONFIG"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(level)
	}

	log.Info().
		Str("server", cfg.Server.BaseURL).
		Str("transport", cfg.Transport).
		Str("bridge_addr", cfg.Bridge.Addr).
		Msg("starting turfwar client")

	clock := clockwork.NewRealClock()

	manager := world.NewConnectionManager(newDialer(cfg, clock), world.ConnectionConfig{
		InitialBackoff: cfg.Reconnect.InitialBackoff,
		MaxBackoff:     cfg.Reconnect.MaxBackoff,
		TeardownWait:   world.DefaultConnectionConfig().TeardownWait,
	}, clock)

	engineConfig := world.DefaultEngineConfig()
	engineConfig.InboxSize = cfg.InboxSize
	engineConfig.Limits = viewport.Limits{
		MaxLatitudeDelta:  cfg.Render.MaxLatitudeDelta,
		MaxLongitudeDelta: cfg.Render.MaxLongitudeDelta,
	}
	engineConfig.InitialLatitudeDelta = cfg.Render.InitialLatitudeDelta
	engineConfig.InitialLongitudeDelta = cfg.Render.InitialLongitudeDelta

	lookup := session_client.NewSessionClient(cfg.Server.BaseURL, cfg.Server.SessionToken)
	engine := world.NewEngine(engineConfig, lookup, manager, clock)

	server := world.NewBridgeServer(cfg.Bridge.Addr, world.NewBridge(engine).Routes())
	server.ReadTimeout = 10 * time.Second
	server.WriteTimeout = 10 * time.Second
	server.IdleTimeout = 120 * time.Second

	// Context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	engineDone := make(chan struct{})
	go func() {
		defer close(engineDone)
		if err := engine.Run(ctx); err != nil {
			log.Error().Err(err).Msg("world engine failed")
		}
	}()

	// The engine must outlive the manager so the teardown reaches it.
	managerCtx, stopManager := context.WithCancel(context.Background())
	defer stopManager()
	go func() {
		if err := manager.Run(managerCtx, engine); err != nil {
			log.Error().Err(err).Msg("connection manager failed")
		}
	}()

	go func() {
		log.Info().Str("addr", server.Addr).Msg("bridge server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("bridge server failed")
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan

	log.Info().Str("signal", sig.String()).Msg("received shutdown signal")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("bridge server shutdown failed")
	}

	manager.Stop()
	cancel()

	select {
	case <-engineDone:
	case <-shutdownCtx.Done():
		log.Warn().Msg("timed out waiting for world engine")
	}

	log.Info().Msg("turfwar client stopped")
}

func newDialer(cfg config.Config, clock clockwork.Clock) world.Dialer {
	switch cfg.Transport {
	case config.TransportNATS:
		natsConfig := world.DefaultNATSConfig()
		natsConfig.URL = cfg.NATS.URL
		natsConfig.EventSubject = cfg.NATS.EventSubject
		natsConfig.ClientSubject = cfg.NATS.ClientSubject
		return world.NewNATSDialer(natsConfig)
	default:
		wsConfig := world.DefaultWebSocketConfig(cfg.Server.WebSocketURL)
		if cfg.Server.SessionToken != "" {
			wsConfig.Header = http.Header{}
			wsConfig.Header.Set(session_client.CookieHeader, session_client.SessionCookie(cfg.Server.SessionToken))
		}
		return world.NewWebSocketDialer(wsConfig, clock)
	}
}
