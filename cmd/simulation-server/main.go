package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/simshield/simshield-server/internal/api"
	"github.com/simshield/simshield-server/internal/config"
	"github.com/simshield/simshield-server/internal/integration"
	"github.com/simshield/simshield-server/internal/models"
	"github.com/simshield/simshield-server/internal/simulation"
	"github.com/simshield/simshield-server/internal/storage"
	"github.com/simshield/simshield-server/internal/validation"
	"github.com/simshield/simshield-server/internal/ws"
)

func main() {
	// Command line flags
	var configFile string
	flag.StringVar(&configFile, "config", "", "Configuration file path")
	flag.Parse()

	// Setup logging
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	// Load configuration
	var cfg *config.Config
	if configFile == "" {
		log.Info().Msg("No config file given, using defaults")
		cfg = config.Default()
	} else {
		var err error
		cfg, err = config.Load(configFile)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to load configuration")
		}
	}

	// Set log level
	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	// Event archive: Postgres when configured, bounded memory otherwise
	var store storage.Store
	if cfg.Database.DSN != "" {
		pg, err := storage.NewPostgresStore(cfg.Database.DSN)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to database")
		}
		store = pg
		log.Info().Msg("Connected to database, archiving events to Postgres")
	} else {
		store = storage.NewMemoryStore(cfg.Events.ArchiveSize)
		log.Info().Int("capacity", cfg.Events.ArchiveSize).Msg("Archiving events in memory")
	}
	defer store.Close()

	// Simulation engine
	engine := simulation.NewEngine(simulation.Config{
		DeviceCount:             cfg.Simulation.DeviceCount,
		TickInterval:            cfg.Simulation.TickInterval.Duration,
		WeakPasswordProbability: cfg.Simulation.WeakPasswordProbability,
	})

	// Archive every emitted event without blocking the engine
	writer := storage.NewEventWriter(store, cfg.Events.WriterBuffer)
	archiveSub := engine.Subscribe(func(event *models.SimulationEvent) {
		writer.Enqueue(event)
	})

	// Create context
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// WebSocket push hub
	hub := ws.NewHub(engine, validation.NewValidator())

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		hub.Run(ctx)
	}()

	// Start REST API server
	apiServer := api.NewRESTServer(cfg, engine, store, hub)

	wg.Add(1)
	go func() {
		defer wg.Done()
		addr := fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port)
		if err := apiServer.ListenAndServe(addr); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("REST API server failed")
		}
	}()

	// Optional: external fan-out over NATS and/or MQTT
	var nc *nats.Conn
	if cfg.NATS.URL != "" {
		log.Info().Str("url", cfg.NATS.URL).Msg("Connecting to NATS...")

		nc, err = nats.Connect(cfg.NATS.URL,
			nats.Name("simshield-simulation-server"),
			nats.UserInfo(cfg.NATS.Username, cfg.NATS.Password),
			nats.ReconnectWait(cfg.NATS.ReconnectInterval.Duration),
			nats.MaxReconnects(cfg.NATS.MaxReconnects),
			nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
				log.Warn().Err(err).Msg("Disconnected from NATS")
			}),
			nats.ReconnectHandler(func(nc *nats.Conn) {
				log.Info().Msg("Reconnected to NATS")
			}),
		)

		if err != nil {
			log.Warn().Err(err).Msg("Failed to connect to NATS, continuing without NATS support")
			nc = nil
		} else {
			defer nc.Close()
			log.Info().Msg("Connected to NATS")
		}
	}

	if nc != nil || cfg.MQTT.Broker != "" {
		forwarder := integration.NewForwarder(engine, nc, cfg.MQTT)

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := forwarder.Start(ctx); err != nil && err != context.Canceled {
				log.Error().Err(err).Msg("Integration forwarder stopped")
			}
		}()
	}

	// Start the simulation immediately so the dashboard has live data
	engine.Start()

	// Wait for signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	log.Info().Str("signal", sig.String()).Msg("Received signal, shutting down")

	// Stop the periodic loops before tearing everything else down
	engine.Pause()
	archiveSub.Unsubscribe()

	cancel()

	if err := apiServer.Shutdown(context.Background()); err != nil {
		log.Error().Err(err).Msg("Failed to shutdown API server gracefully")
	}

	wg.Wait()
	writer.Stop()

	log.Info().Msg("Simulation server stopped")
}
