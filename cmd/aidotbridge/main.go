package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"aidotbridge/internal/bootstrap"
	"aidotbridge/internal/bridge"
	"aidotbridge/internal/config"
	"aidotbridge/internal/ledger"
	"aidotbridge/internal/mqtt"
	"aidotbridge/internal/server"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "config.yaml", "Path to configuration file")
	flag.StringVar(&configPath, "c", "config.yaml", "Path to configuration file (shorthand)")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	setupLogging(cfg.Log.Level, cfg.Log.JSON, cfg.Log.Colors)
	log.Info().Str("config", configPath).Str("backend", cfg.Backend).Msg("Starting aidotbridge")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var blobStore bootstrap.BlobStore
	if cfg.Bootstrap.Blob != nil {
		store, err := bootstrap.NewS3Store(cfg.Bootstrap.Blob)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to set up bootstrap blob store")
		}
		blobStore = store
	}

	payload, err := bootstrap.Load(ctx, cfg.Bootstrap.Path, blobStore)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.Bootstrap.Path).Msg("Failed to load bootstrap payload")
	}
	log.Info().Int("devices", len(payload.Devices)).Int("products", len(payload.Products)).Msg("Bootstrap payload loaded")

	var history *ledger.Ledger
	if cfg.Ledger.Enabled() {
		history, err = ledger.Open(cfg.Ledger.Path)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to open history ledger")
		}
		defer history.Close()

		if cfg.Ledger.RetentionDays > 0 {
			retention := time.Duration(cfg.Ledger.RetentionDays) * 24 * time.Hour
			go history.RunPruner(ctx, cfg.Ledger.PruneInterval.Std(), retention)
		}
	}

	var session *mqtt.Session
	if cfg.MQTT.Enabled() {
		session, err = mqtt.Dial(mqtt.Config{
			Broker:      cfg.MQTT.Broker,
			Port:        cfg.MQTT.Port,
			TLS:         cfg.MQTT.TLS,
			Username:    cfg.MQTT.Username,
			Password:    cfg.MQTT.Password,
			TopicPrefix: cfg.MQTT.TopicPrefix,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to MQTT broker")
		}
		defer session.Close()
	}

	var broker bridge.Broker
	if session != nil {
		broker = session
	}

	b, err := bridge.New(bridge.Options{
		Config:  cfg,
		Payload: &payload,
		Broker:  broker,
		Ledger:  history,
		Logger:  log.Logger,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build bridge")
	}
	defer b.Close()

	registry := server.MetricsRegistry(b.Collector())
	registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "aidotbridge_build_info",
		Help: "Build information",
	}, func() float64 { return 1 }))

	var historyProvider server.HistoryProvider
	if history != nil {
		historyProvider = history
	}
	api := server.NewAPI(b.Lights(), historyProvider, log.Logger)
	httpServer := server.NewHTTPServer(cfg.HTTP.Addr, server.NewMux(api, registry))

	go func() {
		log.Info().Str("addr", cfg.HTTP.Addr).Msg("HTTP server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP serve failed")
		}
	}()

	b.Start(ctx)

	<-ctx.Done()
	log.Info().Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP shutdown failed")
	}

	b.Wait()
}

func setupLogging(level string, useJSON bool, colors bool) {
	zerolog.TimeFieldFormat = time.RFC3339

	if useJSON {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	} else {
		log.Logger = log.Output(zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: "2006-01-02T15:04:05.000Z07:00",
			NoColor:    !colors,
		})
	}

	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
