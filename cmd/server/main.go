// Package main provides the entry point for the research report service.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/helixir/research-report-service/internal/config"
	"github.com/helixir/research-report-service/internal/database"
	"github.com/helixir/research-report-service/internal/events"
	"github.com/helixir/research-report-service/internal/llm"
	"github.com/helixir/research-report-service/internal/observability"
	"github.com/helixir/research-report-service/internal/orchestrator"
	"github.com/helixir/research-report-service/internal/papersources"
	"github.com/helixir/research-report-service/internal/papersources/openalex"
	"github.com/helixir/research-report-service/internal/papersources/websearch"
	"github.com/helixir/research-report-service/internal/repository"
	"github.com/helixir/research-report-service/internal/search"
	httpserver "github.com/helixir/research-report-service/internal/server/http"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Set up structured logging.
	logger := observability.NewLogger(observability.LoggingConfig{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		TimeFormat: cfg.Logging.TimeFormat,
	})
	logger = logger.With().Str("component", "server").Logger()
	logger.Info().Msg("research-report-service starting")

	// Set up context with graceful shutdown via OS signals.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect to PostgreSQL.
	db, err := database.New(ctx, &cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()
	logger.Info().Msg("database connection established")

	// Run migrations if configured.
	if cfg.Database.MigrationAutoRun {
		migrator, err := database.NewMigrator(db, cfg.Database.MigrationPath, logger)
		if err != nil {
			return fmt.Errorf("create migrator: %w", err)
		}
		defer func() {
			if closeErr := migrator.Close(); closeErr != nil {
				logger.Error().Err(closeErr).Msg("failed to close migrator")
			}
		}()

		if err := migrator.Up(); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
	}

	// Create repositories.
	sessionRepo := repository.NewPgSessionRepository(db)
	messageRepo := repository.NewPgMessageRepository(db)

	// Create the LLM client.
	llmClient, err := llm.NewClient(llm.FactoryConfig{
		Provider:    cfg.LLM.Provider,
		Temperature: cfg.LLM.Temperature,
		Timeout:     cfg.LLM.Timeout,
		MaxRetries:  cfg.LLM.MaxRetries,
		OpenAI: llm.OpenAIConfig{
			APIKey:  cfg.LLM.OpenAI.APIKey,
			Model:   cfg.LLM.OpenAI.Model,
			BaseURL: cfg.LLM.OpenAI.BaseURL,
		},
		Anthropic: llm.AnthropicConfig{
			APIKey:  cfg.LLM.Anthropic.APIKey,
			Model:   cfg.LLM.Anthropic.Model,
			BaseURL: cfg.LLM.Anthropic.BaseURL,
		},
	})
	if err != nil {
		return fmt.Errorf("create LLM client: %w", err)
	}
	logger.Info().
		Str("provider", llmClient.Provider()).
		Str("model", llmClient.Model()).
		Msg("LLM client created")

	// Create metrics when enabled; a nil recorder disables collection.
	var metrics *observability.Metrics
	if cfg.Metrics.Enabled {
		metrics = observability.NewMetrics(cfg.Metrics.Namespace)
	}

	// Assemble the search gateway: OpenAlex primary (also the DOI resolver),
	// web search as the optional secondary DOI-mining backend.
	openalexClient := openalex.New(openalex.Config{
		BaseURL:    cfg.Search.OpenAlex.BaseURL,
		Email:      cfg.Search.OpenAlex.Email,
		Timeout:    cfg.Search.OpenAlex.Timeout,
		RateLimit:  cfg.Search.OpenAlex.RateLimit,
		MaxResults: cfg.Search.OpenAlex.MaxResults,
		Enabled:    cfg.Search.OpenAlex.Enabled,
	})

	var secondary papersources.Source
	if cfg.Search.Web.Enabled {
		secondary = websearch.New(websearch.Config{
			BaseURL:    cfg.Search.Web.BaseURL,
			Timeout:    cfg.Search.Web.Timeout,
			RateLimit:  cfg.Search.Web.RateLimit,
			MaxResults: cfg.Search.Web.MaxResults,
			Enabled:    true,
		})
	}

	gateway := search.New(openalexClient, openalexClient, secondary, search.Config{
		MaxResults:         cfg.Search.MaxResults,
		SecondaryThreshold: cfg.Search.SecondaryThreshold,
	}, logger, metrics)

	// Progress events feed the SSE broker, optionally mirrored to Kafka.
	broker := events.NewBroker(logger)
	sink := events.Sink(broker)
	var kafkaSink *events.KafkaSink
	if cfg.Kafka.Enabled {
		kafkaSink = events.NewKafkaSink(events.KafkaConfig{
			Brokers:      cfg.Kafka.Brokers,
			Topic:        cfg.Kafka.Topic,
			BatchSize:    cfg.Kafka.BatchSize,
			BatchTimeout: cfg.Kafka.BatchTimeout,
		}, logger)
		sink = events.Multi{broker, kafkaSink}
		logger.Info().Strs("brokers", cfg.Kafka.Brokers).Str("topic", cfg.Kafka.Topic).Msg("kafka event sink enabled")
	}

	// Create the research orchestrator.
	orch := orchestrator.New(
		llmClient,
		gateway,
		sessionRepo,
		messageRepo,
		sink,
		orchestrator.Config{
			PollInterval:      cfg.Research.PollInterval,
			DocumentPrefixLen: cfg.Research.DocumentPrefixLen,
			DefaultLanguage:   cfg.Research.DefaultLanguage,
		},
		logger,
		metrics,
	)

	// Create the HTTP REST API server.
	httpCfg := httpserver.Config{
		Address:         cfg.Server.HTTPAddress(),
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    5 * time.Minute, // Long timeout for SSE streaming.
		IdleTimeout:     2 * time.Minute,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}

	httpSrv := httpserver.NewServer(
		httpCfg,
		orch,
		sessionRepo,
		messageRepo,
		broker,
		db,
		logger,
	)

	// Channel to collect server errors.
	errCh := make(chan error, 1)

	go func() {
		if err := httpSrv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	logger.Info().
		Str("http_address", httpCfg.Address).
		Msg("research-report-service is ready")

	// Wait for shutdown signal or server error.
	select {
	case <-ctx.Done():
		logger.Info().Msg("received shutdown signal")
	case err := <-errCh:
		logger.Error().Err(err).Msg("server error")
		return err
	}

	// Graceful shutdown.
	logger.Info().Msg("shutting down research-report-service")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// Cancel any in-flight research run and wait for its terminal
	// bookkeeping to land before closing the database pool.
	if activeID, ok := orch.ActiveSessionID(); ok {
		logger.Info().Str("session_id", activeID.String()).Msg("cancelling active research session")
		if err := orch.Cancel(activeID); err == nil {
			orch.Wait(activeID)
		}
	}

	if kafkaSink != nil {
		if err := kafkaSink.Close(); err != nil {
			logger.Error().Err(err).Msg("kafka sink close error")
		}
	}

	logger.Info().Msg("research-report-service shutdown complete")
	return nil
}
