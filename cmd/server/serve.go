package main

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	voiceauthhttp "github.com/Hjhirp/voice-auth-microservice/internal/adapters/http"
	"github.com/Hjhirp/voice-auth-microservice/internal/adapters/embeddingclient"
	"github.com/Hjhirp/voice-auth-microservice/internal/adapters/postgres"
	"github.com/Hjhirp/voice-auth-microservice/internal/adapters/tracing"
	"github.com/Hjhirp/voice-auth-microservice/internal/audio"
	"github.com/Hjhirp/voice-auth-microservice/internal/capture"
	"github.com/Hjhirp/voice-auth-microservice/internal/orchestrator"
	"github.com/Hjhirp/voice-auth-microservice/internal/similarity"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		Long: `Start the voiceauth HTTP API server.

Required configuration:
  DB_URL          PostgreSQL connection string
  EMBEDDING_URL   speaker-embedding service base URL`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}
}

func maskDatabaseURL(dbURL string) string {
	parsed, err := url.Parse(dbURL)
	if err != nil {
		return "[invalid URL]"
	}
	if parsed.User != nil {
		if _, hasPassword := parsed.User.Password(); hasPassword {
			parsed.User = url.UserPassword(parsed.User.Username(), "****")
		}
	}
	return parsed.String()
}

func runServer(ctx context.Context) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	log.Println("Starting voiceauth API server...")
	log.Printf("  HTTP:      http://%s:%d", cfg.Host, cfg.Port)
	log.Printf("  Postgres:  %s", maskDatabaseURL(cfg.DBURL))
	log.Printf("  Embedding: %s", cfg.EmbeddingURL)

	log.Println("Initializing OpenTelemetry tracing...")
	shutdownTracer, err := tracing.InitTracer("voiceauth-api")
	if err != nil {
		log.Printf("warning: failed to initialize tracing: %v", err)
	} else {
		defer func() {
			if err := shutdownTracer(ctx); err != nil {
				log.Printf("error shutting down tracer: %v", err)
			}
		}()
	}

	log.Println("Connecting to PostgreSQL...")
	poolConfig, err := pgxpool.ParseConfig(cfg.DBURL)
	if err != nil {
		return fmt.Errorf("failed to parse database URL: %w", err)
	}
	poolConfig.ConnConfig.RuntimeParams["timezone"] = "UTC"

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return fmt.Errorf("failed to create database pool: %w", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	log.Println("Database connection established")

	repo := postgres.NewRepository(pool)

	fetcher := audio.NewFetcher()
	fetcher.Timeout = time.Duration(cfg.FetchTimeoutSeconds) * time.Second
	normalizer := audio.NewNormalizer()
	judge := similarity.NewJudge()

	embeddingTimeout := time.Duration(cfg.EmbeddingTimeoutSeconds) * time.Second
	extractor := embeddingclient.NewClient(cfg.EmbeddingURL, embeddingTimeout)

	captureEngine := capture.NewEngine(capture.Params{
		MinDuration:      time.Duration(cfg.MinAudioDuration * float64(time.Second)),
		SilenceThreshold: cfg.SilenceThreshold,
		SilenceDuration:  time.Duration(cfg.SilenceDurationSeconds) * time.Second,
		MaxDuration:      time.Duration(cfg.MaxAudioDuration) * time.Second,
		ConnectTimeout:   time.Duration(cfg.WebsocketTimeout) * time.Second,
	})

	orch := orchestrator.New(
		fetcher,
		normalizer,
		captureEngine,
		extractor,
		judge,
		repo,
		cfg.VoiceThreshold,
		cfg.MinAudioDuration,
	)
	log.Println("Orchestrator initialized")

	server := voiceauthhttp.NewServer(cfg, repo, extractor, orch)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- server.Start()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case sig := <-sigChan:
		log.Printf("received signal: %v", sig)
		log.Println("shutting down gracefully...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Stop(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		log.Println("server stopped")
		return nil
	}
}
