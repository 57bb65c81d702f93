package main

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/Hjhirp/voice-auth-microservice/internal/adapters/embeddingclient"
	"github.com/Hjhirp/voice-auth-microservice/internal/adapters/postgres"
	"github.com/Hjhirp/voice-auth-microservice/internal/audio"
	"github.com/Hjhirp/voice-auth-microservice/internal/capture"
	"github.com/Hjhirp/voice-auth-microservice/internal/orchestrator"
	"github.com/Hjhirp/voice-auth-microservice/internal/similarity"
)

// enrollCliCmd drives a one-off enrollment from the command line, without
// going through the HTTP server -- useful for seeding a voiceprint during
// an operator-assisted onboarding call.
func enrollCliCmd() *cobra.Command {
	var phone, audioURL string

	cmd := &cobra.Command{
		Use:   "enroll-cli",
		Short: "Enroll a phone number's voiceprint from an audio URL",
		RunE: func(cmd *cobra.Command, args []string) error {
			if phone == "" || audioURL == "" {
				return fmt.Errorf("--phone and --audio-url are required")
			}
			return runEnrollCli(cmd.Context(), phone, audioURL)
		},
	}

	cmd.Flags().StringVar(&phone, "phone", "", "phone number to enroll")
	cmd.Flags().StringVar(&audioURL, "audio-url", "", "URL of the enrollment audio clip")
	return cmd
}

func runEnrollCli(ctx context.Context, phone, audioURL string) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	pool, err := pgxpool.New(ctx, cfg.DBURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	repo := postgres.NewRepository(pool)
	embeddingTimeout := time.Duration(cfg.EmbeddingTimeoutSeconds) * time.Second
	fetcher := audio.NewFetcher()
	fetcher.Timeout = time.Duration(cfg.FetchTimeoutSeconds) * time.Second

	orch := orchestrator.New(
		fetcher,
		audio.NewNormalizer(),
		capture.NewEngine(capture.DefaultParams()),
		embeddingclient.NewClient(cfg.EmbeddingURL, embeddingTimeout),
		similarity.NewJudge(),
		repo,
		cfg.VoiceThreshold,
		cfg.MinAudioDuration,
	)

	result, err := orch.Enroll(ctx, phone, audioURL)
	if err != nil {
		return fmt.Errorf("enrollment failed: %w", err)
	}

	fmt.Printf("enrolled %s: status=%s score=%.4f\n", phone, result.Status, result.Score)
	return nil
}
