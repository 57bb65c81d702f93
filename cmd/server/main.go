package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Hjhirp/voice-auth-microservice/internal/config"
)

var cfg *config.Config

func main() {
	rootCmd := &cobra.Command{
		Use:   "voiceauth",
		Short: "Voice biometric authentication service",
		Long: `voiceauth enrolls and verifies callers by voiceprint: it fetches or
captures audio, extracts a speaker embedding, and compares it against a
stored enrollment via cosine similarity.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			cfg = loaded
			return nil
		},
	}

	rootCmd.AddCommand(
		serveCmd(),
		migrateCmd(),
		enrollCliCmd(),
		configCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show the resolved configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println("Server:")
			fmt.Printf("  Host: %s\n", cfg.Host)
			fmt.Printf("  Port: %d\n", cfg.Port)
			fmt.Println()
			fmt.Println("Database:")
			fmt.Printf("  DB_URL: %s\n", maskDatabaseURL(cfg.DBURL))
			fmt.Println()
			fmt.Println("Embedding:")
			fmt.Printf("  URL:     %s\n", cfg.EmbeddingURL)
			fmt.Printf("  Timeout: %ds\n", cfg.EmbeddingTimeoutSeconds)
			fmt.Println()
			fmt.Println("Voice:")
			fmt.Printf("  Threshold:          %.2f\n", cfg.VoiceThreshold)
			fmt.Printf("  MaxAudioDuration:   %ds\n", cfg.MaxAudioDuration)
			fmt.Printf("  MinAudioDuration:   %.1fs\n", cfg.MinAudioDuration)
			fmt.Printf("  SilenceThreshold:   %.3f\n", cfg.SilenceThreshold)
			fmt.Printf("  SilenceDuration:    %ds\n", cfg.SilenceDurationSeconds)
			fmt.Printf("  WebsocketTimeout:   %ds\n", cfg.WebsocketTimeout)

			if err := cfg.Validate(); err != nil {
				fmt.Printf("\nconfiguration is invalid: %v\n", err)
			}
			return nil
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the service version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(serviceVersion)
		},
	}
}
