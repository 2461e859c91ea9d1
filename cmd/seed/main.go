package main

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/oggyb/edublin-connect/internal/backend"
	"github.com/oggyb/edublin-connect/internal/config"
	"github.com/oggyb/edublin-connect/internal/db"
	"github.com/oggyb/edublin-connect/internal/fallback"
	"github.com/oggyb/edublin-connect/internal/logger"
)

func main() {
	var profiles int
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Wipe the backend and load the demo account, personas and generated students",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// Load configuration
			cfg := config.New()
			logger.InitFromConfig(cfg)

			if !cfg.BackendConfigured() {
				return fmt.Errorf("backend not configured: set BACKEND_DSN or BACKEND_HOST")
			}
			database, err := db.NewDB(cfg)
			if err != nil {
				return fmt.Errorf("failed to init db: %w", err)
			}

			store := backend.NewGormStore(database, backend.WithLogger(logger.L()))
			if err := backend.Seed(cmd.Context(), store, fallback.New(), profiles); err != nil {
				return fmt.Errorf("failed to seed: %w", err)
			}
			log.Println("Seeding completed.")
			return nil
		},
	}
	cmd.Flags().IntVar(&profiles, "profiles", 40, "generated students to create")

	if err := cmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
