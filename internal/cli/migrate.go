package cli

import (
	"fmt"

	"github.com/chirp-labs/chirp/internal/config"
	"github.com/spf13/cobra"
)

// MigrateCmd returns the migrate command for running database migrations
// without starting the server.
func MigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			return runMigrations(cfg.DatabaseURL)
		},
	}
}
