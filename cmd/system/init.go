package system

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/Alijeyrad/consultorio_backend/config"
	"github.com/Alijeyrad/consultorio_backend/pkg/database"
)

func NewInitCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the document store database",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath, err := cmd.Root().PersistentFlags().GetString("config")
			if err != nil {
				return fmt.Errorf("failed to get config flag: %w", err)
			}
			cfg, err := config.ReadConfig(filepath.Dir(cfgPath))
			if err != nil {
				return fmt.Errorf("failed to read config: %w", err)
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			fmt.Println("Initializing database...")
			if err := database.EnsureDatabase(ctx, cfg.Database); err != nil {
				return fmt.Errorf("failed to initialize database: %w", err)
			}
			fmt.Println("Database initialized successfully.")
			return nil
		},
	}

	return cmd
}
