package system

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/Alijeyrad/consultorio_backend/config"
	"github.com/Alijeyrad/consultorio_backend/pkg/authorize"
	"github.com/Alijeyrad/consultorio_backend/pkg/database"
	"github.com/Alijeyrad/consultorio_backend/pkg/docstore"
)

func NewMigrateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create the document tables and check the access policy",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath, err := cmd.Root().PersistentFlags().GetString("config")
			if err != nil {
				return fmt.Errorf("failed to get config flag: %w", err)
			}
			cfg, err := config.ReadConfig(filepath.Dir(cfgPath))
			if err != nil {
				return fmt.Errorf("failed to read config: %w", err)
			}

			timeout := time.Duration(cfg.Server.TimeoutSeconds) * time.Second
			if timeout <= 0 {
				timeout = time.Minute
			}
			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()

			fmt.Println("Running migrations for the document store.")
			db, err := database.OpenFromCentral(ctx, cfg.Database)
			if err != nil {
				return fmt.Errorf("failed to open database: %w", err)
			}
			defer db.Close()

			if err := docstore.NewPostgres(db).Migrate(ctx); err != nil {
				return fmt.Errorf("failed to run migrations: %w", err)
			}

			// a policy file that does not load would only fail at first request
			slog.Info("Checking access policy...")
			if _, err := authorize.New(authorize.FromCentralConfig(cfg.Authorization)); err != nil {
				return fmt.Errorf("failed to load access policy: %w", err)
			}

			fmt.Println("Migrations executed successfully.")
			return nil
		},
	}

	return cmd
}
