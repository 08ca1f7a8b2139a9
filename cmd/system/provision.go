package system

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/Alijeyrad/consultorio_backend/config"
	"github.com/Alijeyrad/consultorio_backend/internal/app"
	"github.com/Alijeyrad/consultorio_backend/internal/schema"
	"github.com/Alijeyrad/consultorio_backend/internal/service/auth"
	"github.com/Alijeyrad/consultorio_backend/pkg/util/password"
)

func NewProvisionCommand() *cobra.Command {
	var (
		username string
		secret   string
		role     string
		clinics  []string
	)

	cmd := &cobra.Command{
		Use:   "provision",
		Short: "Create an operator account",
		Long: `Create an operator account with its credential and profile.

Each --clinic is "id:Name:Doctor name", for example
  --clinic "clinic_a:Consultorio Centro:Dra. Ruiz"
When --password is empty a random one is generated and printed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath, err := cmd.Root().PersistentFlags().GetString("config")
			if err != nil {
				return fmt.Errorf("failed to get config flag: %w", err)
			}
			cfg, err := config.ReadConfig(filepath.Dir(cfgPath))
			if err != nil {
				return fmt.Errorf("failed to read config: %w", err)
			}

			parsed, err := parseClinics(clinics)
			if err != nil {
				return err
			}
			generated := secret == ""
			if generated {
				secret = password.Generate(12)
			}

			var svc auth.Service
			fxApp := fx.New(
				fx.Supply(cfg),
				app.InfraModule,
				app.ServiceModule,
				fx.Populate(&svc),
				fx.WithLogger(func() fxevent.Logger { return fxevent.NopLogger }),
			)
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			if err := fxApp.Start(ctx); err != nil {
				return err
			}
			defer fxApp.Stop(context.Background())

			account, err := svc.Provision(ctx, auth.ProvisionRequest{
				Username: username,
				Password: secret,
				Role:     schema.Role(role),
				Clinics:  parsed,
			})
			if err != nil {
				return fmt.Errorf("failed to provision account: %w", err)
			}

			fmt.Printf("Account %s created for %q (%s)\n", account.UID, account.Username, account.Role)
			if generated {
				fmt.Printf("Generated password: %s\n", secret)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&username, "username", "", "short login name")
	cmd.Flags().StringVar(&secret, "password", "", "initial password (generated when empty)")
	cmd.Flags().StringVar(&role, "role", string(schema.RoleDoctor), "doctor or admin")
	cmd.Flags().StringArrayVar(&clinics, "clinic", nil, `clinic as "id:Name:Doctor name" (repeatable)`)
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("clinic")

	return cmd
}

func parseClinics(specs []string) (map[string]schema.ClinicConfig, error) {
	out := make(map[string]schema.ClinicConfig, len(specs))
	for _, s := range specs {
		parts := strings.SplitN(s, ":", 3)
		id := strings.TrimSpace(parts[0])
		if id == "" {
			return nil, fmt.Errorf("invalid --clinic %q: missing id", s)
		}
		if _, dup := out[id]; dup {
			return nil, fmt.Errorf("invalid --clinic %q: duplicate id", s)
		}
		var c schema.ClinicConfig
		if len(parts) > 1 {
			c.Name = strings.TrimSpace(parts[1])
		}
		if len(parts) > 2 {
			c.DoctorName = strings.TrimSpace(parts[2])
		}
		out[id] = c
	}
	return out, nil
}
