// Package importer runs the legacy bulk import from the command line.
package importer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/Alijeyrad/consultorio_backend/config"
	"github.com/Alijeyrad/consultorio_backend/internal/app"
	"github.com/Alijeyrad/consultorio_backend/internal/service/auth"
	"github.com/Alijeyrad/consultorio_backend/internal/service/migration"
	"github.com/Alijeyrad/consultorio_backend/internal/syncstore"
	"github.com/Alijeyrad/consultorio_backend/pkg/logs"
)

const (
	envPassword = "CONSULTORIO_IMPORT_PASSWORD"
	envToken    = "CONSULTORIO_TOKEN"
)

func NewImportCommand() *cobra.Command {
	var (
		mode     string
		file     string
		username string
		clinicID string
		drain    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import legacy patients or consultations from a JSON export",
		Long: `Import a JSON array exported from the legacy system.

--mode pacientes creates patients; --mode consultas links consultations to
patients imported before, matching on the legacy id. The account must be an
administrator. It signs in with --username and the password in
CONSULTORIO_IMPORT_PASSWORD, or reuses the access token in
CONSULTORIO_TOKEN. Writes are journaled first; the command waits up to
--drain for them to reach the document store. Writes still queued then are
delivered on the next run.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath, err := cmd.Root().PersistentFlags().GetString("config")
			if err != nil {
				return fmt.Errorf("failed to get config flag: %w", err)
			}
			cfg, err := config.ReadConfig(filepath.Dir(cfgPath))
			if err != nil {
				return fmt.Errorf("failed to read config: %w", err)
			}
			slog.SetDefault(logs.New(cfg))

			// the server keeps its own journal
			cfg.Sync.NodeID = app.NodeID(cfg) + "-import"

			f, err := os.Open(file)
			if err != nil {
				return err
			}
			rows, err := migration.ParseRows(f)
			f.Close()
			if err != nil {
				return err
			}

			var (
				store   *syncstore.Store
				authSvc auth.Service
				svc     migration.Service
			)
			fxApp := fx.New(
				fx.Supply(cfg),
				app.InfraModule,
				app.ServiceModule,
				fx.Populate(&store, &authSvc, &svc),
				fx.WithLogger(func() fxevent.Logger { return fxevent.NopLogger }),
			)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := fxApp.Start(ctx); err != nil {
				return err
			}
			defer fxApp.Stop(context.Background())

			gate := auth.NewGate(authSvc)
			id, err := signIn(ctx, gate, os.Getenv(envToken), username, os.Getenv(envPassword))
			if err != nil {
				return fmt.Errorf("sign in: %w", err)
			}
			account := id.Account
			gate.OnSignOut(func() { store.CloseAccount(account.UID) })
			if os.Getenv(envToken) == "" {
				defer func() {
					if err := gate.SignOut(context.Background()); err != nil {
						slog.Warn("sign out", "err", err)
					}
				}()
			}

			runCtx, cancelRun := context.WithCancel(context.Background())
			defer cancelRun()
			go func() {
				if err := store.Run(runCtx); err != nil {
					slog.Error("delivery stopped", "err", err)
				}
			}()

			scope := syncstore.Scope{AccountID: account.UID, ClinicID: clinicID}
			res, err := svc.Import(ctx, account, scope, migration.Request{Mode: migration.Mode(mode), Rows: rows}, func(l migration.Line) {
				fmt.Fprintf(cmd.OutOrStdout(), "[%d] %s\n", l.Row, l.Text)
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Procesados: %d  Exitosos: %d  Fallidos: %d\n", res.Processed, res.Succeeded, res.Failed)

			if err := waitDrained(ctx, store, drain); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "%d writes still queued: %v\n", store.Pending(), err)
			}
			if res.Cancelled {
				return errors.New("import cancelled")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&mode, "mode", string(migration.ModePatients), "pacientes or consultas")
	cmd.Flags().StringVar(&file, "file", "", "path to the JSON export")
	cmd.Flags().StringVar(&username, "username", "", "administrator username")
	cmd.Flags().StringVar(&clinicID, "clinic", "", "clinic the imported records belong to")
	cmd.Flags().DurationVar(&drain, "drain", 2*time.Minute, "how long to wait for queued writes")
	_ = cmd.MarkFlagRequired("file")
	_ = cmd.MarkFlagRequired("clinic")

	return cmd
}

// signIn resolves the operator session through the gate: the access token
// when set, otherwise username and password.
func signIn(ctx context.Context, gate *auth.Gate, token, username, secret string) (*auth.Identity, error) {
	switch {
	case token != "":
		if err := gate.Resolve(ctx, token); err != nil {
			return nil, err
		}
	case username != "":
		if _, err := gate.SignIn(ctx, username, secret); err != nil {
			return nil, err
		}
	default:
		if err := gate.Resolve(ctx, ""); err != nil {
			return nil, err
		}
	}
	return gate.Wait(ctx)
}

// waitDrained polls until the journal is empty or timeout passes.
func waitDrained(ctx context.Context, store interface{ Pending() int }, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	tick := time.NewTicker(200 * time.Millisecond)
	defer tick.Stop()
	for store.Pending() > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-tick.C:
		}
	}
	return nil
}
