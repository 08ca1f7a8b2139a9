package app

import (
	"context"
	"log/slog"
	"sync"

	"go.uber.org/fx"

	"github.com/Alijeyrad/consultorio_backend/internal/service/auth"
	"github.com/Alijeyrad/consultorio_backend/internal/syncstore"
)

// WorkerModule runs the background loops of a server process.
var WorkerModule = fx.Module("workers",
	fx.Invoke(RegisterWorkers),
)

type WorkerParams struct {
	fx.In

	Lc    fx.Lifecycle
	Store *syncstore.Store
	Auth  auth.Service
	Log   *slog.Logger
}

func RegisterWorkers(p WorkerParams) {
	// Signing out closes the account's live queries here and on every
	// other node.
	p.Auth.OnTeardown(func(accountID, sessionID string) {
		n := p.Store.CloseAccount(accountID)
		p.Log.Info("session torn down", "account_id", accountID, "session_id", sessionID, "subscriptions", n)
	})

	var (
		cancel context.CancelFunc
		wg     sync.WaitGroup
	)
	p.Lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			var ctx context.Context
			ctx, cancel = context.WithCancel(context.Background())

			wg.Add(2)
			go func() {
				defer wg.Done()
				startDeliveryWorker(ctx, p.Store, p.Log)
			}()
			go func() {
				defer wg.Done()
				startRevocationWorker(ctx, p.Auth, p.Log)
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if cancel != nil {
				cancel()
			}
			done := make(chan struct{})
			go func() {
				wg.Wait()
				close(done)
			}()
			select {
			case <-done:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
	})
}

// ---------------------------------------------------------------------------
// delivery_worker
// ---------------------------------------------------------------------------

func startDeliveryWorker(ctx context.Context, store *syncstore.Store, log *slog.Logger) {
	if err := store.Run(ctx); err != nil {
		log.Error("delivery_worker: stopped", "err", err)
	}
}

// ---------------------------------------------------------------------------
// revocation_worker
// ---------------------------------------------------------------------------

func startRevocationWorker(ctx context.Context, svc auth.Service, log *slog.Logger) {
	if err := svc.WatchRevocations(ctx); err != nil && ctx.Err() == nil {
		log.Error("revocation_worker: stopped", "err", err)
	}
}
